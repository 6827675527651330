package state

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	zkcommon "github.com/Ankitjha21/zksync-era/common"
	"github.com/Ankitjha21/zksync-era/db"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = db.ErrNotFound
	// ErrNonConsecutiveBatch indicates a sealed batch would break the
	// gapless batch numbering
	ErrNonConsecutiveBatch = errors.New("non consecutive batch number")
)

// TransactionExecutionMetrics is the resource usage measured by the execution
// engine for a single executed transaction. Each dimension is metered
// independently; no dimension may borrow capacity from another.
type TransactionExecutionMetrics struct {
	// Gas spent executing the transaction
	Gas uint64
	// Size of the transaction contribution to the L1 commit calldata (eth params)
	Size uint64
	// Circuits is the proving geometry usage, in circuit slots
	Circuits uint64
	// PubdataBytes published for data availability
	PubdataBytes uint64
}

// Transaction is the unit admitted into miniblocks. Execution itself is out
// of scope: the payload is opaque and the metrics come from the execution
// engine alongside it.
type Transaction struct {
	Hash     common.Hash
	From     common.Address
	Nonce    uint64
	GasLimit uint64
	Payload  []byte
}

// BatchResources are the running totals of the four metered dimensions for
// an open miniblock or batch.
type BatchResources struct {
	GasUsed      uint64
	SizeUsed     uint64
	CircuitsUsed uint64
	PubdataUsed  uint64
}

// Add accumulates the metrics of an admitted transaction.
func (r *BatchResources) Add(m TransactionExecutionMetrics) {
	r.GasUsed += m.Gas
	r.SizeUsed += m.Size
	r.CircuitsUsed += m.Circuits
	r.PubdataUsed += m.PubdataBytes
}

// Accumulate merges the totals of a sealed miniblock into the batch totals.
func (r *BatchResources) Accumulate(other BatchResources) {
	r.GasUsed += other.GasUsed
	r.SizeUsed += other.SizeUsed
	r.CircuitsUsed += other.CircuitsUsed
	r.PubdataUsed += other.PubdataUsed
}

// SealReason records which trigger sealed a batch. When several triggers fire
// on the same transaction, the lowest value wins.
type SealReason int

const (
	// SealNone means the batch is still open
	SealNone SealReason = iota
	// SealDeadline is the batch commit deadline trigger
	SealDeadline
	// SealGas is the gas close-threshold trigger
	SealGas
	// SealSize is the eth-params (L1 calldata) close-threshold trigger
	SealSize
	// SealGeometry is the proving-circuit close-threshold trigger
	SealGeometry
	// SealPubdata is the pubdata close-threshold trigger
	SealPubdata
	// SealTxSlots is the transaction-slot capacity trigger
	SealTxSlots
)

func (s SealReason) String() string {
	switch s {
	case SealNone:
		return "none"
	case SealDeadline:
		return "deadline"
	case SealGas:
		return "gas"
	case SealSize:
		return "size"
	case SealGeometry:
		return "geometry"
	case SealPubdata:
		return "pubdata"
	case SealTxSlots:
		return "tx-slots"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// PendingMiniblock is the open ordered run of admitted transactions. It is
// owned exclusively by the current batch and destroyed on seal.
type PendingMiniblock struct {
	Number       uint64
	OpenedAt     time.Time
	Transactions []Transaction
	Resources    BatchResources
}

// IsEmpty reports whether no transaction has been admitted yet.
func (m *PendingMiniblock) IsEmpty() bool {
	return len(m.Transactions) == 0
}

// PendingBatch is the single open batch, mutated only by the sealing policy
// engine.
type PendingBatch struct {
	Number         uint64
	OpenedAt       time.Time
	MiniblockCount uint64
	TxCount        uint64
	Resources      BatchResources
}

// SealedBatch is an immutable batch persisted once sealed and consumed by the
// aggregator exactly once per bundle kind.
type SealedBatch struct {
	BatchNumber    uint64      `meddler:"batch_number"`
	StateRoot      common.Hash `meddler:"state_root,hash"`
	Commitment     common.Hash `meddler:"commitment,hash"`
	SealReason     SealReason  `meddler:"seal_reason"`
	GasUsed        uint64      `meddler:"gas_used"`
	SizeUsed       uint64      `meddler:"size_used"`
	CircuitsUsed   uint64      `meddler:"circuits_used"`
	PubdataUsed    uint64      `meddler:"pubdata_used"`
	TxCount        uint64      `meddler:"tx_count"`
	MiniblockCount uint64      `meddler:"miniblock_count"`
	OpenedAt       time.Time   `meddler:"opened_at,timeRFC3339"`
	SealedAt       time.Time   `meddler:"sealed_at,timeRFC3339"`
	// CommitPayload is the opaque contribution of this batch to a commit
	// transaction on L1
	CommitPayload []byte `meddler:"commit_payload"`
	// EstimatedCommitGas is the L1 gas this batch is expected to cost when
	// committed
	EstimatedCommitGas uint64 `meddler:"estimated_commit_gas"`

	CommitTxHash  common.Hash `meddler:"commit_tx_hash,hash"`
	ProveTxHash   common.Hash `meddler:"prove_tx_hash,hash"`
	ExecuteTxHash common.Hash `meddler:"execute_tx_hash,hash"`
}

// Hash chains this batch's commitment to the previous one.
func (b *SealedBatch) Hash(prev common.Hash) common.Hash {
	return zkcommon.CalculateBatchCommitment(nil, prev, b.BatchNumber, b.StateRoot, b.CommitPayload)
}

// BundleKind is the kind of an aggregated L1 transaction.
type BundleKind string

const (
	// BundleCommit publishes batch data and state roots on L1
	BundleCommit BundleKind = "commit"
	// BundleProve attaches the validity proof for committed batches
	BundleProve BundleKind = "prove"
	// BundleExecute finalizes the state transition of proven batches
	BundleExecute BundleKind = "execute"
)

// DependsOn returns the bundle kind that must be confirmed for a batch range
// before this kind may be submitted for it, or "" for Commit.
func (k BundleKind) DependsOn() BundleKind {
	switch k {
	case BundleProve:
		return BundleCommit
	case BundleExecute:
		return BundleProve
	}
	return ""
}

// EthTxStatus is the lifecycle state of a monitored L1 transaction.
type EthTxStatus string

const (
	// EthTxStatusPending the bundle exists but no L1 tx was accepted yet
	EthTxStatusPending EthTxStatus = "pending"
	// EthTxStatusSubmitted an L1 tx is in flight
	EthTxStatusSubmitted EthTxStatus = "submitted"
	// EthTxStatusConfirmed the L1 tx was mined successfully
	EthTxStatusConfirmed EthTxStatus = "confirmed"
	// EthTxStatusFailed terminal failure (reverted or retries exhausted)
	EthTxStatusFailed EthTxStatus = "failed"
)

// EthTx is a monitored L1 transaction carrying one aggregated bundle. It is
// keyed by nonce: a fee-bump resubmission replaces the candidate hash but
// keeps the row.
type EthTx struct {
	Nonce        uint64         `meddler:"nonce"`
	Kind         BundleKind     `meddler:"kind"`
	FromBatch    uint64         `meddler:"from_batch"`
	ToBatch      uint64         `meddler:"to_batch"`
	To           common.Address `meddler:"to_addr,address"`
	Payload      []byte         `meddler:"payload"`
	Gas          uint64         `meddler:"gas"`
	GasTipCap    *big.Int       `meddler:"gas_tip_cap,bigint"`
	GasFeeCap    *big.Int       `meddler:"gas_fee_cap,bigint"`
	TxHash       common.Hash    `meddler:"tx_hash,hash"`
	Status       EthTxStatus    `meddler:"status"`
	Attempts     uint64         `meddler:"attempts"`
	MinedBlock   uint64         `meddler:"mined_block"`
	RevertReason string         `meddler:"revert_reason"`
	CreatedAt    time.Time      `meddler:"created_at,timeRFC3339"`
	UpdatedAt    time.Time      `meddler:"updated_at,timeRFC3339"`
}

// String implements fmt.Stringer
func (t *EthTx) String() string {
	return fmt.Sprintf("eth tx nonce %d %s [%d, %d] status %s hash %s",
		t.Nonce, t.Kind, t.FromBatch, t.ToBatch, t.Status, t.TxHash)
}

// AggregatedTxBundle groups a contiguous range of sealed batches into one L1
// transaction of a given kind.
type AggregatedTxBundle struct {
	Kind         BundleKind `meddler:"kind"`
	FromBatch    uint64     `meddler:"from_batch"`
	ToBatch      uint64     `meddler:"to_batch"`
	Payload      []byte     `meddler:"payload"`
	EstimatedGas uint64     `meddler:"estimated_gas"`
	BatchCount   uint64     `meddler:"batch_count"`
}

// String implements fmt.Stringer
func (b *AggregatedTxBundle) String() string {
	return fmt.Sprintf("%s bundle [%d, %d] (%d batches, %d payload bytes, %d gas)",
		b.Kind, b.FromBatch, b.ToBatch, b.BatchCount, len(b.Payload), b.EstimatedGas)
}
