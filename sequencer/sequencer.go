package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	zkcommon "github.com/Ankitjha21/zksync-era/common"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/state"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Ankitjha21/zksync-era/sequencer"

// deadlines are checked at a fraction of the smallest configured one, so a
// quiet period without transaction traffic still seals on time
const deadlineTickDivisor = 4

// gas charged on L1 per committed batch on top of its pubdata
const commitBatchOverheadGas = 50_000

// gas charged on L1 per pubdata byte of a committed batch
const commitPubdataByteGas = 16

// StateRootProvider returns the state root computed by the execution engine
// for a sealed batch. The root is opaque to the sealing pipeline.
type StateRootProvider interface {
	StateRoot(ctx context.Context, batchNumber uint64) (common.Hash, error)
}

// Sequencer is the single writer over the open miniblock/batch pair. It
// admits or rejects transactions, seals miniblocks and batches and persists
// sealed batches for the downstream aggregation stages, which only ever read
// sealed, immutable data.
type Sequencer struct {
	cfg       Config
	logger    *log.Logger
	storage   state.Storage
	stateRoot StateRootProvider
	limits    thresholds
	meter     metric.Meter

	mu             sync.Mutex
	acc            *accountant
	prevCommitment common.Hash
	halted         bool
}

// New creates a Sequencer, resuming the batch numbering and commitment chain
// from the last persisted batch.
func New(
	ctx context.Context,
	cfg Config,
	logger *log.Logger,
	storage state.Storage,
	stateRoot StateRootProvider,
) (*Sequencer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nextBatch := uint64(1)
	prevCommitment := common.Hash{}
	last, err := storage.GetLastSealedBatch(ctx)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return nil, err
	}
	if last != nil {
		nextBatch = last.BatchNumber + 1
		prevCommitment = last.Commitment
	}

	logger.Infof("sequencer starting at batch %d", nextBatch)

	return &Sequencer{
		cfg:            cfg,
		logger:         logger,
		storage:        storage,
		stateRoot:      stateRoot,
		limits:         newThresholds(cfg),
		meter:          otel.Meter(meterName),
		acc:            newAccountant(nextBatch, 1, time.Now()),
		prevCommitment: prevCommitment,
	}, nil
}

// Start runs the deadline loop until the context is cancelled. Transaction
// admission does not depend on it, but without it an idle pipeline would
// never seal on deadline.
func (s *Sequencer) Start(ctx context.Context) {
	tick := s.cfg.MiniblockCommitDeadline.Duration
	if s.cfg.BlockCommitDeadline.Duration < tick {
		tick = s.cfg.BlockCommitDeadline.Duration
	}
	ticker := time.NewTicker(tick / deadlineTickDivisor)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sequencer stopped")
			return
		case <-ticker.C:
			s.checkDeadlines(ctx)
		}
	}
}

// ProcessTransaction runs the sealing decision sequence for one candidate
// transaction: hard rejection first, then admission, then the miniblock
// deadline check, then the batch seal triggers. Admissions are totally
// ordered; concurrent callers serialize here.
func (s *Sequencer) ProcessTransaction(
	ctx context.Context, tx state.Transaction, metrics state.TransactionExecutionMetrics,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return ErrSealingHalted
	}

	if metrics.Gas > s.cfg.MaxSingleTxGas {
		s.countTx(ctx, "sequencer_txs_rejected")
		return &TxRejectedError{Hash: tx.Hash, Dimension: DimensionGas}
	}
	if dim, exceeded := s.acc.wouldExceed(metrics, s.limits); exceeded {
		s.countTx(ctx, "sequencer_txs_rejected")
		return &TxRejectedError{Hash: tx.Hash, Dimension: dim}
	}

	now := time.Now()
	s.acc.admit(tx, metrics)
	s.countTx(ctx, "sequencer_txs_admitted")

	if s.acc.miniblockDeadlineElapsed(s.cfg, now) {
		s.acc.sealMiniblock(now)
	}

	if reason := s.acc.sealTrigger(s.cfg, s.limits, now); reason != state.SealNone {
		return s.sealBatch(ctx, reason, now)
	}

	return nil
}

// checkDeadlines seals the open miniblock and batch on deadline even without
// transaction traffic. Empty batches are not sealed; their deadline restarts.
func (s *Sequencer) checkDeadlines(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return
	}

	now := time.Now()
	if !s.acc.miniblock.IsEmpty() && s.acc.miniblockDeadlineElapsed(s.cfg, now) {
		s.acc.sealMiniblock(now)
	}

	if now.Sub(s.acc.batch.OpenedAt) < s.cfg.BlockCommitDeadline.Duration {
		return
	}
	if s.acc.batch.TxCount == 0 {
		s.acc.batch.OpenedAt = now
		return
	}
	if err := s.sealBatch(ctx, state.SealDeadline, now); err != nil {
		s.logger.Errorf("deadline seal of batch %d failed: %s", s.acc.batch.Number, err)
	}
}

// sealBatch closes the open miniblock into the batch, persists the sealed
// batch and opens the next one. A persist failure halts admission: no
// transaction may be admitted into an inconsistent batch.
func (s *Sequencer) sealBatch(ctx context.Context, reason state.SealReason, now time.Time) error {
	if !s.acc.miniblock.IsEmpty() {
		s.acc.sealMiniblock(now)
	}

	batch := s.acc.batch
	payload := encodeCommitPayload(batch)

	root, err := s.stateRoot.StateRoot(ctx, batch.Number)
	if err != nil {
		return s.halt(fmt.Errorf("error getting state root for batch %d: %w", batch.Number, err))
	}

	sealed := &state.SealedBatch{
		BatchNumber:        batch.Number,
		StateRoot:          root,
		SealReason:         reason,
		GasUsed:            batch.Resources.GasUsed,
		SizeUsed:           batch.Resources.SizeUsed,
		CircuitsUsed:       batch.Resources.CircuitsUsed,
		PubdataUsed:        batch.Resources.PubdataUsed,
		TxCount:            batch.TxCount,
		MiniblockCount:     batch.MiniblockCount,
		OpenedAt:           batch.OpenedAt,
		SealedAt:           now,
		CommitPayload:      payload,
		EstimatedCommitGas: commitBatchOverheadGas + commitPubdataByteGas*batch.Resources.PubdataUsed,
	}
	sealed.Commitment = zkcommon.CalculateBatchCommitment(
		s.logger, s.prevCommitment, sealed.BatchNumber, sealed.StateRoot, sealed.CommitPayload)

	if err := s.storage.AddSealedBatch(ctx, sealed); err != nil {
		return s.halt(fmt.Errorf("error persisting sealed batch %d: %w", sealed.BatchNumber, err))
	}

	s.logger.Infof("sealed batch %d, reason: %s, txs: %d, miniblocks: %d, gas: %d, pubdata: %d",
		sealed.BatchNumber, reason, sealed.TxCount, sealed.MiniblockCount,
		sealed.GasUsed, sealed.PubdataUsed)
	s.countTx(ctx, "sequencer_batches_sealed")

	s.prevCommitment = sealed.Commitment
	s.acc = newAccountant(batch.Number+1, 1, now)

	return nil
}

func (s *Sequencer) halt(err error) error {
	s.halted = true
	s.logger.Errorf("sealing halted: %s", err)
	return fmt.Errorf("%w: %s", ErrSealingHalted, err)
}

// Halted reports whether admission is halted after a sealing failure
func (s *Sequencer) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Resume lifts the halted flag once the operator resolved the persist
// failure. The open batch is intact; sealing is retried on the next trigger.
func (s *Sequencer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		s.logger.Warn("sequencer admission resumed by operator")
		s.halted = false
	}
}

func (s *Sequencer) countTx(ctx context.Context, name string) {
	c, merr := s.meter.Int64Counter(name)
	if merr != nil {
		s.logger.Warnf("failed to create %s counter: %s", name, merr)
	}
	c.Add(ctx, 1)
}

// encodeCommitPayload serializes the batch totals into the opaque
// contribution of the batch to a commit transaction.
func encodeCommitPayload(batch state.PendingBatch) []byte {
	payload := make([]byte, 0, 48)
	payload = append(payload, zkcommon.Uint64ToBytes(batch.Number)...)
	payload = append(payload, zkcommon.Uint64ToBytes(batch.TxCount)...)
	payload = append(payload, zkcommon.Uint64ToBytes(batch.MiniblockCount)...)
	payload = append(payload, zkcommon.Uint64ToBytes(batch.Resources.GasUsed)...)
	payload = append(payload, zkcommon.Uint64ToBytes(batch.Resources.SizeUsed)...)
	payload = append(payload, zkcommon.Uint64ToBytes(batch.Resources.PubdataUsed)...)
	return payload
}
