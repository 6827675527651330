package ethsender

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Ankitjha21/zksync-era/ethsender"

// replacement transactions must raise the previous fee by at least 10% or
// the L1 mempool drops them
var (
	rbfNumerator   = big.NewInt(11)
	rbfDenominator = big.NewInt(10)
)

// ErrTxReverted means an L1 transaction was mined but reverted. It is
// terminal: a reverted bundle indicates a policy or protocol violation that
// needs operator intervention, not a retry.
var ErrTxReverted = errors.New("transaction reverted on L1")

// Etherman is the L1 client surface the sender depends on
type Etherman interface {
	CurrentNonce(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error)
	SignTx(ctx context.Context, sender common.Address, tx *types.Transaction) (*types.Transaction, error)
	SendTx(ctx context.Context, tx *types.Transaction) error
	CheckTxWasMined(ctx context.Context, txHash common.Hash) (bool, *types.Receipt, error)
	GetTx(ctx context.Context, txHash common.Hash) (*types.Transaction, bool, error)
	GetRevertMessage(ctx context.Context, tx *types.Transaction) (string, error)
	ValidatorTimelockAddr() common.Address
}

// GasPricer prices new and replacement transactions
type GasPricer interface {
	PriorityFee() *big.Int
	FeeCap(tip *big.Int) *big.Int
}

// EthSender submits aggregated bundles to L1 and tracks every in-flight
// transaction until it reaches a terminal state: confirmed, reverted or
// retries exhausted. No bundle is silently abandoned.
type EthSender struct {
	cfg        Config
	logger     *log.Logger
	storage    state.Storage
	etherman   Etherman
	gasPricer  GasPricer
	aggregator *Aggregator
	meter      metric.Meter

	nonceMutex   sync.Mutex
	currentNonce uint64
	nonceSynced  bool

	stopped atomic.Bool
}

// New creates an EthSender
func New(
	cfg Config,
	logger *log.Logger,
	storage state.Storage,
	etherman Etherman,
	gasPricer GasPricer,
	aggregator *Aggregator,
) (*EthSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &EthSender{
		cfg:        cfg,
		logger:     logger,
		storage:    storage,
		etherman:   etherman,
		gasPricer:  gasPricer,
		aggregator: aggregator,
		meter:      otel.Meter(meterName),
	}, nil
}

// Start runs the monitoring and aggregation loops until the context is
// cancelled. Inclusion checks and bundle formation use independent timers.
func (s *EthSender) Start(ctx context.Context) {
	go s.monitorLoop(ctx)
	s.aggregationLoop(ctx)
}

func (s *EthSender) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TxPollPeriod.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncEthTxResults(ctx); err != nil {
				s.logger.Errorf("error syncing tx results: %s", err)
			}
		}
	}
}

func (s *EthSender) aggregationLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AggregateTxPollPeriod.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("eth sender stopped")
			return
		case <-ticker.C:
			s.TryToSendBundles(ctx)
		}
	}
}

// TryToSendBundles forms and submits at most one bundle per kind, honoring
// the in-flight cap and the commit, prove, execute order.
func (s *EthSender) TryToSendBundles(ctx context.Context) {
	if s.IsStopped() {
		s.logger.Warnf("sending is stopped!")
		return
	}

	countPending, err := s.storage.CountEthTxsByStatus(ctx, state.EthTxStatusSubmitted)
	if err != nil {
		s.logger.Errorf("error counting pending txs: %s", err)
		return
	}
	if countPending >= s.cfg.MaxPendingTx {
		s.logger.Infof("max number of pending txs (%d) reached. Waiting for some to be completed", countPending)
		return
	}

	inflight, err := s.inflightKinds(ctx)
	if err != nil {
		s.logger.Errorf("error listing in-flight txs: %s", err)
		return
	}

	for _, kind := range []state.BundleKind{state.BundleCommit, state.BundleProve, state.BundleExecute} {
		if inflight[kind] {
			continue
		}

		bundle, err := s.aggregator.NextBundle(ctx, kind)
		if err != nil {
			s.logger.Errorf("error building %s bundle: %s", kind, err)
			return
		}
		if bundle == nil {
			continue
		}

		if err := s.Submit(ctx, bundle); err != nil {
			s.logger.Errorf("error submitting %s: %s", bundle, err)
			return
		}
	}
}

func (s *EthSender) inflightKinds(ctx context.Context) (map[state.BundleKind]bool, error) {
	txs, err := s.storage.GetEthTxsByStatus(ctx, []state.EthTxStatus{
		state.EthTxStatusPending, state.EthTxStatusSubmitted,
	})
	if err != nil {
		return nil, err
	}

	kinds := map[state.BundleKind]bool{}
	for _, tx := range txs {
		kinds[tx.Kind] = true
	}
	return kinds, nil
}

// Submit builds, signs and sends the L1 transaction carrying the bundle and
// starts monitoring it
func (s *EthSender) Submit(ctx context.Context, bundle *state.AggregatedTxBundle) error {
	to := s.etherman.ValidatorTimelockAddr()

	nonce, err := s.nextNonce(ctx)
	if err != nil {
		return err
	}

	gas, err := s.etherman.EstimateGas(ctx, s.cfg.SenderAddress, &to, nil, bundle.Payload)
	if err != nil {
		return fmt.Errorf("error estimating gas for %s: %w", bundle, err)
	}
	gas += s.cfg.GasOffset

	tip := s.gasPricer.PriorityFee()
	feeCap := s.gasPricer.FeeCap(tip)

	signedTx, err := s.signAndSend(ctx, nonce, &to, gas, tip, feeCap, bundle.Payload)
	if err != nil {
		return err
	}
	s.advanceNonce()

	now := time.Now()
	ethTx := &state.EthTx{
		Nonce:     nonce,
		Kind:      bundle.Kind,
		FromBatch: bundle.FromBatch,
		ToBatch:   bundle.ToBatch,
		To:        to,
		Payload:   bundle.Payload,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		TxHash:    signedTx.Hash(),
		Status:    state.EthTxStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.AddEthTx(ctx, ethTx); err != nil {
		return fmt.Errorf("error persisting %s: %w", ethTx, err)
	}

	s.logger.Infof("sent %s. From batch %d to batch %d, tx %s, nonce %d, tip %s, fee cap %s",
		bundle.Kind, bundle.FromBatch, bundle.ToBatch, signedTx.Hash(), nonce, tip, feeCap)
	s.count(ctx, "eth_sender_bundles_submitted")

	return nil
}

// SyncEthTxResults advances every in-flight transaction: confirm the mined
// ones, surface the reverted ones and fee-bump the stale ones.
func (s *EthSender) SyncEthTxResults(ctx context.Context) error {
	txs, err := s.storage.GetEthTxsByStatus(ctx, []state.EthTxStatus{state.EthTxStatusSubmitted})
	if err != nil {
		return err
	}

	for _, tx := range txs {
		mined, receipt, err := s.etherman.CheckTxWasMined(ctx, tx.TxHash)
		if err != nil {
			s.logger.Errorf("error checking inclusion of tx %s: %s", tx.TxHash, err)
			continue
		}

		switch {
		case mined && receipt.Status == types.ReceiptStatusSuccessful:
			if err := s.confirm(ctx, tx, receipt); err != nil {
				return err
			}
		case mined:
			if err := s.markReverted(ctx, tx); err != nil {
				return err
			}
		case time.Since(tx.UpdatedAt) >= s.cfg.ResendInterval.Duration:
			if err := s.resend(ctx, tx); err != nil {
				s.logger.Errorf("error resending tx %s: %s", tx.TxHash, err)
			}
		}
	}

	return nil
}

// confirm marks the contained batches with the mined tx hash, which releases
// the bundles depending on this range
func (s *EthSender) confirm(ctx context.Context, tx *state.EthTx, receipt *types.Receipt) error {
	if err := s.storage.SetBundleTxHash(ctx, tx.Kind, tx.FromBatch, tx.ToBatch, tx.TxHash); err != nil {
		return err
	}

	tx.Status = state.EthTxStatusConfirmed
	tx.MinedBlock = receipt.BlockNumber.Uint64()
	tx.UpdatedAt = time.Now()
	if err := s.storage.UpdateEthTx(ctx, tx); err != nil {
		return err
	}

	s.logger.Infof("confirmed %s at block %d", tx, tx.MinedBlock)
	s.count(ctx, "eth_sender_bundles_confirmed")

	return nil
}

// markReverted is terminal: the transaction is surfaced to the operator and
// never retried, and sending stops
func (s *EthSender) markReverted(ctx context.Context, tx *state.EthTx) error {
	reason := ""
	if minedTx, _, err := s.etherman.GetTx(ctx, tx.TxHash); err == nil {
		reason, _ = s.etherman.GetRevertMessage(ctx, minedTx)
	}

	tx.Status = state.EthTxStatusFailed
	tx.RevertReason = reason
	tx.UpdatedAt = time.Now()
	if err := s.storage.UpdateEthTx(ctx, tx); err != nil {
		return err
	}

	s.halt(fmt.Errorf("%w: %s, reason: %s", ErrTxReverted, tx, reason))

	return nil
}

// resend replaces a stale transaction with the same nonce, payload and batch
// range at a strictly higher fee, bounded by MaxResendAttempts
func (s *EthSender) resend(ctx context.Context, tx *state.EthTx) error {
	if tx.Attempts >= s.cfg.MaxResendAttempts {
		tx.Status = state.EthTxStatusFailed
		tx.UpdatedAt = time.Now()
		if err := s.storage.UpdateEthTx(ctx, tx); err != nil {
			return err
		}
		s.halt(fmt.Errorf("tx %s not mined after %d attempts", tx.TxHash, tx.Attempts+1))
		return nil
	}

	tip := bumpFee(tx.GasTipCap)
	if suggested := s.gasPricer.PriorityFee(); suggested.Cmp(tip) > 0 {
		tip = suggested
	}
	feeCap := s.gasPricer.FeeCap(tip)
	if minCap := bumpFee(tx.GasFeeCap); minCap.Cmp(feeCap) > 0 {
		feeCap = minCap
	}

	signedTx, err := s.signAndSend(ctx, tx.Nonce, &tx.To, tx.Gas, tip, feeCap, tx.Payload)
	if err != nil {
		return err
	}

	oldHash := tx.TxHash
	tx.TxHash = signedTx.Hash()
	tx.GasTipCap = tip
	tx.GasFeeCap = feeCap
	tx.Attempts++
	tx.UpdatedAt = time.Now()
	if err := s.storage.UpdateEthTx(ctx, tx); err != nil {
		return err
	}

	s.logger.Infof("resent tx %s as %s, attempt %d, tip %s, fee cap %s",
		oldHash, tx.TxHash, tx.Attempts, tip, feeCap)
	s.count(ctx, "eth_sender_txs_resent")

	return nil
}

func (s *EthSender) signAndSend(
	ctx context.Context, nonce uint64, to *common.Address,
	gas uint64, tip, feeCap *big.Int, payload []byte,
) (*types.Transaction, error) {
	tx := types.NewTx(&types.DynamicFeeTx{
		Nonce:     nonce,
		To:        to,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Value:     big.NewInt(0),
		Data:      payload,
	})

	signedTx, err := s.etherman.SignTx(ctx, s.cfg.SenderAddress, tx)
	if err != nil {
		return nil, fmt.Errorf("error signing tx: %w", err)
	}
	if err := s.etherman.SendTx(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("error sending tx %s: %w", signedTx.Hash(), err)
	}

	return signedTx, nil
}

// nextNonce returns the nonce the next transaction must use without
// consuming it. The nonce is consumed by advanceNonce once the transaction
// reached the L1 mempool; a failed estimate, signature or send leaves the
// account nonce untouched so the submission can be retried gaplessly.
func (s *EthSender) nextNonce(ctx context.Context) (uint64, error) {
	s.nonceMutex.Lock()
	defer s.nonceMutex.Unlock()

	if !s.nonceSynced {
		nonce, err := s.etherman.CurrentNonce(ctx, s.cfg.SenderAddress)
		if err != nil {
			return 0, fmt.Errorf("failed to get current nonce from %v, error: %w", s.cfg.SenderAddress, err)
		}
		s.currentNonce = nonce
		s.nonceSynced = true
		s.logger.Infof("current nonce for %v is %d", s.cfg.SenderAddress, nonce)
	}

	return s.currentNonce, nil
}

func (s *EthSender) advanceNonce() {
	s.nonceMutex.Lock()
	s.currentNonce++
	s.nonceMutex.Unlock()
}

func (s *EthSender) halt(err error) {
	s.stopped.Store(true)
	s.logger.Errorf("eth sender stopped: %s", err)
}

// IsStopped reports whether a terminal submission failure stopped the sender
func (s *EthSender) IsStopped() bool {
	return s.stopped.Load()
}

func (s *EthSender) count(ctx context.Context, name string) {
	c, merr := s.meter.Int64Counter(name)
	if merr != nil {
		s.logger.Warnf("failed to create %s counter: %s", name, merr)
	}
	c.Add(ctx, 1)
}

// bumpFee raises a fee by the minimum replace-by-fee increment (10%),
// always at least by one wei
func bumpFee(fee *big.Int) *big.Int {
	bumped := new(big.Int).Mul(fee, rbfNumerator)
	bumped.Div(bumped, rbfDenominator)
	if bumped.Cmp(fee) <= 0 {
		bumped = new(big.Int).Add(fee, big.NewInt(1))
	}
	return bumped
}
