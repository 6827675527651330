package ethsender

import (
	"context"
	"errors"
	"sync"
	"time"

	zkcommon "github.com/Ankitjha21/zksync-era/common"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/proofs"
	"github.com/Ankitjha21/zksync-era/state"
)

// Aggregator groups consecutive sealed batches into commit, prove and
// execute bundles, bounded by the aggregation ceilings and gated by proof
// availability. It only ever reads sealed, immutable data.
type Aggregator struct {
	cfg         Config
	logger      *log.Logger
	storage     state.Storage
	proofSource proofs.Source

	mu           sync.Mutex
	proofWaiting map[uint64]time.Time
}

// NewAggregator creates an Aggregator
func NewAggregator(cfg Config, logger *log.Logger, storage state.Storage, proofSource proofs.Source) *Aggregator {
	return &Aggregator{
		cfg:          cfg,
		logger:       logger,
		storage:      storage,
		proofSource:  proofSource,
		proofWaiting: map[uint64]time.Time{},
	}
}

// NextBundle builds the next bundle of the given kind, or returns nil when
// nothing can be aggregated yet. Batches are consumed strictly in batch
// number order; the first ceiling hit closes the bundle. A single batch that
// alone exceeds a ceiling ships as its own one-batch bundle.
func (a *Aggregator) NextBundle(ctx context.Context, kind state.BundleKind) (*state.AggregatedTxBundle, error) {
	fromBatch, err := a.storage.GetLastBatchWithTx(ctx, kind)
	if err != nil {
		return nil, err
	}
	fromBatch++

	upper, err := a.upperBound(ctx, kind)
	if err != nil {
		return nil, err
	}
	if upper < fromBatch {
		return nil, nil
	}
	if maxTo := fromBatch + a.cfg.MaxAggregatedBlocksToExecute - 1; upper > maxTo {
		upper = maxTo
	}

	batches, err := a.storage.GetBatchesRange(ctx, fromBatch, upper)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}

	var (
		payload      []byte
		gas          uint64
		includedTo   uint64
		includedCnt  uint64
		includedFrom = batches[0].BatchNumber
	)
	for _, batch := range batches {
		proof, ok, err := a.canAggregate(ctx, kind, batch.BatchNumber)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		chunk := bundleChunk(kind, batch, proof)
		if includedCnt > 0 &&
			(gas+batch.EstimatedCommitGas > a.cfg.MaxAggregatedTxGas ||
				uint64(len(payload)+len(chunk)) > a.cfg.MaxEthTxDataSize) {
			break
		}

		payload = append(payload, chunk...)
		gas += batch.EstimatedCommitGas
		includedTo = batch.BatchNumber
		includedCnt++

		// a lone oversized batch ships; anything more would break the ceiling
		if gas >= a.cfg.MaxAggregatedTxGas || uint64(len(payload)) >= a.cfg.MaxEthTxDataSize {
			break
		}
	}
	if includedCnt == 0 {
		return nil, nil
	}

	return &state.AggregatedTxBundle{
		Kind:         kind,
		FromBatch:    includedFrom,
		ToBatch:      includedTo,
		Payload:      payload,
		EstimatedGas: gas,
		BatchCount:   includedCnt,
	}, nil
}

// upperBound is the highest batch number a bundle of this kind may reach:
// the last sealed batch, capped by the confirmed head of the bundle kind it
// depends on. Under SkipEveryProof, Execute follows Commit confirmation
// directly instead of waiting on Prove.
func (a *Aggregator) upperBound(ctx context.Context, kind state.BundleKind) (uint64, error) {
	last, err := a.storage.GetLastSealedBatch(ctx)
	if errors.Is(err, state.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	upper := last.BatchNumber

	dep := kind.DependsOn()
	if kind == state.BundleExecute && a.cfg.ProofSendingMode == proofs.SkipEveryProof {
		dep = state.BundleCommit
	}
	if dep == "" {
		return upper, nil
	}

	depHead, err := a.storage.GetLastBatchWithTx(ctx, dep)
	if err != nil {
		return 0, err
	}
	if depHead < upper {
		upper = depHead
	}
	return upper, nil
}

// canAggregate is the single proof gating point. It reports whether a batch
// may join a bundle of the given kind, returning the proof to embed when one
// is required. The Commit path never consults proofs; a missing proof defers
// the bundle, it is not an error.
func (a *Aggregator) canAggregate(
	ctx context.Context, kind state.BundleKind, batchNumber uint64,
) (*proofs.Proof, bool, error) {
	if kind == state.BundleCommit {
		return nil, true, nil
	}

	switch a.cfg.ProofSendingMode {
	case proofs.SkipEveryProof:
		return nil, true, nil
	case proofs.OnlySampledProofs:
		if batchNumber%a.cfg.ProofSampleRate != 0 {
			return nil, true, nil
		}
	}

	proof, err := a.proofSource.ProofFor(ctx, batchNumber)
	if errors.Is(err, proofs.ErrProofUnavailable) {
		a.noteProofWait(batchNumber)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	a.mu.Lock()
	delete(a.proofWaiting, batchNumber)
	a.mu.Unlock()

	return proof, true, nil
}

func (a *Aggregator) noteProofWait(batchNumber uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	since, ok := a.proofWaiting[batchNumber]
	if !ok {
		a.proofWaiting[batchNumber] = time.Now()
		return
	}
	if waited := time.Since(since); waited >= a.cfg.ProofWaitWarnInterval.Duration {
		a.logger.Warnf("still waiting for the proof of batch %d after %s", batchNumber, waited)
		a.proofWaiting[batchNumber] = time.Now()
	}
}

// bundleChunk is the contribution of one batch to a bundle payload
func bundleChunk(kind state.BundleKind, batch *state.SealedBatch, proof *proofs.Proof) []byte {
	switch kind {
	case state.BundleCommit:
		return batch.CommitPayload
	case state.BundleProve:
		chunk := append([]byte{}, batch.Commitment.Bytes()...)
		if proof != nil {
			chunk = append(chunk, proof.Payload...)
		}
		return chunk
	case state.BundleExecute:
		chunk := zkcommon.Uint64ToBytes(batch.BatchNumber)
		return append(chunk, batch.StateRoot.Bytes()...)
	}
	return nil
}
