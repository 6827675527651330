package sequencer

import (
	"time"

	"github.com/Ankitjha21/zksync-era/state"
)

// thresholds are the absolute close and reject limits per dimension,
// precomputed from the configured fractions over the absolute ceilings.
// Pubdata reuses the gas fractions over its own ceiling.
type thresholds struct {
	closeGas,
	rejectGas,
	closeEthParams,
	rejectEthParams,
	closeCircuits,
	rejectCircuits,
	closePubdata,
	rejectPubdata uint64
}

func newThresholds(cfg Config) thresholds {
	return thresholds{
		closeGas:        scale(cfg.MaxGasPerBatch, cfg.CloseBlockAtGasPercentage),
		rejectGas:       scale(cfg.MaxGasPerBatch, cfg.RejectTxAtGasPercentage),
		closeEthParams:  scale(cfg.MaxEthParamsSize, cfg.CloseBlockAtEthParamsPercentage),
		rejectEthParams: scale(cfg.MaxEthParamsSize, cfg.RejectTxAtEthParamsPercentage),
		closeCircuits:   scale(cfg.MaxCircuitsPerBatch, cfg.CloseBlockAtGeometryPercentage),
		rejectCircuits:  scale(cfg.MaxCircuitsPerBatch, cfg.RejectTxAtGeometryPercentage),
		closePubdata:    scale(cfg.MaxPubdataPerBatch, cfg.CloseBlockAtGasPercentage),
		rejectPubdata:   scale(cfg.MaxPubdataPerBatch, cfg.RejectTxAtGasPercentage),
	}
}

func scale(ceiling uint64, fraction float64) uint64 {
	return uint64(fraction * float64(ceiling))
}

// accountant owns the running totals of the open miniblock and batch. It is
// mutated only by the sealing policy engine under a single-writer discipline
// and never touches sealed data.
type accountant struct {
	miniblock state.PendingMiniblock
	batch     state.PendingBatch
}

func newAccountant(batchNumber, miniblockNumber uint64, now time.Time) *accountant {
	return &accountant{
		miniblock: state.PendingMiniblock{
			Number:   miniblockNumber,
			OpenedAt: now,
		},
		batch: state.PendingBatch{
			Number:   batchNumber,
			OpenedAt: now,
		},
	}
}

// wouldExceed is a pure probe: it reports the first dimension whose reject
// limit would be crossed by admitting the given metrics, without mutating
// anything. Dimensions are checked in the seal-reason priority order.
func (a *accountant) wouldExceed(m state.TransactionExecutionMetrics, limits thresholds) (Dimension, bool) {
	r := a.batch.Resources
	switch {
	case r.GasUsed+m.Gas > limits.rejectGas:
		return DimensionGas, true
	case r.SizeUsed+m.Size > limits.rejectEthParams:
		return DimensionEthParams, true
	case r.CircuitsUsed+m.Circuits > limits.rejectCircuits:
		return DimensionGeometry, true
	case r.PubdataUsed+m.PubdataBytes > limits.rejectPubdata:
		return DimensionPubdata, true
	}

	return "", false
}

// admit appends the transaction to the open miniblock and accounts its
// metrics on both the miniblock and the batch totals.
func (a *accountant) admit(tx state.Transaction, m state.TransactionExecutionMetrics) {
	a.miniblock.Transactions = append(a.miniblock.Transactions, tx)
	a.miniblock.Resources.Add(m)
	a.batch.Resources.Add(m)
	a.batch.TxCount++
}

// sealMiniblock closes the open miniblock into the batch and opens the next
// one. Batch totals already include the miniblock ones.
func (a *accountant) sealMiniblock(now time.Time) {
	a.batch.MiniblockCount++
	a.miniblock = state.PendingMiniblock{
		Number:   a.miniblock.Number + 1,
		OpenedAt: now,
	}
}

// sealTrigger evaluates the batch seal triggers and returns the reason of
// the first one that fired, by priority: deadline, then gas, eth params,
// geometry, pubdata and finally transaction slots.
func (a *accountant) sealTrigger(cfg Config, limits thresholds, now time.Time) state.SealReason {
	switch {
	case now.Sub(a.batch.OpenedAt) >= cfg.BlockCommitDeadline.Duration:
		return state.SealDeadline
	case a.batch.Resources.GasUsed >= limits.closeGas:
		return state.SealGas
	case a.batch.Resources.SizeUsed >= limits.closeEthParams:
		return state.SealSize
	case a.batch.Resources.CircuitsUsed >= limits.closeCircuits:
		return state.SealGeometry
	case a.batch.Resources.PubdataUsed >= limits.closePubdata:
		return state.SealPubdata
	case a.batch.TxCount >= cfg.TransactionSlots:
		return state.SealTxSlots
	}

	return state.SealNone
}

// miniblockDeadlineElapsed reports whether the open miniblock outlived its
// commit deadline. This is a pure deadline trigger, independent of resources.
func (a *accountant) miniblockDeadlineElapsed(cfg Config, now time.Time) bool {
	return now.Sub(a.miniblock.OpenedAt) >= cfg.MiniblockCommitDeadline.Duration
}
