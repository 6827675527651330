package sequencer

import (
	"testing"
	"time"

	"github.com/Ankitjha21/zksync-era/state"
	"github.com/stretchr/testify/require"
)

func TestWouldExceedChecksEveryDimension(t *testing.T) {
	t.Parallel()

	limits := thresholds{
		rejectGas:       100,
		rejectEthParams: 100,
		rejectCircuits:  100,
		rejectPubdata:   100,
	}

	tests := []struct {
		name     string
		used     state.BatchResources
		metrics  state.TransactionExecutionMetrics
		expected Dimension
		exceeded bool
	}{
		{
			name:     "fits",
			used:     state.BatchResources{GasUsed: 50, SizeUsed: 50, CircuitsUsed: 50, PubdataUsed: 50},
			metrics:  state.TransactionExecutionMetrics{Gas: 50, Size: 50, Circuits: 50, PubdataBytes: 50},
			exceeded: false,
		},
		{
			name:     "gas overflows",
			used:     state.BatchResources{GasUsed: 90},
			metrics:  state.TransactionExecutionMetrics{Gas: 11},
			expected: DimensionGas,
			exceeded: true,
		},
		{
			name:     "eth params overflow",
			used:     state.BatchResources{SizeUsed: 90},
			metrics:  state.TransactionExecutionMetrics{Size: 11},
			expected: DimensionEthParams,
			exceeded: true,
		},
		{
			name:     "geometry overflows",
			used:     state.BatchResources{CircuitsUsed: 100},
			metrics:  state.TransactionExecutionMetrics{Circuits: 1},
			expected: DimensionGeometry,
			exceeded: true,
		},
		{
			name:     "pubdata overflows",
			used:     state.BatchResources{PubdataUsed: 100},
			metrics:  state.TransactionExecutionMetrics{PubdataBytes: 1},
			expected: DimensionPubdata,
			exceeded: true,
		},
		{
			name:     "gas wins over pubdata",
			used:     state.BatchResources{GasUsed: 100, PubdataUsed: 100},
			metrics:  state.TransactionExecutionMetrics{Gas: 1, PubdataBytes: 1},
			expected: DimensionGas,
			exceeded: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			acc := newAccountant(1, 1, time.Now())
			acc.batch.Resources = tt.used

			dim, exceeded := acc.wouldExceed(tt.metrics, limits)
			require.Equal(t, tt.exceeded, exceeded)
			require.Equal(t, tt.expected, dim)
			// the probe is pure
			require.Equal(t, tt.used, acc.batch.Resources)
		})
	}
}

func TestAdmitNeverPassesRejectLimits(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	limits := newThresholds(cfg)
	acc := newAccountant(1, 1, time.Now())

	metrics := state.TransactionExecutionMetrics{Gas: 130_000, Size: 900, Circuits: 13, PubdataBytes: 950}
	admitted := 0
	for i := 0; i < 10_000; i++ {
		if _, exceeded := acc.wouldExceed(metrics, limits); exceeded {
			break
		}
		acc.admit(state.Transaction{Nonce: uint64(i)}, metrics)
		admitted++

		r := acc.batch.Resources
		require.LessOrEqual(t, r.GasUsed, limits.rejectGas)
		require.LessOrEqual(t, r.SizeUsed, limits.rejectEthParams)
		require.LessOrEqual(t, r.CircuitsUsed, limits.rejectCircuits)
		require.LessOrEqual(t, r.PubdataUsed, limits.rejectPubdata)
	}
	require.Greater(t, admitted, 0)
}

func TestSealTriggerPriority(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	limits := newThresholds(cfg)
	now := time.Now()

	acc := newAccountant(1, 1, now)
	require.Equal(t, state.SealNone, acc.sealTrigger(cfg, limits, now))

	// every resource trigger fires at once, gas names the reason
	acc.batch.Resources = state.BatchResources{
		GasUsed:      limits.closeGas,
		SizeUsed:     limits.closeEthParams,
		CircuitsUsed: limits.closeCircuits,
		PubdataUsed:  limits.closePubdata,
	}
	acc.batch.TxCount = cfg.TransactionSlots
	require.Equal(t, state.SealGas, acc.sealTrigger(cfg, limits, now))

	// deadline outranks everything
	acc.batch.OpenedAt = now.Add(-cfg.BlockCommitDeadline.Duration)
	require.Equal(t, state.SealDeadline, acc.sealTrigger(cfg, limits, now))

	acc = newAccountant(1, 1, now)
	acc.batch.TxCount = cfg.TransactionSlots
	require.Equal(t, state.SealTxSlots, acc.sealTrigger(cfg, limits, now))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.CloseBlockAtGasPercentage = 0.97
	cfg.RejectTxAtGasPercentage = 0.95
	require.ErrorContains(t, cfg.Validate(), "close percentage")

	cfg = testConfig()
	cfg.RejectTxAtGeometryPercentage = 1.5
	require.ErrorContains(t, cfg.Validate(), "out of range")

	cfg = testConfig()
	cfg.TransactionSlots = 0
	require.Error(t, cfg.Validate())

	cfg = testConfig()
	cfg.MaxGasPerBatch = 0
	require.Error(t, cfg.Validate())
}
