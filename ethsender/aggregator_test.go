package ethsender

import (
	"context"
	"fmt"
	"path"
	"testing"
	"time"

	"github.com/Ankitjha21/zksync-era/config/types"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/proofs"
	"github.com/Ankitjha21/zksync-era/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testAggregatorConfig() Config {
	return Config{
		SenderAddress:                common.HexToAddress("0x1234"),
		MaxAggregatedTxGas:           300_000,
		MaxEthTxDataSize:             120_000,
		MaxAggregatedBlocksToExecute: 10,
		GasOffset:                    80_000,
		TxPollPeriod:                 types.NewDuration(time.Millisecond),
		AggregateTxPollPeriod:        types.NewDuration(time.Millisecond),
		ResendInterval:               types.NewDuration(time.Minute),
		MaxResendAttempts:            3,
		MaxPendingTx:                 5,
		ProofSendingMode:             proofs.OnlyRealProofs,
		ProofLoadingMode:             proofs.FriProofFromGcs,
		ProofWaitWarnInterval:        types.NewDuration(time.Minute),
	}
}

func newTestStorage(t *testing.T) *state.SQLStorage {
	t.Helper()

	dbPath := path.Join(t.TempDir(), "ethsender_test.sqlite")
	storage, err := state.NewSQLStorage(log.WithFields("module", "ethsender-test"), dbPath)
	require.NoError(t, err)

	return storage
}

func sealBatches(t *testing.T, storage state.Storage, count int, commitGas uint64) {
	t.Helper()

	ctx := context.Background()
	for i := 1; i <= count; i++ {
		num := uint64(i)
		batch := &state.SealedBatch{
			BatchNumber:        num,
			StateRoot:          common.BigToHash(common.Big1),
			Commitment:         common.BigToHash(common.Big2),
			SealReason:         state.SealTxSlots,
			TxCount:            1,
			MiniblockCount:     1,
			OpenedAt:           time.Now().UTC(),
			SealedAt:           time.Now().UTC(),
			CommitPayload:      []byte(fmt.Sprintf("batch %d payload", num)),
			EstimatedCommitGas: commitGas,
		}
		require.NoError(t, storage.AddSealedBatch(ctx, batch))
	}
}

func confirmRange(
	t *testing.T, storage state.Storage, kind state.BundleKind, from, to uint64,
) {
	t.Helper()
	require.NoError(t, storage.SetBundleTxHash(
		context.Background(), kind, from, to, common.BigToHash(common.Big3)))
}

func Test_Aggregator_CommitCeilings(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	agg := NewAggregator(testAggregatorConfig(), log.WithFields("module", "test"), storage, proofs.NewStaticSource())

	t.Run("no sealed batches means no bundle", func(t *testing.T) {
		bundle, err := agg.NextBundle(ctx, state.BundleCommit)
		require.NoError(t, err)
		require.Nil(t, bundle)
	})

	// ceiling is 300k gas, each batch estimates 100k: exactly 3 fit
	sealBatches(t, storage, 7, 100_000)

	t.Run("gas ceiling closes the bundle", func(t *testing.T) {
		bundle, err := agg.NextBundle(ctx, state.BundleCommit)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(3), bundle.ToBatch)
		require.Equal(t, uint64(3), bundle.BatchCount)
		require.Equal(t, uint64(300_000), bundle.EstimatedGas)
	})

	t.Run("next bundle starts where the confirmed one ended", func(t *testing.T) {
		confirmRange(t, storage, state.BundleCommit, 1, 3)

		bundle, err := agg.NextBundle(ctx, state.BundleCommit)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(4), bundle.FromBatch)
		require.Equal(t, uint64(6), bundle.ToBatch)
	})

	t.Run("trailing partial range still ships", func(t *testing.T) {
		confirmRange(t, storage, state.BundleCommit, 4, 6)

		bundle, err := agg.NextBundle(ctx, state.BundleCommit)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(7), bundle.FromBatch)
		require.Equal(t, uint64(7), bundle.ToBatch)
		require.Equal(t, uint64(1), bundle.BatchCount)
	})
}

func Test_Aggregator_OversizedBatchShipsAlone(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	agg := NewAggregator(testAggregatorConfig(), log.WithFields("module", "test"), storage, proofs.NewStaticSource())

	// every batch alone exceeds the 300k gas ceiling
	sealBatches(t, storage, 2, 500_000)

	bundle, err := agg.NextBundle(ctx, state.BundleCommit)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	require.Equal(t, uint64(1), bundle.FromBatch)
	require.Equal(t, uint64(1), bundle.ToBatch, "an oversized batch must ship as a one-batch bundle")
	require.Equal(t, uint64(500_000), bundle.EstimatedGas)
}

func Test_Aggregator_BatchCountCeiling(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	cfg := testAggregatorConfig()
	cfg.MaxAggregatedBlocksToExecute = 4
	agg := NewAggregator(cfg, log.WithFields("module", "test"), storage, proofs.NewStaticSource())

	// gas would allow all of them, the count ceiling must not
	sealBatches(t, storage, 8, 1_000)

	bundle, err := agg.NextBundle(ctx, state.BundleCommit)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	require.Equal(t, uint64(4), bundle.BatchCount)
	require.Equal(t, uint64(4), bundle.ToBatch)
}

func Test_Aggregator_DependencyOrder(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	source := proofs.NewStaticSource()
	agg := NewAggregator(testAggregatorConfig(), log.WithFields("module", "test"), storage, source)

	sealBatches(t, storage, 3, 1_000)
	for i := uint64(1); i <= 3; i++ {
		source.Add(i, []byte("proof"))
	}

	t.Run("prove waits for commit confirmation", func(t *testing.T) {
		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.Nil(t, bundle)
	})

	t.Run("execute waits for prove confirmation", func(t *testing.T) {
		confirmRange(t, storage, state.BundleCommit, 1, 3)

		bundle, err := agg.NextBundle(ctx, state.BundleExecute)
		require.NoError(t, err)
		require.Nil(t, bundle)
	})

	t.Run("prove covers the committed range", func(t *testing.T) {
		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(3), bundle.ToBatch)
	})

	t.Run("execute covers the proven range", func(t *testing.T) {
		confirmRange(t, storage, state.BundleProve, 1, 3)

		bundle, err := agg.NextBundle(ctx, state.BundleExecute)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(3), bundle.ToBatch)
	})
}

func Test_Aggregator_ProofGating(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	source := proofs.NewStaticSource()
	agg := NewAggregator(testAggregatorConfig(), log.WithFields("module", "test"), storage, source)

	sealBatches(t, storage, 3, 1_000)
	confirmRange(t, storage, state.BundleCommit, 1, 3)

	t.Run("missing proof defers the bundle without error", func(t *testing.T) {
		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.Nil(t, bundle)
	})

	t.Run("a proof gap truncates the bundle before it", func(t *testing.T) {
		source.Add(1, []byte("proof 1"))
		source.Add(3, []byte("proof 3"))

		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(1), bundle.ToBatch)
	})

	t.Run("the bundle extends once the gap is filled", func(t *testing.T) {
		source.Add(2, []byte("proof 2"))

		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(3), bundle.ToBatch)
	})

	t.Run("commit never consults proofs", func(t *testing.T) {
		empty := proofs.NewStaticSource()
		commitAgg := NewAggregator(testAggregatorConfig(), log.WithFields("module", "test"), storage, empty)

		confirmRange(t, storage, state.BundleCommit, 1, 3)
		bundle, err := commitAgg.NextBundle(ctx, state.BundleCommit)
		require.NoError(t, err)
		require.Nil(t, bundle) // all three committed already; no proof errors either
	})
}

func Test_Aggregator_SkipEveryProof(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	cfg := testAggregatorConfig()
	cfg.ProofSendingMode = proofs.SkipEveryProof
	agg := NewAggregator(cfg, log.WithFields("module", "test"), storage, proofs.NewStaticSource())

	sealBatches(t, storage, 2, 1_000)
	confirmRange(t, storage, state.BundleCommit, 1, 2)

	t.Run("prove proceeds without proofs", func(t *testing.T) {
		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(2), bundle.ToBatch)
	})

	t.Run("execute follows commit confirmation directly", func(t *testing.T) {
		// no prove tx confirmed, execute must still cover the committed range
		bundle, err := agg.NextBundle(ctx, state.BundleExecute)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(2), bundle.ToBatch)
	})
}

func Test_Aggregator_OnlySampledProofs(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	cfg := testAggregatorConfig()
	cfg.ProofSendingMode = proofs.OnlySampledProofs
	cfg.ProofSampleRate = 3
	source := proofs.NewStaticSource()
	agg := NewAggregator(cfg, log.WithFields("module", "test"), storage, source)

	sealBatches(t, storage, 4, 1_000)
	confirmRange(t, storage, state.BundleCommit, 1, 4)

	t.Run("non sampled batches pass without a proof", func(t *testing.T) {
		// batch 3 is sampled (3 % 3 == 0) and has no proof yet
		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(2), bundle.ToBatch)
	})

	t.Run("sampled batches require the real proof", func(t *testing.T) {
		source.Add(3, []byte("proof 3"))

		bundle, err := agg.NextBundle(ctx, state.BundleProve)
		require.NoError(t, err)
		require.NotNil(t, bundle)
		require.Equal(t, uint64(1), bundle.FromBatch)
		require.Equal(t, uint64(4), bundle.ToBatch)
	})
}

func Test_Aggregator_PayloadSizeCeiling(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	cfg := testAggregatorConfig()
	cfg.MaxEthTxDataSize = 20 // each commit payload is ~15 bytes
	agg := NewAggregator(cfg, log.WithFields("module", "test"), storage, proofs.NewStaticSource())

	sealBatches(t, storage, 3, 1_000)

	bundle, err := agg.NextBundle(ctx, state.BundleCommit)
	require.NoError(t, err)
	require.NotNil(t, bundle)
	require.Equal(t, uint64(1), bundle.BatchCount)
	require.LessOrEqual(t, uint64(len(bundle.Payload)), cfg.MaxEthTxDataSize)
}
