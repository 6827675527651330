package state

import (
	"context"
	"math/big"
	"path"
	"testing"
	"time"

	"github.com/Ankitjha21/zksync-era/db"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLStorage {
	t.Helper()

	dbPath := path.Join(t.TempDir(), "stateTest.sqlite")
	storage, err := NewSQLStorage(log.WithFields("module", "state-test"), dbPath)
	require.NoError(t, err)

	return storage
}

func testBatch(number uint64) *SealedBatch {
	return &SealedBatch{
		BatchNumber:        number,
		StateRoot:          common.HexToHash("0x1"),
		Commitment:         common.HexToHash("0x2"),
		SealReason:         SealGas,
		GasUsed:            100,
		SizeUsed:           200,
		CircuitsUsed:       3,
		PubdataUsed:        400,
		TxCount:            5,
		MiniblockCount:     2,
		OpenedAt:           time.Now().UTC().Add(-time.Minute),
		SealedAt:           time.Now().UTC(),
		CommitPayload:      []byte{0x01, 0x02},
		EstimatedCommitGas: 21000,
	}
}

func Test_Storage(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	t.Run("AddSealedBatch", func(t *testing.T) {
		batch := testBatch(1)
		require.NoError(t, storage.AddSealedBatch(ctx, batch))

		batchFromDB, err := storage.GetBatch(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, batch.BatchNumber, batchFromDB.BatchNumber)
		require.Equal(t, batch.StateRoot, batchFromDB.StateRoot)
		require.Equal(t, batch.SealReason, batchFromDB.SealReason)
		require.Equal(t, batch.CommitPayload, batchFromDB.CommitPayload)
		require.True(t, batch.SealedAt.Equal(batchFromDB.SealedAt))
	})

	t.Run("AddSealedBatch rejects gaps", func(t *testing.T) {
		err := storage.AddSealedBatch(ctx, testBatch(5))
		require.ErrorIs(t, err, ErrNonConsecutiveBatch)

		err = storage.AddSealedBatch(ctx, testBatch(1))
		require.ErrorIs(t, err, ErrNonConsecutiveBatch)

		require.NoError(t, storage.AddSealedBatch(ctx, testBatch(2)))
	})

	t.Run("GetLastSealedBatch", func(t *testing.T) {
		last, err := storage.GetLastSealedBatch(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(2), last.BatchNumber)
	})

	t.Run("GetBatchesRange", func(t *testing.T) {
		require.NoError(t, storage.AddSealedBatch(ctx, testBatch(3)))
		require.NoError(t, storage.AddSealedBatch(ctx, testBatch(4)))

		batches, err := storage.GetBatchesRange(ctx, 2, 4)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		require.Equal(t, uint64(2), batches[0].BatchNumber)
		require.Equal(t, uint64(4), batches[2].BatchNumber)
	})

	t.Run("GetBatch not found", func(t *testing.T) {
		_, err := storage.GetBatch(ctx, 42)
		require.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("SetBundleTxHash and GetLastBatchWithTx", func(t *testing.T) {
		last, err := storage.GetLastBatchWithTx(ctx, BundleCommit)
		require.NoError(t, err)
		require.Equal(t, uint64(0), last)

		txHash := common.HexToHash("0xabc")
		require.NoError(t, storage.SetBundleTxHash(ctx, BundleCommit, 1, 3, txHash))

		last, err = storage.GetLastBatchWithTx(ctx, BundleCommit)
		require.NoError(t, err)
		require.Equal(t, uint64(3), last)

		batchFromDB, err := storage.GetBatch(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, txHash, batchFromDB.CommitTxHash)
		require.Equal(t, common.Hash{}, batchFromDB.ProveTxHash)

		// prove head is independent of the commit head
		last, err = storage.GetLastBatchWithTx(ctx, BundleProve)
		require.NoError(t, err)
		require.Equal(t, uint64(0), last)
	})

	t.Run("SetBundleTxHash on missing range", func(t *testing.T) {
		err := storage.SetBundleTxHash(ctx, BundleProve, 10, 12, common.HexToHash("0xdef"))
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func Test_StorageEthTx(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	newTx := func(nonce uint64, status EthTxStatus) *EthTx {
		return &EthTx{
			Nonce:     nonce,
			Kind:      BundleCommit,
			FromBatch: 1,
			ToBatch:   3,
			To:        common.HexToAddress("0x1234"),
			Payload:   []byte{0xaa},
			Gas:       100000,
			GasTipCap: big.NewInt(2),
			GasFeeCap: big.NewInt(100),
			TxHash:    common.HexToHash("0x99"),
			Status:    status,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	}

	t.Run("AddEthTx and GetEthTx", func(t *testing.T) {
		tx := newTx(7, EthTxStatusSubmitted)
		require.NoError(t, storage.AddEthTx(ctx, tx))

		txFromDB, err := storage.GetEthTx(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, tx.Kind, txFromDB.Kind)
		require.Equal(t, tx.GasFeeCap, txFromDB.GasFeeCap)
		require.Equal(t, tx.TxHash, txFromDB.TxHash)
	})

	t.Run("GetEthTx not found", func(t *testing.T) {
		_, err := storage.GetEthTx(ctx, 999)
		require.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("UpdateEthTx", func(t *testing.T) {
		tx, err := storage.GetEthTx(ctx, 7)
		require.NoError(t, err)

		tx.Status = EthTxStatusConfirmed
		tx.MinedBlock = 123
		tx.Attempts = 2
		require.NoError(t, storage.UpdateEthTx(ctx, tx))

		txFromDB, err := storage.GetEthTx(ctx, 7)
		require.NoError(t, err)
		require.Equal(t, EthTxStatusConfirmed, txFromDB.Status)
		require.Equal(t, uint64(123), txFromDB.MinedBlock)
		require.Equal(t, uint64(2), txFromDB.Attempts)
	})

	t.Run("UpdateEthTx on missing nonce", func(t *testing.T) {
		err := storage.UpdateEthTx(ctx, newTx(1000, EthTxStatusSubmitted))
		require.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("GetEthTxsByStatus", func(t *testing.T) {
		require.NoError(t, storage.AddEthTx(ctx, newTx(8, EthTxStatusSubmitted)))
		require.NoError(t, storage.AddEthTx(ctx, newTx(9, EthTxStatusFailed)))

		txs, err := storage.GetEthTxsByStatus(ctx, []EthTxStatus{EthTxStatusSubmitted})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		require.Equal(t, uint64(8), txs[0].Nonce)

		txs, err = storage.GetEthTxsByStatus(ctx, nil)
		require.NoError(t, err)
		require.Len(t, txs, 3)
	})

	t.Run("CountEthTxsByStatus", func(t *testing.T) {
		count, err := storage.CountEthTxsByStatus(ctx, EthTxStatusSubmitted)
		require.NoError(t, err)
		require.Equal(t, uint64(1), count)
	})
}
