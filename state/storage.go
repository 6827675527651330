package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Ankitjha21/zksync-era/db"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/state/migrations"
	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

// Storage is the interface that defines the methods to persist the sealing
// and commitment pipeline state
type Storage interface {
	// AddSealedBatch persists a sealed batch, enforcing gapless numbering
	AddSealedBatch(ctx context.Context, batch *SealedBatch) error
	// GetLastSealedBatch returns the sealed batch with the highest number
	GetLastSealedBatch(ctx context.Context) (*SealedBatch, error)
	// GetBatch returns a sealed batch by its number
	GetBatch(ctx context.Context, batchNumber uint64) (*SealedBatch, error)
	// GetBatchesRange returns the sealed batches in [fromBatch, toBatch], ordered
	GetBatchesRange(ctx context.Context, fromBatch, toBatch uint64) ([]*SealedBatch, error)
	// GetLastBatchWithTx returns the highest batch number already carrying a
	// confirmed L1 tx of the given kind, or 0 when there is none
	GetLastBatchWithTx(ctx context.Context, kind BundleKind) (uint64, error)
	// SetBundleTxHash records the confirmed L1 tx hash for a batch range
	SetBundleTxHash(ctx context.Context, kind BundleKind, fromBatch, toBatch uint64, txHash common.Hash) error

	// AddEthTx persists a new monitored L1 transaction
	AddEthTx(ctx context.Context, tx *EthTx) error
	// UpdateEthTx overwrites a monitored L1 transaction keyed by its nonce
	UpdateEthTx(ctx context.Context, tx *EthTx) error
	// GetEthTx returns a monitored L1 transaction by its nonce
	GetEthTx(ctx context.Context, nonce uint64) (*EthTx, error)
	// GetEthTxsByStatus returns the monitored L1 transactions in any of the
	// given statuses, oldest nonce first
	GetEthTxsByStatus(ctx context.Context, statuses []EthTxStatus) ([]*EthTx, error)
	// CountEthTxsByStatus counts the monitored L1 transactions in the given status
	CountEthTxsByStatus(ctx context.Context, status EthTxStatus) (uint64, error)
}

var _ Storage = (*SQLStorage)(nil)

// SQLStorage implements the Storage interface over a SQLite DB
type SQLStorage struct {
	logger *log.Logger
	db     *sql.DB
}

// NewSQLStorage creates a new SQLStorage, running the migrations first
func NewSQLStorage(logger *log.Logger, dbPath string) (*SQLStorage, error) {
	if err := migrations.RunMigrations(dbPath); err != nil {
		return nil, err
	}

	database, err := db.NewSQLiteDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &SQLStorage{
		db:     database,
		logger: logger,
	}, nil
}

// AddSealedBatch persists a sealed batch. The batch number must be exactly
// one above the last persisted batch, otherwise ErrNonConsecutiveBatch is
// returned and nothing is written.
func (s *SQLStorage) AddSealedBatch(ctx context.Context, batch *SealedBatch) error {
	tx, err := db.NewTx(ctx, s.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				s.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	last, err := getLastSealedBatch(tx)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}
	if last != nil && batch.BatchNumber != last.BatchNumber+1 {
		err = fmt.Errorf("%w: got %d, expected %d",
			ErrNonConsecutiveBatch, batch.BatchNumber, last.BatchNumber+1)
		return err
	}

	if err = meddler.Insert(tx, "sealed_batch", batch); err != nil {
		return fmt.Errorf("error inserting sealed batch: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	s.logger.Debugf("inserted sealed batch %d, reason: %s, txs: %d",
		batch.BatchNumber, batch.SealReason, batch.TxCount)

	return nil
}

// GetLastSealedBatch returns the sealed batch with the highest number
func (s *SQLStorage) GetLastSealedBatch(ctx context.Context) (*SealedBatch, error) {
	return getLastSealedBatch(s.db)
}

func getLastSealedBatch(db meddler.DB) (*SealedBatch, error) {
	var batch SealedBatch
	if err := meddler.QueryRow(db, &batch,
		"SELECT * FROM sealed_batch ORDER BY batch_number DESC LIMIT 1;"); err != nil {
		return nil, getSelectQueryError(err)
	}

	return &batch, nil
}

// GetBatch returns a sealed batch by its number
func (s *SQLStorage) GetBatch(ctx context.Context, batchNumber uint64) (*SealedBatch, error) {
	var batch SealedBatch
	if err := meddler.QueryRow(s.db, &batch,
		"SELECT * FROM sealed_batch WHERE batch_number = $1;", batchNumber); err != nil {
		return nil, getSelectQueryError(err)
	}

	return &batch, nil
}

// GetBatchesRange returns the sealed batches in [fromBatch, toBatch] ordered
// by batch number
func (s *SQLStorage) GetBatchesRange(ctx context.Context, fromBatch, toBatch uint64) ([]*SealedBatch, error) {
	var batches []*SealedBatch
	if err := meddler.QueryAll(s.db, &batches,
		"SELECT * FROM sealed_batch WHERE batch_number BETWEEN $1 AND $2 ORDER BY batch_number ASC;",
		fromBatch, toBatch); err != nil {
		return nil, err
	}

	return batches, nil
}

// GetLastBatchWithTx returns the highest batch number already carrying a
// confirmed L1 tx of the given kind, or 0 when there is none
func (s *SQLStorage) GetLastBatchWithTx(ctx context.Context, kind BundleKind) (uint64, error) {
	column, err := txHashColumn(kind)
	if err != nil {
		return 0, err
	}

	var batch SealedBatch
	query := fmt.Sprintf(
		"SELECT * FROM sealed_batch WHERE %s != $1 ORDER BY batch_number DESC LIMIT 1;", column)
	if err := meddler.QueryRow(s.db, &batch, query, common.Hash{}.Hex()); err != nil {
		if errors.Is(getSelectQueryError(err), db.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return batch.BatchNumber, nil
}

// SetBundleTxHash records the confirmed L1 tx hash of the given kind on every
// batch in [fromBatch, toBatch]
func (s *SQLStorage) SetBundleTxHash(
	ctx context.Context, kind BundleKind, fromBatch, toBatch uint64, txHash common.Hash,
) error {
	column, err := txHashColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE sealed_batch SET %s = $1 WHERE batch_number BETWEEN $2 AND $3;", column)
	res, err := s.db.ExecContext(ctx, query, txHash.Hex(), fromBatch, toBatch)
	if err != nil {
		return fmt.Errorf("error updating %s: %w", column, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if expected := int64(toBatch - fromBatch + 1); rows != expected {
		return fmt.Errorf("%w: %s update for batches [%d, %d] touched %d rows",
			ErrNotFound, kind, fromBatch, toBatch, rows)
	}

	s.logger.Debugf("recorded %s tx %s for batches [%d, %d]", kind, txHash, fromBatch, toBatch)

	return nil
}

// AddEthTx persists a new monitored L1 transaction
func (s *SQLStorage) AddEthTx(ctx context.Context, tx *EthTx) error {
	if err := meddler.Insert(s.db, "eth_tx", tx); err != nil {
		return fmt.Errorf("error inserting eth tx: %w", err)
	}

	s.logger.Debugf("inserted %s", tx)

	return nil
}

// UpdateEthTx overwrites a monitored L1 transaction keyed by its nonce
func (s *SQLStorage) UpdateEthTx(ctx context.Context, tx *EthTx) error {
	dbTx, err := db.NewTx(ctx, s.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := dbTx.Rollback(); errRllbck != nil {
				s.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if _, err = getEthTx(dbTx, tx.Nonce); err != nil {
		return err
	}
	if _, err = dbTx.Exec("DELETE FROM eth_tx WHERE nonce = $1;", tx.Nonce); err != nil {
		return fmt.Errorf("error deleting eth tx: %w", err)
	}
	if err = meddler.Insert(dbTx, "eth_tx", tx); err != nil {
		return fmt.Errorf("error inserting eth tx: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetEthTx returns a monitored L1 transaction by its nonce
func (s *SQLStorage) GetEthTx(ctx context.Context, nonce uint64) (*EthTx, error) {
	return getEthTx(s.db, nonce)
}

func getEthTx(db meddler.DB, nonce uint64) (*EthTx, error) {
	var tx EthTx
	if err := meddler.QueryRow(db, &tx,
		"SELECT * FROM eth_tx WHERE nonce = $1;", nonce); err != nil {
		return nil, getSelectQueryError(err)
	}

	return &tx, nil
}

// GetEthTxsByStatus returns the monitored L1 transactions in any of the given
// statuses, oldest nonce first
func (s *SQLStorage) GetEthTxsByStatus(ctx context.Context, statuses []EthTxStatus) ([]*EthTx, error) {
	query := "SELECT * FROM eth_tx"
	args := make([]interface{}, len(statuses))

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = statuses[i]
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY nonce ASC;"

	var txs []*EthTx
	if err := meddler.QueryAll(s.db, &txs, query, args...); err != nil {
		return nil, err
	}

	return txs, nil
}

// CountEthTxsByStatus counts the monitored L1 transactions in the given status
func (s *SQLStorage) CountEthTxsByStatus(ctx context.Context, status EthTxStatus) (uint64, error) {
	var count uint64
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM eth_tx WHERE status = $1;", status)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

func getSelectQueryError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return db.ErrNotFound
	}

	return err
}

func txHashColumn(kind BundleKind) (string, error) {
	switch kind {
	case BundleCommit:
		return "commit_tx_hash", nil
	case BundleProve:
		return "prove_tx_hash", nil
	case BundleExecute:
		return "execute_tx_hash", nil
	}

	return "", fmt.Errorf("unknown bundle kind %q", kind)
}
