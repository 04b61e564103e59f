package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"txsync/internal/application"
	"txsync/internal/domain"

	_ "modernc.org/sqlite"
)

// Opener maps each network to its own database file under a data directory.
type Opener struct {
	dir string
}

func NewOpener(dir string) (*Opener, error) {
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Opener{dir: dir}, nil
}

func (o *Opener) Open(ctx context.Context, network domain.Network) (application.Namespace, error) {
	if network.Namespace == "" {
		return nil, fmt.Errorf("network %s has no namespace", network.Key)
	}
	return NewRepository(ctx, filepath.Join(o.dir, network.Namespace))
}

// ReadOnlyOpener opens existing network files without creating or migrating
// them.
type ReadOnlyOpener struct {
	dir string
}

func NewReadOnlyOpener(dir string) (*ReadOnlyOpener, error) {
	if dir == "" {
		return nil, errors.New("data dir is required")
	}
	return &ReadOnlyOpener{dir: dir}, nil
}

func (o *ReadOnlyOpener) Open(ctx context.Context, network domain.Network) (application.Namespace, error) {
	if network.Namespace == "" {
		return nil, fmt.Errorf("network %s has no namespace", network.Key)
	}
	dbPath := filepath.Join(o.dir, network.Namespace)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dbPath, application.ErrNamespaceNotFound)
		}
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Column names match the files written by earlier versions of the tool so
// existing data directories keep working.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			hash TEXT PRIMARY KEY,
			blockNumber INTEGER,
			timeStamp INTEGER,
			fromAddress TEXT,
			toAddress TEXT,
			value TEXT,
			gas TEXT,
			gasPrice TEXT,
			gasUsed TEXT,
			transactionType TEXT,
			input TEXT,
			contractAddress TEXT,
			cumulativeGasUsed TEXT,
			nonce INTEGER,
			confirmations INTEGER,
			isError INTEGER,
			txreceipt_status TEXT,
			transactionIndex INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS addresses (
			address TEXT PRIMARY KEY,
			first_seen INTEGER,
			last_checked INTEGER,
			transaction_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS network_info (
			last_block INTEGER,
			last_updated INTEGER
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) Begin(ctx context.Context) (application.NamespaceTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	insert, err := tx.PrepareContext(ctx, `INSERT INTO transactions (
			hash, blockNumber, timeStamp, fromAddress, toAddress, value, gas, gasPrice, gasUsed,
			transactionType, input, contractAddress, cumulativeGasUsed, nonce, confirmations,
			isError, txreceipt_status, transactionIndex)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING`)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &namespaceTx{tx: tx, insert: insert}, nil
}

type namespaceTx struct {
	tx     *sql.Tx
	insert *sql.Stmt
}

func (t *namespaceTx) InsertTransaction(ctx context.Context, record domain.TransactionRecord) (bool, error) {
	res, err := t.insert.ExecContext(ctx,
		record.Hash,
		int64(record.BlockNumber),
		int64(record.Timestamp),
		record.From,
		record.To,
		record.Value,
		record.Gas,
		record.GasPrice,
		record.GasUsed,
		string(record.Category),
		record.Input,
		record.ContractAddress,
		record.CumulativeGasUsed,
		int64(record.Nonce),
		int64(record.Confirmations),
		record.IsError,
		record.ReceiptStatus,
		int64(record.TransactionIndex),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (t *namespaceTx) UpsertAddressActivity(ctx context.Context, address string, transactionCount int, now int64) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO addresses (address, first_seen, last_checked, transaction_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			last_checked = excluded.last_checked,
			transaction_count = excluded.transaction_count`,
		address, now, now, transactionCount)
	return err
}

// UpsertNetworkHead rewrites the single network_info row. Older files may hold
// several rows, so the table is cleared rather than updated in place.
func (t *namespaceTx) UpsertNetworkHead(ctx context.Context, now int64) (uint64, error) {
	var lastBlock sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(blockNumber) FROM transactions`).Scan(&lastBlock); err != nil {
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM network_info`); err != nil {
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO network_info (last_block, last_updated) VALUES (?, ?)`, lastBlock, now); err != nil {
		return 0, err
	}
	if !lastBlock.Valid {
		return 0, nil
	}
	return uint64(lastBlock.Int64), nil
}

func (t *namespaceTx) Commit() error {
	_ = t.insert.Close()
	return t.tx.Commit()
}

func (t *namespaceTx) Rollback() error {
	_ = t.insert.Close()
	return t.tx.Rollback()
}

func (r *Repository) AddressActivity(ctx context.Context, address string) (domain.AddressActivity, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	activity := domain.AddressActivity{Address: address}
	var firstSeen, lastChecked, count sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT first_seen, last_checked, transaction_count FROM addresses WHERE address = ?`, address).
		Scan(&firstSeen, &lastChecked, &count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AddressActivity{}, false, nil
		}
		return domain.AddressActivity{}, false, err
	}
	activity.FirstSeen = firstSeen.Int64
	activity.LastChecked = lastChecked.Int64
	activity.TransactionCount = int(count.Int64)
	return activity, true, nil
}

func (r *Repository) NetworkHead(ctx context.Context) (domain.NetworkHead, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var lastBlock, lastUpdated sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT last_block, last_updated FROM network_info ORDER BY last_updated DESC LIMIT 1`).
		Scan(&lastBlock, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NetworkHead{}, false, nil
		}
		return domain.NetworkHead{}, false, err
	}
	return domain.NetworkHead{LastBlock: uint64(lastBlock.Int64), LastUpdated: lastUpdated.Int64}, true, nil
}

func (r *Repository) CountTransactions(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Transaction loads one stored row by hash.
func (r *Repository) Transaction(ctx context.Context, hash string) (domain.TransactionRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		rec                                     domain.TransactionRecord
		blockNumber, timestamp                  sql.NullInt64
		nonce, confirmations, index, isError    sql.NullInt64
		from, to, value, gas, gasPrice, gasUsed sql.NullString
		category, input                         sql.NullString
		contract, cumulative, receiptStatus     sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT hash, blockNumber, timeStamp, fromAddress, toAddress, value, gas, gasPrice, gasUsed,
			transactionType, input, contractAddress, cumulativeGasUsed, nonce, confirmations, isError,
			txreceipt_status, transactionIndex
		FROM transactions WHERE hash = ?`, hash).Scan(
		&rec.Hash, &blockNumber, &timestamp, &from, &to, &value, &gas, &gasPrice, &gasUsed,
		&category, &input, &contract, &cumulative, &nonce, &confirmations, &isError,
		&receiptStatus, &index,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TransactionRecord{}, false, nil
		}
		return domain.TransactionRecord{}, false, err
	}
	rec.BlockNumber = uint64(blockNumber.Int64)
	rec.Timestamp = uint64(timestamp.Int64)
	rec.From = from.String
	rec.To = to.String
	rec.Value = value.String
	rec.Gas = gas.String
	rec.GasPrice = gasPrice.String
	rec.GasUsed = gasUsed.String
	rec.Category = domain.Category(category.String)
	rec.Input = input.String
	rec.ContractAddress = nullableString(contract)
	rec.CumulativeGasUsed = nullableString(cumulative)
	rec.Nonce = uint64(nonce.Int64)
	rec.Confirmations = uint64(confirmations.Int64)
	rec.IsError = int(isError.Int64)
	rec.ReceiptStatus = nullableString(receiptStatus)
	rec.TransactionIndex = uint64(index.Int64)
	return rec, true, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
