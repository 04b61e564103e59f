package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"txsync/internal/application"
	"txsync/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const namespacePlaceholder = "{namespace}"

// Opener gives every network its own MySQL database. The DSN template names
// the database with a {namespace} placeholder, e.g.
// "user:pass@tcp(localhost:3306)/txsync_{namespace}".
type Opener struct {
	template string
}

func NewOpener(template string) (*Opener, error) {
	if !strings.Contains(template, namespacePlaceholder) {
		return nil, fmt.Errorf("dsn template must contain %s", namespacePlaceholder)
	}
	return &Opener{template: template}, nil
}

func (o *Opener) Open(ctx context.Context, network domain.Network) (application.Namespace, error) {
	return NewRepository(ctx, namespaceDSN(o.template, network))
}

func namespaceDSN(template string, network domain.Network) string {
	name := strings.NewReplacer(".", "_", "-", "_").Replace(network.NamespaceName())
	return strings.ReplaceAll(template, namespacePlaceholder, name)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	schema := []string{
		"CREATE TABLE IF NOT EXISTS transactions (" +
			"hash VARCHAR(66) NOT NULL," +
			"blockNumber BIGINT UNSIGNED NOT NULL DEFAULT 0," +
			"`timeStamp` BIGINT UNSIGNED NOT NULL DEFAULT 0," +
			"fromAddress VARCHAR(42) NOT NULL DEFAULT ''," +
			"toAddress VARCHAR(42) NOT NULL DEFAULT ''," +
			"`value` VARCHAR(80) NOT NULL DEFAULT '0'," +
			"gas VARCHAR(80) NOT NULL DEFAULT '0'," +
			"gasPrice VARCHAR(80) NOT NULL DEFAULT '0'," +
			"gasUsed VARCHAR(80) NOT NULL DEFAULT '0'," +
			"transactionType VARCHAR(16) NOT NULL," +
			"input MEDIUMTEXT NOT NULL," +
			"contractAddress VARCHAR(42) NULL," +
			"cumulativeGasUsed VARCHAR(80) NULL," +
			"nonce BIGINT UNSIGNED NOT NULL DEFAULT 0," +
			"confirmations BIGINT UNSIGNED NOT NULL DEFAULT 0," +
			"isError TINYINT NOT NULL DEFAULT 0," +
			"txreceipt_status VARCHAR(8) NULL," +
			"transactionIndex BIGINT UNSIGNED NOT NULL DEFAULT 0," +
			"PRIMARY KEY (hash)," +
			"KEY transactions_block_idx (blockNumber))",
		`CREATE TABLE IF NOT EXISTS addresses (
			address VARCHAR(42) NOT NULL,
			first_seen BIGINT NOT NULL,
			last_checked BIGINT NOT NULL,
			transaction_count BIGINT NOT NULL,
			PRIMARY KEY (address)
		)`,
		`CREATE TABLE IF NOT EXISTS network_info (
			last_block BIGINT UNSIGNED NULL,
			last_updated BIGINT NOT NULL
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
	ctx, span := startDBSpan(ctx, "mysql.Begin")
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	// A no-op update reports zero affected rows, which is how an ignored
	// duplicate is told apart from a fresh insert.
	insert, err := tx.PrepareContext(ctx, "INSERT INTO transactions ("+
		"hash, blockNumber, `timeStamp`, fromAddress, toAddress, `value`, gas, gasPrice, gasUsed, "+
		"transactionType, input, contractAddress, cumulativeGasUsed, nonce, confirmations, "+
		"isError, txreceipt_status, transactionIndex) "+
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE hash = hash")
	if err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
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
		record.BlockNumber,
		record.Timestamp,
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
		record.Nonce,
		record.Confirmations,
		record.IsError,
		record.ReceiptStatus,
		record.TransactionIndex,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (t *namespaceTx) UpsertAddressActivity(ctx context.Context, address string, transactionCount int, now int64) error {
	ctx, span := startDBSpan(ctx, "mysql.UpsertAddressActivity", attribute.String("address", address))
	defer span.End()

	_, err := t.tx.ExecContext(ctx, `INSERT INTO addresses (address, first_seen, last_checked, transaction_count)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			last_checked = VALUES(last_checked),
			transaction_count = VALUES(transaction_count)`,
		address, now, now, transactionCount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (t *namespaceTx) UpsertNetworkHead(ctx context.Context, now int64) (uint64, error) {
	ctx, span := startDBSpan(ctx, "mysql.UpsertNetworkHead")
	defer span.End()

	var lastBlock sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(blockNumber) FROM transactions`).Scan(&lastBlock); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM network_info`); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO network_info (last_block, last_updated) VALUES (?, ?)`, lastBlock, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("block.number", lastBlock.Int64))
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
	err := r.db.QueryRowContext(ctx, `SELECT first_seen, last_checked, transaction_count FROM addresses WHERE address = ?`, address).
		Scan(&activity.FirstSeen, &activity.LastChecked, &activity.TransactionCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AddressActivity{}, false, nil
		}
		return domain.AddressActivity{}, false, err
	}
	return activity, true, nil
}

func (r *Repository) NetworkHead(ctx context.Context) (domain.NetworkHead, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var lastBlock sql.NullInt64
	var head domain.NetworkHead
	err := r.db.QueryRowContext(ctx, `SELECT last_block, last_updated FROM network_info ORDER BY last_updated DESC LIMIT 1`).
		Scan(&lastBlock, &head.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NetworkHead{}, false, nil
		}
		return domain.NetworkHead{}, false, err
	}
	head.LastBlock = uint64(lastBlock.Int64)
	return head, true, nil
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

func (r *Repository) Close() error {
	return r.db.Close()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("txsync/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
