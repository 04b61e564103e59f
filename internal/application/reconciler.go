package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"txsync/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrMissingHash = errors.New("transaction hash is empty")

// Reconciler writes a normalized batch into one namespace: transactions first,
// then the address activity row, then the network head, all in one unit.
type Reconciler struct {
	now func() time.Time
}

func NewReconciler(now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{now: now}
}

// Commit applies the batch. Rejected rows and failed bookkeeping writes are
// reported in the result and do not stop the batch; an error is returned only
// when the unit of work itself cannot be started or finalized.
func (r *Reconciler) Commit(ctx context.Context, ns Namespace, batch []domain.TransactionRecord, address string) (domain.CommitResult, error) {
	ctx, span := otel.Tracer("txsync/application").Start(ctx, "txsync.commit")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.size", len(batch)),
		attribute.String("address", address),
	)

	var result domain.CommitResult
	if ns == nil {
		return result, errors.New("namespace is required")
	}

	tx, err := ns.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("begin commit: %w", err)
	}

	now := r.now().Unix()
	for _, record := range batch {
		if record.Hash == "" {
			result.RowErrors = append(result.RowErrors, domain.RowError{Err: ErrMissingHash})
			slog.Warn("skip transaction", "err", ErrMissingHash, "block", record.BlockNumber, "category", record.Category)
			continue
		}
		inserted, err := tx.InsertTransaction(ctx, record)
		if err != nil {
			result.RowErrors = append(result.RowErrors, domain.RowError{Hash: record.Hash, Err: err})
			slog.Warn("store transaction failed", "hash", record.Hash, "err", err)
			continue
		}
		if inserted {
			result.Inserted++
			result.Stored = append(result.Stored, record)
		} else {
			result.Ignored++
		}
	}

	if err := tx.UpsertAddressActivity(ctx, address, len(batch), now); err != nil {
		result.AddressErr = err
		slog.Warn("update address activity failed", "address", address, "err", err)
	}

	head, err := tx.UpsertNetworkHead(ctx, now)
	if err != nil {
		result.HeadErr = err
		slog.Warn("update network head failed", "err", err)
	} else {
		result.LastBlock = head
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("commit batch: %w", err)
	}

	span.SetAttributes(
		attribute.Int("inserted", result.Inserted),
		attribute.Int("ignored", result.Ignored),
		attribute.Int("row_errors", len(result.RowErrors)),
		attribute.Int64("last_block", int64(result.LastBlock)),
	)
	return result, nil
}
