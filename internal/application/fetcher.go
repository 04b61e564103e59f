package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"txsync/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrEmptyAddress = errors.New("address is required")

// CategoryFetcher wraps a RecordSource so that a failing category degrades to
// an empty result. Failures surface only through the observer and the log.
type CategoryFetcher struct {
	source   RecordSource
	observer RunObserver
}

func NewCategoryFetcher(source RecordSource, observer RunObserver) (*CategoryFetcher, error) {
	if source == nil {
		return nil, errors.New("record source is required")
	}
	return &CategoryFetcher{source: source, observer: observerOrNop(observer)}, nil
}

func (f *CategoryFetcher) Fetch(ctx context.Context, address string, network domain.Network, category domain.Category) []domain.RawRecord {
	ctx, span := otel.Tracer("txsync/application").Start(ctx, "txsync.fetch_category")
	defer span.End()
	span.SetAttributes(
		attribute.String("network", network.Key),
		attribute.String("category", string(category)),
		attribute.String("address", address),
	)

	start := time.Now()
	records, err := f.fetch(ctx, address, network, category)
	duration := time.Since(start)
	f.observer.OnFetch(network, category, len(records), err, duration)

	if err != nil {
		slog.Warn("fetch failed",
			"network", network.Key,
			"category", category,
			"address", address,
			"err", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil
	}

	span.SetAttributes(attribute.Int("records", len(records)))
	slog.Debug("fetched records",
		"network", network.Key,
		"category", category,
		"count", len(records),
		"duration", duration,
	)
	return records
}

func (f *CategoryFetcher) fetch(ctx context.Context, address string, network domain.Network, category domain.Category) ([]domain.RawRecord, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrEmptyAddress
	}
	if !category.Valid() {
		return nil, fmt.Errorf("unknown transaction category %q", category)
	}
	slog.Info("fetching transactions", "network", network.Name, "category", category, "address", address)
	records, err := f.source.FetchRecords(ctx, network, address, category)
	if err != nil {
		return nil, fmt.Errorf("fetch %s transactions: %w", category, err)
	}
	return records, nil
}
