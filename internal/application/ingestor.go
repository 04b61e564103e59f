package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"txsync/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type IngestorConfig struct {
	Fetcher    *CategoryFetcher
	Reconciler *Reconciler
	Opener     NamespaceOpener
	Publisher  Publisher
	Observer   RunObserver
}

// Ingestor runs one network: three concurrent category fetches, then a single
// commit of the merged batch.
type Ingestor struct {
	fetcher    *CategoryFetcher
	reconciler *Reconciler
	opener     NamespaceOpener
	publisher  Publisher
	observer   RunObserver
}

func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Fetcher == nil || cfg.Reconciler == nil || cfg.Opener == nil {
		return nil, errors.New("ingestor dependencies must not be nil")
	}
	return &Ingestor{
		fetcher:    cfg.Fetcher,
		reconciler: cfg.Reconciler,
		opener:     cfg.Opener,
		publisher:  cfg.Publisher,
		observer:   observerOrNop(cfg.Observer),
	}, nil
}

// Ingest returns the number of records in the committed batch. An empty batch
// leaves the namespace untouched.
func (i *Ingestor) Ingest(ctx context.Context, address string, network domain.Network) (int, error) {
	ctx, span := otel.Tracer("txsync/application").Start(ctx, "txsync.ingest_network")
	defer span.End()
	span.SetAttributes(attribute.String("network", network.Key), attribute.Int64("chain.id", int64(network.ChainID)))

	batch := i.collect(ctx, address, network)
	if len(batch) == 0 {
		slog.Info("no transactions found", "network", network.Name, "address", address)
		return 0, nil
	}

	result, err := i.commit(ctx, address, network, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	i.observer.OnCommit(network, result)
	slog.Info("transactions saved",
		"network", network.Name,
		"count", len(batch),
		"inserted", result.Inserted,
		"ignored", result.Ignored,
		"row_errors", len(result.RowErrors),
		"last_block", result.LastBlock,
	)

	if i.publisher != nil && len(result.Stored) > 0 {
		if err := i.publisher.PublishTransactions(ctx, network, address, result.Stored); err != nil {
			slog.Warn("publish transactions failed", "network", network.Key, "err", err)
		}
	}

	span.SetAttributes(attribute.Int("batch.size", len(batch)))
	return len(batch), nil
}

func (i *Ingestor) collect(ctx context.Context, address string, network domain.Network) []domain.TransactionRecord {
	results := make([][]domain.RawRecord, len(domain.Categories))
	var wg sync.WaitGroup
	for idx, category := range domain.Categories {
		wg.Add(1)
		go func(idx int, category domain.Category) {
			defer wg.Done()
			results[idx] = i.fetcher.Fetch(ctx, address, network, category)
		}(idx, category)
	}
	wg.Wait()

	total := 0
	for _, records := range results {
		total += len(records)
	}
	batch := make([]domain.TransactionRecord, 0, total)
	for idx, category := range domain.Categories {
		batch = append(batch, NormalizeAll(results[idx], category)...)
	}
	return batch
}

func (i *Ingestor) commit(ctx context.Context, address string, network domain.Network, batch []domain.TransactionRecord) (result domain.CommitResult, err error) {
	ns, err := i.opener.Open(ctx, network)
	if err != nil {
		return result, fmt.Errorf("open namespace %s: %w", network.Namespace, err)
	}
	defer func() {
		if closeErr := ns.Close(); closeErr != nil {
			slog.Warn("close namespace failed", "network", network.Key, "err", closeErr)
		}
	}()
	return i.reconciler.Commit(ctx, ns, batch, address)
}
