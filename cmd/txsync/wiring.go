package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"txsync/internal/application"
	"txsync/internal/config"
	"txsync/internal/domain"
	"txsync/internal/infrastructure/explorer"
	"txsync/internal/infrastructure/kafka"
	"txsync/internal/infrastructure/metrics"
	"txsync/internal/infrastructure/mysql"
	"txsync/internal/infrastructure/sqlite"
	"txsync/internal/infrastructure/telemetry"
)

func runSync(ctx context.Context, cfg config.Config, address string, networks []domain.Network) (application.RunSummary, error) {
	shutdownTracing, err := telemetry.InitTracer(ctx, "txsync", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	recorder := metrics.NewRecorder()

	source, closeSource, err := newRecordSource(cfg)
	if err != nil {
		return application.RunSummary{}, err
	}
	defer closeSource()

	opener, err := newOpener(cfg)
	if err != nil {
		return application.RunSummary{}, err
	}

	var publisher application.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			return application.RunSummary{}, err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				slog.Warn("kafka producer close failed", "err", err)
			}
		}()
		publisher = producer
	}

	fetcher, err := application.NewCategoryFetcher(source, recorder)
	if err != nil {
		return application.RunSummary{}, err
	}
	ingestor, err := application.NewIngestor(application.IngestorConfig{
		Fetcher:    fetcher,
		Reconciler: application.NewReconciler(time.Now),
		Opener:     opener,
		Publisher:  publisher,
		Observer:   recorder,
	})
	if err != nil {
		return application.RunSummary{}, err
	}
	orchestrator, err := application.NewOrchestrator(ingestor, recorder)
	if err != nil {
		return application.RunSummary{}, err
	}

	slog.Info("sync started", "address", address, "networks", len(networks), "store", cfg.StoreDriver)
	summary := orchestrator.Run(ctx, address, networks)
	slog.Info("sync finished", "total", summary.Total, "failed_networks", len(summary.Failed()))

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		instance, _ := os.Hostname()
		if err := recorder.Push(pushCtx, cfg.PushgatewayURL, instance); err != nil {
			slog.Warn("metrics push failed", "err", err)
		}
	}
	return summary, ctx.Err()
}

func runStatus(ctx context.Context, cfg config.Config, address string, networks []domain.Network) ([]application.NetworkStatus, error) {
	opener, err := newStatusOpener(cfg)
	if err != nil {
		return nil, err
	}
	return application.ReadStatus(ctx, opener, address, networks), nil
}

func newRecordSource(cfg config.Config) (application.RecordSource, func(), error) {
	client, err := explorer.NewClient(explorer.Config{
		APIKeys:  cfg.APIKeys(),
		Timeout:  cfg.ExplorerTimeout,
		PageSize: cfg.ExplorerPageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.RedisAddr == "" {
		return client, func() {}, nil
	}
	cached, err := explorer.NewCachedClient(client, explorer.CacheConfig{
		Addr: cfg.RedisAddr,
		TTL:  cfg.ExplorerCacheTTL,
	})
	if err != nil {
		slog.Warn("explorer cache disabled", "err", err)
		return client, func() {}, nil
	}
	return cached, func() { _ = cached.Close() }, nil
}

func newStatusOpener(cfg config.Config) (application.NamespaceOpener, error) {
	if cfg.StoreDriver == config.StoreDriverMySQL {
		return mysql.NewOpener(cfg.MySQLDSNTemplate)
	}
	return sqlite.NewReadOnlyOpener(cfg.DataDir)
}

func newOpener(cfg config.Config) (application.NamespaceOpener, error) {
	if cfg.StoreDriver == config.StoreDriverMySQL {
		return mysql.NewOpener(cfg.MySQLDSNTemplate)
	}
	return sqlite.NewOpener(cfg.DataDir)
}
