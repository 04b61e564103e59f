package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"txsync/internal/domain"
)

type NetworkIngestor interface {
	Ingest(ctx context.Context, address string, network domain.Network) (int, error)
}

type NetworkResult struct {
	Network  domain.Network
	Count    int
	Err      error
	Duration time.Duration
}

type RunSummary struct {
	Total    int
	Networks []NetworkResult
}

// Failed lists the networks whose ingestion returned an error.
func (s RunSummary) Failed() []NetworkResult {
	var failed []NetworkResult
	for _, result := range s.Networks {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

// Orchestrator ingests networks one after another.
type Orchestrator struct {
	ingestor NetworkIngestor
	observer RunObserver
}

func NewOrchestrator(ingestor NetworkIngestor, observer RunObserver) (*Orchestrator, error) {
	if ingestor == nil {
		return nil, errors.New("network ingestor is required")
	}
	return &Orchestrator{ingestor: ingestor, observer: observerOrNop(observer)}, nil
}

// Run never fails as a whole: a network that errors contributes 0 and the
// remaining networks still run. Cancelling ctx stops before the next network.
func (o *Orchestrator) Run(ctx context.Context, address string, networks []domain.Network) RunSummary {
	var summary RunSummary
	for _, network := range networks {
		if err := ctx.Err(); err != nil {
			slog.Warn("run interrupted", "next_network", network.Key, "err", err)
			break
		}

		slog.Info("processing network", "network", network.Name, "chain_id", network.ChainID)
		start := time.Now()
		count, err := o.ingestor.Ingest(ctx, address, network)
		if err != nil {
			slog.Error("network processing failed", "network", network.Name, "err", err)
			count = 0
		}
		duration := time.Since(start)
		o.observer.OnNetworkDone(network, count, err, duration)

		summary.Networks = append(summary.Networks, NetworkResult{
			Network:  network,
			Count:    count,
			Err:      err,
			Duration: duration,
		})
		summary.Total += count
	}
	return summary
}
