package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"txsync/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJob = "txsync"

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Recorder collects per-run counters for fetches, commits and networks. The
// registry is pushed to a Pushgateway when the run ends.
type Recorder struct {
	registry *prometheus.Registry

	fetches         *prometheus.CounterVec
	fetchedRecords  *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	inserted        *prometheus.CounterVec
	ignored         *prometheus.CounterVec
	rowErrors       *prometheus.CounterVec
	bookkeepingErrs *prometheus.CounterVec
	lastBlock       *prometheus.GaugeVec
	networkRuns     *prometheus.CounterVec
	networkDuration *prometheus.HistogramVec
	networkRecords  *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_fetches_total",
			Help: "Explorer category fetches by outcome.",
		}, []string{"network", "category", "outcome"}),
		fetchedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_fetched_records_total",
			Help: "Records returned by successful explorer fetches.",
		}, []string{"network", "category"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "txsync_fetch_duration_seconds",
			Help:    "Latency of explorer category fetches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"network", "category"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_transactions_inserted_total",
			Help: "Transactions written for the first time.",
		}, []string{"network"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_transactions_ignored_total",
			Help: "Transactions skipped because their hash was already stored.",
		}, []string{"network"}),
		rowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_row_errors_total",
			Help: "Transactions that could not be written.",
		}, []string{"network"}),
		bookkeepingErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_bookkeeping_errors_total",
			Help: "Failed address or head updates.",
		}, []string{"network", "kind"}),
		lastBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "txsync_last_block",
			Help: "Highest stored block number per network.",
		}, []string{"network"}),
		networkRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "txsync_network_runs_total",
			Help: "Network ingestions by outcome.",
		}, []string{"network", "outcome"}),
		networkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "txsync_network_duration_seconds",
			Help:    "Time spent ingesting one network.",
			Buckets: prometheus.DefBuckets,
		}, []string{"network"}),
		networkRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "txsync_network_batch_size",
			Help: "Records in the last batch per network.",
		}, []string{"network"}),
	}
	r.registry.MustRegister(
		r.fetches,
		r.fetchedRecords,
		r.fetchDuration,
		r.inserted,
		r.ignored,
		r.rowErrors,
		r.bookkeepingErrs,
		r.lastBlock,
		r.networkRuns,
		r.networkDuration,
		r.networkRecords,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) OnFetch(network domain.Network, category domain.Category, records int, err error, duration time.Duration) {
	r.fetches.WithLabelValues(network.Key, string(category), outcome(err)).Inc()
	r.fetchDuration.WithLabelValues(network.Key, string(category)).Observe(duration.Seconds())
	if err == nil {
		r.fetchedRecords.WithLabelValues(network.Key, string(category)).Add(float64(records))
	}
}

func (r *Recorder) OnCommit(network domain.Network, result domain.CommitResult) {
	r.inserted.WithLabelValues(network.Key).Add(float64(result.Inserted))
	r.ignored.WithLabelValues(network.Key).Add(float64(result.Ignored))
	r.rowErrors.WithLabelValues(network.Key).Add(float64(len(result.RowErrors)))
	if result.AddressErr != nil {
		r.bookkeepingErrs.WithLabelValues(network.Key, "address").Inc()
	}
	if result.HeadErr != nil {
		r.bookkeepingErrs.WithLabelValues(network.Key, "head").Inc()
	} else {
		r.lastBlock.WithLabelValues(network.Key).Set(float64(result.LastBlock))
	}
}

func (r *Recorder) OnNetworkDone(network domain.Network, count int, err error, duration time.Duration) {
	r.networkRuns.WithLabelValues(network.Key, outcome(err)).Inc()
	r.networkDuration.WithLabelValues(network.Key).Observe(duration.Seconds())
	r.networkRecords.WithLabelValues(network.Key).Set(float64(count))
}

// Push sends the collected metrics to a Pushgateway, replacing the previous
// push for the same job and instance.
func (r *Recorder) Push(ctx context.Context, url, instance string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("pushgateway url is required")
	}
	pusher := push.New(url, pushJob).Gatherer(r.registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	return pusher.PushContext(ctx)
}

func outcome(err error) string {
	if err != nil {
		return outcomeError
	}
	return outcomeOK
}
