package application

import (
	"context"
	"errors"
	"time"

	"txsync/internal/domain"
)

// RecordSource fetches one category of explorer records for an address.
type RecordSource interface {
	FetchRecords(ctx context.Context, network domain.Network, address string, category domain.Category) ([]domain.RawRecord, error)
}

// ErrNamespaceNotFound is returned by read-only openers for a network that was
// never ingested.
var ErrNamespaceNotFound = errors.New("namespace not found")

// NamespaceOpener opens the isolated storage of one network.
type NamespaceOpener interface {
	Open(ctx context.Context, network domain.Network) (Namespace, error)
}

type Namespace interface {
	Begin(ctx context.Context) (NamespaceTx, error)
	AddressActivity(ctx context.Context, address string) (domain.AddressActivity, bool, error)
	NetworkHead(ctx context.Context) (domain.NetworkHead, bool, error)
	CountTransactions(ctx context.Context) (int, error)
	Close() error
}

// NamespaceTx is one serialized unit of work against a namespace.
type NamespaceTx interface {
	// InsertTransaction stores the record unless its hash is already present.
	// It reports whether a row was written.
	InsertTransaction(ctx context.Context, record domain.TransactionRecord) (bool, error)
	// UpsertAddressActivity keeps first_seen of an existing row.
	UpsertAddressActivity(ctx context.Context, address string, transactionCount int, now int64) error
	// UpsertNetworkHead recomputes the head from every stored transaction and
	// returns it.
	UpsertNetworkHead(ctx context.Context, now int64) (uint64, error)
	Commit() error
	Rollback() error
}

type Publisher interface {
	PublishTransactions(ctx context.Context, network domain.Network, address string, records []domain.TransactionRecord) error
}

type RunObserver interface {
	OnFetch(network domain.Network, category domain.Category, records int, err error, duration time.Duration)
	OnCommit(network domain.Network, result domain.CommitResult)
	OnNetworkDone(network domain.Network, count int, err error, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnFetch(domain.Network, domain.Category, int, error, time.Duration) {}

func (nopObserver) OnCommit(domain.Network, domain.CommitResult) {}

func (nopObserver) OnNetworkDone(domain.Network, int, error, time.Duration) {}

func observerOrNop(observer RunObserver) RunObserver {
	if observer == nil {
		return nopObserver{}
	}
	return observer
}
