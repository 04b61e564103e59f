package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"txsync/internal/domain"
)

type sourceResult struct {
	records []domain.RawRecord
	err     error
}

type fakeSource struct {
	mu      sync.Mutex
	results map[string]map[domain.Category]sourceResult
	calls   []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{results: make(map[string]map[domain.Category]sourceResult)}
}

func (s *fakeSource) set(network string, category domain.Category, records []domain.RawRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results[network] == nil {
		s.results[network] = make(map[domain.Category]sourceResult)
	}
	s.results[network][category] = sourceResult{records: records, err: err}
}

func (s *fakeSource) FetchRecords(ctx context.Context, network domain.Network, address string, category domain.Category) ([]domain.RawRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, network.Key+"/"+string(category))
	result := s.results[network.Key][category]
	return result.records, result.err
}

// memState is the durable content of one fake namespace.
type memState struct {
	transactions map[string]domain.TransactionRecord
	order        []string
	addresses    map[string]domain.AddressActivity
	head         *domain.NetworkHead
}

func newMemState() *memState {
	return &memState{
		transactions: make(map[string]domain.TransactionRecord),
		addresses:    make(map[string]domain.AddressActivity),
	}
}

type memOpener struct {
	mu      sync.Mutex
	states  map[string]*memState
	opens   int
	closes  int
	openErr error
	// per-namespace failure injection
	beginErr  error
	commitErr error
	insertErr map[string]error
}

func newMemOpener() *memOpener {
	return &memOpener{states: make(map[string]*memState)}
}

func (o *memOpener) state(namespace string) *memState {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.states[namespace]
	if !ok {
		state = newMemState()
		o.states[namespace] = state
	}
	return state
}

func (o *memOpener) Open(ctx context.Context, network domain.Network) (Namespace, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.mu.Lock()
	o.opens++
	o.mu.Unlock()
	return &memNamespace{opener: o, state: o.state(network.Namespace)}, nil
}

type memNamespace struct {
	opener *memOpener
	state  *memState
}

func (n *memNamespace) Begin(ctx context.Context) (NamespaceTx, error) {
	if n.opener.beginErr != nil {
		return nil, n.opener.beginErr
	}
	return &memTx{ns: n, pending: make(map[string]domain.TransactionRecord)}, nil
}

func (n *memNamespace) AddressActivity(ctx context.Context, address string) (domain.AddressActivity, bool, error) {
	activity, ok := n.state.addresses[address]
	return activity, ok, nil
}

func (n *memNamespace) NetworkHead(ctx context.Context) (domain.NetworkHead, bool, error) {
	if n.state.head == nil {
		return domain.NetworkHead{}, false, nil
	}
	return *n.state.head, true, nil
}

func (n *memNamespace) CountTransactions(ctx context.Context) (int, error) {
	return len(n.state.transactions), nil
}

func (n *memNamespace) Close() error {
	n.opener.mu.Lock()
	defer n.opener.mu.Unlock()
	n.opener.closes++
	return nil
}

type memTx struct {
	ns           *memNamespace
	pending      map[string]domain.TransactionRecord
	pendingOrder []string
	activity     *domain.AddressActivity
	head         *domain.NetworkHead
	done         bool
}

func (t *memTx) InsertTransaction(ctx context.Context, record domain.TransactionRecord) (bool, error) {
	if err := t.ns.opener.insertErr[record.Hash]; err != nil {
		return false, err
	}
	if _, ok := t.ns.state.transactions[record.Hash]; ok {
		return false, nil
	}
	if _, ok := t.pending[record.Hash]; ok {
		return false, nil
	}
	t.pending[record.Hash] = record
	t.pendingOrder = append(t.pendingOrder, record.Hash)
	return true, nil
}

func (t *memTx) UpsertAddressActivity(ctx context.Context, address string, transactionCount int, now int64) error {
	activity := domain.AddressActivity{Address: address, FirstSeen: now, LastChecked: now, TransactionCount: transactionCount}
	if existing, ok := t.ns.state.addresses[address]; ok {
		activity.FirstSeen = existing.FirstSeen
	}
	t.activity = &activity
	return nil
}

func (t *memTx) UpsertNetworkHead(ctx context.Context, now int64) (uint64, error) {
	var max uint64
	for _, record := range t.ns.state.transactions {
		if record.BlockNumber > max {
			max = record.BlockNumber
		}
	}
	for _, record := range t.pending {
		if record.BlockNumber > max {
			max = record.BlockNumber
		}
	}
	t.head = &domain.NetworkHead{LastBlock: max, LastUpdated: now}
	return max, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if t.ns.opener.commitErr != nil {
		return t.ns.opener.commitErr
	}
	state := t.ns.state
	for _, hash := range t.pendingOrder {
		state.transactions[hash] = t.pending[hash]
		state.order = append(state.order, hash)
	}
	if t.activity != nil {
		state.addresses[t.activity.Address] = *t.activity
	}
	if t.head != nil {
		state.head = t.head
	}
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

type fetchEvent struct {
	network  string
	category domain.Category
	records  int
	err      error
}

type recordingObserver struct {
	mu      sync.Mutex
	fetches []fetchEvent
	commits []domain.CommitResult
	done    []string
}

func (o *recordingObserver) OnFetch(network domain.Network, category domain.Category, records int, err error, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches = append(o.fetches, fetchEvent{network: network.Key, category: category, records: records, err: err})
}

func (o *recordingObserver) OnCommit(network domain.Network, result domain.CommitResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commits = append(o.commits, result)
}

func (o *recordingObserver) OnNetworkDone(network domain.Network, count int, err error, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done = append(o.done, network.Key)
}

type recordingPublisher struct {
	published []domain.TransactionRecord
	err       error
}

func (p *recordingPublisher) PublishTransactions(ctx context.Context, network domain.Network, address string, records []domain.TransactionRecord) error {
	p.published = append(p.published, records...)
	return p.err
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func rawTx(hash, block string) domain.RawRecord {
	return domain.RawRecord{
		Hash:        domain.Field(hash),
		BlockNumber: domain.Field(block),
		TimeStamp:   domain.Field("1700000000"),
		From:        domain.Field("0xfrom"),
		To:          domain.Field("0xto"),
		Value:       domain.Field("1"),
	}
}

var (
	testEthereum = domain.Network{Key: "ethereum", Name: "Ethereum Mainnet", ChainID: 1, Namespace: "ethereum.db"}
	testPolygon  = domain.Network{Key: "polygon", Name: "Polygon Mainnet", ChainID: 137, Namespace: "polygon.db"}
	testBSC      = domain.Network{Key: "bsc", Name: "Binance Smart Chain", ChainID: 56, Namespace: "bsc.db"}
)
