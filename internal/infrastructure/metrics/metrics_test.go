package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"txsync/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var ethereum = domain.Network{Key: "ethereum", ChainID: 1}

func TestRecorderCountsFetches(t *testing.T) {
	r := NewRecorder()
	r.OnFetch(ethereum, domain.CategoryNormal, 4, nil, 200*time.Millisecond)
	r.OnFetch(ethereum, domain.CategoryInternal, 0, errors.New("NOTOK"), time.Second)

	if got := testutil.ToFloat64(r.fetches.WithLabelValues("ethereum", "normal", "ok")); got != 1 {
		t.Errorf("expected one ok fetch, got %v", got)
	}
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("ethereum", "internal", "error")); got != 1 {
		t.Errorf("expected one failed fetch, got %v", got)
	}
	if got := testutil.ToFloat64(r.fetchedRecords.WithLabelValues("ethereum", "normal")); got != 4 {
		t.Errorf("expected 4 fetched records, got %v", got)
	}
	if got := testutil.CollectAndCount(r.fetchDuration); got != 2 {
		t.Errorf("expected two duration series, got %d", got)
	}
}

func TestRecorderCountsCommits(t *testing.T) {
	r := NewRecorder()
	r.OnCommit(ethereum, domain.CommitResult{
		Inserted:  3,
		Ignored:   2,
		RowErrors: []domain.RowError{{Hash: "0xbad", Err: errors.New("constraint")}},
		LastBlock: 205,
	})
	r.OnCommit(ethereum, domain.CommitResult{Inserted: 1, AddressErr: errors.New("locked"), HeadErr: errors.New("locked")})

	if got := testutil.ToFloat64(r.inserted.WithLabelValues("ethereum")); got != 4 {
		t.Errorf("expected 4 inserted, got %v", got)
	}
	if got := testutil.ToFloat64(r.ignored.WithLabelValues("ethereum")); got != 2 {
		t.Errorf("expected 2 ignored, got %v", got)
	}
	if got := testutil.ToFloat64(r.rowErrors.WithLabelValues("ethereum")); got != 1 {
		t.Errorf("expected 1 row error, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastBlock.WithLabelValues("ethereum")); got != 205 {
		t.Errorf("failed head update must keep the last good value, got %v", got)
	}
	if got := testutil.ToFloat64(r.bookkeepingErrs.WithLabelValues("ethereum", "head")); got != 1 {
		t.Errorf("expected head error, got %v", got)
	}
}

func TestRecorderNetworkOutcomes(t *testing.T) {
	r := NewRecorder()
	r.OnNetworkDone(ethereum, 7, nil, time.Second)
	r.OnNetworkDone(domain.Network{Key: "polygon"}, 0, errors.New("disk full"), time.Second)

	expected := `
# HELP txsync_network_runs_total Network ingestions by outcome.
# TYPE txsync_network_runs_total counter
txsync_network_runs_total{network="ethereum",outcome="ok"} 1
txsync_network_runs_total{network="polygon",outcome="error"} 1
`
	if err := testutil.CollectAndCompare(r.networkRuns, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
	if got := testutil.ToFloat64(r.networkRecords.WithLabelValues("ethereum")); got != 7 {
		t.Errorf("expected batch size 7, got %v", got)
	}
}

func TestPush(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		data, _ := io.ReadAll(req.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.OnNetworkDone(ethereum, 1, nil, time.Second)
	if err := r.Push(context.Background(), srv.URL, "host-1"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if path != "/metrics/job/txsync/instance/host-1" {
		t.Errorf("unexpected push path %s", path)
	}
	if body == "" {
		t.Error("expected metrics payload")
	}
	if err := r.Push(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty url")
	}
}
