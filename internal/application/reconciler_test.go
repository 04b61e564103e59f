package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"txsync/internal/domain"
)

func record(hash string, block uint64) domain.TransactionRecord {
	return domain.TransactionRecord{Hash: hash, BlockNumber: block, Value: "0", Gas: "0", GasPrice: "0", GasUsed: "0", Category: domain.CategoryNormal}
}

func openMem(t *testing.T, opener *memOpener, network domain.Network) Namespace {
	t.Helper()
	ns, err := opener.Open(context.Background(), network)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return ns
}

func TestReconcilerHeadBlock(t *testing.T) {
	opener := newMemOpener()
	reconciler := NewReconciler((&fixedClock{now: time.Unix(500, 0)}).Now)
	ns := openMem(t, opener, testEthereum)

	result, err := reconciler.Commit(context.Background(), ns, []domain.TransactionRecord{record("0xa", 100), record("0xb", 205), record("0xc", 180)}, "0xabc")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.LastBlock != 205 {
		t.Errorf("expected head 205, got %d", result.LastBlock)
	}
	if result.Inserted != 3 || result.Ignored != 0 || !result.Clean() {
		t.Errorf("unexpected result %+v", result)
	}

	result, err = reconciler.Commit(context.Background(), ns, []domain.TransactionRecord{record("0xd", 150)}, "0xabc")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.LastBlock != 205 {
		t.Errorf("head must be computed over the whole table, got %d", result.LastBlock)
	}
	head, _, _ := ns.NetworkHead(context.Background())
	if head.LastBlock != 205 || head.LastUpdated != 500 {
		t.Errorf("unexpected stored head %+v", head)
	}
}

func TestReconcilerFirstSeenIsKept(t *testing.T) {
	opener := newMemOpener()
	clock := &fixedClock{now: time.Unix(1000, 0)}
	reconciler := NewReconciler(clock.Now)
	ns := openMem(t, opener, testEthereum)

	if _, err := reconciler.Commit(context.Background(), ns, []domain.TransactionRecord{record("0xa", 1), record("0xb", 2)}, "0xabc"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	clock.now = time.Unix(2000, 0)
	if _, err := reconciler.Commit(context.Background(), ns, []domain.TransactionRecord{record("0xa", 1)}, "0xabc"); err != nil {
		t.Fatalf("commit: %v", err)
	}

	activity, ok, _ := ns.AddressActivity(context.Background(), "0xabc")
	if !ok {
		t.Fatal("address activity missing")
	}
	if activity.FirstSeen != 1000 {
		t.Errorf("firstSeen must stay at 1000, got %d", activity.FirstSeen)
	}
	if activity.LastChecked != 2000 {
		t.Errorf("lastChecked must move to 2000, got %d", activity.LastChecked)
	}
	if activity.TransactionCount != 1 {
		t.Errorf("transaction count is the last batch size, got %d", activity.TransactionCount)
	}
}

func TestReconcilerRowErrorsDoNotAbort(t *testing.T) {
	opener := newMemOpener()
	opener.insertErr = map[string]error{"0xbad": errors.New("constraint failed")}
	reconciler := NewReconciler(nil)
	ns := openMem(t, opener, testEthereum)

	batch := []domain.TransactionRecord{record("0xa", 1), record("0xbad", 2), record("", 3), record("0xc", 4)}
	result, err := reconciler.Commit(context.Background(), ns, batch, "0xabc")
	if err != nil {
		t.Fatalf("row failures must not fail the batch: %v", err)
	}
	if result.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", result.Inserted)
	}
	if len(result.RowErrors) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", result.RowErrors)
	}
	if result.RowErrors[0].Hash != "0xbad" || !errors.Is(result.RowErrors[1], ErrMissingHash) {
		t.Errorf("unexpected row errors %+v", result.RowErrors)
	}
	if result.Clean() {
		t.Error("result with row errors is not clean")
	}
	activity, _, _ := ns.AddressActivity(context.Background(), "0xabc")
	if activity.TransactionCount != 4 {
		t.Errorf("transaction count is the batch size, got %d", activity.TransactionCount)
	}
}

func TestReconcilerBatchFailures(t *testing.T) {
	t.Run("begin", func(t *testing.T) {
		opener := newMemOpener()
		opener.beginErr = errors.New("database is locked")
		ns := openMem(t, opener, testEthereum)
		if _, err := NewReconciler(nil).Commit(context.Background(), ns, []domain.TransactionRecord{record("0xa", 1)}, "0xabc"); err == nil {
			t.Fatal("expected begin failure")
		}
	})
	t.Run("commit", func(t *testing.T) {
		opener := newMemOpener()
		opener.commitErr = errors.New("disk I/O error")
		ns := openMem(t, opener, testEthereum)
		if _, err := NewReconciler(nil).Commit(context.Background(), ns, []domain.TransactionRecord{record("0xa", 1)}, "0xabc"); err == nil {
			t.Fatal("expected commit failure")
		}
		if count, _ := ns.CountTransactions(context.Background()); count != 0 {
			t.Errorf("failed commit must not leave rows, got %d", count)
		}
	})
	t.Run("nil namespace", func(t *testing.T) {
		if _, err := NewReconciler(nil).Commit(context.Background(), nil, nil, "0xabc"); err == nil {
			t.Fatal("expected error")
		}
	})
}
