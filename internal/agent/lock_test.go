package agent

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
)

func newRedsyncLocker(t *testing.T) (*RedsyncLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedsyncLocker(client), mr
}

func TestRedsyncLocker_HoldsAcrossLongTurns(t *testing.T) {
	locker, mr := newRedsyncLocker(t)

	unlock, err := locker.Lock(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	// Well past redsync's default 8s expiry; the key must still be held.
	mr.FastForward(9 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "c1"); err == nil {
		t.Fatal("second turn acquired the lock while the first turn is still running")
	}

	unlock()
	second, err := locker.Lock(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	second()
}

func TestRedsyncLocker_ExpiryOutlivesTurnTimeout(t *testing.T) {
	locker, mr := newRedsyncLocker(t)

	unlock, err := locker.Lock(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	// The HTTP layer allows turns up to 120s; the key must survive that.
	mr.FastForward(120 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "c1"); err == nil {
		t.Fatal("lock expired before the longest allowed turn finished")
	}
}

func TestLocalLocker_CancelledWaiterUnblocks(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	waited := make(chan error, 1)
	go func() {
		_, err := locker.Lock(ctx, "c1")
		waited <- err
	}()
	cancel()

	select {
	case err := <-waited:
		if err != context.Canceled {
			t.Fatalf("waiter error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never unblocked")
	}

	unlock()
	second, err := locker.Lock(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Lock() after release error = %v", err)
	}
	second()
}

func TestLocalLocker_ReapsIdleEntries(t *testing.T) {
	locker := NewLocalLocker()
	for _, id := range []string{"c1", "c2", "c3"} {
		unlock, err := locker.Lock(context.Background(), id)
		if err != nil {
			t.Fatalf("Lock(%q) error = %v", id, err)
		}
		unlock()
	}

	locker.mu.Lock()
	remaining := len(locker.locks)
	locker.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("len(locks) = %d after all releases, want 0", remaining)
	}
}
