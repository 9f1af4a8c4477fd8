package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
)

// TurnLocker serializes turns within one conversation. Without it, a second
// message submitted before the previous turn settles would let assistant
// replies land out of submission order.
type TurnLocker interface {
	Lock(ctx context.Context, conversationID string) (unlock func(), err error)
}

const (
	// turnLockExpiry must outlive the longest turn the HTTP layer allows
	// (120s request timeout), or the Redis key lapses mid-turn and a
	// concurrent turn on the same conversation slips through.
	turnLockExpiry     = 150 * time.Second
	turnLockRetryDelay = 500 * time.Millisecond
	// turnLockTries spans a full held lock at the retry cadence, so a
	// waiting turn blocks until release instead of erroring out early.
	turnLockTries = 320
)

// localLock is a channel-based mutex; the buffered token is the lock. The
// waiter count covers the holder and everyone queued on the channel.
type localLock struct {
	ch      chan struct{}
	waiters int
}

// LocalLocker serializes turns within a single process. Entries are reaped
// once the last holder or waiter for a conversation releases.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

// NewLocalLocker creates an in-process turn locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[conversationID]
	if !ok {
		lock = &localLock{ch: make(chan struct{}, 1)}
		l.locks[conversationID] = lock
	}
	lock.waiters++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		return func() {
			<-lock.ch
			l.release(conversationID, lock)
		}, nil
	case <-ctx.Done():
		l.release(conversationID, lock)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(conversationID string, lock *localLock) {
	l.mu.Lock()
	lock.waiters--
	if lock.waiters == 0 {
		delete(l.locks, conversationID)
	}
	l.mu.Unlock()
}

// RedsyncLocker serializes turns across replicas using a Redis mutex.
type RedsyncLocker struct {
	rs *redsync.Redsync
}

// NewRedsyncLocker creates a distributed turn locker over a Redis client.
func NewRedsyncLocker(client *goredislib.Client) *RedsyncLocker {
	return &RedsyncLocker{rs: redsync.New(goredis.NewPool(client))}
}

func (l *RedsyncLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	mutex := l.rs.NewMutex("turn-lock:"+conversationID,
		redsync.WithExpiry(turnLockExpiry),
		redsync.WithTries(turnLockTries),
		redsync.WithRetryDelay(turnLockRetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	return func() {
		_, _ = mutex.UnlockContext(context.Background())
	}, nil
}
