package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"semaphore/portal/internal/session"
)

type countingStore struct {
	*session.MemoryStore
	sweeps int32
	err    error
}

func (s *countingStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	atomic.AddInt32(&s.sweeps, 1)
	if s.err != nil {
		return 0, s.err
	}
	return s.MemoryStore.Sweep(ctx, now)
}

func TestSweepOnceRemovesExpired(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	_ = store.Save(ctx, &session.Record{ID: "gone", ExpiresAt: time.Now().Add(-time.Minute)})
	_ = store.Save(ctx, &session.Record{ID: "kept", ExpiresAt: time.Now().Add(time.Hour)})

	if removed := sweepOnce(ctx, store, time.Second, zap.NewNop()); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session left, got %d", store.Len())
	}
}

func TestSweepOnceAbsorbsErrors(t *testing.T) {
	store := &countingStore{MemoryStore: session.NewMemoryStore(), err: errors.New("db down")}
	if removed := sweepOnce(context.Background(), store, time.Second, nil); removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
}

func TestSweepJobRunsUntilCancelled(t *testing.T) {
	store := &countingStore{MemoryStore: session.NewMemoryStore()}
	ctx, cancel := context.WithCancel(context.Background())
	StartSessionSweepJob(ctx, store, 10*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&store.sweeps) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("sweeper did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
}
