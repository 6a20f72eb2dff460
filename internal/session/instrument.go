package session

import (
	"context"
	"errors"
	"time"

	"semaphore/portal/internal/metrics"
)

type instrumented struct {
	next    Store
	backend string
}

// Instrument counts store operations per backend in portal_session_store_operations_total.
func Instrument(store Store, backend string) Store {
	return &instrumented{next: store, backend: backend}
}

func (s *instrumented) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.next.Get(ctx, id)
	s.observe("get", err)
	return rec, err
}

func (s *instrumented) Save(ctx context.Context, rec *Record) error {
	err := s.next.Save(ctx, rec)
	s.observe("save", err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, id string) error {
	err := s.next.Delete(ctx, id)
	s.observe("delete", err)
	return err
}

func (s *instrumented) Sweep(ctx context.Context, now time.Time) (int, error) {
	n, err := s.next.Sweep(ctx, now)
	s.observe("sweep", err)
	return n, err
}

func (s *instrumented) observe(op string, err error) {
	outcome := metrics.Outcome(err)
	if errors.Is(err, ErrNotFound) {
		outcome = "miss"
	}
	metrics.SessionOps.WithLabelValues(s.backend, op, outcome).Inc()
}
