package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session_not_found")

// Store keeps session records keyed by HashID(id). Expired records behave as missing.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	// Sweep drops expired records and reports how many went away.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
