// Package session keeps the per-browser Session Context: the signed-in user,
// their API tokens, the user sheet state and pending toasts.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"semaphore/portal/internal/model"
	"semaphore/portal/internal/usersheet"
)

type ToastKind string

const (
	ToastInfo  ToastKind = "info"
	ToastError ToastKind = "error"
)

type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
}

type Record struct {
	ID        string          `json:"-"`
	User      *model.User     `json:"user,omitempty"`
	Tokens    model.Tokens    `json:"tokens"`
	Sheet     usersheet.Sheet `json:"sheet"`
	Toasts    []Toast         `json:"toasts,omitempty"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

func encodeRecord(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(id string, raw []byte) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, err
	}
	rec.ID = id
	return rec, nil
}

// Context is the Session Context of one browser. Setters write through to the
// store so the next request sees the change.
type Context struct {
	mu    sync.Mutex
	store Store
	ttl   time.Duration
	rec   *Record
	fresh bool
}

func newContext(store Store, ttl time.Duration, rec *Record, fresh bool) *Context {
	return &Context{store: store, ttl: ttl, rec: rec, fresh: fresh}
}

func (c *Context) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.ID
}

// Fresh reports a session created during this request and not yet stored.
func (c *Context) Fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fresh
}

func (c *Context) GetUser() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec.User == nil {
		return nil
	}
	user := *c.rec.User
	user.Roles = append([]model.Role(nil), c.rec.User.Roles...)
	return &user
}

// SetUser replaces the user. Clearing it also drops the API tokens.
func (c *Context) SetUser(ctx context.Context, user *model.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.User = user
	if user == nil {
		c.rec.Tokens = model.Tokens{}
	}
	return c.saveLocked(ctx)
}

func (c *Context) Tokens() model.Tokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Tokens
}

// SignIn stores the user together with the tokens that authenticate them.
func (c *Context) SignIn(ctx context.Context, user *model.User, tokens model.Tokens) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.User = user
	c.rec.Tokens = tokens
	c.rec.Sheet.Apply(usersheet.EventLoggedIn)
	return c.saveLocked(ctx)
}

func (c *Context) SetTokens(ctx context.Context, tokens model.Tokens) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Tokens = tokens
	return c.saveLocked(ctx)
}

// SignOut clears the user and resets the sheet to the login view.
func (c *Context) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.User = nil
	c.rec.Tokens = model.Tokens{}
	c.rec.Sheet.Reset()
	return c.saveLocked(ctx)
}

func (c *Context) Sheet() usersheet.Sheet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Sheet
}

func (c *Context) UpdateSheet(ctx context.Context, fn func(*usersheet.Sheet)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.rec.Sheet)
	return c.saveLocked(ctx)
}

func (c *Context) PushToast(ctx context.Context, kind ToastKind, message string) error {
	if message == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rec.Toasts = append(c.rec.Toasts, Toast{Kind: kind, Message: message})
	return c.saveLocked(ctx)
}

// DrainToasts returns pending toasts and forgets them.
func (c *Context) DrainToasts(ctx context.Context) ([]Toast, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rec.Toasts) == 0 {
		return nil, nil
	}
	toasts := c.rec.Toasts
	c.rec.Toasts = nil
	return toasts, c.saveLocked(ctx)
}

func (c *Context) saveLocked(ctx context.Context) error {
	c.rec.ExpiresAt = time.Now().Add(c.ttl).UTC()
	if err := c.store.Save(ctx, c.rec); err != nil {
		return err
	}
	c.fresh = false
	return nil
}

type contextKey struct{}

func WithContext(ctx context.Context, sc *Context) context.Context {
	if sc == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, sc)
}

func FromContext(ctx context.Context) (*Context, bool) {
	sc, ok := ctx.Value(contextKey{}).(*Context)
	return sc, ok && sc != nil
}

// MustFromContext panics outside the session middleware.
func MustFromContext(ctx context.Context) *Context {
	sc, ok := FromContext(ctx)
	if !ok {
		panic("session: no session context; handler is not behind the session middleware")
	}
	return sc
}
