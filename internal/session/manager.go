package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const CookieName = "portal_session"

type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	log    *zap.Logger
}

func NewManager(store Store, ttl time.Duration, secure bool, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, secure: secure, log: logger}
}

func (m *Manager) Store() Store {
	return m.store
}

// Middleware loads the Session Context for the request, creating an anonymous
// one when the cookie is missing, unknown or unreadable.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc, err := m.Load(r.Context(), r)
		if err != nil {
			m.log.Error("session id generation failed", zap.Error(err))
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		m.setCookie(w, sc.ID())
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), sc)))
	})
}

func (m *Manager) Load(ctx context.Context, r *http.Request) (*Context, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		rec, err := m.store.Get(ctx, cookie.Value)
		switch {
		case err == nil:
			return newContext(m.store, m.ttl, rec, false), nil
		case !errors.Is(err, ErrNotFound):
			m.log.Warn("session load failed, starting anonymous session", zap.Error(err))
		}
	}
	return m.create()
}

func (m *Manager) create() (*Context, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	rec := &Record{ID: id, ExpiresAt: time.Now().Add(m.ttl).UTC()}
	return newContext(m.store, m.ttl, rec, true), nil
}

// Renew moves the session to a new id, keeping its contents. Called on login so
// an id handed out before authentication never carries a user.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, sc *Context) error {
	id, err := NewID()
	if err != nil {
		return err
	}
	sc.mu.Lock()
	oldID := sc.rec.ID
	wasFresh := sc.fresh
	sc.rec.ID = id
	err = sc.saveLocked(ctx)
	sc.mu.Unlock()
	if err != nil {
		return err
	}
	if !wasFresh {
		if err := m.store.Delete(ctx, oldID); err != nil && !errors.Is(err, ErrNotFound) {
			m.log.Warn("old session delete failed", zap.Error(err))
		}
	}
	m.setCookie(w, id)
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
