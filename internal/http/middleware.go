package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"semaphore/portal/internal/metrics"
	"semaphore/portal/internal/session"
)

const (
	requestIDHeader = "X-Request-ID"
	tokenLeeway     = 30 * time.Second
)

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.log.Info("request",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// refreshTokens renews an expired access token once per request. A failed
// refresh signs the user out; the role cookie stays for the next login.
func (s *Server) refreshTokens(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := session.MustFromContext(r.Context())
		if sc.GetUser() == nil {
			next.ServeHTTP(w, r)
			return
		}
		tokens := sc.Tokens()
		if !s.tokens.Expired(tokens.AccessToken, tokenLeeway) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		var err error
		if tokens.RefreshToken == "" {
			err = errNoRefreshToken
		} else {
			tokens, err = s.api.Refresh(ctx, tokens.RefreshToken)
		}
		metrics.AuthEvents.WithLabelValues("refresh", metrics.Outcome(err)).Inc()
		if err != nil {
			s.log.Info("token refresh failed, signing out",
				zap.String("request_id", requestIDFromContext(ctx)), zap.Error(err))
			if err := sc.SignOut(ctx); err != nil {
				s.log.Error("session sign out failed", zap.Error(err))
			}
			s.toast(ctx, sc, session.ToastError, "Your session has expired, please log in again")
			next.ServeHTTP(w, r)
			return
		}
		if err := sc.SetTokens(ctx, tokens); err != nil {
			s.log.Error("session token update failed", zap.Error(err))
		}
		next.ServeHTTP(w, r)
	})
}
