package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"semaphore/portal/internal/apiclient"
	"semaphore/portal/internal/auth"
	"semaphore/portal/internal/config"
	"semaphore/portal/internal/model"
	"semaphore/portal/internal/pages"
	"semaphore/portal/internal/role"
	"semaphore/portal/internal/session"
	"semaphore/portal/internal/summary"
	"semaphore/portal/internal/view"
)

type API interface {
	pages.API
	Register(ctx context.Context, req apiclient.RegisterRequest) error
	Login(ctx context.Context, email, password string) (model.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
	FileDownloadURL(fileID string) string
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	api      API
	sessions *session.Manager
	roles    *role.Persister
	tokens   *auth.Parser
	pages    *pages.Builder
	view     *view.Renderer
	forms    *formValidator
}

func NewServer(cfg config.Config, logger *zap.Logger, api API, sessions *session.Manager) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}
	forms, err := newFormValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		log:      logger,
		api:      api,
		sessions: sessions,
		roles:    role.NewPersister(cfg.RoleCookieTTL, cfg.CookieSecure),
		tokens:   auth.NewParser(cfg.JWTSecret),
		pages:    pages.NewBuilder(api, summary.NewLoader(cfg.SectionTimeout, logger)),
		view:     renderer,
		forms:    forms,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, s.logRequests, middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware, s.refreshTokens)

		r.Get("/", s.page(pages.Home))
		r.Get("/assignments", s.page(pages.Assignments))
		r.Get("/exercises", s.page(pages.Exercises))
		r.Get("/quiz", s.page(pages.Quiz))
		r.Get("/files", s.page(pages.Files))
		r.Get("/calendar", s.page(pages.Calendar))
		r.Get("/chats", s.page(pages.Chats))
		r.Get("/search", s.page(pages.Search))
		r.Get("/files/{fileId}/download", s.handleDownload)

		r.Route("/sheet", func(r chi.Router) {
			r.Post("/open", s.handleSheetOpen)
			r.Post("/close", s.handleSheetClose)
			r.Post("/register", s.handleSheetRegister)
			r.Post("/login", s.handleSheetLogin)
		})

		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
		r.Post("/role", s.handleRole)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, http.StatusNotFound, "Page not found", "This page does not exist.")
	})

	return r
}

func (s *Server) renderError(w http.ResponseWriter, status int, title, message string) {
	if err := s.view.Error(w, status, view.ErrorPage{Title: title, Message: message}); err != nil {
		s.log.Error("error page render failed", zap.Error(err))
		writeError(w, status, "render_failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
