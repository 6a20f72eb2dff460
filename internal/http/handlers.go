package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"semaphore/portal/internal/apiclient"
	"semaphore/portal/internal/auth"
	"semaphore/portal/internal/metrics"
	"semaphore/portal/internal/model"
	"semaphore/portal/internal/pages"
	"semaphore/portal/internal/selection"
	"semaphore/portal/internal/session"
	"semaphore/portal/internal/usersheet"
	"semaphore/portal/internal/view"
)

var errNoRefreshToken = errors.New("no_refresh_token")

const (
	unreachableAPI = "The server could not be reached, please try again"
	loginFailed    = "Login failed, please try again"
)

// Pages

func (s *Server) page(name pages.Name) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sc := session.MustFromContext(ctx)
		user := sc.GetUser()
		sel := selection.FromQuery(r.URL.Query())

		page := s.pages.Build(ctx, name, user, sc.Tokens().AccessToken, sel)

		toasts, err := sc.DrainToasts(ctx)
		if err != nil {
			s.log.Warn("toast drain failed", zap.Error(err))
		}
		for _, problem := range page.Problems {
			toasts = append(toasts, session.Toast{Kind: session.ToastError, Message: problem})
		}

		sheet := sc.Sheet()
		data := view.Layout{
			Title:    page.Title,
			BackHref: view.BackHref(r),
			ReturnTo: r.URL.RequestURI(),
			Search:   sel.Search(),
			Nav:      view.Nav(name),
			User:     user,
			Sheet: view.SheetView{
				State: sheet.View(user != nil),
				Open:  sheet.Open,
				Email: sheet.Email,
			},
			Toasts: toasts,
			Page:   page,
		}
		if err := s.view.Page(w, http.StatusOK, data); err != nil {
			s.log.Error("page render failed", zap.String("page", string(name)), zap.Error(err))
			s.renderError(w, http.StatusInternalServerError, "Something went wrong", "This page could not be displayed.")
		}
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sc := session.MustFromContext(r.Context())
	if sc.GetUser() == nil {
		s.toast(r.Context(), sc, session.ToastError, "Log in to download files")
		http.Redirect(w, r, pages.Path(pages.Files), http.StatusSeeOther)
		return
	}
	fileID := strings.TrimSpace(chi.URLParam(r, "fileId"))
	if fileID == "" {
		s.renderError(w, http.StatusNotFound, "File not found", "This file does not exist.")
		return
	}
	http.Redirect(w, r, s.api.FileDownloadURL(fileID), http.StatusFound)
}

// User sheet

func (s *Server) handleSheetOpen(w http.ResponseWriter, r *http.Request) {
	s.updateSheet(w, r, func(sheet *usersheet.Sheet) { sheet.Open = true })
}

func (s *Server) handleSheetClose(w http.ResponseWriter, r *http.Request) {
	s.updateSheet(w, r, func(sheet *usersheet.Sheet) { sheet.Open = false })
}

func (s *Server) handleSheetRegister(w http.ResponseWriter, r *http.Request) {
	s.updateSheet(w, r, func(sheet *usersheet.Sheet) {
		sheet.Open = true
		sheet.Apply(usersheet.EventShowRegister)
	})
}

func (s *Server) handleSheetLogin(w http.ResponseWriter, r *http.Request) {
	s.updateSheet(w, r, func(sheet *usersheet.Sheet) {
		sheet.Open = true
		sheet.Apply(usersheet.EventCancel)
	})
}

func (s *Server) updateSheet(w http.ResponseWriter, r *http.Request, fn func(*usersheet.Sheet)) {
	sc := session.MustFromContext(r.Context())
	if err := sc.UpdateSheet(r.Context(), fn); err != nil {
		s.log.Error("sheet update failed", zap.Error(err))
	}
	s.back(w, r)
}

// Auth flows

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := session.MustFromContext(ctx)
	form := parseLoginForm(r)
	s.rememberEmail(ctx, sc, form.Email)

	if problems := s.forms.Check(form); problems != "" {
		metrics.AuthEvents.WithLabelValues("login", "invalid").Inc()
		s.toast(ctx, sc, session.ToastError, problems)
		s.back(w, r)
		return
	}

	tokens, err := s.api.Login(ctx, form.Email, form.Password)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("login", "error").Inc()
		s.toast(ctx, sc, session.ToastError, s.apiMessage(ctx, "login", err))
		s.back(w, r)
		return
	}

	user, err := s.tokens.User(tokens.AccessToken)
	if err != nil {
		metrics.AuthEvents.WithLabelValues("login", "error").Inc()
		s.log.Warn("access token unreadable", zap.String("request_id", requestIDFromContext(ctx)), zap.Error(err))
		msg := loginFailed
		if errors.Is(err, auth.ErrNoRoles) {
			msg = "Your account has no student or teacher role"
		}
		s.toast(ctx, sc, session.ToastError, msg)
		s.back(w, r)
		return
	}
	preferred, ok := s.roles.Read(r)
	user.ChooseActiveRole(preferred, ok)

	if err := s.sessions.Renew(ctx, w, sc); err != nil {
		s.log.Error("session renew failed", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "Something went wrong", "You could not be logged in.")
		return
	}
	if err := sc.SignIn(ctx, user, tokens); err != nil {
		s.log.Error("session sign in failed", zap.Error(err))
		s.renderError(w, http.StatusInternalServerError, "Something went wrong", "You could not be logged in.")
		return
	}
	s.roles.Persist(w, user.ActiveRole)
	metrics.AuthEvents.WithLabelValues("login", "ok").Inc()
	s.back(w, r)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := session.MustFromContext(ctx)
	form := parseRegisterForm(r)
	s.rememberEmail(ctx, sc, form.Email)

	if problems := s.forms.Check(form); problems != "" {
		metrics.AuthEvents.WithLabelValues("register", "invalid").Inc()
		s.toast(ctx, sc, session.ToastError, problems)
		s.back(w, r)
		return
	}

	err := s.api.Register(ctx, apiclient.RegisterRequest{
		Name:     form.Name,
		Surname:  form.Surname,
		Email:    form.Email,
		Password: form.Password,
		Roles:    form.Roles,
	})
	if err != nil {
		metrics.AuthEvents.WithLabelValues("register", "error").Inc()
		s.toast(ctx, sc, session.ToastError, s.apiMessage(ctx, "register", err))
		s.back(w, r)
		return
	}

	metrics.AuthEvents.WithLabelValues("register", "ok").Inc()
	if err := sc.UpdateSheet(ctx, func(sheet *usersheet.Sheet) { sheet.Apply(usersheet.EventRegistered) }); err != nil {
		s.log.Error("sheet update failed", zap.Error(err))
	}
	s.toast(ctx, sc, session.ToastInfo, "Account created, you can log in now")
	s.back(w, r)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := session.MustFromContext(ctx)
	if err := sc.SignOut(ctx); err != nil {
		s.log.Error("session sign out failed", zap.Error(err))
	}
	s.roles.Clear(w)
	metrics.AuthEvents.WithLabelValues("logout", "ok").Inc()
	s.back(w, r)
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sc := session.MustFromContext(ctx)
	user := sc.GetUser()
	if user == nil {
		s.toast(ctx, sc, session.ToastError, "Log in to switch roles")
		s.back(w, r)
		return
	}
	form := parseRoleForm(r)
	if problems := s.forms.Check(form); problems != "" {
		metrics.AuthEvents.WithLabelValues("role_switch", "invalid").Inc()
		s.toast(ctx, sc, session.ToastError, problems)
		s.back(w, r)
		return
	}
	next := model.Role(form.Role)
	if !user.HasRole(next) {
		metrics.AuthEvents.WithLabelValues("role_switch", "invalid").Inc()
		s.toast(ctx, sc, session.ToastError, "You do not have the "+form.Role+" role")
		s.back(w, r)
		return
	}
	user.ActiveRole = next
	if err := sc.SetUser(ctx, user); err != nil {
		s.log.Error("session role update failed", zap.Error(err))
	}
	s.roles.Persist(w, next)
	metrics.AuthEvents.WithLabelValues("role_switch", "ok").Inc()
	s.back(w, r)
}

// Helpers

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, view.SafeReturn(r.PostFormValue("return_to")), http.StatusSeeOther)
}

func (s *Server) toast(ctx context.Context, sc *session.Context, kind session.ToastKind, message string) {
	if err := sc.PushToast(ctx, kind, message); err != nil {
		s.log.Warn("toast not stored", zap.Error(err))
	}
}

func (s *Server) rememberEmail(ctx context.Context, sc *session.Context, email string) {
	if err := sc.UpdateSheet(ctx, func(sheet *usersheet.Sheet) { sheet.Email = email }); err != nil {
		s.log.Warn("sheet update failed", zap.Error(err))
	}
}

// apiMessage is the toast text for a failed API call: the API's own messages,
// or a generic line when the API could not be reached.
func (s *Server) apiMessage(ctx context.Context, op string, err error) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	s.log.Error("api call failed", zap.String("op", op), zap.String("request_id", requestIDFromContext(ctx)), zap.Error(err))
	return unreachableAPI
}
