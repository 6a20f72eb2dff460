package role

import (
	"net/http"
	"time"

	"semaphore/portal/internal/model"
)

const CookieName = "activeRole"

type Persister struct {
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewPersister(ttl time.Duration, secure bool) *Persister {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Persister{ttl: ttl, secure: secure, now: time.Now}
}

// Persist writes the role. Unknown roles and a missing writer are ignored.
func (p *Persister) Persist(w http.ResponseWriter, role model.Role) {
	if w == nil {
		return
	}
	if _, ok := model.ParseRole(string(role)); !ok {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    string(role),
		Path:     "/",
		MaxAge:   int(p.ttl / time.Second),
		Expires:  p.now().Add(p.ttl).UTC(),
		Secure:   p.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (p *Persister) Read(r *http.Request) (model.Role, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	if !cookie.Expires.IsZero() && cookie.Expires.Before(p.now()) {
		return "", false
	}
	return model.ParseRole(cookie.Value)
}

func (p *Persister) Clear(w http.ResponseWriter) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		Secure:   p.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
