// Package view renders the navigation shell and page shells from embedded templates.
package view

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"semaphore/portal/internal/model"
	"semaphore/portal/internal/pages"
	"semaphore/portal/internal/session"
	"semaphore/portal/internal/usersheet"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

type NavLink struct {
	Label  string
	Href   string
	Active bool
}

type SheetView struct {
	State usersheet.State
	Open  bool
	Email string
}

type Layout struct {
	Title    string
	BackHref string
	ReturnTo string
	Search   string
	Nav      []NavLink
	User     *model.User
	Sheet    SheetView
	Toasts   []session.Toast
	Page     pages.Page
}

type ErrorPage struct {
	Title   string
	Message string
}

var navOrder = []pages.Name{pages.Assignments, pages.Exercises, pages.Quiz, pages.Files, pages.Calendar, pages.Chats}

var navLabels = map[pages.Name]string{
	pages.Assignments: "Assignments",
	pages.Exercises:   "Exercises",
	pages.Quiz:        "Quiz",
	pages.Files:       "Files",
	pages.Calendar:    "Calendar",
	pages.Chats:       "Chats",
}

func Nav(current pages.Name) []NavLink {
	links := make([]NavLink, 0, len(navOrder))
	for _, name := range navOrder {
		links = append(links, NavLink{Label: navLabels[name], Href: pages.Path(name), Active: name == current})
	}
	return links
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("portal").Funcs(template.FuncMap{
		"title": title,
	}).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Page renders into a buffer first so a template error never leaves a half-written page.
func (r *Renderer) Page(w http.ResponseWriter, status int, data Layout) error {
	return r.execute(w, status, "layout", data)
}

func (r *Renderer) Error(w http.ResponseWriter, status int, data ErrorPage) error {
	return r.execute(w, status, "error", data)
}

func (r *Renderer) execute(w http.ResponseWriter, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// BackHref follows the referer when it points into this site, else home.
func BackHref(r *http.Request) string {
	ref := r.Referer()
	if ref == "" {
		return "/"
	}
	parsed, err := url.Parse(ref)
	if err != nil || (parsed.Host != "" && parsed.Host != r.Host) {
		return "/"
	}
	target := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return SafeReturn(target)
}

// SafeReturn only lets site-relative paths through. Browsers drop tabs and
// newlines from URLs, so any control character rejects the target.
func SafeReturn(target string) string {
	if target == "" || strings.IndexFunc(target, unicode.IsControl) >= 0 {
		return "/"
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return "/"
	}
	return target
}

func title(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
