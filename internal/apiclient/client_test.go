package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestLoginSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/security/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["email"] != "ada@example.local" || body["password"] != "pw" {
			t.Errorf("unexpected credentials %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accessToken":"access","refreshToken":"refresh"}`))
	})

	tokens, err := client.Login(context.Background(), "ada@example.local", "pw")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if tokens.AccessToken != "access" || tokens.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
}

func TestLoginFailureJoinsMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`["Email is invalid", "Password is required"]`))
	})

	_, err := client.Login(context.Background(), "nope", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "Email is invalid, Password is required" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected *Error with status 400, got %#v", err)
	}
}

func TestErrorFallbacks(t *testing.T) {
	cases := map[string]string{
		`{"error":"invalid_credentials"}`: "invalid_credentials",
		`{"message":"bad things"}`:        "bad things",
		`<html>oops</html>`:               "Unauthorized",
		`[]`:                              "Unauthorized",
	}
	for body, want := range cases {
		got := decodeError(http.StatusUnauthorized, []byte(body)).Error()
		if got != want {
			t.Errorf("body %s: expected %q, got %q", body, want, got)
		}
	}
}

func TestRefreshUsesQueryParameter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/security/refresh" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("refreshToken"); got != "r1" {
			t.Errorf("expected refreshToken query, got %q", got)
		}
		_, _ = w.Write([]byte(`{"accessToken":"a2","refreshToken":"r2"}`))
	})

	tokens, err := client.Refresh(context.Background(), "r1")
	if err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	if tokens.AccessToken != "a2" || tokens.RefreshToken != "r2" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
}

func TestRegisterSendsPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/security/register" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Surname != "Hopper" || len(req.Roles) != 1 || req.Roles[0] != "teacher" {
			t.Errorf("unexpected payload %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := client.Register(context.Background(), RegisterRequest{
		Name: "Grace", Surname: "Hopper", Email: "grace@example.local", Password: "secret123", Roles: []string{"teacher"},
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
}

func TestCoursesSendsFilterAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		if r.URL.Query().Get("studentId") != "s1" || r.URL.Query().Has("courseId") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[{"id":"c1","name":"Algebra"},{"id":"c2","name":"Biology"}]`))
	})

	courses, err := client.Courses(context.Background(), "tok", Filter{StudentID: "s1"})
	if err != nil {
		t.Fatalf("courses error: %v", err)
	}
	if len(courses) != 2 || courses[1].Name != "Biology" {
		t.Fatalf("unexpected courses %+v", courses)
	}
}

func TestEmptyListBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	files, err := client.Files(context.Background(), "tok", Filter{})
	if err != nil {
		t.Fatalf("files error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestFileDownloadURL(t *testing.T) {
	client := New("https://api.example.local/", time.Second)
	if got := client.FileDownloadURL("a b"); got != "https://api.example.local/api/files/a%20b/download" {
		t.Fatalf("unexpected url %s", got)
	}
}
