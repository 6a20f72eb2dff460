package auth

import (
	"errors"
	"testing"
	"time"

	"semaphore/portal/internal/model"
)

func TestUserFromTokenRoundTrip(t *testing.T) {
	token, err := NewToken("secret", time.Minute, Claims{
		Name:    "Ada",
		Surname: "Lovelace",
		Email:   "ada@example.local",
		Roles:   []string{"teacher", "student", "teacher", "admin"},
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	for _, secret := range []string{"secret", ""} {
		user, err := NewParser(secret).User(token)
		if err != nil {
			t.Fatalf("parse error with secret %q: %v", secret, err)
		}
		if user.Name != "Ada" || user.Surname != "Lovelace" {
			t.Fatalf("unexpected user %+v", user)
		}
		if len(user.Roles) != 2 || user.Roles[0] != model.RoleTeacher || user.Roles[1] != model.RoleStudent {
			t.Fatalf("unexpected roles %v", user.Roles)
		}
		if user.ActiveRole != model.RoleTeacher {
			t.Fatalf("expected first role active, got %s", user.ActiveRole)
		}
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewToken("secret", time.Minute, Claims{Roles: []string{"student"}})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := NewParser("other").Parse(token); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestUserWithoutRoles(t *testing.T) {
	token, err := NewToken("secret", time.Minute, Claims{Name: "Nobody", Roles: []string{"admin"}})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := NewParser("").User(token); !errors.Is(err, ErrNoRoles) {
		t.Fatalf("expected ErrNoRoles, got %v", err)
	}
}

func TestExpired(t *testing.T) {
	parser := NewParser("")
	fresh, err := NewToken("secret", time.Hour, Claims{Roles: []string{"student"}})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if parser.Expired(fresh, time.Minute) {
		t.Fatalf("expected fresh token to be valid")
	}
	if !parser.Expired(fresh, 2*time.Hour) {
		t.Fatalf("expected leeway to push token past expiry")
	}
	if !parser.Expired("not-a-token", 0) {
		t.Fatalf("expected garbage to count as expired")
	}
}
