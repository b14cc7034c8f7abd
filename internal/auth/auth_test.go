package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/antlerhq/antler/internal/store/sqlite"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, tokenTTL time.Duration) (*Service, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared", 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, "test-secret", tokenTTL, bcrypt.MinCost), st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	user, err := svc.Register(context.Background(), "alice", "alice@x.com", "", "pw123456")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("expected user id")
	}
	if user.Nickname != "alice" {
		t.Fatalf("expected nickname to default to username, got %q", user.Nickname)
	}
	if user.PasswordHash != "" {
		t.Fatalf("register must not return the password hash")
	}

	got, err := svc.Login(context.Background(), "alice", "pw123456")
	if err != nil {
		t.Fatalf("login by username: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, got.ID)
	}

	if _, err := svc.Login(context.Background(), "alice@x.com", "pw123456"); err != nil {
		t.Fatalf("login by email: %v", err)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "alice@x.com", "", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(context.Background(), "alice", "other@x.com", "", "pw123456"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "alice@x.com", "", "pw123456"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	if _, err := svc.Register(context.Background(), "alice", "alice@x.com", "", "pw123456"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Wrong password and unknown user fail identically.
	_, wrongPass := svc.Login(context.Background(), "alice", "nope-wrong")
	_, unknownUser := svc.Login(context.Background(), "mallory", "nope-wrong")
	if !errors.Is(wrongPass, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for wrong password, got %v", wrongPass)
	}
	if !errors.Is(unknownUser, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown user, got %v", unknownUser)
	}
	if wrongPass.Error() != unknownUser.Error() {
		t.Fatalf("credential errors must not reveal whether the user exists")
	}
}

func TestPasswordNotStoredPlaintext(t *testing.T) {
	svc, st := newTestService(t, time.Hour)

	user, err := svc.Register(context.Background(), "alice", "alice@x.com", "", "pw123456")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	stored, err := st.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if stored.PasswordHash == "" || strings.Contains(stored.PasswordHash, "pw123456") {
		t.Fatalf("password must be stored as a one-way hash")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw123456")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	token, expiresAt, err := svc.IssueToken(42, "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry")
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenExpiration(t *testing.T) {
	svc, _ := newTestService(t, -1*time.Second)

	token, _, err := svc.IssueToken(42, "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenTampering(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	other := NewService(nil, "other-secret", time.Hour, bcrypt.MinCost)

	token, _, err := other.IssueToken(42, "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}
