package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/ports"
	"github.com/maglo/invoicing/internal/infrastructure/db/memory"
)

type stubSessionRepo struct {
	records map[string]ports.SessionRecord
	ttl     time.Duration
	findErr error
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{records: make(map[string]ports.SessionRecord)}
}

func (r *stubSessionRepo) Save(_ context.Context, rec ports.SessionRecord, ttl time.Duration) error {
	r.records[rec.ID] = rec
	r.ttl = ttl
	return nil
}

func (r *stubSessionRepo) Find(_ context.Context, id string) (*ports.SessionRecord, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *stubSessionRepo) Delete(_ context.Context, id string) error {
	delete(r.records, id)
	return nil
}

func newTestAuthService() (*AuthService, *stubSessionRepo) {
	sessions := newStubSessionRepo()
	docs := memory.NewDocumentStore(memory.WithUniqueField(usersCollection, fieldEmail))
	return NewAuthService(docs, sessions, "secret", time.Hour, discardLogger), sessions
}

func TestAuthService_CreateAccount_Success(t *testing.T) {
	svc, _ := newTestAuthService()

	user, err := svc.CreateAccount(context.Background(), "Alice Doe", " Alice@Example.com ", "pass123")
	if err != nil {
		t.Fatalf("CreateAccount returned error: %v", err)
	}
	if user == nil || user.ID == "" {
		t.Fatalf("expected user with id, got %+v", user)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalised email, got %q", user.Email)
	}
	if user.Initials != "AL" {
		t.Fatalf("unexpected initials: %s", user.Initials)
	}
	if user.PasswordHash == "pass123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestAuthService_CreateAccount_Validation(t *testing.T) {
	svc, _ := newTestAuthService()

	cases := []struct{ name, email, password string }{
		{"", "a@b.c", "pass123"},
		{"Bob", "not-an-email", "pass123"},
		{"Bob", "bob@example.com", "short"},
	}
	for _, tc := range cases {
		_, err := svc.CreateAccount(context.Background(), tc.name, tc.email, tc.password)
		if !errors.Is(err, domain.ErrAuthFailed) || !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%+v: expected invalid credentials auth error, got %v", tc, err)
		}
	}
}

func TestAuthService_CreateAccount_Duplicate(t *testing.T) {
	svc, _ := newTestAuthService()

	_, _ = svc.CreateAccount(context.Background(), "Bob", "bob@example.com", "pass123")
	_, err := svc.CreateAccount(context.Background(), "Bobby", "BOB@example.com", "pass456")
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if err.Error() != "authentication failed: user already exists" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestAuthService_CreateSession_Success(t *testing.T) {
	svc, sessions := newTestAuthService()

	if _, err := svc.CreateAccount(context.Background(), "Carol", "carol@example.com", "s3cret"); err != nil {
		t.Fatalf("create account failed: %v", err)
	}

	sess, err := svc.CreateSession(context.Background(), "carol@example.com", "s3cret")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if sess.Token == "" || sess.ID == "" {
		t.Fatalf("expected token and id, got %+v", sess)
	}
	if sess.User == nil || sess.User.Name != "Carol" {
		t.Fatalf("unexpected user: %+v", sess.User)
	}
	if rec, ok := sessions.records[sess.ID]; !ok || rec.UserID != sess.User.ID {
		t.Fatalf("session record not stored: %+v", sessions.records)
	}
	if sessions.ttl != time.Hour {
		t.Fatalf("unexpected ttl: %v", sessions.ttl)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(sess.Token, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.ID != sess.ID || claims.Subject != sess.User.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthService_CreateSession_InvalidPassword(t *testing.T) {
	svc, _ := newTestAuthService()

	_, _ = svc.CreateAccount(context.Background(), "Dave", "dave@example.com", "goodpass")
	_, err := svc.CreateSession(context.Background(), "dave@example.com", "badpass")
	if !errors.Is(err, domain.ErrAuthFailed) || !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthService_CreateSession_UnknownUser(t *testing.T) {
	svc, _ := newTestAuthService()

	_, err := svc.CreateSession(context.Background(), "ghost@example.com", "pass123")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_CurrentSession(t *testing.T) {
	svc, _ := newTestAuthService()
	ctx := context.Background()

	_, _ = svc.CreateAccount(ctx, "Erin", "erin@example.com", "pass123")
	sess, err := svc.CreateSession(ctx, "erin@example.com", "pass123")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	user, err := svc.CurrentSession(ctx, sess.Token)
	if err != nil {
		t.Fatalf("CurrentSession returned error: %v", err)
	}
	if user.ID != sess.User.ID {
		t.Fatalf("expected user %s, got %s", sess.User.ID, user.ID)
	}

	if err := svc.DestroySession(ctx, sess.Token); err != nil {
		t.Fatalf("DestroySession returned error: %v", err)
	}
	if _, err := svc.CurrentSession(ctx, sess.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after logout, got %v", err)
	}
}

func TestAuthService_CurrentSession_Rejects(t *testing.T) {
	svc, sessions := newTestAuthService()
	ctx := context.Background()

	_, _ = svc.CreateAccount(ctx, "Finn", "finn@example.com", "pass123")
	sess, _ := svc.CreateSession(ctx, "finn@example.com", "pass123")

	other := NewAuthService(svc.docs, sessions, "other-secret", time.Hour, discardLogger)
	expired := NewAuthService(svc.docs, sessions, "secret", time.Nanosecond, discardLogger)
	expiredSess, err := expired.CreateSession(ctx, "finn@example.com", "pass123")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	time.Sleep(2 * time.Second)

	cases := map[string]func() error{
		"empty token":   func() error { _, err := svc.CurrentSession(ctx, ""); return err },
		"garbage":       func() error { _, err := svc.CurrentSession(ctx, "not.a.jwt"); return err },
		"wrong secret":  func() error { _, err := other.CurrentSession(ctx, sess.Token); return err },
		"expired token": func() error { _, err := svc.CurrentSession(ctx, expiredSess.Token); return err },
	}
	for name, call := range cases {
		if err := call(); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}

	sessions.findErr = errors.New("redis down")
	if _, err := svc.CurrentSession(ctx, sess.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated on lookup failure, got %v", err)
	}
}

func TestAuthService_DestroySession_IgnoresBadTokens(t *testing.T) {
	svc, _ := newTestAuthService()

	if err := svc.DestroySession(context.Background(), ""); err != nil {
		t.Fatalf("expected nil for empty token, got %v", err)
	}
	if err := svc.DestroySession(context.Background(), "garbage"); err != nil {
		t.Fatalf("expected nil for garbage token, got %v", err)
	}
}
