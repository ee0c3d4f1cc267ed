package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maglo/invoicing/internal/core/domain"
)

const testCookie = "maglo_session_test"

type stubSessions struct {
	signupFn func(ctx context.Context, previousToken, name, email, password string) (*domain.Session, error)
	loginFn  func(ctx context.Context, previousToken, email, password string) (*domain.Session, error)
	logoutFn func(ctx context.Context, token string) error
}

func (s *stubSessions) Signup(ctx context.Context, previousToken, name, email, password string) (*domain.Session, error) {
	return s.signupFn(ctx, previousToken, name, email, password)
}

func (s *stubSessions) Login(ctx context.Context, previousToken, email, password string) (*domain.Session, error) {
	return s.loginFn(ctx, previousToken, email, password)
}

func (s *stubSessions) Logout(ctx context.Context, token string) error {
	return s.logoutFn(ctx, token)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == testCookie {
			return ck
		}
	}
	return nil
}

func testSession() *domain.Session {
	return &domain.Session{
		ID:        "sess-1",
		Token:     "signed-token",
		User:      &domain.User{ID: "user-1", Name: "Ann Lee", Email: "ann@example.com", Initials: "AN"},
		ExpiresAt: time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC),
	}
}

func TestAuthHandler_Signup_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubSessions{
		signupFn: func(_ context.Context, previous, name, email, password string) (*domain.Session, error) {
			if previous != "" {
				t.Fatalf("expected no previous token, got %q", previous)
			}
			if name != "Ann Lee" || email != "ann@example.com" || password != "secret1" {
				t.Fatalf("unexpected args: %s %s %s", name, email, password)
			}
			return testSession(), nil
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie, Secure: true})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/signup",
		`{"name":"Ann Lee","email":"ann@example.com","password":"secret1"}`), rec)

	if err := h.Signup(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	ck := sessionCookie(rec)
	if ck == nil || ck.Value != "signed-token" {
		t.Fatalf("expected session cookie, got %+v", ck)
	}
	if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes: %+v", ck)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["email"] != "ann@example.com" || user["avatar"] != "AN" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}
}

func TestAuthHandler_Signup_Validation(t *testing.T) {
	e := newTestEcho()
	stub := &stubSessions{
		signupFn: func(context.Context, string, string, string, string) (*domain.Session, error) {
			t.Fatalf("sessions should not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie})

	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/signup",
		`{"name":"A","email":"not-an-email","password":"123"}`), httptest.NewRecorder())

	err := h.Signup(c)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "email", "password"} {
		if ve.Fields[field] == "" {
			t.Fatalf("expected error for %s, got %+v", field, ve.Fields)
		}
	}
}

func TestAuthHandler_Signup_UserExists(t *testing.T) {
	e := newTestEcho()
	stub := &stubSessions{
		signupFn: func(context.Context, string, string, string, string) (*domain.Session, error) {
			return nil, &domain.AuthError{Err: domain.ErrUserExists}
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie})

	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/signup",
		`{"name":"Ann","email":"ann@example.com","password":"secret1"}`), httptest.NewRecorder())

	if err := h.Signup(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthHandler_Signup_InvalidPayload(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubSessions{}, CookieConfig{Name: testCookie})

	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/signup", `{"name":`), httptest.NewRecorder())

	var he *echo.HTTPError
	if err := h.Signup(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Login_PassesPreviousToken(t *testing.T) {
	e := newTestEcho()
	stub := &stubSessions{
		loginFn: func(_ context.Context, previous, email, password string) (*domain.Session, error) {
			if previous != "old-token" {
				t.Fatalf("expected previous token, got %q", previous)
			}
			return testSession(), nil
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie})

	req := jsonRequest(http.MethodPost, "/auth/login", `{"email":"ann@example.com","password":"secret1"}`)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "old-token"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ck := sessionCookie(rec); ck == nil || ck.Value != "signed-token" {
		t.Fatalf("expected new session cookie, got %+v", ck)
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "signed-token" || resp.ExpiresAt != "2025-03-16T10:00:00Z" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newTestEcho()
	stub := &stubSessions{
		loginFn: func(context.Context, string, string, string) (*domain.Session, error) {
			return nil, &domain.AuthError{Err: domain.ErrInvalidCredentials}
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/login",
		`{"email":"ann@example.com","password":"wrong-pass"}`), rec)

	if err := h.Login(c); !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if sessionCookie(rec) != nil {
		t.Fatalf("no cookie expected on failed login")
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	e := newTestEcho()
	var destroyed string
	stub := &stubSessions{
		logoutFn: func(_ context.Context, token string) error {
			destroyed = token
			return nil
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), rec)
	c.Set("session_token", "signed-token")

	if err := h.Logout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if destroyed != "signed-token" {
		t.Fatalf("expected session to be destroyed, got %q", destroyed)
	}
	ck := sessionCookie(rec)
	if ck == nil || ck.Value != "" || ck.MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", ck)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubSessions{}, CookieConfig{Name: testCookie})
	store := signedInStore(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), rec)
	c.Set("store", store)

	if err := h.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var user domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthHandler_Me_WithoutStore(t *testing.T) {
	e := newTestEcho()
	h := NewAuthHandler(&stubSessions{}, CookieConfig{Name: testCookie})
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), httptest.NewRecorder())

	var he *echo.HTTPError
	if err := h.Me(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuthHandler_Signup_PassesPreviousToken(t *testing.T) {
	e := newTestEcho()
	stub := &stubSessions{
		signupFn: func(_ context.Context, previous, _, _, _ string) (*domain.Session, error) {
			if previous != "old-token" {
				t.Fatalf("expected previous token, got %q", previous)
			}
			return testSession(), nil
		},
	}
	h := NewAuthHandler(stub, CookieConfig{Name: testCookie})

	req := jsonRequest(http.MethodPost, "/auth/signup",
		`{"name":"Ann Lee","email":"ann@example.com","password":"secret1"}`)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "old-token"})
	rec := httptest.NewRecorder()

	if err := h.Signup(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if ck := sessionCookie(rec); ck == nil || ck.Value != "signed-token" {
		t.Fatalf("expected new session cookie, got %+v", ck)
	}
}
