package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maglo/invoicing/internal/api/middleware"
	"github.com/maglo/invoicing/internal/core/domain"
)

// Sessions is the sign-in lifecycle the auth endpoints drive.
type Sessions interface {
	Signup(ctx context.Context, previousToken, name, email, password string) (*domain.Session, error)
	Login(ctx context.Context, previousToken, email, password string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	sessions Sessions
	cookie   CookieConfig
}

func NewAuthHandler(sessions Sessions, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookie: cookie}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type authResponse struct {
	Token     string       `json:"token,omitempty"`
	ExpiresAt string       `json:"expires_at,omitempty"`
	User      *domain.User `json:"user,omitempty"`
}

// Signup creates an account and signs it in, replacing the caller's previous session.
//
// @Summary      Create an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      409   {object}  errorBody
// @Failure      422   {object}  errorBody
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	previous := middleware.TokenFromRequest(c, h.cookie.Name)
	sess, err := h.sessions.Signup(c.Request().Context(), previous, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setCookie(c, sess)
	return c.JSON(http.StatusCreated, toAuthResponse(sess))
}

// Login signs a user in, replacing the caller's previous session.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      422   {object}  errorBody
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	previous := middleware.TokenFromRequest(c, h.cookie.Name)
	sess, err := h.sessions.Login(c.Request().Context(), previous, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setCookie(c, sess)
	return c.JSON(http.StatusOK, toAuthResponse(sess))
}

// Logout ends the current session.
//
// @Summary      Sign out
// @Tags         auth
// @Security     SessionCookie
// @Success      204
// @Failure      401  {object}  errorBody
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessions.Logout(c.Request().Context(), ctxToken(c)); err != nil {
		return err
	}
	h.clearCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in user.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  domain.User
// @Failure      401  {object}  errorBody
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, store.User())
}

func (h *AuthHandler) setCookie(c echo.Context, sess *domain.Session) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func toAuthResponse(sess *domain.Session) authResponse {
	resp := authResponse{Token: sess.Token, User: sess.User}
	if !sess.ExpiresAt.IsZero() {
		resp.ExpiresAt = sess.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}
