package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/service"
)

// StoreResolver maps a session token to the invoice store of its user.
type StoreResolver interface {
	Resolve(ctx context.Context, token string) (*service.InvoiceStore, error)
}

// Session validates the caller's session on every request and injects the
// user's invoice store into context.
func Session(resolver StoreResolver, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c, cookieName)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
			}

			store, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
				}
				return err
			}

			c.Set("store", store)
			c.Set("session_token", token)
			if u := store.User(); u != nil {
				c.Set("user_id", u.ID)
			}

			return next(c)
		}
	}
}

// TokenFromRequest reads the session cookie, falling back to a bearer token.
func TokenFromRequest(c echo.Context, cookieName string) string {
	if ck, err := c.Cookie(cookieName); err == nil && ck.Value != "" {
		return ck.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
