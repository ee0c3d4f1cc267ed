package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/maglo/invoicing/internal/core/service"
)

// ctxStore extracts the invoice store injected by the Session middleware.
// A missing store means the route was mounted without the middleware.
func ctxStore(c echo.Context) (*service.InvoiceStore, error) {
	store, _ := c.Get("store").(*service.InvoiceStore)
	if store == nil || store.User() == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}
	return store, nil
}

// ctxToken returns the session token the middleware resolved, if any.
func ctxToken(c echo.Context) string {
	token, _ := c.Get("session_token").(string)
	return token
}
