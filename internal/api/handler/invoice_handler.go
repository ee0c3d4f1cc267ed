package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/report"
	"github.com/maglo/invoicing/internal/core/service"
)

// InvoiceActions is the request-level invoice behaviour beyond plain store access.
type InvoiceActions interface {
	CreateInvoice(ctx context.Context, store *service.InvoiceStore, draft domain.InvoiceDraft, key string) (*service.CreateResult, error)
	SendInvoice(ctx context.Context, store *service.InvoiceStore, id string) (domain.Invoice, error)
}

// InvoiceHandler handles HTTP requests for invoice operations.
type InvoiceHandler struct {
	service InvoiceActions
}

func NewInvoiceHandler(service InvoiceActions) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// List handles GET /v1/invoices.
//
// @Summary      List invoices, newest first
// @Tags         invoices
// @Produce      json
// @Security     SessionCookie
// @Param        status  query     string  false  "All, Paid, Unpaid or Pending"
// @Param        search  query     string  false  "Matches client name or invoice number"
// @Success      200     {object}  invoiceListResponse
// @Failure      401     {object}  errorBody
// @Router       /v1/invoices [get]
func (h *InvoiceHandler) List(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	invoices := report.Filter(store.Invoices(), c.QueryParam("status"), c.QueryParam("search"))
	return c.JSON(http.StatusOK, toListResponse(invoices))
}

// Create handles POST /v1/invoices.
//
// @Summary      Create an invoice
// @Description  Repeating a request with the same Idempotency-Key returns the original invoice with 200,
// @Description  or 409 while the first request with that key is still running.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        Idempotency-Key  header    string                false  "Client-generated key"
// @Param        body             body      createInvoiceRequest  true   "Invoice details"
// @Success      201              {object}  domain.Invoice
// @Success      200              {object}  domain.Invoice
// @Failure      400              {object}  errorBody
// @Failure      401              {object}  errorBody
// @Failure      409              {object}  errorBody
// @Failure      422              {object}  errorBody
// @Failure      502              {object}  errorBody
// @Router       /v1/invoices [post]
func (h *InvoiceHandler) Create(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}

	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	key := c.Request().Header.Get("Idempotency-Key")
	res, err := h.service.CreateInvoice(c.Request().Context(), store, toDraft(req), key)
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if res.AlreadyExisted {
		status = http.StatusOK
	}
	c.Response().Header().Set(echo.HeaderLocation, "/v1/invoices/"+res.Invoice.ID)
	return c.JSON(status, res.Invoice)
}

// Get handles GET /v1/invoices/:id.
//
// @Summary      Get an invoice
// @Tags         invoices
// @Produce      json
// @Security     SessionCookie
// @Param        id   path      string  true  "Invoice id"
// @Success      200  {object}  domain.Invoice
// @Failure      401  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /v1/invoices/{id} [get]
func (h *InvoiceHandler) Get(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	inv, ok := store.GetInvoiceByID(c.Param("id"))
	if !ok {
		return domain.ErrInvoiceNotFound
	}
	return c.JSON(http.StatusOK, inv)
}

// Update handles PATCH /v1/invoices/:id.
//
// @Summary      Update an invoice
// @Description  On an invoice with line items the amount is their subtotal; an amount that differs is rejected with 422.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        id    path      string                true  "Invoice id"
// @Param        body  body      updateInvoiceRequest  true  "Fields to change"
// @Success      200   {object}  domain.Invoice
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Failure      404   {object}  errorBody
// @Failure      422   {object}  errorBody
// @Failure      502   {object}  errorBody
// @Router       /v1/invoices/{id} [patch]
func (h *InvoiceHandler) Update(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}

	var req updateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	inv, err := store.UpdateInvoice(c.Request().Context(), c.Param("id"), toPatch(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// Delete handles DELETE /v1/invoices/:id. Deleting an absent invoice succeeds.
//
// @Summary      Delete an invoice
// @Tags         invoices
// @Security     SessionCookie
// @Param        id   path  string  true  "Invoice id"
// @Success      204
// @Failure      401  {object}  errorBody
// @Failure      502  {object}  errorBody
// @Router       /v1/invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	if err := store.DeleteInvoice(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Send handles POST /v1/invoices/:id/send.
//
// @Summary      E-mail an invoice to its client
// @Tags         invoices
// @Produce      json
// @Security     SessionCookie
// @Param        id   path      string  true  "Invoice id"
// @Success      200  {object}  domain.Invoice
// @Failure      401  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Failure      502  {object}  errorBody
// @Router       /v1/invoices/{id}/send [post]
func (h *InvoiceHandler) Send(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	inv, err := h.service.SendInvoice(c.Request().Context(), store, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}
