package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maglo/invoicing/internal/core/domain"
	"github.com/maglo/invoicing/internal/core/report"
)

const defaultCapitalRange = 7

// DashboardHandler serves the derived views of the signed-in user's invoices.
type DashboardHandler struct {
	now func() time.Time
}

func NewDashboardHandler(now func() time.Time) *DashboardHandler {
	if now == nil {
		now = time.Now
	}
	return &DashboardHandler{now: now}
}

// Metrics handles GET /v1/dashboard/metrics.
//
// @Summary      Invoice aggregates
// @Tags         dashboard
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  report.Metrics
// @Failure      401  {object}  errorBody
// @Router       /v1/dashboard/metrics [get]
func (h *DashboardHandler) Metrics(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report.ComputeMetrics(store.Invoices()))
}

// WorkingCapital handles GET /v1/dashboard/working-capital.
//
// @Summary      Daily income and outstanding amounts
// @Tags         dashboard
// @Produce      json
// @Security     SessionCookie
// @Param        range  query     int  false  "7, 30 or 90 days"  default(7)
// @Success      200    {object}  report.WorkingCapitalSeries
// @Failure      400    {object}  errorBody
// @Failure      401    {object}  errorBody
// @Router       /v1/dashboard/working-capital [get]
func (h *DashboardHandler) WorkingCapital(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}

	days := defaultCapitalRange
	if raw := c.QueryParam("range"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			return domain.ErrInvalidRange
		}
	}

	series, err := report.WorkingCapital(store.Invoices(), days, h.now())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, series)
}

// DueDates handles GET /v1/dashboard/due-dates.
//
// @Summary      Upcoming and overdue payments
// @Tags         dashboard
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  report.DueDateTracker
// @Failure      401  {object}  errorBody
// @Router       /v1/dashboard/due-dates [get]
func (h *DashboardHandler) DueDates(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report.DueDates(store.Invoices(), h.now(), report.DueDateLimit))
}

// VATSummary handles GET /v1/dashboard/vat-summary.
//
// @Summary      VAT collected on paid invoices
// @Tags         dashboard
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  report.VATSummary
// @Failure      401  {object}  errorBody
// @Router       /v1/dashboard/vat-summary [get]
func (h *DashboardHandler) VATSummary(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report.ComputeVATSummary(store.Invoices(), h.now()))
}

// RecentInvoices handles GET /v1/dashboard/recent-invoices.
//
// @Summary      The newest invoices
// @Tags         dashboard
// @Produce      json
// @Security     SessionCookie
// @Success      200  {object}  invoiceListResponse
// @Failure      401  {object}  errorBody
// @Router       /v1/dashboard/recent-invoices [get]
func (h *DashboardHandler) RecentInvoices(c echo.Context) error {
	store, err := ctxStore(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(report.Recent(store.Invoices(), report.RecentLimit)))
}
