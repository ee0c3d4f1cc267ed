// Package report derives dashboard views from an invoice list. Every function
// is pure: it reads the slice it is given and never mutates it.
package report

import (
	"strings"

	"github.com/maglo/invoicing/internal/core/domain"
)

// RecentLimit is the number of invoices shown on the dashboard.
const RecentLimit = 3

// Metrics are the headline figures of the dashboard.
type Metrics struct {
	TotalInvoices   float64 `json:"total_invoices"`
	TotalPaid       float64 `json:"total_paid"`
	PendingPayments float64 `json:"pending_payments"`
	TotalVAT        float64 `json:"total_vat"`
	Count           int     `json:"count"`
}

// ComputeMetrics folds invoices into Metrics. TotalPaid + PendingPayments
// always equals TotalInvoices.
func ComputeMetrics(invoices []domain.Invoice) Metrics {
	var all, paid, pending, vat []float64
	for _, inv := range invoices {
		all = append(all, inv.Total)
		switch {
		case inv.Status == domain.StatusPaid:
			paid = append(paid, inv.Total)
			vat = append(vat, inv.VATAmount)
		case inv.Status.IsOutstanding():
			pending = append(pending, inv.Total)
		}
	}
	return Metrics{
		TotalInvoices:   domain.SumFloat(all...),
		TotalPaid:       domain.SumFloat(paid...),
		PendingPayments: domain.SumFloat(pending...),
		TotalVAT:        domain.SumFloat(vat...),
		Count:           len(invoices),
	}
}

// Filter keeps invoices with the given status ("" or "All" keeps every
// status) whose client name or invoice number contains search, ignoring case.
func Filter(invoices []domain.Invoice, status, search string) []domain.Invoice {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if status != "" && !strings.EqualFold(status, "All") && string(inv.Status) != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(inv.ClientName), search) &&
			!strings.Contains(strings.ToLower(inv.InvoiceNumber), search) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// Recent returns the first n invoices of a newest-first list.
func Recent(invoices []domain.Invoice, n int) []domain.Invoice {
	if n < 0 {
		n = 0
	}
	if len(invoices) < n {
		n = len(invoices)
	}
	return append([]domain.Invoice(nil), invoices[:n]...)
}
