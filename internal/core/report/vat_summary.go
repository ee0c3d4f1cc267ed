package report

import (
	"time"

	"github.com/maglo/invoicing/internal/core/domain"
)

// VATWindow is VAT and revenue collected over a period.
type VATWindow struct {
	VAT     float64 `json:"vat"`
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// RevenueBreakdown splits all-time paid revenue into its net and VAT parts.
type RevenueBreakdown struct {
	Gross float64 `json:"gross"`
	VAT   float64 `json:"vat"`
	Total float64 `json:"total"`
}

type VATSummary struct {
	Month     string           `json:"month"`
	Monthly   VATWindow        `json:"monthly"`
	AllTime   VATWindow        `json:"all_time"`
	Breakdown RevenueBreakdown `json:"breakdown"`
}

// ComputeVATSummary reports VAT and revenue of Paid invoices for the calendar
// month of now (by issue date) and for all time.
func ComputeVATSummary(invoices []domain.Invoice, now time.Time) VATSummary {
	year, month, _ := now.UTC().Date()

	var (
		monthVAT, monthRevenue   []float64
		allVAT, allRevenue, nets []float64
		monthCount, allCount     int
	)
	for _, inv := range invoices {
		if inv.Status != domain.StatusPaid {
			continue
		}
		allCount++
		allVAT = append(allVAT, inv.VATAmount)
		allRevenue = append(allRevenue, inv.Total)
		nets = append(nets, domain.SumFloat(inv.Amount, -inv.Discount))

		issued, err := domain.ParseDate(inv.IssuedDate)
		if err != nil {
			continue
		}
		if y, m, _ := issued.Date(); y == year && m == month {
			monthCount++
			monthVAT = append(monthVAT, inv.VATAmount)
			monthRevenue = append(monthRevenue, inv.Total)
		}
	}

	return VATSummary{
		Month: month.String(),
		Monthly: VATWindow{
			VAT:     domain.SumFloat(monthVAT...),
			Revenue: domain.SumFloat(monthRevenue...),
			Count:   monthCount,
		},
		AllTime: VATWindow{
			VAT:     domain.SumFloat(allVAT...),
			Revenue: domain.SumFloat(allRevenue...),
			Count:   allCount,
		},
		Breakdown: RevenueBreakdown{
			Gross: domain.SumFloat(nets...),
			VAT:   domain.SumFloat(allVAT...),
			Total: domain.SumFloat(allRevenue...),
		},
	}
}
