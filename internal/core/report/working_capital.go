package report

import (
	"time"

	"github.com/maglo/invoicing/internal/core/domain"
)

const labelLayout = "Jan 2"

// ValidRanges lists the trailing windows, in days, the chart supports.
var ValidRanges = []int{7, 30, 90}

// CapitalPoint is one day of the working-capital chart.
type CapitalPoint struct {
	Date        string  `json:"date"`
	Label       string  `json:"label"`
	Income      float64 `json:"income"`
	Outstanding float64 `json:"outstanding"`
}

// WorkingCapitalSeries is the chart plus its period totals.
type WorkingCapitalSeries struct {
	Days        int            `json:"days"`
	Points      []CapitalPoint `json:"points"`
	Income      float64        `json:"income"`
	Outstanding float64        `json:"outstanding"`
	Net         float64        `json:"net"`
}

// WorkingCapital sums, for each of the last days days ending today (UTC),
// the Total of Paid invoices issued that day as income and the Total of
// Unpaid or Pending invoices issued that day as outstanding. Points are
// ordered oldest first.
func WorkingCapital(invoices []domain.Invoice, days int, now time.Time) (WorkingCapitalSeries, error) {
	if !validRange(days) {
		return WorkingCapitalSeries{}, domain.ErrInvalidRange
	}

	today := midnight(now)
	start := today.AddDate(0, 0, -(days - 1))

	income := make(map[string][]float64, days)
	outstanding := make(map[string][]float64, days)
	for _, inv := range invoices {
		issued, err := domain.ParseDate(inv.IssuedDate)
		if err != nil || issued.Before(start) || issued.After(today) {
			continue
		}
		key := issued.Format(domain.DateLayout)
		switch {
		case inv.Status == domain.StatusPaid:
			income[key] = append(income[key], inv.Total)
		case inv.Status.IsOutstanding():
			outstanding[key] = append(outstanding[key], inv.Total)
		}
	}

	series := WorkingCapitalSeries{Days: days, Points: make([]CapitalPoint, 0, days)}
	var totalIn, totalOut []float64
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format(domain.DateLayout)
		p := CapitalPoint{
			Date:        key,
			Label:       d.Format(labelLayout),
			Income:      domain.SumFloat(income[key]...),
			Outstanding: domain.SumFloat(outstanding[key]...),
		}
		series.Points = append(series.Points, p)
		totalIn = append(totalIn, p.Income)
		totalOut = append(totalOut, p.Outstanding)
	}
	series.Income = domain.SumFloat(totalIn...)
	series.Outstanding = domain.SumFloat(totalOut...)
	series.Net = domain.SumFloat(series.Income, -series.Outstanding)
	return series, nil
}

func validRange(days int) bool {
	for _, r := range ValidRanges {
		if r == days {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
