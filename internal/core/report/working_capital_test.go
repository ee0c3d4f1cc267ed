package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maglo/invoicing/internal/core/domain"
)

func TestWorkingCapital_InvalidRange(t *testing.T) {
	_, err := WorkingCapital(nil, 14, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestWorkingCapital_SevenDays(t *testing.T) {
	now := time.Date(2025, 4, 20, 15, 30, 0, 0, time.UTC)
	invoices := []domain.Invoice{
		inv("1", domain.StatusPaid, 100.10, 0, "2025-04-20", ""),
		inv("2", domain.StatusPaid, 0.20, 0, "2025-04-20", ""),
		inv("3", domain.StatusPending, 50, 0, "2025-04-14", ""),
		inv("4", domain.StatusUnpaid, 25.5, 0, "2025-04-14", ""),
		inv("5", domain.StatusPaid, 999, 0, "2025-04-13", ""),
		inv("6", domain.StatusPaid, 999, 0, "2025-04-21", ""),
		inv("7", domain.StatusPaid, 999, 0, "not a date", ""),
	}

	series, err := WorkingCapital(invoices, 7, now)
	require.NoError(t, err)
	require.Len(t, series.Points, 7)

	first, last := series.Points[0], series.Points[6]
	assert.Equal(t, "2025-04-14", first.Date)
	assert.Equal(t, "Apr 14", first.Label)
	assert.Equal(t, 0.0, first.Income)
	assert.Equal(t, 75.5, first.Outstanding)

	assert.Equal(t, "Apr 20", last.Label)
	assert.Equal(t, 100.3, last.Income)
	assert.Equal(t, 0.0, last.Outstanding)

	assert.Equal(t, 100.3, series.Income)
	assert.Equal(t, 75.5, series.Outstanding)
	assert.Equal(t, 24.8, series.Net)
}

func TestWorkingCapital_NinetyDaysCrossesMonths(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	series, err := WorkingCapital(nil, 90, now)
	require.NoError(t, err)
	require.Len(t, series.Points, 90)
	assert.Equal(t, "2024-12-02", series.Points[0].Date)
	assert.Equal(t, "Mar 1", series.Points[89].Label)
}
