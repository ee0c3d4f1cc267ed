package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/maglo/invoicing/internal/core/domain"
)

// DueDateLimit is the number of entries the tracker shows.
const DueDateLimit = 5

// DueClass buckets an outstanding invoice by urgency.
type DueClass string

const (
	DueOverdue  DueClass = "Overdue"
	DueSoon     DueClass = "Due Soon"
	DueUpcoming DueClass = "Upcoming"
)

// DueEntry is one row of the due-date tracker.
type DueEntry struct {
	Invoice   domain.Invoice `json:"invoice"`
	DaysLeft  int            `json:"days_left"`
	Class     DueClass       `json:"class"`
	Countdown string         `json:"countdown"`
}

// DueDateTracker lists the most urgent outstanding invoices.
type DueDateTracker struct {
	Entries  []DueEntry `json:"entries"`
	Total    int        `json:"total"`
	Overflow int        `json:"overflow"`
}

// DaysLeft is the signed number of days from now to the due date, rounded up.
// The due date is taken as midnight UTC.
func DaysLeft(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

// Classify maps a day difference to its urgency class: below zero is
// overdue, zero to three inclusive is due soon.
func Classify(days int) DueClass {
	switch {
	case days < 0:
		return DueOverdue
	case days <= 3:
		return DueSoon
	default:
		return DueUpcoming
	}
}

// Countdown renders a day difference for display.
func Countdown(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("%d days remaining", days)
	}
}

// DueDates keeps Unpaid and Pending invoices, sorts them most urgent first
// and returns at most limit of them. Invoices with an unreadable due date
// are skipped.
func DueDates(invoices []domain.Invoice, now time.Time, limit int) DueDateTracker {
	entries := make([]DueEntry, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Status.IsOutstanding() {
			continue
		}
		due, err := domain.ParseDate(inv.DueDate)
		if err != nil {
			continue
		}
		days := DaysLeft(due, now)
		entries = append(entries, DueEntry{
			Invoice:   inv,
			DaysLeft:  days,
			Class:     Classify(days),
			Countdown: Countdown(days),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DaysLeft < entries[j].DaysLeft })

	tracker := DueDateTracker{Total: len(entries)}
	if limit > 0 && len(entries) > limit {
		tracker.Overflow = len(entries) - limit
		entries = entries[:limit]
	}
	tracker.Entries = entries
	return tracker
}
