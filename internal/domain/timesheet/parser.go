package timesheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrIncompleteEntry marks a row that can produce no hours: it has no usable
// reported duration and is missing at least one punch. Such rows are excluded
// from totals rather than defaulted to zero, so missing data never silently
// understates pay.
var ErrIncompleteEntry = errors.New("incomplete time entry")

// IncompleteEntryError identifies the offending row for the warning list.
type IncompleteEntryError struct {
	EmployeeID string
	Date       string
}

func (e *IncompleteEntryError) Error() string {
	return fmt.Sprintf("incomplete time entry for employee %s on %s", e.EmployeeID, e.Date)
}

func (e *IncompleteEntryError) Unwrap() error { return ErrIncompleteEntry }

const minutesPerDay = 24 * 60

// ParseHours turns one entry into hours worked. The reported duration wins
// when present and non-negative; otherwise both punches are required and a
// clock-out earlier than clock-in is treated as a shift crossing midnight.
// The result is not rounded here; rounding happens once, at the aggregation
// boundary.
func ParseHours(entry TimeEntry) (decimal.Decimal, error) {
	if reported, ok := parseReported(entry.Reported); ok {
		return reported, nil
	}

	in, inOK := parseClock(entry.ClockIn)
	out, outOK := parseClock(entry.ClockOut)
	if !inOK || !outOK {
		return decimal.Zero, &IncompleteEntryError{
			EmployeeID: entry.EmployeeID,
			Date:       entry.Date.Format("2006-01-02"),
		}
	}

	delta := out - in
	if delta < 0 {
		delta += minutesPerDay * 60
	}
	return decimal.NewFromInt(delta).Div(decimal.NewFromInt(3600)), nil
}

// parseReported accepts either a plain decimal ("7.5") or a duration string
// ("7:30" / "7:30:00"). Negative or unparseable values are treated as absent.
func parseReported(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}

	if strings.Contains(raw, ":") {
		secs, ok := parseClock(raw)
		if !ok || secs < 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(secs).Div(decimal.NewFromInt(3600)), true
	}

	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return decimal.Zero, false
	}
	return value, true
}

// parseClock parses "HH:MM" or "HH:MM:SS" into seconds since midnight.
func parseClock(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}

	var total int64
	multipliers := []int64{3600, 60, 1}
	for i, part := range parts {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || value < 0 {
			return 0, false
		}
		total += value * multipliers[i]
	}
	return total, true
}
