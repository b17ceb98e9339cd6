package payroll

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"payrollsync/internal/domain/timesheet"
)

// EmployeeTotal is one employee's pay for the period. Hours and Amount are
// rounded to 2 decimals; Amount is round(raw hours x rate, 2).
type EmployeeTotal struct {
	EmployeeID string          `json:"employeeId"`
	Hours      decimal.Decimal `json:"totalHours"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

// Summary is the aggregation result for one period. GrandTotal is the sum of
// the per-employee rounded amounts, never a re-rounding of raw totals, so
// mixed rates cannot introduce drift.
type Summary struct {
	Period     Period          `json:"period"`
	Totals     []EmployeeTotal `json:"totals"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// Warning is a recoverable per-row or per-employee condition surfaced to the
// caller without aborting the run.
type Warning struct {
	Code       string `json:"code"`
	EmployeeID string `json:"employeeId,omitempty"`
	Message    string `json:"message"`
}

const (
	WarnIncompleteEntry = "incomplete_entry"
	WarnMissingRate     = "missing_rate"
	WarnAmountMismatch  = "amount_mismatch"
	WarnAttachment      = "attachment_failed"
)

// Aggregate groups entries by employee within the period and prices them.
// Entries outside the period are skipped (the resolver has already rejected
// truly ambiguous sets), incomplete rows become warnings, and a missing rate
// prices the employee at zero with a warning rather than inventing a rate.
// The same entries, rates and period always produce the same Summary.
func Aggregate(entries []timesheet.TimeEntry, rates map[string]decimal.Decimal, period Period) (Summary, []Warning) {
	rawHours := map[string]decimal.Decimal{}
	var warnings []Warning

	for _, entry := range entries {
		if !period.Contains(entry.Date) {
			continue
		}
		hours, err := timesheet.ParseHours(entry)
		if err != nil {
			if errors.Is(err, timesheet.ErrIncompleteEntry) {
				warnings = append(warnings, Warning{
					Code:       WarnIncompleteEntry,
					EmployeeID: entry.EmployeeID,
					Message:    err.Error(),
				})
				continue
			}
			warnings = append(warnings, Warning{
				Code:       WarnIncompleteEntry,
				EmployeeID: entry.EmployeeID,
				Message:    fmt.Sprintf("entry excluded: %v", err),
			})
			continue
		}
		rawHours[entry.EmployeeID] = rawHours[entry.EmployeeID].Add(hours)
	}

	employeeIDs := make([]string, 0, len(rawHours))
	for id := range rawHours {
		employeeIDs = append(employeeIDs, id)
	}
	sort.Strings(employeeIDs)

	summary := Summary{Period: period}
	for _, id := range employeeIDs {
		rate, ok := rates[id]
		if !ok {
			rate = decimal.Zero
			slog.Warn("no pay rate configured, pricing at zero", "employeeId", id)
			warnings = append(warnings, Warning{
				Code:       WarnMissingRate,
				EmployeeID: id,
				Message:    fmt.Sprintf("no pay rate configured for employee %s; amount computed at 0", id),
			})
		}
		hours := rawHours[id]
		total := EmployeeTotal{
			EmployeeID: id,
			Hours:      hours.Round(2),
			Rate:       rate,
			Amount:     hours.Mul(rate).Round(2),
		}
		summary.Totals = append(summary.Totals, total)
		summary.GrandTotal = summary.GrandTotal.Add(total.Amount)
	}
	return summary, warnings
}
