package payroll

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payrollsync/internal/domain/timesheet"
)

func weekOf(t *testing.T, start string) Period {
	t.Helper()
	begin := date(start)
	return Period{Start: begin, End: begin.AddDate(0, 0, 6)}
}

func TestAggregateEndToEndScenario(t *testing.T) {
	// E1: Mon 9:00-17:00 (8h) and Tue 22:00-06:00 (8h overnight) at $20/h.
	period := weekOf(t, "2026-08-01")
	entries := []timesheet.TimeEntry{
		{EmployeeID: "E1", Date: date("2026-08-03"), ClockIn: "09:00:00", ClockOut: "17:00:00"},
		{EmployeeID: "E1", Date: date("2026-08-04"), ClockIn: "22:00:00", ClockOut: "06:00:00"},
	}
	rates := map[string]decimal.Decimal{"E1": decimal.NewFromInt(20)}

	summary, warnings := Aggregate(entries, rates, period)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if len(summary.Totals) != 1 {
		t.Fatalf("expected one employee total, got %d", len(summary.Totals))
	}
	total := summary.Totals[0]
	if !total.Hours.Equal(decimal.NewFromInt(16)) {
		t.Fatalf("expected 16 hours, got %s", total.Hours)
	}
	if !total.Amount.Equal(decimal.NewFromInt(320)) {
		t.Fatalf("expected $320.00, got %s", total.Amount)
	}
	if !summary.GrandTotal.Equal(decimal.NewFromInt(320)) {
		t.Fatalf("expected grand total $320.00, got %s", summary.GrandTotal)
	}
}

func TestAggregateExcludesEntriesOutsidePeriod(t *testing.T) {
	period := weekOf(t, "2026-08-01")
	entries := []timesheet.TimeEntry{
		{EmployeeID: "E1", Date: date("2026-08-03"), Reported: "8"},
		{EmployeeID: "E1", Date: date("2026-08-10"), Reported: "8"}, // next week
	}
	rates := map[string]decimal.Decimal{"E1": decimal.NewFromInt(10)}

	summary, warnings := Aggregate(entries, rates, period)
	if len(warnings) != 0 {
		t.Fatalf("out-of-period entries must be skipped silently, got %+v", warnings)
	}
	if !summary.Totals[0].Hours.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected only in-period 8 hours, got %s", summary.Totals[0].Hours)
	}
}

func TestAggregateIncompleteEntryBecomesWarning(t *testing.T) {
	period := weekOf(t, "2026-08-01")
	entries := []timesheet.TimeEntry{
		{EmployeeID: "E1", Date: date("2026-08-03"), Reported: "8"},
		{EmployeeID: "E1", Date: date("2026-08-04"), ClockIn: "09:00:00"}, // missing clock-out
	}
	rates := map[string]decimal.Decimal{"E1": decimal.NewFromInt(10)}

	summary, warnings := Aggregate(entries, rates, period)
	if len(warnings) != 1 || warnings[0].Code != WarnIncompleteEntry {
		t.Fatalf("expected one incomplete_entry warning, got %+v", warnings)
	}
	if !summary.Totals[0].Hours.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("incomplete row must be excluded, not zeroed; got %s hours", summary.Totals[0].Hours)
	}
}

func TestAggregateMissingRateWarnsAndPricesZero(t *testing.T) {
	period := weekOf(t, "2026-08-01")
	entries := []timesheet.TimeEntry{
		{EmployeeID: "E9", Date: date("2026-08-03"), Reported: "8"},
	}

	summary, warnings := Aggregate(entries, map[string]decimal.Decimal{}, period)
	if len(warnings) != 1 || warnings[0].Code != WarnMissingRate {
		t.Fatalf("expected one missing_rate warning, got %+v", warnings)
	}
	if !summary.Totals[0].Amount.IsZero() {
		t.Fatalf("expected zero amount without a rate, got %s", summary.Totals[0].Amount)
	}
}

func TestAggregateGrandTotalSumsRoundedAmounts(t *testing.T) {
	// Each employee's raw amount is 8.33 * 10.11 = 84.2163, rounding to 84.22.
	// Summing three rounded amounts gives 252.66; rounding the raw sum would
	// give 252.65. The grand total must be the former.
	period := weekOf(t, "2026-08-01")
	var entries []timesheet.TimeEntry
	rates := map[string]decimal.Decimal{}
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("E%d", i)
		entries = append(entries, timesheet.TimeEntry{EmployeeID: id, Date: date("2026-08-03"), Reported: "8.33"})
		rates[id] = decimal.RequireFromString("10.11")
	}

	summary, _ := Aggregate(entries, rates, period)
	if !summary.GrandTotal.Equal(decimal.RequireFromString("252.66")) {
		t.Fatalf("expected grand total 252.66 (sum of rounded amounts), got %s", summary.GrandTotal)
	}
}

func TestAggregateDeterministicOnRandomizedFixtures(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	period := weekOf(t, "2026-08-01")

	var entries []timesheet.TimeEntry
	rates := map[string]decimal.Decimal{}
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("E%d", rng.Intn(20))
		day := period.Start.Add(time.Duration(rng.Intn(7)) * 24 * time.Hour)
		entries = append(entries, timesheet.TimeEntry{
			EmployeeID: id,
			Date:       day,
			Reported:   fmt.Sprintf("%d.%02d", rng.Intn(12), rng.Intn(100)),
		})
		rates[id] = decimal.NewFromInt(int64(rng.Intn(100)))
	}

	first, firstWarnings := Aggregate(entries, rates, period)
	second, secondWarnings := Aggregate(entries, rates, period)

	if len(first.Totals) != len(second.Totals) || len(firstWarnings) != len(secondWarnings) {
		t.Fatal("aggregation must be deterministic")
	}
	for i := range first.Totals {
		a, b := first.Totals[i], second.Totals[i]
		if a.EmployeeID != b.EmployeeID || !a.Hours.Equal(b.Hours) || !a.Amount.Equal(b.Amount) {
			t.Fatalf("totals differ at %d: %+v vs %+v", i, a, b)
		}
	}
	if !first.GrandTotal.Equal(second.GrandTotal) {
		t.Fatalf("grand totals differ: %s vs %s", first.GrandTotal, second.GrandTotal)
	}
}
