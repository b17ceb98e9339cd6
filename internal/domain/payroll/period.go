package payroll

import (
	"errors"
	"fmt"
	"time"

	"payrollsync/internal/platform/config"
)

// ErrAmbiguousPeriod marks an entry set whose dates span more than one pay
// period. The caller must split the upload; the resolver never picks one
// period and drops the rest of the data.
var ErrAmbiguousPeriod = errors.New("entries span more than one pay period")

type AmbiguousPeriodError struct {
	First  Period
	Second time.Time // first date falling outside First
}

func (e *AmbiguousPeriodError) Error() string {
	return fmt.Sprintf("entries span more than one pay period: %s is outside %s to %s",
		e.Second.Format("2006-01-02"), e.First.Start.Format("2006-01-02"), e.First.End.Format("2006-01-02"))
}

func (e *AmbiguousPeriodError) Unwrap() error { return ErrAmbiguousPeriod }

// Period is one contiguous pay period. Start and End are inclusive calendar
// days at UTC midnight.
type Period struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// PostingDate is the ledger date for the period's expense: the first calendar
// day after the period closes, independent of when the run happens.
func (p Period) PostingDate() time.Time {
	return p.End.AddDate(0, 0, 1)
}

func (p Period) Contains(date time.Time) bool {
	day := midnight(date)
	return !day.Before(p.Start) && !day.After(p.End)
}

// ResolvePeriod determines the single pay period covering every date in the
// set. Weekly periods run Saturday through Friday; semi-monthly periods are
// the 1st-15th and 16th-end-of-month. Any date outside the period anchored by
// the earliest date fails with ErrAmbiguousPeriod.
func ResolvePeriod(dates []time.Time, cadence string) (Period, error) {
	if len(dates) == 0 {
		return Period{}, fmt.Errorf("no entry dates to resolve a period from")
	}

	earliest := midnight(dates[0])
	for _, date := range dates[1:] {
		if day := midnight(date); day.Before(earliest) {
			earliest = day
		}
	}

	var period Period
	switch cadence {
	case config.CadenceWeekly:
		period = weeklyPeriod(earliest)
	case config.CadenceSemiMonthly:
		period = semiMonthlyPeriod(earliest)
	default:
		return Period{}, fmt.Errorf("unknown cadence %q", cadence)
	}

	for _, date := range dates {
		if !period.Contains(date) {
			return Period{}, &AmbiguousPeriodError{First: period, Second: midnight(date)}
		}
	}
	return period, nil
}

// weeklyPeriod anchors on the most recent Saturday at or before the date.
func weeklyPeriod(day time.Time) Period {
	daysSinceSaturday := (int(day.Weekday()) + 1) % 7
	start := day.AddDate(0, 0, -daysSinceSaturday)
	return Period{Start: start, End: start.AddDate(0, 0, 6)}
}

func semiMonthlyPeriod(day time.Time) Period {
	year, month, _ := day.Date()
	if day.Day() <= 15 {
		return Period{
			Start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(year, month, 15, 0, 0, 0, 0, time.UTC),
		}
	}
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return Period{
		Start: time.Date(year, month, 16, 0, 0, 0, 0, time.UTC),
		End:   firstOfNext.AddDate(0, 0, -1),
	}
}

func midnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
