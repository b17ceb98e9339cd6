package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeEntry is one raw clock record for one employee on one day. Entries are
// immutable once imported. ClockIn/ClockOut are wall-clock times in
// "HH:MM" or "HH:MM:SS" form; Reported carries the device's own total for
// the day, either as a decimal ("7.5") or a duration string ("7:30:00").
// When Reported is present it is authoritative over the punches.
type TimeEntry struct {
	EmployeeID string    `json:"employeeId"`
	Date       time.Time `json:"date"`
	ClockIn    string    `json:"clockIn,omitempty"`
	ClockOut   string    `json:"clockOut,omitempty"`
	Reported   string    `json:"reportedDurationHours,omitempty"`
}

// PayRate is an employee's hourly rate, owned by the rate store.
type PayRate struct {
	EmployeeID string          `json:"employeeId"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// MaxHourlyRate bounds rates accepted into the rate store.
var MaxHourlyRate = decimal.NewFromInt(10000)
