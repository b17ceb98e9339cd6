package timesheet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store persists imported timesheet batches and the pay-rate table. Both are
// read as immutable snapshots during a posting run.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

func (s *Store) ImportBatch(ctx context.Context, companyKey string, entries []TimeEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("batch has no entries")
	}

	batchID := uuid.NewString()
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO timesheet_batches (id, company_key)
    VALUES ($1, $2)
  `, batchID, companyKey); err != nil {
		return "", err
	}

	for _, entry := range entries {
		if _, err := tx.Exec(ctx, `
      INSERT INTO time_entries (batch_id, employee_id, work_date, clock_in, clock_out, reported_hours)
      VALUES ($1,$2,$3,$4,$5,$6)
    `, batchID, entry.EmployeeID, entry.Date, entry.ClockIn, entry.ClockOut, entry.Reported); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return batchID, nil
}

// BatchEntries returns the batch only for the company it was imported for.
// A batch id belonging to another company reads as absent, so a posting
// trigger can never push one company's hours into another company's ledger.
func (s *Store) BatchEntries(ctx context.Context, companyKey, batchID string) ([]TimeEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT e.employee_id, e.work_date, e.clock_in, e.clock_out, e.reported_hours
    FROM time_entries e
    JOIN timesheet_batches b ON b.id = e.batch_id
    WHERE e.batch_id = $1 AND b.company_key = $2
    ORDER BY e.employee_id, e.work_date, e.id
  `, batchID, companyKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		var entry TimeEntry
		if err := rows.Scan(&entry.EmployeeID, &entry.Date, &entry.ClockIn, &entry.ClockOut, &entry.Reported); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) Rates(ctx context.Context) (map[string]decimal.Decimal, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, hourly_rate::text
    FROM pay_rates
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := map[string]decimal.Decimal{}
	for rows.Next() {
		var employeeID, rateText string
		if err := rows.Scan(&employeeID, &rateText); err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(rateText)
		if err != nil {
			return nil, fmt.Errorf("bad stored rate for %s: %w", employeeID, err)
		}
		rates[employeeID] = rate
	}
	return rates, rows.Err()
}

func (s *Store) ListRates(ctx context.Context) ([]PayRate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, hourly_rate::text, updated_at
    FROM pay_rates
    ORDER BY employee_id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []PayRate
	for rows.Next() {
		var rate PayRate
		var rateText string
		if err := rows.Scan(&rate.EmployeeID, &rateText, &rate.UpdatedAt); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(rateText)
		if err != nil {
			return nil, fmt.Errorf("bad stored rate for %s: %w", rate.EmployeeID, err)
		}
		rate.HourlyRate = parsed
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (s *Store) UpsertRate(ctx context.Context, employeeID string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(MaxHourlyRate) {
		return fmt.Errorf("hourly rate %s out of range [0, %s]", rate, MaxHourlyRate)
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO pay_rates (employee_id, hourly_rate, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (employee_id)
    DO UPDATE SET hourly_rate = EXCLUDED.hourly_rate, updated_at = now()
  `, employeeID, rate.StringFixed(2))
	return err
}
