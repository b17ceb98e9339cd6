package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"payrollsync/internal/domain/ledger"
	"payrollsync/internal/domain/payroll"
	"payrollsync/internal/domain/reports"
	"payrollsync/internal/domain/timesheet"
	"payrollsync/internal/platform/config"
)

// ErrBatchNotFound means the trigger referenced a batch with no entries.
var ErrBatchNotFound = errors.New("timesheet batch not found or empty")

// TimesheetStore supplies the read-only snapshot a run works from. Batches
// are scoped to the company they were imported for.
type TimesheetStore interface {
	BatchEntries(ctx context.Context, companyKey, batchID string) ([]timesheet.TimeEntry, error)
	Rates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// LedgerClient is the slice of the ledger client a posting run needs.
type LedgerClient interface {
	ReferenceSearcher
	ResolveAccountID(ctx context.Context, companyKey, name, kind string) (string, error)
	CreateExpense(ctx context.Context, request ledger.ExpenseRequest) (ledger.ExpenseRecord, int, error)
	AttachReport(ctx context.Context, companyKey, expenseID, filename string, payload []byte) error
}

// RunResult is everything the caller learns from one posting attempt.
// Duplicate means the period was already posted and the existing record was
// returned; AttachmentFailed means the expense exists but the evidence upload
// must be retried manually.
type RunResult struct {
	CompanyKey       string                  `json:"companyKey"`
	BatchID          string                  `json:"batchId"`
	Period           payroll.Period          `json:"period"`
	PostingDate      time.Time               `json:"postingDate"`
	ReferenceNumber  string                  `json:"referenceNumber"`
	Amount           decimal.Decimal         `json:"amount"`
	ExpenseID        string                  `json:"expenseId"`
	Duplicate        bool                    `json:"duplicate"`
	AttachmentFailed bool                    `json:"attachmentFailed"`
	Attempts         int                     `json:"attempts"`
	Totals           []payroll.EmployeeTotal `json:"totals"`
	Warnings         []payroll.Warning       `json:"warnings"`
}

// Service runs the whole pipeline for one administrative trigger: parse and
// aggregate the batch, resolve the period, render the register, and post at
// most one expense through the duplicate guard.
type Service struct {
	Store     TimesheetStore
	Ledger    LedgerClient
	Guard     DuplicateGuard
	Companies map[string]config.LedgerCompany
	Cadence   string
	Render    func(payroll.Summary) ([]byte, error)
}

func NewService(store TimesheetStore, client LedgerClient, companies map[string]config.LedgerCompany, cadence string) *Service {
	return &Service{
		Store:     store,
		Ledger:    client,
		Guard:     NewDuplicateGuard(client),
		Companies: companies,
		Cadence:   cadence,
		Render:    reports.Register,
	}
}

func (s *Service) Run(ctx context.Context, companyRaw, batchID, note string) (RunResult, error) {
	companyKey := config.CompanyKey(companyRaw)
	company, ok := s.Companies[companyKey]
	if !ok {
		return RunResult{}, fmt.Errorf("%w: %s", ledger.ErrUnknownCompany, companyRaw)
	}

	entries, err := s.Store.BatchEntries(ctx, companyKey, batchID)
	if err != nil {
		return RunResult{}, err
	}
	if len(entries) == 0 {
		return RunResult{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	rates, err := s.Store.Rates(ctx)
	if err != nil {
		return RunResult{}, err
	}

	dates := make([]time.Time, len(entries))
	for i, entry := range entries {
		dates[i] = entry.Date
	}
	period, err := payroll.ResolvePeriod(dates, s.Cadence)
	if err != nil {
		return RunResult{}, err
	}

	summary, warnings := payroll.Aggregate(entries, rates, period)
	referenceNumber := payroll.ReferenceNumber(companyKey, period)

	result := RunResult{
		CompanyKey:      companyKey,
		BatchID:         batchID,
		Period:          period,
		PostingDate:     period.PostingDate(),
		ReferenceNumber: referenceNumber,
		Amount:          summary.GrandTotal,
		Totals:          summary.Totals,
		Warnings:        warnings,
	}

	existing, fromCache, err := s.Guard.Check(ctx, companyKey, referenceNumber)
	if err != nil {
		return RunResult{}, err
	}
	if existing != nil {
		result.Duplicate = true
		result.ExpenseID = existing.ID
		// A remote hit carries the ledger's amount; if it disagrees with what
		// we just computed, surface the mismatch instead of trusting either.
		if !fromCache && !existing.Amount.Equal(summary.GrandTotal) {
			result.Warnings = append(result.Warnings, payroll.Warning{
				Code: payroll.WarnAmountMismatch,
				Message: fmt.Sprintf("existing expense %s has amount %s, computed amount is %s",
					existing.ID, existing.Amount.StringFixed(2), summary.GrandTotal.StringFixed(2)),
			})
		}
		slog.Info("period already posted, returning existing expense",
			"company", companyKey, "reference", referenceNumber, "expenseId", existing.ID)
		return result, nil
	}

	expenseAccountID, paidThroughID, err := s.resolveAccounts(ctx, companyKey, company)
	if err != nil {
		return RunResult{}, err
	}

	description := reports.ComposeDescription(
		fmt.Sprintf("Payroll expense for %s to %s",
			period.Start.Format("2006-01-02"), period.End.Format("2006-01-02")),
		reports.SummaryText(summary),
		note,
	)

	// The create and attach calls run on a context detached from the request:
	// an abandoned caller must not sever an in-flight write, or the ledger
	// could hold an expense this process never saw. The remote search above
	// is what makes that safe to retry.
	detached := context.WithoutCancel(ctx)

	record, attempts, err := s.Ledger.CreateExpense(detached, ledger.ExpenseRequest{
		CompanyKey:           companyKey,
		ReferenceNumber:      referenceNumber,
		Amount:               summary.GrandTotal,
		PostingDate:          period.PostingDate(),
		ExpenseAccountID:     expenseAccountID,
		PaidThroughAccountID: paidThroughID,
		VendorID:             company.VendorID,
		Description:          description,
	})
	result.Attempts = attempts
	if err != nil {
		return RunResult{}, err
	}
	result.ExpenseID = record.ID
	s.Guard.MarkPosted(referenceNumber, record.ID)

	if payload, renderErr := s.Render(summary); renderErr != nil {
		result.AttachmentFailed = true
		result.Warnings = append(result.Warnings, payroll.Warning{
			Code:    payroll.WarnAttachment,
			Message: fmt.Sprintf("report rendering failed: %v", renderErr),
		})
	} else if attachErr := s.Ledger.AttachReport(detached, companyKey, record.ID, referenceNumber+".pdf", payload); attachErr != nil {
		result.AttachmentFailed = true
		result.Warnings = append(result.Warnings, payroll.Warning{
			Code:    payroll.WarnAttachment,
			Message: fmt.Sprintf("expense created but report attachment failed: %v", attachErr),
		})
		slog.Warn("report attachment failed", "company", companyKey, "expenseId", record.ID, "err", attachErr)
	}

	return result, nil
}

// resolveAccounts turns configured account names into ledger ids, preferring
// explicitly configured ids. The paid-through account is optional.
func (s *Service) resolveAccounts(ctx context.Context, companyKey string, company config.LedgerCompany) (string, string, error) {
	expenseAccountID := company.ExpenseAccountID
	if expenseAccountID == "" {
		id, err := s.Ledger.ResolveAccountID(ctx, companyKey, company.ExpenseAccountName, ledger.AccountKindExpense)
		if err != nil {
			return "", "", err
		}
		expenseAccountID = id
	}

	paidThroughID := company.PaidThroughID
	if paidThroughID == "" && company.PaidThroughName != "" {
		id, err := s.Ledger.ResolveAccountID(ctx, companyKey, company.PaidThroughName, ledger.AccountKindBank)
		if err != nil {
			return "", "", err
		}
		paidThroughID = id
	}
	return expenseAccountID, paidThroughID, nil
}
