package payroll

import "fmt"

// ReferenceNumber derives the idempotency key for a company's period expense.
// It is deterministic for a given company and period, which is what lets the
// ledger's exact-match reference search detect a prior posting across
// restarts and operators.
func ReferenceNumber(companyKey string, period Period) string {
	return fmt.Sprintf("%s-PAYROLL-%s_to_%s",
		companyKey,
		period.Start.Format("2006-01-02"),
		period.End.Format("2006-01-02"))
}
