package reports

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"payrollsync/internal/domain/payroll"
)

const maxDescriptionLen = 500

const truncationSuffix = " … (see attachment)"

// SummaryText is the one-line-per-employee digest embedded in the expense
// description, so the ledger entry is readable without opening the
// attachment.
func SummaryText(summary payroll.Summary) string {
	var b strings.Builder
	for _, total := range summary.Totals {
		fmt.Fprintf(&b, "%s: %sh @ %s = %s\n",
			total.EmployeeID, total.Hours.StringFixed(2), total.Rate.StringFixed(2), total.Amount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Grand total: %s", summary.GrandTotal.StringFixed(2))
	return b.String()
}

// ComposeDescription assembles the expense description within the ledger's
// 500-character limit. The base line and the operator's note always survive;
// the automated summary fills whatever space remains and is truncated with a
// pointer at the attachment when it does not fit.
func ComposeDescription(base, autoSummary, note string) string {
	description := base
	if note = strings.TrimSpace(note); note != "" {
		description += "\n" + note
	}
	if len(description) >= maxDescriptionLen {
		return cutAtRune(description, maxDescriptionLen)
	}

	if autoSummary = strings.TrimSpace(autoSummary); autoSummary == "" {
		return description
	}

	candidate := description + "\n" + autoSummary
	if len(candidate) <= maxDescriptionLen {
		return candidate
	}

	cutoff := maxDescriptionLen - len(truncationSuffix)
	if cutoff <= len(description) {
		return description
	}
	return strings.TrimRight(cutAtRune(candidate, cutoff), " \n") + truncationSuffix
}

// cutAtRune truncates s to at most limit bytes without splitting a rune.
func cutAtRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
