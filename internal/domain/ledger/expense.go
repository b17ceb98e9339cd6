package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// maxDescriptionLen is the ledger's hard limit on the expense description.
const maxDescriptionLen = 500

const descriptionSuffix = " … (see attachment)"

// ExpenseRequest describes one expense to create. ReferenceNumber is the
// idempotency key; the ledger's exact-match search on it is what suppresses
// duplicate postings.
type ExpenseRequest struct {
	CompanyKey           string
	ReferenceNumber      string
	Amount               decimal.Decimal
	PostingDate          time.Time
	ExpenseAccountID     string
	PaidThroughAccountID string
	VendorID             string
	Description          string
}

// ExpenseRecord is the ledger's view of a created expense.
type ExpenseRecord struct {
	ID              string          `json:"id"`
	ReferenceNumber string          `json:"referenceNumber"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
}

// FindByReference searches the ledger for a prior expense carrying exactly
// this reference number. It returns nil when none exists. This search is the
// single source of truth for "has this period already been posted" and runs
// before every creation regardless of any local cache.
func (c *Client) FindByReference(ctx context.Context, companyKey, referenceNumber string) (*ExpenseRecord, error) {
	company, err := c.company(companyKey)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("organization_id", company.OrgID)
	params.Set("reference_number", referenceNumber)

	body, err := c.get(ctx, companyKey, "/books/v3/expenses", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Expenses []struct {
			ExpenseID       string  `json:"expense_id"`
			ReferenceNumber string  `json:"reference_number"`
			Total           float64 `json:"total"`
			Status          string  `json:"status"`
		} `json:"expenses"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode expense search response: %w", err)
	}

	for _, expense := range payload.Expenses {
		if expense.ReferenceNumber == referenceNumber {
			return &ExpenseRecord{
				ID:              expense.ExpenseID,
				ReferenceNumber: expense.ReferenceNumber,
				Amount:          decimal.NewFromFloat(expense.Total).Round(2),
				Status:          expense.Status,
			}, nil
		}
	}
	return nil, nil
}

// CreateExpense issues the creation call, retrying transient failures under
// the client's policy. It returns the attempts consumed alongside the result;
// non-transient rejections surface immediately.
func (c *Client) CreateExpense(ctx context.Context, request ExpenseRequest) (ExpenseRecord, int, error) {
	company, err := c.company(request.CompanyKey)
	if err != nil {
		return ExpenseRecord{}, 0, err
	}

	payload := map[string]any{
		"account_id":       request.ExpenseAccountID,
		"date":             request.PostingDate.Format("2006-01-02"),
		"amount":           request.Amount.InexactFloat64(),
		"is_inclusive_tax": false,
		"reference_number": request.ReferenceNumber,
		"description":      ClipDescription(request.Description),
	}
	if request.PaidThroughAccountID != "" {
		payload["paid_through_account_id"] = request.PaidThroughAccountID
	}
	if request.VendorID != "" {
		payload["vendor_id"] = request.VendorID
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return ExpenseRecord{}, 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if delay := c.retry.DelayBefore(attempt); delay > 0 {
			c.sleep(delay)
		}

		record, err := c.createOnce(ctx, request.CompanyKey, company.OrgID, encoded)
		if err == nil {
			record.ReferenceNumber = request.ReferenceNumber
			return record, attempt, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return ExpenseRecord{}, attempt, err
		}
		slog.Warn("expense creation attempt failed",
			"company", request.CompanyKey,
			"reference", request.ReferenceNumber,
			"attempt", attempt,
			"err", err)
	}
	return ExpenseRecord{}, c.retry.MaxAttempts, &RetryExhaustedError{Attempts: c.retry.MaxAttempts, Last: lastErr}
}

func (c *Client) createOnce(ctx context.Context, companyKey, orgID string, payload []byte) (ExpenseRecord, error) {
	token, err := c.Token(ctx, companyKey)
	if err != nil {
		return ExpenseRecord{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("organization_id", orgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/books/v3/expenses?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return ExpenseRecord{}, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ExpenseRecord{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ExpenseRecord{}, apiError(resp.StatusCode, body)
	}

	var response struct {
		Expense struct {
			ExpenseID string  `json:"expense_id"`
			Total     float64 `json:"total"`
			Status    string  `json:"status"`
		} `json:"expense"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return ExpenseRecord{}, fmt.Errorf("decode expense creation response: %w", err)
	}
	if response.Expense.ExpenseID == "" {
		return ExpenseRecord{}, fmt.Errorf("expense created but no expense_id returned")
	}
	return ExpenseRecord{
		ID:     response.Expense.ExpenseID,
		Amount: decimal.NewFromFloat(response.Expense.Total).Round(2),
		Status: response.Expense.Status,
	}, nil
}

// AttachReport uploads the report bytes as the expense's receipt. A failure
// here never rolls back the created expense; callers report it as a partial
// success so the operator can re-attach manually.
func (c *Client) AttachReport(ctx context.Context, companyKey, expenseID, filename string, payload []byte) error {
	company, err := c.company(companyKey)
	if err != nil {
		return err
	}
	token, err := c.Token(ctx, companyKey)
	if err != nil {
		return err
	}

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="receipt"; filename="%s"`, filename))
	header.Set("Content-Type", mimeForFilename(filename))
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := part.Write(payload); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("organization_id", company.OrgID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/books/v3/expenses/"+expenseID+"/receipt?"+params.Encode(), &buffer)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError(resp.StatusCode, body)
	}
	return nil
}

func mimeForFilename(filename string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(filename), ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(strings.ToLower(filename), ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ClipDescription enforces the ledger's description limit, trading the tail
// of an over-long description for a pointer at the attachment. The cut backs
// up to a rune boundary so employee ids and notes with multi-byte characters
// never turn into invalid UTF-8 on the wire.
func ClipDescription(description string) string {
	if len(description) <= maxDescriptionLen {
		return description
	}
	cutoff := maxDescriptionLen - len(descriptionSuffix)
	for cutoff > 0 && !utf8.RuneStart(description[cutoff]) {
		cutoff--
	}
	return strings.TrimRight(description[:cutoff], " \n") + descriptionSuffix
}
