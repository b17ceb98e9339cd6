package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"payrollsync/internal/platform/config"
)

// Account kinds the ledger can resolve by name.
const (
	AccountKindExpense = "expense"
	AccountKindBank    = "bank"
)

// tokenMargin is the remaining lifetime below which a cached access token is
// refreshed instead of reused.
const tokenMargin = 60 * time.Second

type Options struct {
	APIBase      string
	AccountsBase string
	Companies    map[string]config.LedgerCompany
	HTTPClient   *http.Client
	Retry        RetryPolicy
	CallTimeout  time.Duration
	Sleep        func(time.Duration)
	Now          func() time.Time
}

// Client talks to the accounting ledger for every configured company. Token
// and account-id caches live for the process; concurrent cache misses for the
// same key collapse into a single upstream call.
type Client struct {
	apiBase      string
	accountsBase string
	companies    map[string]config.LedgerCompany
	httpc        *http.Client
	retry        RetryPolicy
	callTimeout  time.Duration
	sleep        func(time.Duration)
	now          func() time.Time

	mu       sync.Mutex
	tokens   map[string]cachedToken
	accounts map[string]string

	refreshGroup singleflight.Group
	lookupGroup  singleflight.Group
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

func NewClient(opts Options) *Client {
	client := &Client{
		apiBase:      strings.TrimRight(opts.APIBase, "/"),
		accountsBase: strings.TrimRight(opts.AccountsBase, "/"),
		companies:    opts.Companies,
		httpc:        opts.HTTPClient,
		retry:        opts.Retry,
		callTimeout:  opts.CallTimeout,
		sleep:        opts.Sleep,
		now:          opts.Now,
		tokens:       map[string]cachedToken{},
		accounts:     map[string]string{},
	}
	if client.httpc == nil {
		client.httpc = &http.Client{}
	}
	if client.retry.MaxAttempts == 0 {
		client.retry = DefaultRetryPolicy()
	}
	if client.callTimeout == 0 {
		client.callTimeout = 20 * time.Second
	}
	if client.sleep == nil {
		client.sleep = time.Sleep
	}
	if client.now == nil {
		client.now = time.Now
	}
	return client
}

func (c *Client) company(companyKey string) (config.LedgerCompany, error) {
	company, ok := c.companies[companyKey]
	if !ok || !company.Configured() {
		return config.LedgerCompany{}, fmt.Errorf("%w: %s", ErrUnknownCompany, companyKey)
	}
	return company, nil
}

// Token returns a valid access token for the company, refreshing it when the
// cache is empty or within the expiry margin. Concurrent callers share one
// in-flight refresh per company.
func (c *Client) Token(ctx context.Context, companyKey string) (string, error) {
	company, err := c.company(companyKey)
	if err != nil {
		return "", err
	}

	if token, ok := c.freshToken(companyKey); ok {
		return token, nil
	}

	value, err, _ := c.refreshGroup.Do(companyKey, func() (any, error) {
		if token, ok := c.freshToken(companyKey); ok {
			return token, nil
		}
		return c.refreshToken(ctx, companyKey, company)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) freshToken(companyKey string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.tokens[companyKey]
	if !ok || cached.expiresAt.Sub(c.now()) <= tokenMargin {
		return "", false
	}
	return cached.accessToken, true
}

func (c *Client) refreshToken(ctx context.Context, companyKey string, company config.LedgerCompany) (string, error) {
	params := url.Values{}
	params.Set("refresh_token", company.RefreshToken)
	params.Set("client_id", company.ClientID)
	params.Set("client_secret", company.ClientSecret)
	params.Set("grant_type", "refresh_token")

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.accountsBase+"/oauth/v2/token?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ledger token refresh for %s: %w", companyKey, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{CompanyKey: companyKey, Status: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode token response for %s: %w", companyKey, err)
	}
	if payload.AccessToken == "" {
		return "", &AuthError{CompanyKey: companyKey, Status: resp.StatusCode, Detail: "no access_token in refresh response"}
	}
	if payload.ExpiresIn == 0 {
		payload.ExpiresIn = 3600
	}

	c.mu.Lock()
	c.tokens[companyKey] = cachedToken{
		accessToken: payload.AccessToken,
		expiresAt:   c.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
	c.mu.Unlock()
	return payload.AccessToken, nil
}

// ResolveAccountID looks up a chart-of-accounts or bank account id by its
// human-readable name. Names are configuration and rarely change, so matches
// are cached for the process lifetime.
func (c *Client) ResolveAccountID(ctx context.Context, companyKey, name, kind string) (string, error) {
	company, err := c.company(companyKey)
	if err != nil {
		return "", err
	}

	cacheKey := companyKey + "|" + kind + "|" + strings.ToLower(name)
	c.mu.Lock()
	if id, ok := c.accounts[cacheKey]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	value, err, _ := c.lookupGroup.Do(cacheKey, func() (any, error) {
		c.mu.Lock()
		if id, ok := c.accounts[cacheKey]; ok {
			c.mu.Unlock()
			return id, nil
		}
		c.mu.Unlock()

		id, err := c.lookupAccountID(ctx, companyKey, company, name, kind)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.accounts[cacheKey] = id
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) lookupAccountID(ctx context.Context, companyKey string, company config.LedgerCompany, name, kind string) (string, error) {
	var path, listKey string
	params := url.Values{}
	params.Set("organization_id", company.OrgID)
	params.Set("search_text", name)

	switch kind {
	case AccountKindExpense:
		path = "/books/v3/chartofaccounts"
		listKey = "chartofaccounts"
		params.Set("filter_by", "AccountType.All")
	case AccountKindBank:
		path = "/books/v3/bankaccounts"
		listKey = "bankaccounts"
	default:
		return "", fmt.Errorf("unknown account kind %q", kind)
	}

	body, err := c.get(ctx, companyKey, path, params)
	if err != nil {
		return "", err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode %s response: %w", listKey, err)
	}

	var accounts []struct {
		AccountID   string `json:"account_id"`
		AccountName string `json:"account_name"`
	}
	if raw, ok := payload[listKey]; ok {
		if err := json.Unmarshal(raw, &accounts); err != nil {
			return "", fmt.Errorf("decode %s list: %w", listKey, err)
		}
	}

	for _, account := range accounts {
		if strings.EqualFold(strings.TrimSpace(account.AccountName), strings.TrimSpace(name)) && account.AccountID != "" {
			return account.AccountID, nil
		}
	}
	return "", &AccountNotFoundError{CompanyKey: companyKey, Name: name, Kind: kind}
}

// get issues one authenticated GET with the per-call timeout applied.
func (c *Client) get(ctx context.Context, companyKey, path string, params url.Values) ([]byte, error) {
	token, err := c.Token(ctx, companyKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

func apiError(status int, body []byte) *APIError {
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	if payload.Message == "" {
		payload.Message = strings.TrimSpace(string(body))
	}
	return &APIError{Status: status, Code: payload.Code, Message: payload.Message}
}
