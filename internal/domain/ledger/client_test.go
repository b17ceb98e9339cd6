package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payrollsync/internal/platform/config"
)

func testCompany() config.LedgerCompany {
	return config.LedgerCompany{
		OrgID:              "org-1",
		ClientID:           "client-1",
		ClientSecret:       "secret-1",
		RefreshToken:       "refresh-1",
		ExpenseAccountName: "5300 Payroll Expenses",
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *time.Time) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	now := time.Date(2026, 8, 8, 12, 0, 0, 0, time.UTC)
	client := NewClient(Options{
		APIBase:      server.URL,
		AccountsBase: server.URL,
		Companies:    map[string]config.LedgerCompany{"HAUTE": testCompany()},
		Retry:        RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2},
		CallTimeout:  5 * time.Second,
		Sleep:        func(time.Duration) {},
		Now:          func() time.Time { return now },
	})
	return client, server, &now
}

func tokenHandler(refreshes *int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(refreshes, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}
}

func TestTokenCachedUntilExpiryMargin(t *testing.T) {
	var refreshes int64
	mux := http.NewServeMux()
	mux.Handle("/oauth/v2/token", tokenHandler(&refreshes))
	client, _, now := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		token, err := client.Token(context.Background(), "HAUTE")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "tok-1" {
			t.Fatalf("unexpected token %q", token)
		}
	}
	if refreshes != 1 {
		t.Fatalf("expected one refresh for repeated calls, got %d", refreshes)
	}

	// Within 60s of expiry the cached token must not be reused.
	*now = now.Add(3600*time.Second - 30*time.Second)
	if _, err := client.Token(context.Background(), "HAUTE"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshes != 2 {
		t.Fatalf("expected a refresh inside the expiry margin, got %d refreshes", refreshes)
	}
}

func TestTokenConcurrentCallersShareOneRefresh(t *testing.T) {
	var refreshes int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshes, 1)
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	})
	client, _, _ := newTestClient(t, mux)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := client.Token(context.Background(), "HAUTE"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if refreshes != 1 {
		t.Fatalf("expected concurrent callers to share one refresh, got %d", refreshes)
	}
}

func TestTokenRefreshRejectionIsFatalAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})
	client, _, _ := newTestClient(t, mux)

	_, err := client.Token(context.Background(), "HAUTE")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.CompanyKey != "HAUTE" || authErr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected AuthError: %+v", authErr)
	}
	if IsTransient(err) {
		t.Fatal("auth failures must never be classified transient")
	}
}

func TestTokenUnknownCompany(t *testing.T) {
	client, _, _ := newTestClient(t, http.NewServeMux())
	_, err := client.Token(context.Background(), "NOPE")
	if !errors.Is(err, ErrUnknownCompany) {
		t.Fatalf("expected ErrUnknownCompany, got %v", err)
	}
}

func TestResolveAccountIDCachedForProcessLifetime(t *testing.T) {
	var lookups int64
	var refreshes int64
	mux := http.NewServeMux()
	mux.Handle("/oauth/v2/token", tokenHandler(&refreshes))
	mux.HandleFunc("/books/v3/chartofaccounts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&lookups, 1)
		if got := r.URL.Query().Get("search_text"); got != "5300 Payroll Expenses" {
			t.Errorf("unexpected search_text %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chartofaccounts": []map[string]string{
				{"account_id": "acc-99", "account_name": "5300 Payroll Expenses Legacy"},
				{"account_id": "acc-1", "account_name": "5300 payroll expenses"},
			},
		})
	})
	client, _, _ := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		id, err := client.ResolveAccountID(context.Background(), "HAUTE", "5300 Payroll Expenses", AccountKindExpense)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != "acc-1" {
			t.Fatalf("expected exact case-insensitive match acc-1, got %s", id)
		}
	}
	if lookups != 1 {
		t.Fatalf("expected one lookup for the process lifetime, got %d", lookups)
	}
}

func TestResolveAccountIDNotFoundIsFatal(t *testing.T) {
	var refreshes int64
	mux := http.NewServeMux()
	mux.Handle("/oauth/v2/token", tokenHandler(&refreshes))
	mux.HandleFunc("/books/v3/bankaccounts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"bankaccounts": []map[string]string{}})
	})
	client, _, _ := newTestClient(t, mux)

	_, err := client.ResolveAccountID(context.Background(), "HAUTE", "Operating Checking", AccountKindBank)
	var notFound *AccountNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected AccountNotFoundError, got %v", err)
	}
	if notFound.Name != "Operating Checking" || notFound.Kind != AccountKindBank {
		t.Fatalf("unexpected AccountNotFoundError: %+v", notFound)
	}
	if IsTransient(err) {
		t.Fatal("a missing account is configuration, not a transient failure")
	}
}
