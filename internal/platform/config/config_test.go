package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Addr:               ":8080",
		DatabaseURL:        "postgres://localhost/payroll",
		JWTSecret:          "local-dev-secret",
		Environment:        "development",
		MaxBodyBytes:       1048576,
		Cadence:            CadenceWeekly,
		LedgerCallTimeout:  20 * time.Second,
		LedgerAPIBase:      "https://www.zohoapis.com",
		LedgerAccountsBase: "https://accounts.zoho.com",
		Companies: map[string]LedgerCompany{
			"HAUTE": {
				OrgID:              "org-1",
				ClientID:           "client",
				ClientSecret:       "secret",
				RefreshToken:       "refresh",
				ExpenseAccountName: "5300 Payroll Expenses",
			},
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejectsMissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseURL = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestValidateRejectsEmptyJWTSecretInAnyEnvironment(t *testing.T) {
	for _, env := range []string{"development", "staging", "production"} {
		cfg := validConfig()
		cfg.Environment = env
		cfg.JWTSecret = ""
		if err := cfg.Validate(); err == nil {
			t.Fatalf("expected error for empty JWT_SECRET in %s", env)
		}
	}
}

func TestValidateRejectsUnknownCadence(t *testing.T) {
	cfg := validConfig()
	cfg.Cadence = "fortnightly"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown cadence")
	}
}

func TestValidateRejectsIncompleteCompany(t *testing.T) {
	cfg := validConfig()
	company := cfg.Companies["HAUTE"]
	company.RefreshToken = ""
	cfg.Companies["HAUTE"] = company
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for incomplete company credentials")
	}
	if !strings.Contains(err.Error(), "HAUTE") {
		t.Fatalf("expected company key in error, got %v", err)
	}
}

func TestValidateRequiresExpenseAccount(t *testing.T) {
	cfg := validConfig()
	company := cfg.Companies["HAUTE"]
	company.ExpenseAccountName = ""
	company.ExpenseAccountID = ""
	cfg.Companies["HAUTE"] = company
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when no expense account is configured")
	}
}

func TestCompanyKeyNormalization(t *testing.T) {
	cases := map[string]string{
		"haute":         "HAUTE",
		" Haute ":       "HAUTE",
		"haute-brands":  "HAUTEBRANDS",
		"haute_brands":  "HAUTEBRANDS",
		"Boomin Brands": "BOOMINBRANDS",
		"":              "",
	}
	for raw, want := range cases {
		if got := CompanyKey(raw); got != want {
			t.Fatalf("CompanyKey(%q) = %q, want %q", raw, got, want)
		}
	}
}
