package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cadence selects how pay periods are cut from the entry dates.
const (
	CadenceWeekly      = "weekly"
	CadenceSemiMonthly = "semimonthly"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	Environment        string
	RunMigrations      bool
	MaxBodyBytes       int64
	Cadence            string
	LedgerAPIBase      string
	LedgerAccountsBase string
	LedgerCallTimeout  time.Duration
	Companies          map[string]LedgerCompany
}

// LedgerCompany holds one company's ledger credentials and account names.
// Account IDs are optional; when empty the client resolves them by name.
type LedgerCompany struct {
	OrgID              string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ExpenseAccountID   string
	ExpenseAccountName string
	PaidThroughID      string
	PaidThroughName    string
	VendorID           string
}

func (c LedgerCompany) Configured() bool {
	return c.OrgID != "" && c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		Environment:        getEnv("APP_ENV", "development"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		Cadence:            getEnv("PAY_CADENCE", CadenceWeekly),
		LedgerAPIBase:      getEnv("ZB_DOMAIN", "https://www.zohoapis.com"),
		LedgerAccountsBase: getEnv("ZB_ACCOUNTS_DOMAIN", "https://accounts.zoho.com"),
		LedgerCallTimeout:  getEnvDuration("LEDGER_CALL_TIMEOUT", 20*time.Second),
		Companies:          loadCompanies(),
	}
}

// loadCompanies reads LEDGER_COMPANIES as a comma-separated list of company
// keys and the ZB_<KEY>_* variable block for each.
func loadCompanies() map[string]LedgerCompany {
	companies := map[string]LedgerCompany{}
	for _, raw := range strings.Split(getEnv("LEDGER_COMPANIES", ""), ",") {
		key := CompanyKey(raw)
		if key == "" {
			continue
		}
		prefix := "ZB_" + key + "_"
		companies[key] = LedgerCompany{
			OrgID:              getEnv(prefix+"ORG_ID", ""),
			ClientID:           getEnv(prefix+"CLIENT_ID", ""),
			ClientSecret:       getEnv(prefix+"CLIENT_SECRET", ""),
			RefreshToken:       getEnv(prefix+"REFRESH_TOKEN", ""),
			ExpenseAccountID:   getEnv(prefix+"EXPENSE_ACCOUNT_ID", ""),
			ExpenseAccountName: getEnv(prefix+"EXPENSE_ACCOUNT_NAME", ""),
			PaidThroughID:      getEnv(prefix+"PAID_THROUGH_ID", ""),
			PaidThroughName:    getEnv(prefix+"PAID_THROUGH_NAME", ""),
			VendorID:           getEnv(prefix+"VENDOR_ID", ""),
		}
	}
	return companies
}

// CompanyKey normalizes a user-supplied company name to its configured key:
// upper-cased with separators stripped, so "haute-brands" and "Haute_Brands"
// both map to "HAUTEBRANDS".
func CompanyKey(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Cadence != CadenceWeekly && c.Cadence != CadenceSemiMonthly {
		return fmt.Errorf("PAY_CADENCE must be %q or %q", CadenceWeekly, CadenceSemiMonthly)
	}
	// An empty secret would verify any HS256 token signed with the empty
	// key, silently opening the admin routes, so it is required everywhere.
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.LedgerCallTimeout <= 0 {
		return fmt.Errorf("LEDGER_CALL_TIMEOUT must be positive")
	}
	for key, company := range c.Companies {
		if !company.Configured() {
			return fmt.Errorf("ledger credentials incomplete for company %s", key)
		}
		if company.ExpenseAccountID == "" && company.ExpenseAccountName == "" {
			return fmt.Errorf("company %s needs ZB_%s_EXPENSE_ACCOUNT_ID or _EXPENSE_ACCOUNT_NAME", key, key)
		}
	}
	return nil
}
