package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shelfmark/circulation/internal/model"
)

func validBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Env:          "development",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      "8000",
			Namespace: "shelfmark",
			Database:  "main",
			User:      "root",
			Password:  "root",
		},
		Policy: PolicyConfig{
			LoanPeriodDays:    model.DefaultLoanPeriodDays,
			DailyLateFeeCents: model.DefaultDailyLateFeeCents,
			PickupWindowDays:  model.DefaultPickupWindowDays,
			DefaultLoanLimit:  model.DefaultLoanLimit,
		},
		Jobs: JobsConfig{
			SweepInterval:      5 * time.Minute,
			ReminderInterval:   24 * time.Hour,
			ReminderWindowDays: 3,
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	cfg := validBaseConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestConfig_Validate_InvalidServerEnv(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Env = "invalid"

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for invalid SERVER_ENV")
	}
	if !strings.Contains(err.Error(), "SERVER_ENV") {
		t.Errorf("expected error to mention SERVER_ENV, got: %v", err)
	}
}

func TestConfig_Validate_MissingPort(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Port = ""

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for missing SERVER_PORT")
	}
	if !strings.Contains(err.Error(), "SERVER_PORT") {
		t.Errorf("expected error to mention SERVER_PORT, got: %v", err)
	}
}

func TestConfig_Validate_MissingDatabaseHost(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Database.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for missing DB_HOST")
	}
	if !strings.Contains(err.Error(), "DB_HOST") {
		t.Errorf("expected error to mention DB_HOST, got: %v", err)
	}
}

func TestConfig_Validate_NonPositiveLoanPeriod(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy.LoanPeriodDays = 0

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for zero POLICY_LOAN_PERIOD_DAYS")
	}
	if !strings.Contains(err.Error(), "POLICY_LOAN_PERIOD_DAYS") {
		t.Errorf("expected error to mention POLICY_LOAN_PERIOD_DAYS, got: %v", err)
	}
}

func TestConfig_Validate_NegativeLateFee(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy.DailyLateFeeCents = -1

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for negative POLICY_DAILY_LATE_FEE_CENTS")
	}
	if !strings.Contains(err.Error(), "POLICY_DAILY_LATE_FEE_CENTS") {
		t.Errorf("expected error to mention POLICY_DAILY_LATE_FEE_CENTS, got: %v", err)
	}
}

func TestConfig_Validate_ZeroLateFeeAllowed(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy.DailyLateFeeCents = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected free-of-charge policy to be valid, got: %v", err)
	}
}

func TestConfig_Validate_NonPositivePickupWindow(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Policy.PickupWindowDays = 0

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for zero POLICY_PICKUP_WINDOW_DAYS")
	}
	if !strings.Contains(err.Error(), "POLICY_PICKUP_WINDOW_DAYS") {
		t.Errorf("expected error to mention POLICY_PICKUP_WINDOW_DAYS, got: %v", err)
	}
}

func TestConfig_Validate_NonPositiveSweepInterval(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Jobs.SweepInterval = 0

	err := cfg.Validate()
	if err == nil {
		t.Error("expected error for zero JOBS_SWEEP_INTERVAL")
	}
	if !strings.Contains(err.Error(), "JOBS_SWEEP_INTERVAL") {
		t.Errorf("expected error to mention JOBS_SWEEP_INTERVAL, got: %v", err)
	}
}

func TestConfig_Validate_CollectsAllFailures(t *testing.T) {
	cfg := validBaseConfig()
	cfg.Server.Port = ""
	cfg.Database.Namespace = ""
	cfg.Policy.DefaultLoanLimit = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple failures")
	}
	for _, want := range []string{"SERVER_PORT", "DB_NAMESPACE", "POLICY_DEFAULT_LOAN_LIMIT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Policy.LoanPeriodDays != model.DefaultLoanPeriodDays {
		t.Errorf("expected default loan period %d, got %d", model.DefaultLoanPeriodDays, cfg.Policy.LoanPeriodDays)
	}
	if cfg.Policy.DailyLateFeeCents != model.DefaultDailyLateFeeCents {
		t.Errorf("expected default late fee %d, got %d", model.DefaultDailyLateFeeCents, cfg.Policy.DailyLateFeeCents)
	}
	if cfg.Jobs.SweepInterval != 5*time.Minute {
		t.Errorf("expected default sweep interval 5m, got %v", cfg.Jobs.SweepInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got: %v", err)
	}
}
