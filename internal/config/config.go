package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shelfmark/circulation/internal/model"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Policy   PolicyConfig
	Jobs     JobsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
}

// PolicyConfig holds the circulation policy knobs
type PolicyConfig struct {
	LoanPeriodDays    int
	DailyLateFeeCents int64
	PickupWindowDays  int
	DefaultLoanLimit  int
}

// JobsConfig holds background job scheduling settings
type JobsConfig struct {
	SweepInterval      time.Duration
	ReminderInterval   time.Duration
	ReminderWindowDays int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Env:          getEnv("SERVER_ENV", "development"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "8000"),
			Namespace: getEnv("DB_NAMESPACE", "shelfmark"),
			Database:  getEnv("DB_DATABASE", "main"),
			User:      getEnv("DB_USER", "root"),
			Password:  getEnv("DB_PASSWORD", "root"),
		},
		Policy: PolicyConfig{
			LoanPeriodDays:    getIntEnv("POLICY_LOAN_PERIOD_DAYS", model.DefaultLoanPeriodDays),
			DailyLateFeeCents: getInt64Env("POLICY_DAILY_LATE_FEE_CENTS", model.DefaultDailyLateFeeCents),
			PickupWindowDays:  getIntEnv("POLICY_PICKUP_WINDOW_DAYS", model.DefaultPickupWindowDays),
			DefaultLoanLimit:  getIntEnv("POLICY_DEFAULT_LOAN_LIMIT", model.DefaultLoanLimit),
		},
		Jobs: JobsConfig{
			SweepInterval:      getDurationEnv("JOBS_SWEEP_INTERVAL", 5*time.Minute),
			ReminderInterval:   getDurationEnv("JOBS_REMINDER_INTERVAL", 24*time.Hour),
			ReminderWindowDays: getIntEnv("JOBS_REMINDER_WINDOW_DAYS", 3),
		},
	}, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}

	// Policy validation
	if c.Policy.LoanPeriodDays <= 0 {
		errs = append(errs, errors.New("POLICY_LOAN_PERIOD_DAYS must be positive"))
	}
	if c.Policy.DailyLateFeeCents < 0 {
		errs = append(errs, errors.New("POLICY_DAILY_LATE_FEE_CENTS must not be negative"))
	}
	if c.Policy.PickupWindowDays <= 0 {
		errs = append(errs, errors.New("POLICY_PICKUP_WINDOW_DAYS must be positive"))
	}
	if c.Policy.DefaultLoanLimit <= 0 {
		errs = append(errs, errors.New("POLICY_DEFAULT_LOAN_LIMIT must be positive"))
	}

	// Jobs validation
	if c.Jobs.SweepInterval <= 0 {
		errs = append(errs, errors.New("JOBS_SWEEP_INTERVAL must be positive"))
	}
	if c.Jobs.ReminderInterval <= 0 {
		errs = append(errs, errors.New("JOBS_REMINDER_INTERVAL must be positive"))
	}
	if c.Jobs.ReminderWindowDays <= 0 {
		errs = append(errs, errors.New("JOBS_REMINDER_WINDOW_DAYS must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
