// Package config manages application configuration for the circulation
// engine.
//
// The config package loads and validates configuration from environment variables.
// All configuration is centralized here to provide a single source of truth.
//
// # Configuration Loading
//
// Configuration is loaded from environment variables:
//
//	cfg, err := config.Load()
//
// # Configuration Groups
//
// Configuration is organized into logical groups:
//
//   - ServerConfig: HTTP server settings (port, timeouts)
//   - DatabaseConfig: SurrealDB connection settings
//   - PolicyConfig: Circulation policy knobs (loan period, late fee,
//     pickup window, loan limit)
//   - JobsConfig: Background job scheduling
//
// # Environment Variables
//
// Key environment variables:
//
//	SERVER_PORT                  - HTTP server port (default: 8080)
//	DB_HOST                      - SurrealDB host
//	DB_PORT                      - SurrealDB port
//	DB_NAMESPACE                 - Database namespace
//	DB_DATABASE                  - Database name
//	POLICY_LOAN_PERIOD_DAYS      - Loan period in days (default: 14)
//	POLICY_DAILY_LATE_FEE_CENTS  - Late fee per day in cents (default: 50)
//	POLICY_PICKUP_WINDOW_DAYS    - Reservation pickup window (default: 3)
//	JOBS_SWEEP_INTERVAL          - Hold expiry sweep cadence (default: 5m)
//	JOBS_REMINDER_INTERVAL       - Due reminder cadence (default: 24h)
//
// # Default Values
//
// Sensible defaults are provided for development:
//
//	func getEnv(key, defaultValue string) string {
//	    if value := os.Getenv(key); value != "" {
//	        return value
//	    }
//	    return defaultValue
//	}
package config
