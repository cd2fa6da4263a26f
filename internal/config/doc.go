// Package config provides 12-factor configuration management for the engine.
//
// Configuration is loaded from environment variables with sensible defaults.
//
// Configuration Sections:
//   - Server: admin HTTP server settings (port, host)
//   - Store: SQLite database location
//   - Executor: script VM limits and deny-list overrides
//   - Logging: log level and output format
//   - RateLimit: per-client rate limiting for the admin API
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Admin API on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, STORE_PATH
//   - EXEC_TIMEOUT_MS, EXEC_ALLOW_UNSAFE, EXEC_DENY_EXTRA
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
