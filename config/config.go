// Package config loads and validates the environment-driven service
// configuration. main.go reads .env into the process environment first;
// everything here works off os.Getenv.
package config

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               string
	LogLevel          string
	LogDir            string // Directory receiving rotating log files
	DataDir           string // Directory holding the drug knowledge base documents
	ReloadSchedule    string // Daily knowledge base reload times as "HH:MM;HH:MM"
	LogRetentionWeeks int    // Number of weeks to keep log files
	MaxLogFileSize    int64  // Maximum log file size in bytes
	MaxRequestBody    int64  // Maximum request body size in bytes
	MaxHeaderSize     int64  // Maximum header size in bytes
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               getEnvWithDefault("ENV", "dev"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		DataDir:           getEnvWithDefault("DATA_DIR", "drugdata"),
		ReloadSchedule:    getEnvWithDefault("RELOAD_SCHEDULE", "06:00;18:00"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig runs every field validator and fails on the first problem
func validateConfig(cfg *Config) error {
	checks := []struct {
		name  string
		check func() error
	}{
		{"PORT", func() error { return validatePort(cfg.Port) }},
		{"ADDRESS", func() error { return validateAddress(cfg.Address) }},
		{"ENV", func() error { return validateEnv(cfg.Env) }},
		{"LOG_LEVEL", func() error { return validateLogLevel(cfg.LogLevel) }},
		{"LOG_DIR", func() error { return validateDirName(cfg.LogDir, "LOG_DIR") }},
		{"DATA_DIR", func() error { return validateDirName(cfg.DataDir, "DATA_DIR") }},
		{"RELOAD_SCHEDULE", func() error { return validateReloadSchedule(cfg.ReloadSchedule) }},
		{"MAX_REQUEST_BODY", func() error { return validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY") }},
		{"MAX_HEADER_SIZE", func() error { return validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE") }},
		{"LOG_RETENTION_WEEKS", func() error { return validateLogRetentionWeeks(cfg.LogRetentionWeeks) }},
		{"MAX_LOG_FILE_SIZE", func() error { return validateMaxLogFileSize(cfg.MaxLogFileSize) }},
	}

	for _, c := range checks {
		if err := c.check(); err != nil {
			return fmt.Errorf("invalid %s: %w", c.name, err)
		}
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// The server never runs as root, so privileged ports cannot be bound
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Loopback is the development default
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// The API sits behind a reverse proxy, so the listener stays on a
	// private range
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env string) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []string{"dev", "staging", "prod", "test"}
	env = strings.ToLower(env)

	if slices.Contains(validEnvs, env) {
		return nil
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	if slices.Contains(validLevels, logLevel) {
		return nil
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateDirName validates directory-valued environment variables. It only
// checks the name shape; the directory itself is created or read at startup,
// which is where a bad path fails.
func validateDirName(dir string, configName string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%s cannot be empty", configName)
	}

	if strings.ContainsRune(dir, 0) {
		return fmt.Errorf("%s contains invalid characters", configName)
	}

	return nil
}

// validateReloadSchedule validates the RELOAD_SCHEDULE environment variable.
// The value is a semicolon-separated list of daily "HH:MM" reload times, the
// format the scheduler hands to gocron.
func validateReloadSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("RELOAD_SCHEDULE cannot be empty")
	}

	parts := strings.Split(schedule, ";")
	for _, part := range parts {
		if _, err := time.Parse("15:04", strings.TrimSpace(part)); err != nil {
			return fmt.Errorf("RELOAD_SCHEDULE must be \"HH:MM\" times separated by semicolons, got: %s", schedule)
		}
	}

	return nil
}

// validateSizeLimit validates request and header size caps. Anything over
// 100MB is almost certainly a unit mistake.
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 {
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable.
// Below 1MB rotation would thrash; above 1GB a single file gets unwieldy.
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ValidateAllEnvVars checks that the required environment variables are set.
// Everything except PORT has a usable default.
func ValidateAllEnvVars() error {
	requiredVars := []string{"PORT"}
	missingVars := []string{}

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}

// GetEnvVars lists every environment variable the service reads. Tests use it
// to clear the environment between cases.
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"DATA_DIR",
		"RELOAD_SCHEDULE",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
	}
}
