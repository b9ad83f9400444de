package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"treblereport/domain/dataset"
	"treblereport/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Report   ReportConfig
	Session  SessionConfig
	LogLevel string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// UploadConfig holds file decoding defaults
type UploadConfig struct {
	MaxUploadMB     int
	DefaultEncoding string
	FixMojibake     bool
}

// MaxBytes is the upload limit in bytes
func (u UploadConfig) MaxBytes() int64 {
	return int64(u.MaxUploadMB) << 20
}

// ReportConfig holds report defaults
type ReportConfig struct {
	Locale           string
	DefaultParseMode dataset.ParseModeKind
	UniqueKeyColumn  string
}

// SessionConfig holds dashboard session lifetime settings
type SessionConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:   *loadServerConfig(),
		Upload:   *loadUploadConfig(),
		Session:  *loadSessionConfig(),
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	reportConfig, err := loadReportConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load report configuration")
	}
	config.Report = *reportConfig

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxUploadMB:     getEnvIntOrDefault("MAX_UPLOAD_MB", 50),
		DefaultEncoding: getEnvOrDefault("DEFAULT_ENCODING", "utf-8"),
		FixMojibake:     getEnvBoolOrDefault("FIX_MOJIBAKE", true),
	}
}

func loadReportConfig() (*ReportConfig, error) {
	mode, err := dataset.ParseParseMode(getEnvOrDefault("DEFAULT_PARSE_MODE", string(dataset.ModeAutoInfer)), "")
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("DEFAULT_PARSE_MODE: %v", err))
	}
	return &ReportConfig{
		Locale:           getEnvOrDefault("REPORT_LOCALE", "es-CO"),
		DefaultParseMode: mode.Kind,
		UniqueKeyColumn:  getEnvOrDefault("UNIQUE_KEY_COLUMN", "Celular"),
	}, nil
}

func loadSessionConfig() *SessionConfig {
	return &SessionConfig{
		TTL:             getEnvDurationOrDefault("SESSION_TTL", 2*time.Hour),
		CleanupInterval: getEnvDurationOrDefault("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
	}
}

func validateConfig(config *Config) error {
	if _, err := strconv.Atoi(config.Server.Port); err != nil {
		return errors.ConfigInvalid("PORT must be numeric")
	}
	if config.Upload.MaxUploadMB <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if _, err := language.Parse(config.Report.Locale); err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("REPORT_LOCALE %q is not a valid language tag", config.Report.Locale))
	}
	if config.Session.TTL <= 0 || config.Session.CleanupInterval <= 0 {
		return errors.ConfigInvalid("SESSION_TTL and SESSION_CLEANUP_INTERVAL must be positive")
	}
	switch config.LogLevel {
	case "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("LOG_LEVEL %q is not one of ERROR, WARN, INFO, DEBUG, TRACE", config.LogLevel))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
