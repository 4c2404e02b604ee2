package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	validateServerConfig(&config.Server, result)
	validateStoreConfig(&config.Store, result)
	validateDevelopment(config, result)
	validateLogConfig(&config.Log, result)

	return result
}

// validateConfig collapses the detailed result into the first error.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		first := result.Errors[0]
		return &first
	}
	return nil
}

func validateServerConfig(s *ServerConfig, result *ValidationResult) {
	// 0 lets the kernel pick a port, which tests rely on.
	if s.Port < 0 || s.Port > 65535 {
		result.addError("server.port", s.Port, fmt.Sprintf("port %d is not in valid range 0-65535", s.Port))
	}

	if strings.ContainsAny(s.Host, ";&|$`()<>\"'\\ ") {
		result.addError("server.host", s.Host, "host contains invalid characters")
	}

	if s.ShutdownTimeout < 0 {
		result.addError("server.shutdown_timeout", s.ShutdownTimeout, "shutdown timeout cannot be negative")
	}

	if s.Environment == "production" && (s.Host == "localhost" || s.Host == "127.0.0.1") {
		result.addWarning("server.host", s.Host, "production environment bound to loopback only",
			"set server.host to 0.0.0.0 to accept external traffic")
	}
}

func validateStoreConfig(s *StoreConfig, result *ValidationResult) {
	switch s.Driver {
	case DriverMongo:
		if s.URI == "" {
			result.addError("store.uri", s.URI, "mongo driver requires a connection string",
				"e.g. mongodb://localhost:27017")
		} else if !strings.HasPrefix(s.URI, "mongodb://") && !strings.HasPrefix(s.URI, "mongodb+srv://") {
			result.addError("store.uri", s.URI, "connection string must start with mongodb:// or mongodb+srv://")
		}
		if s.Database == "" {
			result.addError("store.database", s.Database, "mongo driver requires a database name")
		}
	case DriverSQLite:
		if s.Path == "" {
			result.addError("store.path", s.Path, "sqlite driver requires a database file path")
		}
		if s.Transactions {
			result.addWarning("store.transactions", s.Transactions, "sqlite always deletes plants transactionally; the flag is ignored")
		}
	case DriverMemory:
		result.addWarning("store.driver", s.Driver, "memory driver loses all data on exit")
	default:
		result.addError("store.driver", s.Driver, fmt.Sprintf("unknown store driver %q", s.Driver),
			"supported drivers: mongo, sqlite, memory")
	}

	if s.Timeout < 0 {
		result.addError("store.timeout", s.Timeout, "store timeout cannot be negative")
	}
}

func validateDevelopment(config *Config, result *ValidationResult) {
	if config.Development.HotReload && config.Templates.Dir == "" {
		result.addError("development.hot_reload", true, "hot reload needs templates.dir to watch",
			"point templates.dir at internal/renderer/templates")
	}
	if config.Development.HotReload && config.Server.Environment == "production" {
		result.addWarning("development.hot_reload", true, "hot reload enabled in production")
	}
}

func validateLogConfig(l *LogConfig, result *ValidationResult) {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		result.addError("log.level", l.Level, fmt.Sprintf("unknown log level %q", l.Level),
			"supported levels: debug, info, warn, error")
	}
	switch l.Format {
	case "", "text", "json":
	default:
		result.addError("log.format", l.Format, fmt.Sprintf("unknown log format %q", l.Format))
	}
}
