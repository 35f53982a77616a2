package ports

import (
	"errors"
	"fmt"
)

// Infrastructure errors shared by adapters.
var (
	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrBudgetExceeded indicates that a calculation would evaluate more
	// robustness combinations than allowed.
	ErrBudgetExceeded = errors.New("combination budget exceeded")

	// ErrMalformedInput indicates a file that cannot be decoded.
	ErrMalformedInput = errors.New("malformed input")
)

// IOError reports a failure while reading or writing a project file.
type IOError struct {
	// Format is the file format involved, such as "json".
	Format string

	// Path is the file path, when known.
	Path string

	// Line is the 1-based line of the failure, or 0.
	Line int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for IOError.
func (e *IOError) Error() string {
	msg := fmt.Sprintf("%s io error", e.Format)
	if e.Path != "" {
		msg += fmt.Sprintf(": path=%s", e.Path)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(": line=%d", e.Line)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// NewIOError creates a new IOError without path or line.
func NewIOError(format string, err error) *IOError {
	return &IOError{Format: format, Err: err}
}

// MetricsError represents an error from metrics collection operations.
type MetricsError struct {
	// Metric is the name of the metric that was being collected when the
	// error occurred.
	Metric string

	// Operation is the name of the metrics operation that failed.
	Operation string

	// Err is the underlying error that caused the metrics operation to fail.
	Err error
}

// Error implements the error interface for MetricsError.
func (e *MetricsError) Error() string {
	return fmt.Sprintf("metrics error: operation=%s, metric=%s, err=%v", e.Operation, e.Metric, e.Err)
}

// Unwrap returns the underlying error.
func (e *MetricsError) Unwrap() error { return e.Err }

// NewMetricsError creates a new MetricsError with the given details.
func NewMetricsError(metric, operation string, err error) *MetricsError {
	return &MetricsError{
		Metric:    metric,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
