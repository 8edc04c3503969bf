package helpers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"serialpha/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type AppError struct {
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As at call sites
type ConfigurationError struct{ AppError }
type DatabaseError struct{ AppError }
type ExportError struct{ AppError }

// TransportError is a read or open failure. Hard failures end the session.
type TransportError struct {
	AppError
	Hard bool
}

// -----------------------------------------------------------------------------

func NewConfigurationError(format string, args ...interface{}) error {
	return &ConfigurationError{AppError{Message: fmt.Sprintf(format, args...)}}
}

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{AppError{Message: message, Cause: cause}}
}

func NewExportError(message string, cause error) error {
	return &ExportError{AppError{Message: message, Cause: cause}}
}

func NewTransportError(message string, cause error, hard bool) error {
	return &TransportError{AppError: AppError{Message: message, Cause: cause}, Hard: hard}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsHardTransportError reports whether err is, or wraps, a hard TransportError
func IsHardTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Hard
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff[T any](operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	log := logger.NewLogger(nil, "Retry")

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler logs errors that are deliberately not propagated and keeps a count
type ErrorHandler struct {
	Logger *logger.Logger

	mu     sync.Mutex
	counts map[string]int
}

func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{
		Logger: logger.NewLogger(nil, "ErrorHandler"),
		counts: make(map[string]int),
	}
}

// -----------------------------------------------------------------------------

// Handle logs err (if any) under the given context and counts it
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.counts[context]++
	e.mu.Unlock()

	switch {
	case IsHardTransportError(err):
		e.Logger.Error("Hard failure in %s: %v", context, err)
	case strings.HasPrefix(context, "persist"):
		e.Logger.Warning("Persistence failed in %s: %v", context, err)
	default:
		e.Logger.Error("Error in %s: %v", context, err)
	}
}

// -----------------------------------------------------------------------------

// Count returns how many errors were handled for a context
func (e *ErrorHandler) Count(context string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[context]
}
