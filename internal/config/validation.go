package config

import (
	"fmt"
	"strings"
	"time"

	"tcm/internal/tcerr"
	"tcm/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value interface{}) {
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// Validate checks c and returns a configuration error listing every problem.
func (c Config) Validate() error {
	var errs ValidationErrors

	if c.Workers < 1 {
		errs.Add("workers", "must be at least 1", c.Workers)
	}
	if c.Retry.MaxAttempts < 1 {
		errs.Add("retry.max_attempts", "must be at least 1", c.Retry.MaxAttempts)
	}
	if strings.TrimSpace(c.Shell) == "" {
		errs.Add("shell", "cannot be empty", c.Shell)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs.Add("output", "cannot be empty", c.OutputDir)
	}
	if c.CommandTimeout < 0 {
		errs.Add("command_timeout", "cannot be negative", c.CommandTimeout.String())
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs.Add("log_level", err.Error(), c.LogLevel)
	}

	if errs.HasErrors() {
		return &tcerr.Error{
			Code:     tcerr.CodeConfiguration,
			Message:  "invalid configuration",
			Position: -1,
			Err:      errs,
		}
	}
	return nil
}

// StepTimeout returns CommandTimeout, or zero when it is disabled.
func (c Config) StepTimeout() time.Duration {
	if c.CommandTimeout <= 0 {
		return 0
	}
	return c.CommandTimeout
}
