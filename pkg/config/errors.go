package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates the project has not been initialized.
	ErrConfigNotFound = errors.New("project configuration not found (run 'icl init' first)")

	// ErrInvalidJSON indicates config.json failed to parse.
	ErrInvalidJSON = errors.New("invalid JSON syntax")

	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrInvalidValue indicates a field has an invalid value.
	ErrInvalidValue = errors.New("invalid field value")

	// ErrMissingRequiredField indicates a required field was not set.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrAlreadyInitialized indicates init was run against an existing project.
	ErrAlreadyInitialized = errors.New("project already initialized")
)

// ValidationError wraps configuration validation errors with context.
type ValidationError struct {
	Field string // Field name, e.g. "default_agent_tool" or "per_verb_model[verifies]"
	Err   error  // Underlying error
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// LoadError wraps configuration loading errors with file context.
type LoadError struct {
	Path string
	Err  error
}

// Error returns the formatted error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new load error.
func NewLoadError(path string, err error) *LoadError {
	return &LoadError{Path: path, Err: err}
}
