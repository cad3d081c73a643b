package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur while ranking agents.
var (
	// ErrInvalidSortKey indicates that a query named a sort key outside the
	// supported set.
	ErrInvalidSortKey = errors.New("invalid sort key")

	// ErrInvalidLimit indicates that a query requested a non-positive or
	// oversized page.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidTier indicates that a tier name is not one of the five tiers.
	ErrInvalidTier = errors.New("invalid tier")

	// ErrAgentNotFound indicates that the requested agent is not in the cohort.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string

	// causes holds the sentinel errors behind the messages so callers can
	// match them with errors.Is.
	causes []error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// Add records err as a validation failure, keeping it matchable.
func (e *ValidationError) Add(err error) {
	e.Errors = append(e.Errors, err.Error())
	e.causes = append(e.causes, err)
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// Unwrap returns the underlying causes, supporting errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error { return e.causes }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// NotFoundError reports a lookup of an agent that is not in the cohort.
type NotFoundError struct {
	// AgentID is the identifier that was requested.
	AgentID string

	// Suggestions lists the closest existing agent IDs, best match first.
	Suggestions []string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s: %s", ErrAgentNotFound, e.AgentID)
	}
	return fmt.Sprintf("%s: %s (did you mean %s?)", ErrAgentNotFound, e.AgentID, strings.Join(e.Suggestions, ", "))
}

// Unwrap returns ErrAgentNotFound.
func (e *NotFoundError) Unwrap() error { return ErrAgentNotFound }
