package services

import (
	"errors"
	"fmt"

	"github.com/brightpath-edu/exam-service/internal/validator"
)

// Sentinel errors shared across services. Handlers map these to HTTP
// status codes with errors.Is.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrExamNotFound       = errors.New("exam not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// ErrAlreadyEvaluated is a conflict: the pending -> evaluated
	// transition happens exactly once.
	ErrAlreadyEvaluated = errors.New("submission already evaluated")

	ErrExamNotPublished = errors.New("exam is not published")
)

// ValidationErrors re-exports the validator error list so callers only
// depend on the services package.
type ValidationErrors = validator.ValidationErrors
type ValidationError = validator.ValidationError

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, message string) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message}}
}

// PermissionError carries context about a denied action.
type PermissionError struct {
	Resource string
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %s (%s)", e.Action, e.Resource, e.Reason)
}

func (e *PermissionError) Unwrap() error {
	return ErrForbidden
}

// NewPermissionError creates a permission error for a resource/action pair.
func NewPermissionError(resource, action, reason string) *PermissionError {
	return &PermissionError{Resource: resource, Action: action, Reason: reason}
}

// BusinessRuleError is a request that is well-formed but violates a
// domain rule.
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

// NewBusinessRuleError creates a business rule violation error.
func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}
