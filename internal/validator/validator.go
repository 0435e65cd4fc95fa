package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// ToValidationErrors converts go-playground validator errors to ValidationErrors
func ToValidationErrors(err error) ValidationErrors {
	var errors ValidationErrors

	if fieldErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range fieldErrors {
			errors = append(errors, ValidationError{
				Field:   fieldErr.Field(),
				Message: getErrorMessage(fieldErr),
				Value:   fieldErr.Value(),
				Rule:    fieldErr.Tag(),
			})
		}
		return errors
	}

	return ValidationErrors{{Field: "", Message: err.Error()}}
}

// Validator wraps struct validation for request DTOs
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the domain rules registered
func New() *Validator {
	validate := validator.New()
	registerDomainRules(validate)

	return &Validator{validate: validate}
}

// Validate validates a struct, returning ValidationErrors on failure
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// getErrorMessage returns user-friendly error messages
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "exam_title":
		return "must be between 1 and 200 characters"
	case "exam_type":
		return "must be mcq, descriptive or voice"
	case "submission_type":
		return "must be mcq, descriptive or voice"
	case "user_role":
		return "must be a valid user role"
	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
