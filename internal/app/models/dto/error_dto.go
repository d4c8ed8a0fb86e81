package dto

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrorCode is the machine-readable error kind returned to clients
type ErrorCode string

const (
	// Admission policy
	ErrorCodeCapacityExceeded     ErrorCode = "CAPACITY_EXCEEDED"
	ErrorCodeDuplicateApplication ErrorCode = "DUPLICATE_APPLICATION"
	ErrorCodeDuplicateAdmission   ErrorCode = "DUPLICATE_ADMISSION"
	ErrorCodeNotQualified         ErrorCode = "NOT_QUALIFIED"
	ErrorCodeSelectionRequired    ErrorCode = "SELECTION_REQUIRED"
	ErrorCodeAlreadyConfirmed     ErrorCode = "ALREADY_CONFIRMED"

	// Resource and access
	ErrorCodeResourceNotFound ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorCodeInvalidToken     ErrorCode = "INVALID_TOKEN"
	ErrorCodeExpiredToken     ErrorCode = "TOKEN_EXPIRED"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"

	ErrorCodeValidationFailed      ErrorCode = "VALIDATION_ERROR"
	ErrorCodeDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrorCodeInternalServer        ErrorCode = "INTERNAL_ERROR"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityInfo     ErrorSeverity = "INFO"
	ErrorSeverityWarning  ErrorSeverity = "WARNING"
	ErrorSeverityError    ErrorSeverity = "ERROR"
	ErrorSeverityCritical ErrorSeverity = "CRITICAL"
)

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code     ErrorCode     `json:"code" example:"DUPLICATE_ADMISSION"`
	Message  string        `json:"message" example:"Student is already admitted to Physics"`
	Field    string        `json:"field,omitempty" example:"courseId"`
	Severity ErrorSeverity `json:"severity" example:"ERROR"`
	Details  interface{}   `json:"details,omitempty"`
}

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success   bool         `json:"success" example:"false"`
	Error     *ErrorDetail `json:"error"`
	Timestamp time.Time    `json:"timestamp" example:"2025-04-23T12:01:05.123Z"`
}

// NewErrorDetail creates a new error detail
func NewErrorDetail(code ErrorCode, message string) *ErrorDetail {
	return &ErrorDetail{
		Code:     code,
		Message:  message,
		Severity: ErrorSeverityError,
	}
}

// WithField adds a field name to the error detail
func (e *ErrorDetail) WithField(field string) *ErrorDetail {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error
func (e *ErrorDetail) WithSeverity(severity ErrorSeverity) *ErrorDetail {
	e.Severity = severity
	return e
}

// WithDetails adds additional details to the error
func (e *ErrorDetail) WithDetails(details interface{}) *ErrorDetail {
	e.Details = details
	return e
}

// NewErrorResponse creates a standard error response
func NewErrorResponse(errorDetail *ErrorDetail) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     errorDetail,
		Timestamp: time.Now().UTC(),
	}
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ErrorDetail `json:"errors"`
}

// NewValidationErrors creates a new validation errors container
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]ErrorDetail, 0),
	}
}

// AddError adds a validation error to the container
func (v *ValidationErrors) AddError(field, message string) *ValidationErrors {
	v.Errors = append(v.Errors, ErrorDetail{
		Code:     ErrorCodeValidationFailed,
		Message:  message,
		Field:    field,
		Severity: ErrorSeverityError,
	})
	return v
}

// HasErrors checks if there are any validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// HandleValidationError turns a binding error into a single ErrorDetail, flattening validator field errors
func HandleValidationError(err error) *ErrorDetail {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return NewErrorDetail(ErrorCodeValidationFailed, "Invalid request format").WithDetails(err.Error())
	}

	verrs := NewValidationErrors()
	for _, fe := range fieldErrors {
		verrs.AddError(fe.Field(), formatFieldError(fe))
	}
	return NewErrorDetail(ErrorCodeValidationFailed, "Validation failed").WithDetails(verrs.Errors)
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	default:
		return e.Field() + " validation failed: " + e.Tag()
	}
}
