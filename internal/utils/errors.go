package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Common application errors used across services.
var (
	ErrValidation             = errors.New("VALIDATION_ERROR")
	ErrInsufficientStock      = errors.New("INSUFFICIENT_STOCK")
	ErrDuplicateKey           = errors.New("DUPLICATE_KEY")
	ErrDuplicateInvoiceNumber = fmt.Errorf("DUPLICATE_INVOICE_NUMBER: %w", ErrDuplicateKey)
	ErrInvalidCredentials     = errors.New("INVALID_CREDENTIALS")
	ErrInvalidToken           = errors.New("INVALID_TOKEN")
	ErrInactiveAccount        = errors.New("ACCOUNT_INACTIVE")
	ErrForbidden              = errors.New("FORBIDDEN")
	ErrNotFound               = errors.New("NOT_FOUND")
	ErrInvalidStatusChange    = errors.New("INVALID_STATUS_CHANGE")
	ErrStorageDisabled        = errors.New("STORAGE_DISABLED")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level details; it matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateKeyError reports which unique field collided.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error {
	if e.Field == "invoiceNumber" {
		return ErrDuplicateInvoiceNumber
	}
	return ErrDuplicateKey
}
