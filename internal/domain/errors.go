package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidState        = errors.New("invalid state")
	ErrNotRefundable       = errors.New("not refundable")
	ErrAlreadyRefunded     = errors.New("already refunded")
	ErrNotRetryable        = errors.New("not retryable")
	ErrConflict            = errors.New("concurrent update")
)

// ErrorType classifies a failed generation.
type ErrorType string

const (
	ErrorTypeUser       ErrorType = "USER_ERROR"
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeSystem     ErrorType = "SYSTEM_ERROR"
	ErrorTypeService    ErrorType = "SERVICE_ERROR"
	ErrorTypeTimeout    ErrorType = "TIMEOUT"
)

var defaultErrorMessages = map[ErrorType]string{
	ErrorTypeUser:       "Invalid input provided. Please check your data and try again.",
	ErrorTypeValidation: "Please fix the validation errors and try again.",
	ErrorTypeSystem:     "A system error occurred. Your credits will be refunded automatically.",
	ErrorTypeService:    "The AI service is temporarily unavailable. Your credits will be refunded.",
	ErrorTypeTimeout:    "Generation took too long and timed out. Your credits will be refunded.",
}

// Valid reports whether e is part of the taxonomy.
func (e ErrorType) Valid() bool {
	_, ok := defaultErrorMessages[e]
	return ok
}

// Refundable reports whether failures of this type are not the user's fault.
func (e ErrorType) Refundable() bool {
	switch e {
	case ErrorTypeSystem, ErrorTypeService, ErrorTypeTimeout:
		return true
	}
	return false
}

// DefaultMessage is the user-facing text used when no specific message was attached.
func (e ErrorType) DefaultMessage() string {
	if msg, ok := defaultErrorMessages[e]; ok {
		return msg
	}
	return defaultErrorMessages[ErrorTypeSystem]
}
