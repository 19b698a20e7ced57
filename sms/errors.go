package sms

import "fmt"

// ErrorType classifies delivery failures.
type ErrorType string

const (
	ErrTypeConfig     ErrorType = "config"
	ErrTypeNetwork    ErrorType = "network"
	ErrTypeProvider   ErrorType = "provider"
	ErrTypeRateLimit  ErrorType = "rate_limit"
	ErrTypeValidation ErrorType = "validation"
)

// Error is a delivery failure with the provider status code when there was one.
type Error struct {
	Type    ErrorType
	Code    int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sms %s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("sms %s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether sending again could succeed. Config and validation
// failures, and 4xx responses other than 429, are permanent.
func (e *Error) Retryable() bool {
	switch e.Type {
	case ErrTypeConfig, ErrTypeValidation:
		return false
	case ErrTypeProvider:
		return e.Code == 0 || e.Code >= 500
	}
	return true
}
