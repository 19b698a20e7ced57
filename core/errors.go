package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the send and verify flows.
type ErrorKind string

const (
	KindUserInputInvalid      ErrorKind = "user_input_invalid"
	KindCodeExpiredOrMissing  ErrorKind = "code_expired_or_missing"
	KindCodeMismatch          ErrorKind = "code_mismatch"
	KindAttemptsExhausted     ErrorKind = "attempts_exhausted"
	KindSessionIssuanceFailed ErrorKind = "session_issuance_failed"
	KindDeliveryFailed        ErrorKind = "delivery_failed"
	KindInternal              ErrorKind = "internal"
)

// Error is the only error type returned by SendOTP and VerifyOTP. Message is safe to show
// to end users; Err holds the underlying cause and is never rendered.
type Error struct {
	Kind              ErrorKind
	Message           string
	AttemptsRemaining *int
	// AccountCreated is set on KindSessionIssuanceFailed when the same call created the account.
	AccountCreated bool
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a classified error, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsClientError reports whether err should be answered with a 4xx.
func (e *Error) IsClientError() bool {
	switch e.Kind {
	case KindUserInputInvalid, KindCodeExpiredOrMissing, KindCodeMismatch, KindAttemptsExhausted:
		return true
	}
	return false
}

const (
	msgInternal         = "Something went wrong. Please try again."
	msgRateLimited      = "Please wait before requesting another code."
	msgCodeExpired      = "Code expired or not found. Please request a new code."
	msgCodeMismatch     = "Invalid verification code."
	msgExhausted        = "Too many attempts. Please request a new code."
	msgDeliveryFailed   = "Failed to send verification code."
	msgSessionAfterReg  = "Account created, but sign-in failed. Please log in."
	msgSessionAfterAuth = "Failed to sign in. Please try again."
)

// RateLimitedMessage is the user-facing text for a send that hit the cooldown.
const RateLimitedMessage = msgRateLimited

func inputErr(msg string) error { return &Error{Kind: KindUserInputInvalid, Message: msg} }

func internalErr(err error) error { return &Error{Kind: KindInternal, Message: msgInternal, Err: err} }
