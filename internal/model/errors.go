package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrVoucherNotFound is returned by voucher read-back when the authority has no such voucher
var ErrVoucherNotFound = errors.New("voucher not found")

// AuthCredentialError represents missing or unusable key material for an account.
// It is fatal: the account configuration must be fixed before retrying.
type AuthCredentialError struct {
	AccountID string
	Message   string
	Cause     error
}

func (e *AuthCredentialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("credential error [%s]: %s (%v)", e.AccountID, e.Message, e.Cause)
	}
	return fmt.Sprintf("credential error [%s]: %s", e.AccountID, e.Message)
}

func (e *AuthCredentialError) Unwrap() error {
	return e.Cause
}

// NewAuthCredentialError creates a new credential error
func NewAuthCredentialError(accountID, message string, cause error) *AuthCredentialError {
	return &AuthCredentialError{
		AccountID: accountID,
		Message:   message,
		Cause:     cause,
	}
}

// AuthTransportError represents a network failure, timeout, SOAP fault or a
// malformed response. Ticket and sequence state are unchanged, so the call
// may be retried with backoff.
type AuthTransportError struct {
	Operation string
	Code      string
	Message   string
	Timeout   bool
	Cause     error
}

func (e *AuthTransportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport error [%s]", e.Operation)
	if e.Timeout {
		b.WriteString(" timeout")
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": (%s) %s", e.Code, e.Message)
	} else {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	return b.String()
}

func (e *AuthTransportError) Unwrap() error {
	return e.Cause
}

// IsRetryable is always true for transport errors
func (e *AuthTransportError) IsRetryable() bool {
	return true
}

// NewAuthTransportError creates a new transport error
func NewAuthTransportError(operation, message string, cause error) *AuthTransportError {
	return &AuthTransportError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewTimeoutError creates a transport error flagged as a timeout
func NewTimeoutError(operation string, cause error) *AuthTransportError {
	return &AuthTransportError{
		Operation: operation,
		Message:   "request timed out; the authority may still have processed it",
		Timeout:   true,
		Cause:     cause,
	}
}

// ValidationError represents a local precondition that failed before any network call
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// FiscalRejectionError is an explicit rejection by the authority. It is not
// retryable as is; a fresh last-voucher query is required before resubmitting.
type FiscalRejectionError struct {
	Operation    string
	Observations []Observation
}

func (e *FiscalRejectionError) Error() string {
	if len(e.Observations) == 0 {
		return fmt.Sprintf("rejected by authority [%s]: no observations returned", e.Operation)
	}
	return fmt.Sprintf("rejected by authority [%s]: %s", e.Operation, JoinObservations(e.Observations))
}

// NewFiscalRejectionError creates a new rejection error
func NewFiscalRejectionError(operation string, observations []Observation) *FiscalRejectionError {
	return &FiscalRejectionError{
		Operation:    operation,
		Observations: observations,
	}
}

// ProofError is returned when the authority approved a voucher but its
// proofs could not be derived. The CAE is valid and the number is consumed;
// only the printable artifacts are missing.
type ProofError struct {
	VoucherNumber int64
	CAE           string
	Cause         error
}

func (e *ProofError) Error() string {
	return fmt.Sprintf("voucher %d authorized with CAE %s but proof generation failed: %v", e.VoucherNumber, e.CAE, e.Cause)
}

func (e *ProofError) Unwrap() error {
	return e.Cause
}

// NewProofError creates a new proof error
func NewProofError(number int64, cae string, cause error) *ProofError {
	return &ProofError{
		VoucherNumber: number,
		CAE:           cae,
		Cause:         cause,
	}
}

// JoinObservations renders observations as "(code) message; (code) message"
func JoinObservations(obs []Observation) string {
	parts := make([]string, 0, len(obs))
	for _, o := range obs {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, "; ")
}

// IsRetryable reports whether err is safe to retry with backoff
func IsRetryable(err error) bool {
	var te *AuthTransportError
	return errors.As(err, &te)
}
