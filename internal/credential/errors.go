package credential

import "fmt"

// Error codes for credential inspection
const (
	ErrCodeParseFailed     = "PARSE_FAILED"
	ErrCodeCertExpired     = "CERT_EXPIRED"
	ErrCodeCertNotYetValid = "CERT_NOT_YET_VALID"
	ErrCodeKeyMismatch     = "KEY_MISMATCH"
	ErrCodeCUITMissing     = "CUIT_MISSING"
	ErrCodeCUITMismatch    = "CUIT_MISMATCH"
	ErrCodeChainInvalid    = "CHAIN_INVALID"
	ErrCodeCertRevoked     = "CERT_REVOKED"
	ErrCodeOCSPUnavailable = "OCSP_UNAVAILABLE"
)

// InspectionError is a single failed check on an account's key material
type InspectionError struct {
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *InspectionError) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *InspectionError) Unwrap() error {
	return e.Cause
}

// NewInspectionError creates a new inspection error
func NewInspectionError(code, field, message string, cause error) *InspectionError {
	return &InspectionError{
		Code:    code,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

func errCertExpired(subject string) *InspectionError {
	return NewInspectionError(ErrCodeCertExpired, "certificate", fmt.Sprintf("certificate expired: %s", subject), nil)
}

func errCertNotYetValid(subject string) *InspectionError {
	return NewInspectionError(ErrCodeCertNotYetValid, "certificate", fmt.Sprintf("certificate not yet valid: %s", subject), nil)
}

func errCertRevoked(subject string) *InspectionError {
	return NewInspectionError(ErrCodeCertRevoked, "certificate", fmt.Sprintf("certificate revoked: %s", subject), nil)
}

func errChainInvalid(cause error) *InspectionError {
	return NewInspectionError(ErrCodeChainInvalid, "chain", "certificate chain validation failed", cause)
}

func errOCSPUnavailable(cause error) *InspectionError {
	return NewInspectionError(ErrCodeOCSPUnavailable, "ocsp", "OCSP check unavailable", cause)
}
