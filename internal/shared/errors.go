package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Credential and session errors
	ErrNoCredential   = fmt.Errorf("no stored credential")
	ErrReauthRequired = fmt.Errorf("reauthorization required")
	ErrAuthExpired    = fmt.Errorf("authentication expired")

	// Upstream errors
	ErrQuotaOrPermission   = fmt.Errorf("quota exceeded or permission denied")
	ErrNotFound            = fmt.Errorf("not found")
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")

	// Local errors
	ErrValidation = fmt.Errorf("validation failed")
	ErrStorage    = fmt.Errorf("storage failure")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ValidationError carries a message that is safe to show to API clients.
//
// It matches [ErrValidation] with errors.Is.
type ValidationError struct {
	Message string
}

// NewValidationError returns a [ValidationError] with the given client-facing message.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
