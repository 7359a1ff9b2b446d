package relay

import (
	"errors"

	"github.com/eldtechnologies/relay/internal/auth"
)

var (
	// ErrAuthentication is returned when a connection presents no valid credential.
	ErrAuthentication = auth.ErrAuthentication

	ErrValidation        = errors.New("validation failed")
	ErrRecipientNotFound = errors.New("receiver not found")
	ErrPersistence       = errors.New("failed to send message")
	ErrHistory           = errors.New("failed to fetch history")
	ErrDirectory         = errors.New("failed to look up users")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrTransport         = errors.New("transport failure")
)

// clientMessage maps err to the text sent in an error event.
// Validation errors expose their detail; everything else uses the sentinel text.
func clientMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Detail
	case errors.Is(err, ErrRecipientNotFound):
		return ErrRecipientNotFound.Error()
	case errors.Is(err, ErrPersistence):
		return ErrPersistence.Error()
	case errors.Is(err, ErrHistory):
		return ErrHistory.Error()
	case errors.Is(err, ErrRateLimited):
		return ErrRateLimited.Error()
	case errors.Is(err, ErrDirectory):
		return ErrDirectory.Error()
	default:
		return "internal error"
	}
}

// errorKind is the metrics label for err.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrHistory):
		return "persistence"
	case errors.Is(err, ErrDirectory):
		return "directory"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

// ValidationError describes a malformed client request.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string { return ErrValidation.Error() + ": " + e.Detail }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validationError(detail string) error {
	return &ValidationError{Detail: detail}
}
