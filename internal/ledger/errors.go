package ledger

import (
	"errors"
	"fmt"
	"net/http"

	"ledgerly/internal/core"
)

// Op names a gateway operation in errors and logs.
type Op string

const (
	OpLogin    Op = "login"
	OpRegister Op = "register"
	OpValidate Op = "validate"
	OpList     Op = "list"
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
)

var (
	// ErrUnauthorized matches any APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuthRequired is returned before any network call when no token is held.
	ErrAuthRequired = errors.New("authentication required")
)

// GenericFailure is shown for transport-level failures.
const GenericFailure = "Something went wrong. Please try again."

// APIError is a non-2xx response. Message is the server's text, empty when
// the body carried none.
type APIError struct {
	Op      Op
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TransportError covers failures below the application layer: the request
// never completed, or a success body could not be decoded.
type TransportError struct {
	Op  Op
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAuthFailure reports whether err should end the session.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrUnauthorized)
}

// Describe turns err into the text shown to the user. fallback is used
// when the server sent no message of its own.
func Describe(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var (
		ve *core.ValidationError
		ae *APIError
		te *TransportError
	)
	switch {
	case errors.As(err, &ve):
		return validationMessage(ve)
	case errors.As(err, &ae):
		if ae.Message != "" {
			return ae.Message
		}
		return fallback
	case errors.Is(err, ErrAuthRequired):
		return "Please log in to continue."
	case errors.As(err, &te):
		return GenericFailure
	default:
		return fallback
	}
}

func validationMessage(ve *core.ValidationError) string {
	switch {
	case errors.Is(ve, core.ErrEmptyText):
		return "Please enter a description"
	case errors.Is(ve, core.ErrMissingAmount):
		return "Please enter an amount"
	case errors.Is(ve, core.ErrInvalidAmount):
		return "Please enter a valid amount"
	case errors.Is(ve, core.ErrMissingFields):
		return "Please fill in all fields"
	default:
		return ve.Error()
	}
}
