package core

import "errors"

// Error kinds shared by every layer. Callers wrap them with context and the
// HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrIntegrity  = errors.New("integrity violation")
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyName       = errors.New("empty name")
	ErrInvalidType     = errors.New("invalid project type")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyReason     = errors.New("empty reason")
	ErrUnknownHead     = errors.New("unknown project head")
	ErrInvalidAccount  = errors.New("invalid account type")
	ErrInvalidSettle   = errors.New("invalid settlement")
	ErrReimbursedFixed = errors.New("reimbursed expense can only change paid status")
)

// Invalid wraps a domain rule violation so that it matches ErrValidation
// while keeping the original message.
func Invalid(err error) error {
	if err == nil || errors.Is(err, ErrValidation) {
		return err
	}
	return validationError{err}
}

type validationError struct{ err error }

func (e validationError) Error() string { return e.err.Error() }
func (e validationError) Unwrap() []error { return []error{ErrValidation, e.err} }
