package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrProductNotFound        = errors.New("product not found")
	ErrProductInactive        = errors.New("product is not available")
	ErrInvalidStateTransition = errors.New("invalid status transition")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrAccessDenied           = errors.New("access denied")
	ErrUserAlreadyExists      = errors.New("user already exists")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// unavailable marks a storage or collaborator failure while keeping the
// underlying error in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
}
