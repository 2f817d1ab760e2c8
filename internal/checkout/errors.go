package checkout

import (
	"errors"
	"strings"
)

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrInvalidStepTransition = errors.New("illegal transition of checkout step")
	ErrValidationFailed      = errors.New("validation failed")
)

// ValidationError lists the form fields that failed validation. It matches
// ErrValidationFailed with errors.Is.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return ErrValidationFailed.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
