package cart

import "errors"

var (
	ErrInvalidProduct = errors.New("product name is required")
	ErrInvalidPrice   = errors.New("product price is not a valid amount")

	ErrQuantityOutOfRange = errors.New("line quantity out of range")

	// ErrNoSavedCart is wrapped by persistence backends when a session has
	// nothing saved.
	ErrNoSavedCart = errors.New("no saved cart")

	ErrPersistenceUnavailable = errors.New("cart persistence unavailable")
)
