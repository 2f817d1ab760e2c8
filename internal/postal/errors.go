package postal

import "errors"

var (
	ErrMalformedInput = errors.New("postal code must have 8 digits")
	ErrNotFound       = errors.New("postal code not found")
	ErrTransport      = errors.New("postal lookup unavailable")
)
