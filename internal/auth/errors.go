package auth

import "errors"

// Domain-specific errors for token handling.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrUnknownScope = errors.New("unknown scope")
)
