package database

import "errors"

// ErrUnknownDriver is returned when the configured driver is not registered.
var ErrUnknownDriver = errors.New("database: unknown driver")
