package value

import "errors"

// ErrUnsupported is returned when a Go or JSON value cannot be mapped to one
// of the five storage classes.
var ErrUnsupported = errors.New("value: unsupported type")
