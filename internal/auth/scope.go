package auth

import "fmt"

// Scope is the access level a token grants.
type Scope string

// Scope constants. Write implies read.
const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeRead || s == ScopeWrite
}

// CanWrite reports whether s permits commands that change state.
func (s Scope) CanWrite() bool {
	return s == ScopeWrite
}

// ParseScope converts a string to a Scope. Empty selects ScopeWrite.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeWrite, nil
	}
	scope := Scope(s)
	if !scope.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
	}
	return scope, nil
}
