package session

import (
	"errors"
	"fmt"
)

// Domain-specific errors for database sessions.
var (
	// ErrNotOpen is returned when an operation targets a name with no live session.
	ErrNotOpen = errors.New("session: database not open")

	// ErrOpen is returned when the database file cannot be opened or is not a database.
	ErrOpen = errors.New("session: failed to open database")

	// ErrBind is returned when parameters cannot be bound to a statement.
	ErrBind = errors.New("session: failed to bind parameters")

	// ErrExecution is returned when the engine rejects or fails a statement.
	ErrExecution = errors.New("session: statement execution failed")

	// ErrBatch is returned when an item of a batch fails.
	ErrBatch = errors.New("session: batch failed")

	// ErrDelete is returned when the primary database file cannot be removed.
	ErrDelete = errors.New("session: failed to delete database")

	// ErrInvalidName is returned when a database name cannot be mapped to a file.
	ErrInvalidName = errors.New("session: invalid database name")

	// errEmptyStatement is wrapped in an ExecutionError for SQL text that is
	// empty, blank or only comments.
	errEmptyStatement = errors.New("empty statement")
)

// ExecutionError reports an engine failure for one statement.
type ExecutionError struct {
	SQL string
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("executing %q: %v", e.SQL, e.Err)
}

// Unwrap exposes both ErrExecution and the engine error to errors.Is/As.
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// BatchError reports the first failing item of a batch. Index is zero-based.
// Err is the item's own error (a bind or execution error), or the failure of
// the BEGIN/COMMIT statement when Index is -1.
type BatchError struct {
	Index int
	SQL   string
	Err   error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("batch: %v", e.Err)
	}
	return fmt.Sprintf("batch item %d: %v", e.Index, e.Err)
}

// Unwrap exposes both ErrBatch and the item error to errors.Is/As.
func (e *BatchError) Unwrap() []error {
	return []error{ErrBatch, e.Err}
}
