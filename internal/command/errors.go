package command

import (
	"errors"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/session"
)

// Domain-specific errors for command decoding.
var (
	// ErrInvalidArgument is returned when a command's arguments are missing or malformed.
	ErrInvalidArgument = errors.New("command: invalid argument")

	// ErrUnknownOp is returned when an operation name is not recognised.
	ErrUnknownOp = errors.New("command: unknown operation")
)

// Stable error codes reported to callers.
const (
	CodeNotOpen         = "not_open"
	CodeOpenFailed      = "open_failed"
	CodeBindError       = "bind_error"
	CodeExecutionError  = "execution_error"
	CodeBatchError      = "batch_error"
	CodeDeleteFailed    = "delete_failed"
	CodeInvalidArgument = "invalid_argument"
	CodeUnknownOp       = "unknown_operation"
	CodeInternal        = "internal_error"

	// CodeResultTooLarge is set by transports whose reply would exceed their
	// message size limit. ErrorCode never returns it.
	CodeResultTooLarge = "result_too_large"
)

// ErrorCode maps an error from Decode or Dispatch to its stable code.
// Batch errors are reported as batches even though they also wrap the
// failing item's bind or execution error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrBatch):
		return CodeBatchError
	case errors.Is(err, session.ErrNotOpen):
		return CodeNotOpen
	case errors.Is(err, session.ErrOpen):
		return CodeOpenFailed
	case errors.Is(err, session.ErrBind):
		return CodeBindError
	case errors.Is(err, session.ErrExecution):
		return CodeExecutionError
	case errors.Is(err, session.ErrDelete):
		return CodeDeleteFailed
	case errors.Is(err, session.ErrInvalidName), errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrUnknownOp):
		return CodeUnknownOp
	default:
		return CodeInternal
	}
}
