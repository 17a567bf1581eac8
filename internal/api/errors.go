package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Transport-level error codes. Command failures use the command.Code* values.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = command.CodeInternal
	ErrCodeMethodNotAllow = "method_not_allowed"
	ErrCodeBodyTooLarge   = "body_too_large"
)

// commandStatus maps command error codes to HTTP status codes.
var commandStatus = map[string]int{
	command.CodeNotOpen:         http.StatusNotFound,
	command.CodeBindError:       http.StatusBadRequest,
	command.CodeInvalidArgument: http.StatusBadRequest,
	command.CodeUnknownOp:       http.StatusBadRequest,
	command.CodeExecutionError:  http.StatusUnprocessableEntity,
	command.CodeBatchError:      http.StatusUnprocessableEntity,
	command.CodeOpenFailed:      http.StatusInternalServerError,
	command.CodeDeleteFailed:    http.StatusInternalServerError,
	command.CodeInternal:        http.StatusInternalServerError,
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeCommandError reports a Decode or Dispatch failure.
func writeCommandError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge, err.Error())
		return
	}

	code := command.ErrorCode(err)
	status, ok := commandStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeError(w, status, code, err.Error())
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
