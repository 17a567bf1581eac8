package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/auth"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
)

// errForbidden marks an operation the caller's scope does not allow.
var errForbidden = errors.New("operation requires write scope")

// commandRequest is the body of POST /command.
type commandRequest struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

// handleCommand runs any operation: {"op":"run","args":{...}}.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCommandError(w, bodyError(err))
		return
	}
	if req.Op == "" {
		writeCommandError(w, fmt.Errorf("%w: missing 'op'", command.ErrInvalidArgument))
		return
	}

	s.dispatch(w, r, req.Op, req.Args)
}

// handleDatabaseOp serves the per-database routes. The database name comes
// from the path; any other arguments come from the JSON body.
func (s *Server) handleDatabaseOp(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, err := argsWithDatabase(r.Body, chi.URLParam(r, "name"))
		if err != nil {
			writeCommandError(w, err)
			return
		}
		s.dispatch(w, r, op, args)
	}
}

// dispatch authorises op for the caller and writes the result.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, op string, args json.RawMessage) {
	result, err := s.run(r.Context(), scopeFromContext(r.Context()), op, args)
	if errors.Is(err, errForbidden) {
		writeForbidden(w, fmt.Sprintf("%s: %s", op, err))
		return
	}
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// run is shared by the HTTP handlers and the WebSocket request path.
func (s *Server) run(ctx context.Context, scope auth.Scope, op string, args json.RawMessage) (any, error) {
	if !scope.CanWrite() && !command.ReadOnly(op) {
		return nil, errForbidden
	}
	return s.dispatcher.DispatchRaw(ctx, op, args)
}

// argsWithDatabase reads a JSON object from body (which may be empty) and
// sets its "database" member to name.
func argsWithDatabase(body io.Reader, name string) (json.RawMessage, error) {
	args := map[string]json.RawMessage{}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &args); err != nil {
			return nil, bodyError(err)
		}
		if args == nil {
			args = map[string]json.RawMessage{}
		}
	}

	encoded, err := json.Marshal(name)
	if err != nil {
		return nil, fmt.Errorf("encoding database name: %w", err)
	}
	args["database"] = encoded

	merged, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}
	return merged, nil
}

// bodyError classifies a failure to read the request body.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: invalid JSON body: %w", command.ErrInvalidArgument, err)
}
