package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
)

// defaultWSPath is used when websocket.path is empty.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// The WebSocket authenticates in its handler: browsers cannot set
		// headers on the upgrade request.
		r.Get(s.wsPath(), s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/command", s.handleCommand)

			r.Route("/databases/{name}", func(r chi.Router) {
				r.Get("/", s.handleDatabaseOp(command.OpIsDBOpen))
				r.Delete("/", s.handleDatabaseOp(command.OpDeleteDatabase))
				r.Get("/version", s.handleDatabaseOp(command.OpGetVersion))
				r.Post("/open", s.handleDatabaseOp(command.OpOpen))
				r.Post("/close", s.handleDatabaseOp(command.OpClose))
				r.Post("/execute", s.handleDatabaseOp(command.OpExecute))
				r.Post("/run", s.handleDatabaseOp(command.OpRun))
				r.Post("/query", s.handleDatabaseOp(command.OpQuery))
				r.Post("/execute-set", s.handleDatabaseOp(command.OpExecuteSet))
			})
		})
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return defaultWSPath
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"clients": s.hub.ClientCount(),
	}
	if s.sessions != nil {
		resp["databases"] = s.sessions.Names()
	}
	writeJSON(w, http.StatusOK, resp)
}
