package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/auth"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/session"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testServer creates a Server over a session registry in a temp directory.
// A non-empty secret enables bearer-token authentication.
func testServer(t *testing.T, secret string) *Server {
	t.Helper()

	reg, err := session.NewRegistry(session.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { reg.Shutdown() })

	log := logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:        "127.0.0.1",
			MaxBodySize: 4096,
			Timeouts:    config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: secret, AccessTokenTTL: 15},
		},
		Logger:     log,
		Dispatcher: command.NewDispatcher(reg),
		Sessions:   reg,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

// do sends one request through the router and decodes the JSON response.
func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: unmarshal %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, resp
}

func TestNew_Validation(t *testing.T) {
	log := logging.NewWithWriter(io.Discard, config.LoggingConfig{}, "test")

	if _, err := New(Deps{Dispatcher: command.NewDispatcher(nil)}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without dispatcher should fail")
	}
}

func TestHealth(t *testing.T) {
	h := testServer(t, "").Handler()

	code, resp := do(t, h, http.MethodGet, "/api/v1/health", "")
	if code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", code, http.StatusOK)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
	if dbs, ok := resp["databases"].([]any); !ok || len(dbs) != 0 {
		t.Errorf("databases = %v, want []", resp["databases"])
	}
}

func TestRequestID(t *testing.T) {
	h := testServer(t, "").Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := testServer(t, "").Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/command", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	h := testServer(t, "").Handler()

	code, resp := do(t, h, http.MethodGet, "/api/v1/nonexistent", "")
	if code != http.StatusNotFound || resp["code"] != ErrCodeNotFound {
		t.Errorf("unknown route = %d %v", code, resp)
	}
}

// TestDatabaseRoutes walks one database through its whole lifecycle using
// the per-database routes.
func TestDatabaseRoutes(t *testing.T) {
	h := testServer(t, "").Handler()

	steps := []struct {
		method string
		path   string
		body   string
		want   string
	}{
		{method: http.MethodGet, path: "/api/v1/databases/notes", want: `{"result":false}`},
		{method: http.MethodPost, path: "/api/v1/databases/notes/open", want: `{}`},
		{method: http.MethodGet, path: "/api/v1/databases/notes", want: `{"result":true}`},
		{method: http.MethodPost, path: "/api/v1/databases/notes/execute", body: `{"statements":"CREATE TABLE notes(id INTEGER PRIMARY KEY, body TEXT);PRAGMA user_version = 2;"}`, want: `{"changes":{"changes":0}}`},
		{method: http.MethodPost, path: "/api/v1/databases/notes/run", body: `{"statement":"INSERT INTO notes(body) VALUES (?)","values":["hi"]}`, want: `{"changes":{"changes":1,"lastId":1}}`},
		{method: http.MethodPost, path: "/api/v1/databases/notes/execute-set", body: `{"set":[{"statement":"INSERT INTO notes(body) VALUES (?)","values":["a"]},{"statement":"INSERT INTO notes(body) VALUES (?)","values":["b"]}]}`, want: `{"changes":{"changes":2}}`},
		{method: http.MethodPost, path: "/api/v1/databases/notes/query", body: `{"statement":"SELECT body FROM notes ORDER BY id","values":[]}`, want: `{"values":[{"body":"hi"},{"body":"a"},{"body":"b"}]}`},
		{method: http.MethodGet, path: "/api/v1/databases/notes/version", want: `{"version":2}`},
		{method: http.MethodPost, path: "/api/v1/databases/notes/close", want: `{}`},
		{method: http.MethodDelete, path: "/api/v1/databases/notes", want: `{}`},
		{method: http.MethodGet, path: "/api/v1/databases/notes", want: `{"result":false}`},
	}

	for _, step := range steps {
		var reader io.Reader
		if step.body != "" {
			reader = strings.NewReader(step.body)
		}
		req := httptest.NewRequest(step.method, step.path, reader)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d, body = %s", step.method, step.path, w.Code, w.Body.String())
		}
		if got := strings.TrimSpace(w.Body.String()); got != step.want {
			t.Errorf("%s %s = %s, want %s", step.method, step.path, got, step.want)
		}
	}
}

func TestCommandRoute(t *testing.T) {
	h := testServer(t, "").Handler()

	code, _ := do(t, h, http.MethodPost, "/api/v1/command", `{"op":"open","args":{"database":"kv"}}`)
	if code != http.StatusOK {
		t.Fatalf("open status = %d", code)
	}

	code, resp := do(t, h, http.MethodPost, "/api/v1/command", `{"op":"getVersion","args":{"database":"kv"}}`)
	if code != http.StatusOK || resp["version"] != float64(0) {
		t.Errorf("getVersion = %d %v", code, resp)
	}

	code, resp = do(t, h, http.MethodGet, "/api/v1/health", "")
	if code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
	if dbs, _ := resp["databases"].([]any); len(dbs) != 1 || dbs[0] != "kv" {
		t.Errorf("databases = %v, want [kv]", resp["databases"])
	}
}

func TestErrorMapping(t *testing.T) {
	h := testServer(t, "").Handler()

	if code, _ := do(t, h, http.MethodPost, "/api/v1/databases/live/open", ""); code != http.StatusOK {
		t.Fatalf("open status = %d", code)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "not open", method: http.MethodPost, path: "/api/v1/databases/ghost/query", body: `{"statement":"SELECT 1"}`, wantStatus: http.StatusNotFound, wantCode: command.CodeNotOpen},
		{name: "invalid name", method: http.MethodPost, path: "/api/v1/databases/..bad/open", wantStatus: http.StatusBadRequest, wantCode: command.CodeInvalidArgument},
		{name: "missing statement", method: http.MethodPost, path: "/api/v1/databases/live/run", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: command.CodeInvalidArgument},
		{name: "bad json", method: http.MethodPost, path: "/api/v1/databases/live/run", body: `{nope`, wantStatus: http.StatusBadRequest, wantCode: command.CodeInvalidArgument},
		{name: "bad command json", method: http.MethodPost, path: "/api/v1/command", body: `[]`, wantStatus: http.StatusBadRequest, wantCode: command.CodeInvalidArgument},
		{name: "missing op", method: http.MethodPost, path: "/api/v1/command", body: `{"args":{}}`, wantStatus: http.StatusBadRequest, wantCode: command.CodeInvalidArgument},
		{name: "unknown op", method: http.MethodPost, path: "/api/v1/command", body: `{"op":"vacuum","args":{"database":"live"}}`, wantStatus: http.StatusBadRequest, wantCode: command.CodeUnknownOp},
		{name: "bind error", method: http.MethodPost, path: "/api/v1/databases/live/run", body: `{"statement":"SELECT ?","values":[{"a":1}]}`, wantStatus: http.StatusBadRequest, wantCode: command.CodeBindError},
		{name: "execution error", method: http.MethodPost, path: "/api/v1/databases/live/query", body: `{"statement":"SELECT * FROM missing"}`, wantStatus: http.StatusUnprocessableEntity, wantCode: command.CodeExecutionError},
		{name: "batch error", method: http.MethodPost, path: "/api/v1/databases/live/execute-set", body: `{"set":[{"statement":"INSERT INTO missing VALUES (1)"}]}`, wantStatus: http.StatusUnprocessableEntity, wantCode: command.CodeBatchError},
		{name: "body too large", method: http.MethodPost, path: "/api/v1/databases/live/execute", body: `{"statements":"` + strings.Repeat("x", 5000) + `"}`, wantStatus: http.StatusRequestEntityTooLarge, wantCode: ErrCodeBodyTooLarge},
		{name: "method not allowed", method: http.MethodPut, path: "/api/v1/databases/live/open", wantStatus: http.StatusMethodNotAllowed, wantCode: ErrCodeMethodNotAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := do(t, h, tt.method, tt.path, tt.body)
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%v)", code, tt.wantStatus, resp)
			}
			if resp["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", resp["code"], tt.wantCode)
			}
			if resp["status"] != float64(tt.wantStatus) {
				t.Errorf("body status = %v, want %d", resp["status"], tt.wantStatus)
			}
		})
	}
}

func TestAuth(t *testing.T) {
	h := testServer(t, testJWTSecret).Handler()

	writeToken, err := auth.GenerateAccessToken("svc-write", auth.ScopeWrite, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	readToken, err := auth.GenerateAccessToken("svc-read", auth.ScopeRead, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	foreign, err := auth.GenerateAccessToken("svc", auth.ScopeWrite, "some-other-secret-some-other-secret", 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", wantStatus: http.StatusOK},
		{name: "no token", method: http.MethodGet, path: "/api/v1/databases/a", wantStatus: http.StatusUnauthorized},
		{name: "foreign token", method: http.MethodGet, path: "/api/v1/databases/a", token: foreign, wantStatus: http.StatusUnauthorized},
		{name: "read token reads", method: http.MethodGet, path: "/api/v1/databases/a", token: readToken, wantStatus: http.StatusOK},
		{name: "read token cannot open", method: http.MethodPost, path: "/api/v1/databases/a/open", token: readToken, wantStatus: http.StatusForbidden},
		{name: "write token opens", method: http.MethodPost, path: "/api/v1/databases/a/open", token: writeToken, wantStatus: http.StatusOK},
		{name: "read token queries", method: http.MethodGet, path: "/api/v1/databases/a/version", token: readToken, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.token != "" {
				headers = []string{"Authorization", "Bearer " + tt.token}
			}
			code, resp := do(t, h, tt.method, tt.path, "", headers...)
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%v)", code, tt.wantStatus, resp)
			}
		})
	}
}

func TestArgsWithDatabase(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: `{"database":"notes"}`},
		{name: "null", body: "null", want: `{"database":"notes"}`},
		{name: "path wins", body: `{"database":"other","statement":"SELECT 1"}`, want: `{"database":"notes","statement":"SELECT 1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := argsWithDatabase(strings.NewReader(tt.body), "notes")
			if err != nil {
				t.Fatalf("argsWithDatabase() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("argsWithDatabase() = %s, want %s", got, tt.want)
			}
		})
	}
}
