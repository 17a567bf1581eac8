package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// Counter queries. Both read per-connection state, so they must run on the
// session's connection right after the statement they describe.
const (
	changesSQL      = "SELECT changes()"
	lastInsertIDSQL = "SELECT last_insert_rowid()"
	userVersionSQL  = "PRAGMA user_version"
)

// ExecutionResult summarises a single write.
type ExecutionResult struct {
	// Changes is the number of rows inserted, updated or deleted.
	Changes int64 `json:"changes"`

	// LastID is the rowid of the most recent successful INSERT on the
	// connection. It is meaningless when the statement inserted nothing.
	LastID int64 `json:"lastId"`
}

// Session is one open connection to one named database file.
//
// All operations on a Session are serialised by its mutex, so a statement and
// the counter reads that follow it never interleave with another caller.
// A closed Session fails every operation with ErrNotOpen.
type Session struct {
	name   string
	cfg    database.Config
	logger Logger

	mu   sync.Mutex
	db   *database.DB
	exec executor
}

// New creates a closed Session for the file at cfg.Path.
func New(name string, cfg database.Config, logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Session{
		name:   name,
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the database name.
func (s *Session) Name() string {
	return s.name
}

// Path returns the absolute database file path.
func (s *Session) Path() string {
	return s.cfg.Path
}

// Open connects to the database file, creating it if needed.
// Opening an open Session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	db, err := database.Open(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOpen, s.name, err)
	}
	s.db = db
	s.exec = newExecutor(db)

	s.logger.Info("database opened", "database", s.name, "path", s.cfg.Path, "driver", driverName(s.cfg.Driver))
	return nil
}

// Close releases the connection. Closing a closed Session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.exec = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", s.name, err)
	}
	s.logger.Info("database closed", "database", s.name)
	return nil
}

// IsOpen reports whether a live connection is held.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db != nil
}

// ExecuteRaw runs every statement in script in order, without parameters and
// without a transaction, and returns changes() after the last one.
//
// A failing statement stops the run; statements before it keep their effects.
func (s *Session) ExecuteRaw(ctx context.Context, script string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrNotOpen
	}

	for _, stmt := range splitStatements(script) {
		if err := s.exec.exec(ctx, stmt, nil, bindNone); err != nil {
			return 0, err
		}
	}
	return s.changes(ctx)
}

// RunOne executes one parameterised write and reports its counters.
func (s *Session) RunOne(ctx context.Context, sqlText string, params []value.Value) (ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ExecutionResult{}, ErrNotOpen
	}
	return s.runLocked(ctx, sqlText, params)
}

func (s *Session) runLocked(ctx context.Context, sqlText string, params []value.Value) (ExecutionResult, error) {
	if err := s.exec.exec(ctx, sqlText, params, bindStrict); err != nil {
		return ExecutionResult{}, err
	}

	changes, err := s.changes(ctx)
	if err != nil {
		return ExecutionResult{}, err
	}
	lastID, err := s.lastInsertID(ctx)
	if err != nil {
		return ExecutionResult{}, err
	}
	return ExecutionResult{Changes: changes, LastID: lastID}, nil
}

// QueryOne executes one parameterised statement and returns every row it
// produces. An empty result is a non-nil empty slice.
func (s *Session) QueryOne(ctx context.Context, sqlText string, params []value.Value) ([]value.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.exec.query(ctx, sqlText, params)
}

// SchemaVersion returns PRAGMA user_version, 0 for a new file.
func (s *Session) SchemaVersion(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, ErrNotOpen
	}
	return scalarInt(ctx, s.exec, userVersionSQL)
}

// Delete closes the Session and removes the database file and its sidecars.
//
// Missing files are ignored. A sidecar that cannot be removed is logged and
// does not stop the others; failing to remove the primary file is an error.
func (s *Session) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		s.logger.Warn("closing database before delete", "database", s.name, "error", err)
	}
	return removeDatabaseFiles(s.name, s.cfg.Path, s.logger)
}

// HealthCheck verifies the connection answers a trivial query.
func (s *Session) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotOpen
	}
	return s.db.HealthCheck(ctx)
}

// changes reads the rows-affected counter of the last statement.
// Callers must hold s.mu.
func (s *Session) changes(ctx context.Context) (int64, error) {
	return scalarInt(ctx, s.exec, changesSQL)
}

// lastInsertID reads the last inserted rowid. Callers must hold s.mu.
func (s *Session) lastInsertID(ctx context.Context) (int64, error) {
	return scalarInt(ctx, s.exec, lastInsertIDSQL)
}

func removeDatabaseFiles(name, path string, logger Logger) error {
	primaryErr, sidecarErr := database.RemoveFiles(path)
	if sidecarErr != nil {
		logger.Warn("removing database sidecar files", "database", name, "error", sidecarErr)
	}
	if primaryErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrDelete, name, primaryErr)
	}
	logger.Info("database deleted", "database", name, "path", path)
	return nil
}

func driverName(d string) string {
	if d == "" {
		return database.DriverCGO
	}
	return d
}
