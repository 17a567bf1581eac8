package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout bounds the initial connect and pragma setup.
	connectionTimeout = 5 * time.Second
)

// Sidecar file suffixes maintained by SQLite in WAL mode.
const (
	WALSuffix = "-wal"
	SHMSuffix = "-shm"
)

// DB is one SQLite file opened over exactly one connection.
//
// SQLite keeps changes() and last_insert_rowid() per connection, so every
// statement for a file must run on the same connection. With DriverCGO the
// database/sql pool is capped at one connection, pinned for the DB's whole
// lifetime. With DriverPureGo the file is held by a single LibConn.
type DB struct {
	sqlDB *sql.DB
	conn  *sql.Conn
	lib   *LibConn
	path  string
}

// Config contains the options for opening one database file.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// The directory will be created if it doesn't exist.
	Path string

	// Driver selects the SQLite driver (DriverCGO or DriverPureGo).
	// Empty selects DriverCGO.
	Driver string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// Open creates the database file if needed and connects to it.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the file read/write, creating it if absent
//  3. Enables foreign keys and WAL journaling
//  4. Reads the schema to reject files that are not SQLite databases
//  5. Sets file permissions (0600)
//
// Any failure closes what was opened and returns the cause.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	spec, err := lookupDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	var db *DB
	if spec.dsn == nil {
		db, err = openLibDB(cfg)
	} else {
		db, err = openSQLDB(openCtx, spec, cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.configure(openCtx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}

	// Set file permissions (owner read/write only)
	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Permissions are advisory here

	return db, nil
}

func openSQLDB(ctx context.Context, spec driverSpec, cfg Config) (*DB, error) {
	sqlDB, err := sql.Open(spec.name, spec.dsn(cfg.Path, cfg.BusyTimeout*msPerSecond))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection, held open: connection-scoped state must not move.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &DB{sqlDB: sqlDB, conn: conn, path: cfg.Path}, nil
}

func openLibDB(cfg Config) (*DB, error) {
	lib, err := openLib(cfg.Path, cfg.BusyTimeout*msPerSecond)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &DB{lib: lib, path: cfg.Path}, nil
}

// configure applies the connection pragmas and verifies the file header.
func (db *DB) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if err := db.Exec(ctx, p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}

	if _, err := db.QueryInt64(ctx, "SELECT count(*) FROM sqlite_master"); err != nil {
		return fmt.Errorf("verifying database file: %w", err)
	}
	return nil
}

// Conn returns the pinned database/sql connection, or nil when the file is
// held by a LibConn. All statements for this file run on one of the two.
func (db *DB) Conn() *sql.Conn {
	return db.conn
}

// Lib returns the LibConn holding the file, or nil for database/sql drivers.
func (db *DB) Lib() *LibConn {
	return db.lib
}

// Exec runs a statement that takes no parameters.
func (db *DB) Exec(ctx context.Context, query string) error {
	if db.lib != nil {
		return db.lib.Exec(ctx, query)
	}
	_, err := db.conn.ExecContext(ctx, query)
	return err
}

// QueryInt64 returns the first column of the first row of query, or 0 when
// it produces no rows.
func (db *DB) QueryInt64(ctx context.Context, query string) (int64, error) {
	if db.lib != nil {
		return db.lib.QueryInt64(ctx, query)
	}
	var n int64
	err := db.conn.QueryRowContext(ctx, query).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Close releases the connection. Calling Close more than once is safe.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var errs []error
	if db.conn != nil {
		if err := db.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
		db.conn = nil
	}
	if db.sqlDB != nil {
		if err := db.sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
		db.sqlDB = nil
	}
	if db.lib != nil {
		if err := db.lib.Close(); err != nil {
			errs = append(errs, err)
		}
		db.lib = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck verifies the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	if _, err := db.QueryInt64(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// FilePaths returns the primary file path followed by its WAL and shared
// memory sidecars.
func FilePaths(path string) []string {
	return []string{path, path + WALSuffix, path + SHMSuffix}
}

// RemoveFiles deletes the database file and its sidecars.
//
// Missing files are not errors. A failure on one file does not stop the
// others; the primary file's error is returned as primaryErr and sidecar
// failures are joined into sidecarErr so callers can treat them differently.
func RemoveFiles(path string) (primaryErr, sidecarErr error) {
	var sidecarErrs []error
	for i, p := range FilePaths(path) {
		err := os.Remove(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if i == 0 {
			primaryErr = fmt.Errorf("removing database file: %w", err)
			continue
		}
		sidecarErrs = append(sidecarErrs, fmt.Errorf("removing %s: %w", filepath.Base(p), err))
	}
	return primaryErr, errors.Join(sidecarErrs...)
}
