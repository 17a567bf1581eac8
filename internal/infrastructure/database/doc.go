// Package database opens SQLite database files for sqlbridge sessions.
//
// This package manages:
//   - Creating the storage directory and the database file
//   - Driver selection: mattn/go-sqlite3 through database/sql with cgo, or
//     a LibConn on modernc.org/sqlite/lib without
//   - LibConn cells typed by SQLite storage class, whatever the column's
//     declared type
//   - Connection pragmas: foreign keys on, WAL journaling
//   - A single pinned connection per file
//   - Removing a database file together with its -wal and -shm sidecars
//
// Security Considerations:
//   - Database directories are created 0750 and files chmod 0600
//   - Paths are derived by the session registry from validated names only
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        "/var/lib/sqlbridge/notes.db",
//	    Driver:      database.DriverCGO,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Exec(ctx, "CREATE TABLE t (x)"); err != nil {
//	    return err
//	}
//
// Statements for one file run on one connection: db.Conn() for DriverCGO,
// db.Lib() for DriverPureGo.
package database
