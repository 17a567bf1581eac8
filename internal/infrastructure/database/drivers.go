package database

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver (cgo)
)

// Supported driver names.
const (
	// DriverCGO is github.com/mattn/go-sqlite3 through database/sql, the
	// default.
	DriverCGO = "sqlite3"

	// DriverPureGo is modernc.org/sqlite, for builds without cgo. It is driven
	// through the library's C API (see LibConn), not database/sql.
	DriverPureGo = "sqlite"
)

// driverSpec describes how one driver opens a file.
type driverSpec struct {
	name string

	// dsn builds the database/sql data source name. It is nil for drivers
	// opened as a LibConn.
	dsn func(path string, busyTimeoutMs int) string
}

// drivers maps driver names to their open strategy.
// Both open the file read/write and create it if absent.
var drivers = map[string]driverSpec{
	DriverCGO: {
		name: DriverCGO,
		// See: https://github.com/mattn/go-sqlite3#connection-string
		dsn: func(path string, busyTimeoutMs int) string {
			return fmt.Sprintf("%s?mode=rwc&_mutex=full&_busy_timeout=%d", fileURI(path), busyTimeoutMs)
		},
	},
	DriverPureGo: {
		name: DriverPureGo,
	},
}

// fileURI renders path as a SQLite "file:" URI. Every segment is
// percent-escaped, so '?', '#' and '%' in a directory or file name stay part
// of the path.
func fileURI(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "file:" + strings.Join(segments, "/")
}

// lookupDriver resolves a configured driver name. Empty means DriverCGO.
func lookupDriver(name string) (driverSpec, error) {
	if name == "" {
		name = DriverCGO
	}
	spec, ok := drivers[name]
	if !ok {
		return driverSpec{}, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return spec, nil
}

// ValidDriver reports whether name is a supported driver (empty included).
func ValidDriver(name string) bool {
	_, err := lookupDriver(name)
	return err == nil
}
