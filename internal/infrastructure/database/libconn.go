package database

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
	sqlite3 "modernc.org/sqlite/lib"
)

// ColumnType is the storage class SQLite reports for one result cell.
type ColumnType int

// Storage classes returned by LibStmt.ColumnType.
const (
	ColumnInteger ColumnType = sqlite3.SQLITE_INTEGER
	ColumnFloat   ColumnType = sqlite3.SQLITE_FLOAT
	ColumnText    ColumnType = sqlite3.SQLITE_TEXT
	ColumnBlob    ColumnType = sqlite3.SQLITE_BLOB
	ColumnNull    ColumnType = sqlite3.SQLITE_NULL
)

const ptrSize = unsafe.Sizeof(uintptr(0))

var patchOnce sync.Once

// LibError is an engine failure reported by modernc.org/sqlite/lib.
type LibError struct {
	Code int
	Msg  string
}

func (e *LibError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Msg, e.Code)
}

// LibConn is a connection driven through modernc.org/sqlite/lib, below
// database/sql.
//
// The database/sql drivers rewrite cells of DATE, DATETIME, TIMESTAMP and
// BOOLEAN columns from the declared column type. A LibConn returns each cell
// as stored, tagged with its runtime storage class.
//
// A LibConn is not safe for concurrent use. Only the interrupt installed by
// Watch runs on another goroutine.
type LibConn struct {
	tls *libc.TLS

	// mu guards db against an interrupt racing Close.
	mu sync.Mutex
	db uintptr
}

// openLib opens path read/write, creating it if absent.
func openLib(path string, busyTimeoutMs int) (*LibConn, error) {
	patchOnce.Do(sqlite3.PatchIssue199)

	c := &LibConn{tls: libc.NewTLS()}
	if err := c.open(path); err != nil {
		c.tls.Close()
		return nil, err
	}
	if rc := sqlite3.Xsqlite3_extended_result_codes(c.tls, c.db, 1); rc != sqlite3.SQLITE_OK {
		err := c.errstr(rc)
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	if rc := sqlite3.Xsqlite3_busy_timeout(c.tls, c.db, int32(busyTimeoutMs)); rc != sqlite3.SQLITE_OK {
		err := c.errstr(rc)
		c.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return c, nil
}

func (c *LibConn) open(path string) error {
	pdb := c.malloc(int(ptrSize))
	if pdb == 0 {
		return fmt.Errorf("opening %s: out of memory", path)
	}
	defer c.free(pdb)
	*(*uintptr)(unsafe.Pointer(pdb)) = 0

	name, err := libc.CString(path)
	if err != nil {
		return err
	}
	defer c.free(name)

	flags := int32(sqlite3.SQLITE_OPEN_READWRITE | sqlite3.SQLITE_OPEN_CREATE | sqlite3.SQLITE_OPEN_FULLMUTEX)
	rc := sqlite3.Xsqlite3_open_v2(c.tls, name, pdb, flags, 0)
	c.db = *(*uintptr)(unsafe.Pointer(pdb))
	if rc != sqlite3.SQLITE_OK {
		err := c.errstr(rc)
		if c.db != 0 {
			sqlite3.Xsqlite3_close_v2(c.tls, c.db)
			c.db = 0
		}
		return err
	}
	return nil
}

// Prepare compiles the first statement in query. Leading empty statements
// are skipped; text after the first statement is ignored.
func (c *LibConn) Prepare(query string) (*LibStmt, error) {
	if c.db == 0 {
		return nil, fmt.Errorf("prepare on closed connection")
	}

	zSQL, err := libc.CString(query)
	if err != nil {
		return nil, err
	}
	defer c.free(zSQL)

	ppStmt := c.malloc(int(ptrSize))
	pzTail := c.malloc(int(ptrSize))
	defer c.free(ppStmt)
	defer c.free(pzTail)
	if ppStmt == 0 || pzTail == 0 {
		return nil, fmt.Errorf("prepare: out of memory")
	}

	for next := zSQL; ; {
		if rc := sqlite3.Xsqlite3_prepare_v2(c.tls, c.db, next, -1, ppStmt, pzTail); rc != sqlite3.SQLITE_OK {
			return nil, c.errstr(rc)
		}
		if pstmt := *(*uintptr)(unsafe.Pointer(ppStmt)); pstmt != 0 {
			return &LibStmt{c: c, pstmt: pstmt}, nil
		}
		tail := *(*uintptr)(unsafe.Pointer(pzTail))
		if tail == 0 || tail == next || *(*byte)(unsafe.Pointer(tail)) == 0 {
			return nil, fmt.Errorf("no statement in %q", query)
		}
		next = tail
	}
}

// Exec runs every row of the first statement in query to completion.
func (c *LibConn) Exec(ctx context.Context, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stmt, err := c.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck // Statement is finalised either way

	stop := c.Watch(ctx)
	defer stop()
	for {
		more, err := stmt.Step()
		if err != nil || !more {
			return err
		}
	}
}

// QueryInt64 returns the first column of the first row of query, or 0 when
// it produces no rows.
func (c *LibConn) QueryInt64(ctx context.Context, query string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	stmt, err := c.Prepare(query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close() //nolint:errcheck // Statement is finalised either way

	stop := c.Watch(ctx)
	defer stop()
	more, err := stmt.Step()
	if err != nil || !more {
		return 0, err
	}
	return stmt.ColumnInt64(0), nil
}

// Watch interrupts the running statement when ctx ends. The returned
// function stops watching and must be called once the statement is done.
func (c *LibConn) Watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.interrupt()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (c *LibConn) interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != 0 {
		sqlite3.Xsqlite3_interrupt(c.tls, c.db)
	}
}

// Close closes the connection. Closing twice is harmless.
func (c *LibConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == 0 {
		return nil
	}
	rc := sqlite3.Xsqlite3_close_v2(c.tls, c.db)
	var err error
	if rc != sqlite3.SQLITE_OK {
		err = c.errstr(rc)
	}
	c.db = 0
	c.tls.Close()
	return err
}

func (c *LibConn) malloc(n int) uintptr {
	return libc.Xmalloc(c.tls, types.Size_t(n))
}

func (c *LibConn) free(p uintptr) {
	if p != 0 {
		libc.Xfree(c.tls, p)
	}
}

func (c *LibConn) errstr(rc int32) error {
	str := libc.GoString(sqlite3.Xsqlite3_errstr(c.tls, rc))
	if c.db == 0 {
		return &LibError{Code: int(rc), Msg: str}
	}
	msg := libc.GoString(sqlite3.Xsqlite3_errmsg(c.tls, c.db))
	if msg == "" || msg == str {
		return &LibError{Code: int(rc), Msg: str}
	}
	return &LibError{Code: int(rc), Msg: str + ": " + msg}
}

// LibStmt is one prepared statement on a LibConn. Parameter indexes are
// 1-based and column indexes 0-based, as in the C API.
type LibStmt struct {
	c      *LibConn
	pstmt  uintptr
	allocs []uintptr
}

// BindCount returns the number of parameters the statement expects.
func (s *LibStmt) BindCount() int {
	return int(sqlite3.Xsqlite3_bind_parameter_count(s.c.tls, s.pstmt))
}

// BindNull binds NULL to parameter i.
func (s *LibStmt) BindNull(i int) error {
	return s.check(sqlite3.Xsqlite3_bind_null(s.c.tls, s.pstmt, int32(i)))
}

// BindInt64 binds an integer to parameter i.
func (s *LibStmt) BindInt64(i int, v int64) error {
	return s.check(sqlite3.Xsqlite3_bind_int64(s.c.tls, s.pstmt, int32(i), v))
}

// BindFloat binds a float to parameter i.
func (s *LibStmt) BindFloat(i int, v float64) error {
	return s.check(sqlite3.Xsqlite3_bind_double(s.c.tls, s.pstmt, int32(i), v))
}

// BindText binds UTF-8 text to parameter i.
func (s *LibStmt) BindText(i int, v string) error {
	p, err := libc.CString(v)
	if err != nil {
		return err
	}
	s.allocs = append(s.allocs, p)
	return s.check(sqlite3.Xsqlite3_bind_text(s.c.tls, s.pstmt, int32(i), p, int32(len(v)), 0))
}

// BindBlob binds v to parameter i. An empty v binds a zero-length blob,
// never NULL.
func (s *LibStmt) BindBlob(i int, v []byte) error {
	if len(v) == 0 {
		return s.check(sqlite3.Xsqlite3_bind_zeroblob(s.c.tls, s.pstmt, int32(i), 0))
	}
	p := s.c.malloc(len(v))
	if p == 0 {
		return fmt.Errorf("binding %d bytes: out of memory", len(v))
	}
	s.allocs = append(s.allocs, p)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(p)), len(v)), v)
	return s.check(sqlite3.Xsqlite3_bind_blob(s.c.tls, s.pstmt, int32(i), p, int32(len(v)), 0))
}

// Step advances the statement. It reports true while a row is available.
func (s *LibStmt) Step() (bool, error) {
	switch rc := sqlite3.Xsqlite3_step(s.c.tls, s.pstmt); rc {
	case sqlite3.SQLITE_ROW:
		return true, nil
	case sqlite3.SQLITE_DONE:
		return false, nil
	default:
		return false, s.c.errstr(rc)
	}
}

// ColumnCount returns the number of result columns.
func (s *LibStmt) ColumnCount() int {
	return int(sqlite3.Xsqlite3_column_count(s.c.tls, s.pstmt))
}

// ColumnName returns the name of result column i.
func (s *LibStmt) ColumnName(i int) string {
	return libc.GoString(sqlite3.Xsqlite3_column_name(s.c.tls, s.pstmt, int32(i)))
}

// ColumnType returns the storage class of column i in the current row.
func (s *LibStmt) ColumnType(i int) ColumnType {
	return ColumnType(sqlite3.Xsqlite3_column_type(s.c.tls, s.pstmt, int32(i)))
}

// ColumnInt64 returns column i of the current row as an integer.
func (s *LibStmt) ColumnInt64(i int) int64 {
	return sqlite3.Xsqlite3_column_int64(s.c.tls, s.pstmt, int32(i))
}

// ColumnFloat returns column i of the current row as a float.
func (s *LibStmt) ColumnFloat(i int) float64 {
	return sqlite3.Xsqlite3_column_double(s.c.tls, s.pstmt, int32(i))
}

// ColumnText returns column i of the current row as text.
func (s *LibStmt) ColumnText(i int) string {
	p := sqlite3.Xsqlite3_column_text(s.c.tls, s.pstmt, int32(i))
	n := int(sqlite3.Xsqlite3_column_bytes(s.c.tls, s.pstmt, int32(i)))
	if p == 0 || n == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

// ColumnBlob returns a copy of column i of the current row. A zero-length
// blob is an empty, non-nil slice.
func (s *LibStmt) ColumnBlob(i int) []byte {
	p := sqlite3.Xsqlite3_column_blob(s.c.tls, s.pstmt, int32(i))
	n := int(sqlite3.Xsqlite3_column_bytes(s.c.tls, s.pstmt, int32(i)))
	out := make([]byte, n)
	if p != 0 && n > 0 {
		copy(out, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	}
	return out
}

// Close finalises the statement and frees bound buffers.
func (s *LibStmt) Close() error {
	if s.pstmt == 0 {
		return nil
	}
	rc := sqlite3.Xsqlite3_finalize(s.c.tls, s.pstmt)
	s.pstmt = 0
	for _, p := range s.allocs {
		s.c.free(p)
	}
	s.allocs = nil
	// After a failed Step, finalize reports the same error again.
	if rc != sqlite3.SQLITE_OK {
		return s.c.errstr(rc)
	}
	return nil
}

func (s *LibStmt) check(rc int32) error {
	if rc != sqlite3.SQLITE_OK {
		return s.c.errstr(rc)
	}
	return nil
}
