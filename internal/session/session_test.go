package session

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// TestSession_NotesScenario covers create, insert and read back on a new file.
func TestSession_NotesScenario(t *testing.T) {
	s := openTestSession(t, "")
	ctx := context.Background()

	if _, err := s.ExecuteRaw(ctx, "CREATE TABLE t(x INTEGER)"); err != nil {
		t.Fatalf("ExecuteRaw() error = %v", err)
	}

	res, err := s.RunOne(ctx, "INSERT INTO t(x) VALUES (?)", []value.Value{value.Integer(42)})
	if err != nil {
		t.Fatalf("RunOne() error = %v", err)
	}
	if res.Changes != 1 || res.LastID != 1 {
		t.Errorf("RunOne() = %+v, want {Changes:1 LastID:1}", res)
	}

	rows, err := s.QueryOne(ctx, "SELECT x FROM t", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("QueryOne() returned %d rows, want 1", len(rows))
	}
	if v, ok := rows[0].Get("x"); !ok || !v.Equal(value.Integer(42)) {
		t.Errorf("row x = %v, want 42", v)
	}
}

// TestSession_ExecuteRawDDL verifies a two-statement DDL script.
func TestSession_ExecuteRawDDL(t *testing.T) {
	s := openTestSession(t, "")
	ctx := context.Background()

	changes, err := s.ExecuteRaw(ctx, "CREATE TABLE a(id INTEGER);CREATE TABLE b(id INTEGER);")
	if err != nil {
		t.Fatalf("ExecuteRaw() error = %v", err)
	}
	if changes != 0 {
		t.Errorf("ExecuteRaw() changes = %d, want 0", changes)
	}

	rows, err := s.QueryOne(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("found %d tables, want 2", len(rows))
	}
	for i, want := range []string{"a", "b"} {
		if v, _ := rows[i].Get("name"); v.Str() != want {
			t.Errorf("table[%d] = %v, want %s", i, v, want)
		}
	}
}

func TestSession_SchemaVersion(t *testing.T) {
	s := openTestSession(t, "")
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != 0 {
		t.Errorf("SchemaVersion() = %d, want 0", v)
	}

	if _, err := s.ExecuteRaw(ctx, "PRAGMA user_version = 5"); err != nil {
		t.Fatalf("ExecuteRaw() error = %v", err)
	}
	v, err = s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != 5 {
		t.Errorf("SchemaVersion() = %d, want 5", v)
	}
}

// TestSession_ExecuteRaw covers splitting and the last-statement counter.
func TestSession_ExecuteRaw(t *testing.T) {
	t.Run("returns changes of last statement", func(t *testing.T) {
		s := openTestSession(t, "")
		changes, err := s.ExecuteRaw(context.Background(), `
			CREATE TABLE t(s TEXT);
			INSERT INTO t VALUES ('a'), ('b'), ('c');
			UPDATE t SET s = 'z' WHERE s <> 'a';
		`)
		if err != nil {
			t.Fatalf("ExecuteRaw() error = %v", err)
		}
		if changes != 2 {
			t.Errorf("ExecuteRaw() changes = %d, want 2", changes)
		}
	})

	t.Run("separator inside literal", func(t *testing.T) {
		s := openTestSession(t, "")
		ctx := context.Background()
		if _, err := s.ExecuteRaw(ctx, "CREATE TABLE t(s TEXT); INSERT INTO t VALUES ('a;b'); -- trailing; comment"); err != nil {
			t.Fatalf("ExecuteRaw() error = %v", err)
		}
		rows, err := s.QueryOne(ctx, "SELECT s FROM t", nil)
		if err != nil {
			t.Fatalf("QueryOne() error = %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("QueryOne() returned %d rows, want 1", len(rows))
		}
		if v, _ := rows[0].Get("s"); v.Str() != "a;b" {
			t.Errorf("s = %v, want a;b", v)
		}
	})

	t.Run("failure keeps earlier statements", func(t *testing.T) {
		s := openTestSession(t, "")
		ctx := context.Background()
		_, err := s.ExecuteRaw(ctx, "CREATE TABLE a(x); INSERT INTO a VALUES (1); INSERT INTO missing VALUES (2)")

		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Fatalf("ExecuteRaw() error = %v, want *ExecutionError", err)
		}
		if execErr.SQL != "INSERT INTO missing VALUES (2)" {
			t.Errorf("ExecutionError.SQL = %q", execErr.SQL)
		}
		if !errors.Is(err, ErrExecution) {
			t.Error("error should match ErrExecution")
		}

		rows, err := s.QueryOne(ctx, "SELECT x FROM a", nil)
		if err != nil {
			t.Fatalf("QueryOne() error = %v", err)
		}
		if len(rows) != 1 {
			t.Errorf("table a has %d rows, want 1", len(rows))
		}
	})
}

func TestSession_RunOneErrors(t *testing.T) {
	s := openTestSession(t, "")
	ctx := context.Background()
	if _, err := s.ExecuteRaw(ctx, "CREATE TABLE t(x INTEGER NOT NULL)"); err != nil {
		t.Fatalf("ExecuteRaw() error = %v", err)
	}

	tests := []struct {
		name    string
		sql     string
		params  []value.Value
		wantErr error
	}{
		{name: "too few params", sql: "INSERT INTO t(x) VALUES (?)", params: nil, wantErr: ErrBind},
		{name: "too many params", sql: "INSERT INTO t(x) VALUES (?)", params: []value.Value{value.Integer(1), value.Integer(2)}, wantErr: ErrBind},
		{name: "syntax error", sql: "INSERT INTO", wantErr: ErrExecution},
		{name: "missing table", sql: "INSERT INTO nope VALUES (1)", wantErr: ErrExecution},
		{name: "constraint", sql: "INSERT INTO t(x) VALUES (?)", params: []value.Value{value.Null()}, wantErr: ErrExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RunOne(ctx, tt.sql, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RunOne() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := s.QueryOne(ctx, "SELECT x FROM t WHERE x = ?", nil); !errors.Is(err, ErrBind) {
		t.Errorf("QueryOne() error = %v, want ErrBind", err)
	}
}

func TestSession_QueryOne(t *testing.T) {
	s := openTestSession(t, "")
	ctx := context.Background()

	t.Run("empty result is non-nil", func(t *testing.T) {
		if _, err := s.ExecuteRaw(ctx, "CREATE TABLE e(x)"); err != nil {
			t.Fatalf("ExecuteRaw() error = %v", err)
		}
		rows, err := s.QueryOne(ctx, "SELECT x FROM e", nil)
		if err != nil {
			t.Fatalf("QueryOne() error = %v", err)
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("QueryOne() = %#v, want empty non-nil slice", rows)
		}
	})

	t.Run("column order and duplicates", func(t *testing.T) {
		rows, err := s.QueryOne(ctx, "SELECT 3 AS c, 1 AS a, 2 AS c", nil)
		if err != nil {
			t.Fatalf("QueryOne() error = %v", err)
		}
		cols := rows[0].Columns()
		if len(cols) != 2 || cols[0] != "c" || cols[1] != "a" {
			t.Errorf("Columns() = %v, want [c a]", cols)
		}
		if v, _ := rows[0].Get("c"); !v.Equal(value.Integer(2)) {
			t.Errorf("c = %v, want 2", v)
		}
	})

	t.Run("decodes by runtime type", func(t *testing.T) {
		if _, err := s.ExecuteRaw(ctx, "CREATE TABLE m(v INTEGER); INSERT INTO m VALUES (1), ('one'), (1.5), (NULL), (x'00ff')"); err != nil {
			t.Fatalf("ExecuteRaw() error = %v", err)
		}
		rows, err := s.QueryOne(ctx, "SELECT v FROM m ORDER BY rowid", nil)
		if err != nil {
			t.Fatalf("QueryOne() error = %v", err)
		}
		want := []value.Kind{value.KindInteger, value.KindText, value.KindFloat, value.KindNull, value.KindBlob}
		if len(rows) != len(want) {
			t.Fatalf("QueryOne() returned %d rows, want %d", len(rows), len(want))
		}
		for i, k := range want {
			if v, _ := rows[i].Get("v"); v.Kind() != k {
				t.Errorf("row %d kind = %s, want %s", i, v.Kind(), k)
			}
		}
	})
}

// TestSession_RoundTrip binds every kind and reads it back unchanged.
func TestSession_RoundTrip(t *testing.T) {
	s := openTestSession(t, "")
	ctx := context.Background()
	if _, err := s.ExecuteRaw(ctx, "CREATE TABLE v(c)"); err != nil {
		t.Fatalf("ExecuteRaw() error = %v", err)
	}

	for _, want := range roundTripValues() {
		res, err := s.RunOne(ctx, "INSERT INTO v(c) VALUES (?)", []value.Value{want})
		if err != nil {
			t.Fatalf("RunOne(%v) error = %v", want, err)
		}
		rows, err := s.QueryOne(ctx, "SELECT c FROM v WHERE rowid = ?", []value.Value{value.Integer(res.LastID)})
		if err != nil {
			t.Fatalf("QueryOne() error = %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("QueryOne() returned %d rows, want 1", len(rows))
		}
		if got, _ := rows[0].Get("c"); !got.Equal(want) {
			t.Errorf("round trip %v (%s) = %v (%s)", want, want.Kind(), got, got.Kind())
		}
	}
}

// TestSession_Drivers runs the core scenarios on each supported driver.
func TestSession_Drivers(t *testing.T) {
	for _, driver := range []string{database.DriverCGO, database.DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			s := openTestSession(t, driver)
			ctx := context.Background()

			if _, err := s.ExecuteRaw(ctx, "CREATE TABLE t(x INTEGER); CREATE TABLE v(c)"); err != nil {
				t.Fatalf("ExecuteRaw() error = %v", err)
			}
			res, err := s.RunOne(ctx, "INSERT INTO t(x) VALUES (?)", []value.Value{value.Integer(42)})
			if err != nil {
				t.Fatalf("RunOne() error = %v", err)
			}
			if res.Changes != 1 || res.LastID != 1 {
				t.Errorf("RunOne() = %+v, want {Changes:1 LastID:1}", res)
			}

			for _, want := range roundTripValues() {
				res, err := s.RunOne(ctx, "INSERT INTO v(c) VALUES (?)", []value.Value{want})
				if err != nil {
					t.Fatalf("RunOne(%v) error = %v", want, err)
				}
				rows, err := s.QueryOne(ctx, "SELECT c FROM v WHERE rowid = ?", []value.Value{value.Integer(res.LastID)})
				if err != nil {
					t.Fatalf("QueryOne() error = %v", err)
				}
				if got, _ := rows[0].Get("c"); !got.Equal(want) {
					t.Errorf("round trip %v = %v", want, got)
				}
			}

			total, err := s.ExecuteSet(ctx, []BatchItem{
				{SQL: "INSERT INTO t(x) VALUES (?)", Params: []value.Value{value.Integer(1)}},
				{SQL: "INSERT INTO t(x) VALUES (?)", Params: []value.Value{value.Integer(2)}},
			}, true)
			if err != nil {
				t.Fatalf("ExecuteSet() error = %v", err)
			}
			if total != 2 {
				t.Errorf("ExecuteSet() = %d, want 2", total)
			}
		})
	}
}

// TestSession_DeclaredTypesIgnored stores values in BOOLEAN, DATETIME, DATE
// and TIMESTAMP columns, which drivers like to convert, and expects every cell
// back in the storage class SQLite holds it in.
func TestSession_DeclaredTypesIgnored(t *testing.T) {
	for _, driver := range []string{database.DriverCGO, database.DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			s := openTestSession(t, driver)
			ctx := context.Background()

			if _, err := s.ExecuteRaw(ctx, "CREATE TABLE t(b BOOLEAN, d DATETIME, dt DATE, ts TIMESTAMP)"); err != nil {
				t.Fatalf("ExecuteRaw() error = %v", err)
			}
			params := []value.Value{
				value.Integer(42),
				value.Integer(42),
				value.Text("2024-01-01"),
				value.Text("not a time"),
			}
			if _, err := s.RunOne(ctx, "INSERT INTO t VALUES (?, ?, ?, ?)", params); err != nil {
				t.Fatalf("RunOne() error = %v", err)
			}
			if _, err := s.RunOne(ctx, "INSERT INTO t VALUES (?, ?, ?, ?)", []value.Value{
				value.Integer(0), value.Float(1.5), value.Blob([]byte{1}), value.Null(),
			}); err != nil {
				t.Fatalf("RunOne() error = %v", err)
			}

			rows, err := s.QueryOne(ctx, "SELECT b, d, dt, ts FROM t ORDER BY rowid", nil)
			if err != nil {
				t.Fatalf("QueryOne() error = %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("QueryOne() returned %d rows, want 2", len(rows))
			}

			want := [][]value.Value{
				params,
				{value.Integer(0), value.Float(1.5), value.Blob([]byte{1}), value.Null()},
			}
			for r, row := range rows {
				for i, col := range []string{"b", "d", "dt", "ts"} {
					got, _ := row.Get(col)
					if !got.Equal(want[r][i]) {
						t.Errorf("row %d %s = %v (%s), want %v (%s)", r, col, got, got.Kind(), want[r][i], want[r][i].Kind())
					}
				}
			}
		})
	}
}

// TestSession_EmptyStatements sends text without any code. It must fail as
// an execution error and leave the session usable.
func TestSession_EmptyStatements(t *testing.T) {
	blanks := []string{"", "   ", "\n\t", "-- c", "-- c\n", "/* c */", " ; ;", "/* unterminated"}

	for _, driver := range []string{database.DriverCGO, database.DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			s := openTestSession(t, driver)
			ctx := context.Background()

			for _, sqlText := range blanks {
				if _, err := s.RunOne(ctx, sqlText, nil); !errors.Is(err, ErrExecution) {
					t.Errorf("RunOne(%q) error = %v, want ErrExecution", sqlText, err)
				}
				if _, err := s.QueryOne(ctx, sqlText, nil); !errors.Is(err, ErrExecution) {
					t.Errorf("QueryOne(%q) error = %v, want ErrExecution", sqlText, err)
				}
			}

			_, err := s.ExecuteSet(ctx, []BatchItem{{SQL: "SELECT 1"}, {SQL: "-- c"}}, true)
			var batchErr *BatchError
			if !errors.As(err, &batchErr) || batchErr.Index != 1 || !errors.Is(err, ErrExecution) {
				t.Errorf("ExecuteSet() error = %v, want execution failure at item 1", err)
			}

			// A script of only comments has nothing to run.
			if _, err := s.ExecuteRaw(ctx, "-- c\n/* d */ ;"); err != nil {
				t.Errorf("ExecuteRaw() with comments only error = %v", err)
			}

			// Leading empty statements and comments are skipped.
			rows, err := s.QueryOne(ctx, "; -- lead\n/* x */ SELECT 7 AS n", nil)
			if err != nil {
				t.Fatalf("QueryOne() error = %v", err)
			}
			if v, _ := rows[0].Get("n"); !v.Equal(value.Integer(7)) {
				t.Errorf("n = %v, want 7", v)
			}
		})
	}
}

func TestLeadingCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: " \t\n", want: ""},
		{in: ";;", want: ""},
		{in: "-- only", want: ""},
		{in: "/* only */ ;", want: ""},
		{in: "/* open", want: ""},
		{in: "SELECT 1", want: "SELECT 1"},
		{in: " ; -- c\n SELECT 1; SELECT 2", want: "SELECT 1; SELECT 2"},
		{in: "/**/SELECT '--'", want: "SELECT '--'"},
		{in: "- 1", want: "- 1"},
	}
	for _, tt := range tests {
		if got := leadingCode(tt.in); got != tt.want {
			t.Errorf("leadingCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSession_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "life.db")
	s := New("life", database.Config{Path: path}, nil)
	ctx := context.Background()

	if s.IsOpen() {
		t.Fatal("new session should be closed")
	}
	if _, err := s.QueryOne(ctx, "SELECT 1", nil); !errors.Is(err, ErrNotOpen) {
		t.Errorf("QueryOne() on closed session error = %v, want ErrNotOpen", err)
	}

	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if !s.IsOpen() {
		t.Error("IsOpen() = false after Open")
	}
	if err := s.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	checks := map[string]error{}
	_, checks["ExecuteRaw"] = s.ExecuteRaw(ctx, "SELECT 1")
	_, checks["RunOne"] = s.RunOne(ctx, "SELECT 1", nil)
	_, checks["SchemaVersion"] = s.SchemaVersion(ctx)
	_, checks["ExecuteSet"] = s.ExecuteSet(ctx, nil, true)
	checks["HealthCheck"] = s.HealthCheck(ctx)
	for op, err := range checks {
		if !errors.Is(err, ErrNotOpen) {
			t.Errorf("%s() on closed session error = %v, want ErrNotOpen", op, err)
		}
	}
}

func TestSession_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.db")
	s := New("gone", database.Config{Path: path}, nil)
	ctx := context.Background()

	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.ExecuteRaw(ctx, "CREATE TABLE t(x); INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("ExecuteRaw() error = %v", err)
	}

	if err := s.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s.IsOpen() {
		t.Error("session still open after Delete")
	}
	for _, p := range database.FilePaths(path) {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still exists after Delete", p)
		}
	}
}

func TestSession_OpenErrors(t *testing.T) {
	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.db")
		junk := make([]byte, 2048)
		for i := range junk {
			junk[i] = byte(i % 7)
		}
		if err := os.WriteFile(path, junk, 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		s := New("bad", database.Config{Path: path, BusyTimeout: 1}, nil)
		if err := s.Open(context.Background()); !errors.Is(err, ErrOpen) {
			t.Errorf("Open() error = %v, want ErrOpen", err)
		}
		if s.IsOpen() {
			t.Error("session open after failed Open")
		}
	})

	t.Run("parent is a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		s := New("x", database.Config{Path: filepath.Join(blocker, "x.db")}, nil)
		if err := s.Open(context.Background()); !errors.Is(err, ErrOpen) {
			t.Errorf("Open() error = %v, want ErrOpen", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "only separators", in: " ; ;\n;", want: nil},
		{name: "single without separator", in: "SELECT 1", want: []string{"SELECT 1"}},
		{name: "two statements", in: "CREATE TABLE a(id);CREATE TABLE b(id);", want: []string{"CREATE TABLE a(id)", "CREATE TABLE b(id)"}},
		{name: "trims", in: "  SELECT 1 ;\n\tSELECT 2\n", want: []string{"SELECT 1", "SELECT 2"}},
		{name: "single quotes", in: "INSERT INTO t VALUES ('a;b');SELECT 1", want: []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"}},
		{name: "escaped quote", in: "SELECT 'it''s;fine';SELECT 2", want: []string{"SELECT 'it''s;fine'", "SELECT 2"}},
		{name: "double quoted identifier", in: `SELECT "a;b" FROM t;SELECT 2`, want: []string{`SELECT "a;b" FROM t`, "SELECT 2"}},
		{name: "bracket identifier", in: "SELECT [a;b] FROM t;SELECT 2", want: []string{"SELECT [a;b] FROM t", "SELECT 2"}},
		{name: "line comment", in: "SELECT 1; -- a; b\nSELECT 2", want: []string{"SELECT 1", "-- a; b\nSELECT 2"}},
		{name: "comment only fragment", in: "SELECT 1; -- done;", want: []string{"SELECT 1"}},
		{name: "block comment", in: "SELECT /* ; */ 1;SELECT 2", want: []string{"SELECT /* ; */ 1", "SELECT 2"}},
		{name: "unterminated quote", in: "SELECT 'a;b", want: []string{"SELECT 'a;b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("splitStatements(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitStatements(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// roundTripValues returns one value per kind, with edge cases.
func roundTripValues() []value.Value {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	vals := []value.Value{
		value.Null(),
		value.Integer(0),
		value.Integer(-1),
		value.Integer(1),
		value.Integer(math.MinInt64),
		value.Integer(math.MaxInt64),
		value.Float(-2.5),
		value.Float(0.1),
		value.Float(3),
		value.Float(math.Inf(1)),
		value.Float(math.Inf(-1)),
		value.Text(""),
		value.Text("ünïcode ✓"),
		value.Blob(all),
		value.Blob(nil),
	}
	return vals
}

// openTestSession opens a session on a temporary file and closes it on cleanup.
func openTestSession(t *testing.T, driver string) *Session {
	t.Helper()

	s := New("test", database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		Driver:      driver,
		BusyTimeout: 5,
	}, nil)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close() //nolint:errcheck // Test cleanup
	})
	return s
}
