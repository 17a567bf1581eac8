package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// sqlExecutor runs statements on a pinned database/sql connection, talking
// to the driver connection directly through (*sql.Conn).Raw.
type sqlExecutor struct {
	conn *sql.Conn
}

// exec prepares sqlText, binds params and steps it to completion.
func (e sqlExecutor) exec(ctx context.Context, sqlText string, params []value.Value, mode bindMode) error {
	text, err := statementText(sqlText)
	if err != nil {
		return err
	}
	return e.conn.Raw(func(dc any) error {
		stmt, err := prepare(ctx, dc, text)
		if err != nil {
			return &ExecutionError{SQL: sqlText, Err: err}
		}
		defer stmt.Close() //nolint:errcheck // Statement is finalised either way

		args, err := bindArgs(stmt, params, mode)
		if err != nil {
			return err
		}
		if err := execStmt(ctx, stmt, args); err != nil {
			return &ExecutionError{SQL: sqlText, Err: err}
		}
		return nil
	})
}

// query prepares sqlText, binds params and decodes every produced row.
func (e sqlExecutor) query(ctx context.Context, sqlText string, params []value.Value) ([]value.Row, error) {
	text, err := statementText(sqlText)
	if err != nil {
		return nil, err
	}
	rows := []value.Row{}
	err = e.conn.Raw(func(dc any) error {
		stmt, err := prepare(ctx, dc, text)
		if err != nil {
			return &ExecutionError{SQL: sqlText, Err: err}
		}
		defer stmt.Close() //nolint:errcheck // Statement is finalised either way

		args, err := bindArgs(stmt, params, bindStrict)
		if err != nil {
			return err
		}
		rows, err = queryStmt(ctx, stmt, args)
		if err != nil {
			return &ExecutionError{SQL: sqlText, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func prepare(ctx context.Context, dc any, sqlText string) (driver.Stmt, error) {
	if p, ok := dc.(driver.ConnPrepareContext); ok {
		return p.PrepareContext(ctx, sqlText)
	}
	c, ok := dc.(driver.Conn)
	if !ok {
		return nil, fmt.Errorf("unsupported driver connection %T", dc)
	}
	return c.Prepare(sqlText)
}

// bindArgs converts params into 1-based positional driver arguments.
// Drivers that cannot report their placeholder count return -1 from NumInput
// and are left to the engine's own checks.
func bindArgs(stmt driver.Stmt, params []value.Value, mode bindMode) ([]driver.NamedValue, error) {
	if mode == bindNone {
		return nil, nil
	}
	if err := checkBindCount(stmt.NumInput(), params, mode); err != nil {
		return nil, err
	}
	args := make([]driver.NamedValue, len(params))
	for i, p := range params {
		args[i] = driver.NamedValue{Ordinal: i + 1, Value: p.Driver()}
	}
	return args, nil
}

func execStmt(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) error {
	if s, ok := stmt.(driver.StmtExecContext); ok {
		_, err := s.ExecContext(ctx, args)
		return err
	}
	_, err := stmt.Exec(plainArgs(args)) //nolint:staticcheck // Fallback for drivers without context support
	return err
}

func queryStmt(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) ([]value.Row, error) {
	var (
		rows driver.Rows
		err  error
	)
	if s, ok := stmt.(driver.StmtQueryContext); ok {
		rows, err = s.QueryContext(ctx, args)
	} else {
		rows, err = stmt.Query(plainArgs(args)) //nolint:staticcheck // Fallback for drivers without context support
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	ignoreDeclTypes(rows)

	cols := rows.Columns()
	dest := make([]driver.Value, len(cols))
	out := []value.Row{}
	for {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, err
		}
		row := value.NewRow(len(cols))
		for i, name := range cols {
			v, err := value.FromDriver(dest[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			row.Set(name, v)
		}
		out = append(out, row)
	}
}

// ignoreDeclTypes stops mattn/go-sqlite3 converting cells of BOOLEAN, DATE,
// DATETIME and TIMESTAMP columns. DeclTypes returns the slice the driver
// consults on every Next, so blanking it leaves each cell in the storage
// class SQLite reports.
func ignoreDeclTypes(rows driver.Rows) {
	r, ok := rows.(*sqlite3.SQLiteRows)
	if !ok {
		return
	}
	decl := r.DeclTypes()
	for i := range decl {
		decl[i] = ""
	}
}

func plainArgs(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}
