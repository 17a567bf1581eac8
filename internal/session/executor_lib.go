package session

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// libExecutor runs statements on a database.LibConn and decodes cells by the
// column type SQLite reports for each one.
type libExecutor struct {
	conn *database.LibConn
}

func (e libExecutor) exec(ctx context.Context, sqlText string, params []value.Value, mode bindMode) error {
	stmt, err := e.prepare(ctx, sqlText, params, mode)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck // Statement is finalised either way

	stop := e.conn.Watch(ctx)
	defer stop()
	for {
		more, err := stmt.Step()
		if err != nil {
			return &ExecutionError{SQL: sqlText, Err: err}
		}
		if !more {
			return nil
		}
	}
}

func (e libExecutor) query(ctx context.Context, sqlText string, params []value.Value) ([]value.Row, error) {
	stmt, err := e.prepare(ctx, sqlText, params, bindStrict)
	if err != nil {
		return nil, err
	}
	defer stmt.Close() //nolint:errcheck // Statement is finalised either way

	stop := e.conn.Watch(ctx)
	defer stop()

	n := stmt.ColumnCount()
	names := make([]string, n)
	for i := range names {
		names[i] = stmt.ColumnName(i)
	}

	out := []value.Row{}
	for {
		more, err := stmt.Step()
		if err != nil {
			return nil, &ExecutionError{SQL: sqlText, Err: err}
		}
		if !more {
			return out, nil
		}
		row := value.NewRow(n)
		for i, name := range names {
			row.Set(name, column(stmt, i))
		}
		out = append(out, row)
	}
}

// prepare compiles sqlText and binds params according to mode.
func (e libExecutor) prepare(ctx context.Context, sqlText string, params []value.Value, mode bindMode) (*database.LibStmt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ExecutionError{SQL: sqlText, Err: err}
	}
	text, err := statementText(sqlText)
	if err != nil {
		return nil, err
	}
	stmt, err := e.conn.Prepare(text)
	if err != nil {
		return nil, &ExecutionError{SQL: sqlText, Err: err}
	}
	if mode == bindNone {
		return stmt, nil
	}
	if err := checkBindCount(stmt.BindCount(), params, mode); err != nil {
		stmt.Close() //nolint:errcheck // Bind failure is reported instead
		return nil, err
	}
	for i, p := range params {
		if err := bind(stmt, i+1, p); err != nil {
			stmt.Close() //nolint:errcheck // Bind failure is reported instead
			return nil, fmt.Errorf("%w: parameter %d: %w", ErrBind, i+1, err)
		}
	}
	return stmt, nil
}

func bind(stmt *database.LibStmt, i int, v value.Value) error {
	switch v.Kind() {
	case value.KindInteger:
		return stmt.BindInt64(i, v.Int())
	case value.KindFloat:
		return stmt.BindFloat(i, v.Float64())
	case value.KindText:
		return stmt.BindText(i, v.Str())
	case value.KindBlob:
		return stmt.BindBlob(i, v.Bytes())
	default:
		return stmt.BindNull(i)
	}
}

// column decodes cell i of the current row strictly by its storage class.
func column(stmt *database.LibStmt, i int) value.Value {
	switch stmt.ColumnType(i) {
	case database.ColumnInteger:
		return value.Integer(stmt.ColumnInt64(i))
	case database.ColumnFloat:
		return value.Float(stmt.ColumnFloat(i))
	case database.ColumnText:
		return value.Text(stmt.ColumnText(i))
	case database.ColumnBlob:
		return value.Blob(stmt.ColumnBlob(i))
	default:
		return value.Null()
	}
}
