package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// executor prepares, binds and steps single statements on one connection.
// Bound values reach the engine untouched and result cells come back in
// their runtime storage class, whatever type the column declares.
type executor interface {
	exec(ctx context.Context, sqlText string, params []value.Value, mode bindMode) error
	query(ctx context.Context, sqlText string, params []value.Value) ([]value.Row, error)
}

// newExecutor picks the executor for the connection db holds.
func newExecutor(db *database.DB) executor {
	if lib := db.Lib(); lib != nil {
		return libExecutor{conn: lib}
	}
	return sqlExecutor{conn: db.Conn()}
}

// bindMode controls how a parameter list is checked against placeholders.
type bindMode int

const (
	// bindStrict requires the parameter count to match the placeholders.
	bindStrict bindMode = iota
	// bindNone runs the statement without parameters; placeholders bind NULL.
	bindNone
)

// checkBindCount applies mode to a statement expecting n parameters.
// A negative n means the driver cannot tell.
func checkBindCount(n int, params []value.Value, mode bindMode) error {
	if mode == bindStrict && n >= 0 && n != len(params) {
		return fmt.Errorf("%w: statement expects %d parameters, got %d", ErrBind, n, len(params))
	}
	return nil
}

// scalarInt runs a single-column, single-row integer query such as
// "SELECT changes()". A query returning no rows yields 0.
func scalarInt(ctx context.Context, e executor, sqlText string) (int64, error) {
	rows, err := e.query(ctx, sqlText, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	cols := rows[0].Columns()
	if len(cols) == 0 {
		return 0, nil
	}
	v, _ := rows[0].Get(cols[0])
	switch v.Kind() {
	case value.KindInteger:
		return v.Int(), nil
	case value.KindNull:
		return 0, nil
	default:
		return 0, &ExecutionError{SQL: sqlText, Err: fmt.Errorf("expected integer result, got %s", v.Kind())}
	}
}

// leadingCode returns sqlText from its first token of code, skipping
// whitespace, comments and empty statements. It returns "" when sqlText holds
// no code at all.
func leadingCode(sqlText string) string {
	for i := 0; i < len(sqlText); {
		rest := sqlText[i:]
		switch {
		case strings.HasPrefix(rest, "--"):
			nl := strings.IndexByte(rest, '\n')
			if nl < 0 {
				return ""
			}
			i += nl + 1
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest[2:], "*/")
			if end < 0 {
				return ""
			}
			i += end + 4
		case strings.IndexByte(" \t\n\r\f\v;", rest[0]) >= 0:
			i++
		default:
			return rest
		}
	}
	return ""
}

// statementText strips leading empty statements from sqlText and rejects
// text without code.
func statementText(sqlText string) (string, error) {
	code := leadingCode(sqlText)
	if code == "" {
		return "", &ExecutionError{SQL: sqlText, Err: errEmptyStatement}
	}
	return code, nil
}

// splitStatements breaks a script into statements on ';'.
//
// Separators inside string literals, quoted or bracketed identifiers and
// comments are not split points. Fragments are trimmed; empty and
// comment-only fragments are dropped.
func splitStatements(script string) []string {
	var (
		stmts []string
		start int
		code  bool
	)
	emit := func(end int) {
		if s := strings.TrimSpace(script[start:end]); s != "" && code {
			stmts = append(stmts, s)
		}
		code = false
	}

	for i := 0; i < len(script); i++ {
		switch c := script[i]; c {
		case '\'', '"', '`':
			i = skipQuoted(script, i, c)
			code = true
		case '[':
			i = skipQuoted(script, i, ']')
			code = true
		case '-':
			if i+1 < len(script) && script[i+1] == '-' {
				if nl := strings.IndexByte(script[i:], '\n'); nl >= 0 {
					i += nl
				} else {
					i = len(script)
				}
				continue
			}
			code = true
		case '/':
			if i+1 < len(script) && script[i+1] == '*' {
				if end := strings.Index(script[i+2:], "*/"); end >= 0 {
					i += end + 3
				} else {
					i = len(script)
				}
				continue
			}
			code = true
		case ';':
			emit(i)
			start = i + 1
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			code = true
		}
	}
	if start < len(script) {
		emit(len(script))
	}
	return stmts
}

// skipQuoted returns the index of the closing delimiter for the quoted run
// starting at open. A doubled delimiter is an escaped literal character.
// An unterminated run extends to the end of the script.
func skipQuoted(script string, open int, closer byte) int {
	for j := open + 1; j < len(script); j++ {
		if script[j] != closer {
			continue
		}
		if closer != ']' && j+1 < len(script) && script[j+1] == closer {
			j++
			continue
		}
		return j
	}
	return len(script)
}
