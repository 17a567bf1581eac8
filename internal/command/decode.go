package command

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/session"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// Args is the wire argument object shared by every operation. Pointer
// fields distinguish an omitted argument from an empty one.
type Args struct {
	Database    *string           `json:"database,omitempty"`
	Statements  *string           `json:"statements,omitempty"`
	Statement   *string           `json:"statement,omitempty"`
	Values      []json.RawMessage `json:"values,omitempty"`
	Set         []SetItem         `json:"set,omitempty"`
	Transaction *bool             `json:"transaction,omitempty"`
}

// SetItem is one wire batch item.
type SetItem struct {
	Statement *string           `json:"statement,omitempty"`
	Values    []json.RawMessage `json:"values,omitempty"`
}

// Decode builds the Command for op from its JSON argument object and
// validates it. Parameter values that have no SQLite storage class are
// rejected here with session.ErrBind.
func Decode(op string, raw json.RawMessage) (Command, error) {
	var args Args
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("%w: decoding arguments: %w", ErrInvalidArgument, err)
		}
	}

	cmd, err := build(op, args)
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func build(op string, a Args) (Command, error) {
	db := deref(a.Database)

	switch op {
	case OpOpen:
		return Open{Database: db}, nil
	case OpClose:
		return Close{Database: db}, nil
	case OpIsDBOpen:
		return IsDBOpen{Database: db}, nil
	case OpDeleteDatabase:
		return DeleteDatabase{Database: db}, nil
	case OpGetVersion:
		return GetVersion{Database: db}, nil
	case OpExecute:
		return Execute{Database: db, Statements: deref(a.Statements)}, nil
	case OpRun, OpQuery:
		values, err := parseValues(a.Values)
		if err != nil {
			return nil, err
		}
		if op == OpRun {
			return Run{Database: db, Statement: deref(a.Statement), Values: values}, nil
		}
		return Query{Database: db, Statement: deref(a.Statement), Values: values}, nil
	case OpExecuteSet:
		set, err := parseSet(a.Set)
		if err != nil {
			return nil, err
		}
		transaction := true
		if a.Transaction != nil {
			transaction = *a.Transaction
		}
		return ExecuteSet{Database: db, Set: set, Transaction: transaction}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
}

func parseValues(raws []json.RawMessage) ([]value.Value, error) {
	values, err := value.ParseJSONList(raws)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrBind, err)
	}
	return values, nil
}

func parseSet(items []SetItem) ([]session.BatchItem, error) {
	if items == nil {
		return nil, nil
	}
	set := make([]session.BatchItem, len(items))
	for i, item := range items {
		values, err := parseValues(item.Values)
		if err != nil {
			return nil, fmt.Errorf("set[%d]: %w", i, err)
		}
		set[i] = session.BatchItem{SQL: deref(item.Statement), Params: values}
	}
	return set, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
