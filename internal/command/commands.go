package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/session"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/value"
)

// Operation names as they appear on the wire.
const (
	OpOpen           = "open"
	OpClose          = "close"
	OpExecute        = "execute"
	OpRun            = "run"
	OpQuery          = "query"
	OpExecuteSet     = "executeSet"
	OpIsDBOpen       = "isDBOpen"
	OpDeleteDatabase = "deleteDatabase"
	OpGetVersion     = "getVersion"
)

// Ops lists every supported operation name.
var Ops = []string{
	OpOpen, OpClose, OpExecute, OpRun, OpQuery,
	OpExecuteSet, OpIsDBOpen, OpDeleteDatabase, OpGetVersion,
}

// ReadOnly reports whether op never changes a database or the set of open
// sessions.
func ReadOnly(op string) bool {
	switch op {
	case OpQuery, OpIsDBOpen, OpGetVersion:
		return true
	}
	return false
}

// Command is one operation with its arguments.
//
// The set of commands is closed: only types in this package implement it.
type Command interface {
	// Op returns the wire operation name.
	Op() string

	// DatabaseName returns the target database name.
	DatabaseName() string

	// Validate checks the arguments without touching any database.
	Validate() error

	execute(ctx context.Context, reg Registry) (any, error)
}

// Registry is the session lookup the commands run against.
// *session.Registry implements it.
type Registry interface {
	Open(ctx context.Context, name string) (*session.Session, error)
	Get(name string) (*session.Session, error)
	IsOpen(name string) bool
	Close(name string) error
	Delete(name string) error
}

// Empty is the result of commands that return nothing.
type Empty struct{}

// ChangeCount carries the rows changed by a write.
type ChangeCount struct {
	Changes int64 `json:"changes"`
}

// ChangesResult is the result of execute and executeSet.
type ChangesResult struct {
	Changes ChangeCount `json:"changes"`
}

// RunResult is the result of run.
type RunResult struct {
	Changes session.ExecutionResult `json:"changes"`
}

// QueryResult is the result of query. Values is never nil.
type QueryResult struct {
	Values []value.Row `json:"values"`
}

// BoolResult is the result of isDBOpen.
type BoolResult struct {
	Result bool `json:"result"`
}

// VersionResult is the result of getVersion.
type VersionResult struct {
	Version int64 `json:"version"`
}

// Open opens (or reuses) a database session.
type Open struct {
	Database string
}

// Close closes a database session.
type Close struct {
	Database string
}

// Execute runs a ';'-separated script without parameters.
type Execute struct {
	Database   string
	Statements string
}

// Run executes one parameterised write.
type Run struct {
	Database  string
	Statement string
	Values    []value.Value
}

// Query executes one parameterised read.
type Query struct {
	Database  string
	Statement string
	Values    []value.Value
}

// ExecuteSet runs a batch, in one transaction unless Transaction is false.
type ExecuteSet struct {
	Database    string
	Set         []session.BatchItem
	Transaction bool
}

// IsDBOpen reports whether a database has a live session.
type IsDBOpen struct {
	Database string
}

// DeleteDatabase closes a database and removes its files.
type DeleteDatabase struct {
	Database string
}

// GetVersion reads the schema version.
type GetVersion struct {
	Database string
}

func (Open) Op() string           { return OpOpen }
func (Close) Op() string          { return OpClose }
func (Execute) Op() string        { return OpExecute }
func (Run) Op() string            { return OpRun }
func (Query) Op() string          { return OpQuery }
func (ExecuteSet) Op() string     { return OpExecuteSet }
func (IsDBOpen) Op() string       { return OpIsDBOpen }
func (DeleteDatabase) Op() string { return OpDeleteDatabase }
func (GetVersion) Op() string     { return OpGetVersion }

func (c Open) DatabaseName() string           { return c.Database }
func (c Close) DatabaseName() string          { return c.Database }
func (c Execute) DatabaseName() string        { return c.Database }
func (c Run) DatabaseName() string            { return c.Database }
func (c Query) DatabaseName() string          { return c.Database }
func (c ExecuteSet) DatabaseName() string     { return c.Database }
func (c IsDBOpen) DatabaseName() string       { return c.Database }
func (c DeleteDatabase) DatabaseName() string { return c.Database }
func (c GetVersion) DatabaseName() string     { return c.Database }

func (c Open) Validate() error           { return validateDatabase(c.Database) }
func (c Close) Validate() error          { return validateDatabase(c.Database) }
func (c IsDBOpen) Validate() error       { return validateDatabase(c.Database) }
func (c DeleteDatabase) Validate() error { return validateDatabase(c.Database) }
func (c GetVersion) Validate() error     { return validateDatabase(c.Database) }

func (c Execute) Validate() error {
	if err := validateDatabase(c.Database); err != nil {
		return err
	}
	if strings.TrimSpace(c.Statements) == "" {
		return missing("statements")
	}
	return nil
}

func (c Run) Validate() error {
	if err := validateDatabase(c.Database); err != nil {
		return err
	}
	if strings.TrimSpace(c.Statement) == "" {
		return missing("statement")
	}
	return nil
}

func (c Query) Validate() error {
	if err := validateDatabase(c.Database); err != nil {
		return err
	}
	if strings.TrimSpace(c.Statement) == "" {
		return missing("statement")
	}
	return nil
}

func (c ExecuteSet) Validate() error {
	if err := validateDatabase(c.Database); err != nil {
		return err
	}
	if c.Set == nil {
		return missing("set")
	}
	for i, item := range c.Set {
		if strings.TrimSpace(item.SQL) == "" {
			return fmt.Errorf("%w: set[%d]: each item in 'set' must have a 'statement' string", ErrInvalidArgument, i)
		}
	}
	return nil
}

func (c Open) execute(ctx context.Context, reg Registry) (any, error) {
	if _, err := reg.Open(ctx, c.Database); err != nil {
		return nil, err
	}
	return Empty{}, nil
}

func (c Close) execute(_ context.Context, reg Registry) (any, error) {
	if err := reg.Close(c.Database); err != nil {
		return nil, err
	}
	return Empty{}, nil
}

func (c Execute) execute(ctx context.Context, reg Registry) (any, error) {
	s, err := reg.Get(c.Database)
	if err != nil {
		return nil, err
	}
	n, err := s.ExecuteRaw(ctx, c.Statements)
	if err != nil {
		return nil, err
	}
	return ChangesResult{Changes: ChangeCount{Changes: n}}, nil
}

func (c Run) execute(ctx context.Context, reg Registry) (any, error) {
	s, err := reg.Get(c.Database)
	if err != nil {
		return nil, err
	}
	res, err := s.RunOne(ctx, c.Statement, c.Values)
	if err != nil {
		return nil, err
	}
	return RunResult{Changes: res}, nil
}

func (c Query) execute(ctx context.Context, reg Registry) (any, error) {
	s, err := reg.Get(c.Database)
	if err != nil {
		return nil, err
	}
	rows, err := s.QueryOne(ctx, c.Statement, c.Values)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []value.Row{}
	}
	return QueryResult{Values: rows}, nil
}

func (c ExecuteSet) execute(ctx context.Context, reg Registry) (any, error) {
	s, err := reg.Get(c.Database)
	if err != nil {
		return nil, err
	}
	n, err := s.ExecuteSet(ctx, c.Set, c.Transaction)
	if err != nil {
		return nil, err
	}
	return ChangesResult{Changes: ChangeCount{Changes: n}}, nil
}

func (c IsDBOpen) execute(_ context.Context, reg Registry) (any, error) {
	return BoolResult{Result: reg.IsOpen(c.Database)}, nil
}

func (c DeleteDatabase) execute(_ context.Context, reg Registry) (any, error) {
	if err := reg.Delete(c.Database); err != nil {
		return nil, err
	}
	return Empty{}, nil
}

func (c GetVersion) execute(ctx context.Context, reg Registry) (any, error) {
	s, err := reg.Get(c.Database)
	if err != nil {
		return nil, err
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	return VersionResult{Version: v}, nil
}

func validateDatabase(name string) error {
	if name == "" {
		return missing("database")
	}
	return nil
}

func missing(param string) error {
	return fmt.Errorf("%w: missing '%s' parameter", ErrInvalidArgument, param)
}
