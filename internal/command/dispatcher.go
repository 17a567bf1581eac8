package command

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives one sample per dispatched command.
type Recorder interface {
	RecordCommand(op, database string, duration time.Duration, err error)
}

// ChangeEvent describes a successful command that changed a database.
type ChangeEvent struct {
	Database  string    `json:"database"`
	Op        string    `json:"op"`
	Changes   int64     `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is told about every ChangeEvent. Notify must not block.
type Notifier interface {
	NotifyChange(ev ChangeEvent)
}

// Dispatcher executes commands against a Registry.
//
// It is the single entry point for all transports: it validates the command,
// runs it, and reports the outcome to the optional recorder and notifiers.
type Dispatcher struct {
	registry Registry
	logger   Logger
	recorder Recorder

	mu        sync.RWMutex
	notifiers []Notifier
}

// NewDispatcher creates a Dispatcher over reg.
func NewDispatcher(reg Registry) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetRecorder sets where per-command metrics are sent. Nil disables them.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// AddNotifier registers a receiver for change events.
func (d *Dispatcher) AddNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.notifiers = append(d.notifiers, n)
}

// Dispatch validates and executes cmd.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := cmd.execute(ctx, d.registry)
	elapsed := time.Since(start)

	if d.recorder != nil {
		d.recorder.RecordCommand(cmd.Op(), cmd.DatabaseName(), elapsed, err)
	}

	if err != nil {
		d.logger.Warn("command failed",
			"op", cmd.Op(),
			"database", cmd.DatabaseName(),
			"code", ErrorCode(err),
			"error", err,
		)
		return nil, err
	}

	d.logger.Debug("command executed",
		"op", cmd.Op(),
		"database", cmd.DatabaseName(),
		"duration", elapsed,
	)

	if changes, ok := changedRows(cmd, result); ok {
		d.notify(ChangeEvent{
			Database:  cmd.DatabaseName(),
			Op:        cmd.Op(),
			Changes:   changes,
			Timestamp: time.Now().UTC(),
		})
	}
	return result, nil
}

// DispatchRaw decodes op and its JSON arguments and dispatches the command.
func (d *Dispatcher) DispatchRaw(ctx context.Context, op string, args json.RawMessage) (any, error) {
	cmd, err := Decode(op, args)
	if err != nil {
		d.logger.Debug("command rejected", "op", op, "error", err)
		return nil, err
	}
	return d.Dispatch(ctx, cmd)
}

func (d *Dispatcher) notify(ev ChangeEvent) {
	d.mu.RLock()
	notifiers := d.notifiers
	d.mu.RUnlock()

	for _, n := range notifiers {
		n.NotifyChange(ev)
	}
}

// changedRows reports whether a successful command is a write worth an
// event, and how many rows it changed.
func changedRows(cmd Command, result any) (int64, bool) {
	switch r := result.(type) {
	case ChangesResult:
		return r.Changes.Changes, true
	case RunResult:
		return r.Changes.Changes, true
	}
	if _, ok := cmd.(DeleteDatabase); ok {
		return 0, true
	}
	return 0, false
}
