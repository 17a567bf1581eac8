package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/database"
)

// Name constraints. Names become file names under the storage directory.
const (
	maxNameLength = 128
	fileExtension = ".db"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Config configures a Registry.
type Config struct {
	// Dir is the storage directory. Database "notes" lives at Dir/notes.db.
	Dir string

	// Driver selects the SQLite driver. Empty selects database.DriverCGO.
	Driver string

	// BusyTimeout is the lock wait in seconds passed to every session.
	BusyTimeout int
}

// Registry maps database names to their live Session.
//
// At most one Session exists per name. Open is an atomic get-or-create, so
// concurrent opens of one name share a single connection. The registry only
// holds open sessions; Close and Delete remove the entry.
type Registry struct {
	dir         string
	driver      string
	busyTimeout int

	mu       sync.Mutex
	sessions map[string]*Session
	logger   Logger
}

// NewRegistry creates an empty registry rooted at cfg.Dir.
// The directory itself is created lazily by the first Open.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if !database.ValidDriver(cfg.Driver) {
		return nil, fmt.Errorf("%w: %q", database.ErrUnknownDriver, cfg.Driver)
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage directory: %w", err)
	}
	return &Registry{
		dir:         dir,
		driver:      cfg.Driver,
		busyTimeout: cfg.BusyTimeout,
		sessions:    make(map[string]*Session),
		logger:      noopLogger{},
	}, nil
}

// SetLogger sets the logger for the registry and the sessions it creates.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger = logger
}

// Dir returns the absolute storage directory.
func (r *Registry) Dir() string {
	return r.dir
}

// ValidateName checks that name can be mapped to a file inside the storage
// directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains \"..\"", ErrInvalidName, name)
	case !namePattern.MatchString(name):
		return fmt.Errorf("%w: %q must match %s", ErrInvalidName, name, namePattern)
	}
	return nil
}

// Path returns the file path for name.
func (r *Registry) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, name+fileExtension), nil
}

// Open returns the live Session for name, opening it first if needed.
// A failed open leaves no entry behind.
func (r *Registry) Open(ctx context.Context, name string) (*Session, error) {
	path, err := r.Path(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[name]; ok {
		return s, nil
	}

	s := New(name, database.Config{
		Path:        path,
		Driver:      r.driver,
		BusyTimeout: r.busyTimeout,
	}, r.logger)
	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	r.sessions[name] = s
	return s, nil
}

// Get returns the live Session for name, or ErrNotOpen.
func (r *Registry) Get(name string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, name)
	}
	return s, nil
}

// IsOpen reports whether name has a live Session.
func (r *Registry) IsOpen(name string) bool {
	r.mu.Lock()
	s, ok := r.sessions[name]
	r.mu.Unlock()

	return ok && s.IsOpen()
}

// Close closes and forgets the Session for name.
// Closing a name that is not open is a no-op.
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[name]
	if !ok {
		return nil
	}
	delete(r.sessions, name)
	return s.Close()
}

// Delete closes the Session for name if there is one and removes the
// database file and its sidecars. Deleting a name that was never opened
// removes whatever files exist at its path and never creates any.
func (r *Registry) Delete(name string) error {
	path, err := r.Path(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[name]; ok {
		delete(r.sessions, name)
		return s.Delete()
	}
	return removeDatabaseFiles(name, path, r.logger)
}

// Names returns the names of all open databases, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown closes every open Session. The registry stays usable afterwards.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	logger := r.logger
	r.mu.Unlock()

	var errs []error
	for name, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("database closed on shutdown", "database", name)
	}
	return errors.Join(errs...)
}
