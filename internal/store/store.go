// Package store provides the SQLite-backed record store that sync
// identifiers are persisted in.
//
// Records of every entity kind share one table. Kind-specific fields live in
// a JSON payload; the encoded sync identifier and the creation time are real
// columns, indexed for equality and IN-set lookups.
//
// All reads and writes go through a Context, which serializes work onto a
// single goroutine and owns at most one pending transaction.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

var (
	ErrUnknownEntity       = errors.New("unknown entity")
	ErrMalformedPredicate  = errors.New("malformed predicate")
	ErrClosed              = errors.New("store context closed")
	ErrNotFound            = errors.New("record not found")
	ErrIdentifierImmutable = errors.New("sync identifier already assigned")
)

// schemaVersion is recorded in PRAGMA user_version.
const schemaVersion = 1

// EntityDescriptor scopes queries to one entity kind.
type EntityDescriptor struct {
	Name string
}

// Store is a handle on one SQLite database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entropy *rand.Rand
	kinds   map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKinds registers entity kind names that EntityDescriptor accepts.
func WithKinds(names ...string) Option {
	return func(s *Store) {
		for _, n := range names {
			s.kinds[n] = true
		}
	}
}

// Open opens or creates a SQLite database at path.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:      db,
		path:    path,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		kinds:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Debug("store opened", "path", path, "kinds", s.Kinds())
	return s, nil
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	// idx_records_kind_sync is not UNIQUE. Lookups report duplicates.
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id                TEXT PRIMARY KEY,
		kind              TEXT NOT NULL,
		sync_display_uuid TEXT,
		created_at        TEXT NOT NULL,
		payload           TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind_sync ON records(kind, sync_display_uuid);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	if _, err := s.db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// RegisterKind adds an entity kind after Open.
func (s *Store) RegisterKind(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds[name] = true
}

// Kinds returns the registered kind names, sorted.
func (s *Store) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.kinds))
	for n := range s.kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EntityDescriptor returns the descriptor for a registered kind.
func (s *Store) EntityDescriptor(name string) (EntityDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.kinds[name] {
		return EntityDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return EntityDescriptor{Name: name}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Close closes the database. Contexts must be closed first.
func (s *Store) Close() error {
	return s.db.Close()
}
