// Package sqlite persists the full application state to a single SQLite row
// as one JSON document. It snapshots state after every successful
// transaction, mirroring the whole-document persistence model.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"opsledger/internal/infra/persistence/memory"
	"opsledger/pkg/domain"
)

// StateKey is the primary key of the single persisted document.
const StateKey = "offline_ops_v2"

// Store persists the in-memory state to SQLite as a whole-document snapshot.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
	logf func(format string, args ...any)
}

// Option configures optional store behavior.
type Option func(*Store)

// WithLogf routes load warnings to the provided printf-style sink.
func WithLogf(fn func(format string, args ...any)) Option {
	return func(s *Store) {
		if fn != nil {
			s.logf = fn
		}
	}
}

// NewStore constructs a snapshotting SQLite-backed persistent store. A
// missing or unreadable document seeds the bootstrap state.
func NewStore(path string, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	if path == "" {
		path = "opsledger.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{
		Store: memory.NewStore(engine),
		db:    db,
		path:  path,
		logf:  func(format string, args ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE key = ?`, StateKey).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.ImportState(memory.SeedSnapshot())
		return s.persist()
	case err != nil:
		return fmt.Errorf("select state: %w", err)
	}

	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		s.logf("discarding unreadable state document at %s: %v", s.path, err)
		s.ImportState(memory.SeedSnapshot())
		return s.persist()
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.Exec(`INSERT INTO state(key,payload) VALUES(?,?) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`, StateKey, payload); err != nil {
		retErr = fmt.Errorf("upsert state: %w", err)
		return retErr
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful. The in-memory commit stands even when the snapshot
// write fails; the failure is only logged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		s.logf("state snapshot to %s failed, continuing in memory: %v", s.path, pErr)
	}
	return res, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
