// Package postgres provides a Postgres-backed persistent store that mirrors
// the in-memory semantics while snapshotting the whole state document after
// every successful transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"opsledger/internal/infra/persistence/memory"
	"opsledger/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/opsledger?sslmode=disable"

	// StateKey is the primary key of the single persisted document.
	StateKey = "offline_ops_v2"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation
// for transactions.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	logf func(format string, args ...any)
}

// Option adjusts store construction.
type Option func(*Store)

// WithLogf routes store warnings to fn.
func WithLogf(fn func(format string, args ...any)) Option {
	return func(s *Store) {
		if fn != nil {
			s.logf = fn
		}
	}
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN). It ensures the state table exists and hydrates the
// in-memory store from any existing document, seeding a fresh one otherwise.
func NewStore(dsn string, engine *domain.RulesEngine, opts ...Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	snapshot, found, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	if !found {
		snapshot = memory.SeedSnapshot()
	}
	mem.ImportState(snapshot)
	s := &Store{Store: mem, db: db, logf: func(format string, args ...any) {}}
	for _, opt := range opts {
		opt(s)
	}
	if !found {
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RunInTransaction applies fn within a transaction, then snapshots to
// Postgres if successful. The in-memory commit stands even when the snapshot
// write fails; the failure is only logged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		s.logf("state snapshot to postgres failed, continuing in memory: %v", err)
	}
	return res, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, bool, error) {
	var payload []byte
	err := db.QueryRowContext(ctx, `SELECT payload FROM state WHERE key = $1`, StateKey).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return memory.Snapshot{}, false, nil
	case err != nil:
		return memory.Snapshot{}, false, fmt.Errorf("select state: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("decode state: %w", err)
	}
	return snapshot, true, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(key,payload) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET payload=excluded.payload`, StateKey, payload); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}
