package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/sentinel/internal/record"
)

// State is the lifecycle position of a Store.
type State int32

const (
	StateUnopened State = iota
	StateUpgrading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateUpgrading:
		return "upgrading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// maxOpenConns bounds the pool. Readers share it; writers are serialized
// by BEGIN IMMEDIATE plus the collection locks.
const maxOpenConns = 4

// Store provides durable local storage for sentinel records.
// Uses SQLite with WAL mode so readers see the last committed snapshot
// while a write transaction is in progress.
//
// A Store is opened once per process and closed at shutdown. Every
// operation fails with ErrNotReady unless the store is in StateReady.
type Store struct {
	db    *sql.DB
	state atomic.Int32

	// barrier is held exclusively while migrating and while closing;
	// every other operation holds it shared.
	barrier sync.RWMutex
	locks   *collectionLocks

	ids record.IDGenerator
	now func() time.Time
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithIDGenerator sets the generator used for records the store creates
// itself (media produced by migration). Defaults to UUIDv7 ids.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithClock sets the wall clock used for timestamps the store writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open creates or opens a SQLite database at the given path and migrates it
// to SchemaVersion before returning.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - BEGIN IMMEDIATE for every transaction, so writers queue on the busy
//     timeout instead of failing on lock upgrade
//
// Migration runs to the exclusion of every other access. If it fails, the
// database is closed and a MIGRATION_FAILURE error is returned; no Store is
// handed out.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, ioError("open", "", "", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ioError("open", "", "", fmt.Errorf("failed to connect to database: %w", err))
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns)

	s := &Store{
		db:    db,
		locks: newCollectionLocks(),
		ids:   record.UUIDv7IDs{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.upgrade(context.Background(), SchemaVersion); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// dsn builds a go-sqlite3 connection string. Pragmas are passed as DSN
// parameters so they apply to every pooled connection, not just the first.
func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// upgrade moves the store through upgrading(v) to ready.
func (s *Store) upgrade(ctx context.Context, target int) error {
	s.barrier.Lock()
	defer s.barrier.Unlock()

	s.state.Store(int32(StateUpgrading))
	if err := migrate(ctx, s.db, target, s.ids, s.now); err != nil {
		s.state.Store(int32(StateUnopened))
		return err
	}
	s.state.Store(int32(StateReady))
	slog.Debug("store ready", "schema_version", target)
	return nil
}

// State reports the lifecycle position of the store.
func (s *Store) State() State {
	return State(s.state.Load())
}

// Close waits for in-flight operations and closes the database.
// Safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.barrier.Lock()
	defer s.barrier.Unlock()

	if State(s.state.Load()) == StateClosed {
		return nil
	}
	s.state.Store(int32(StateClosed))
	return s.db.Close()
}

// enter takes the shared side of the barrier and checks readiness.
// Callers must invoke the returned release func.
func (s *Store) enter() (func(), error) {
	s.barrier.RLock()
	if st := State(s.state.Load()); st != StateReady {
		s.barrier.RUnlock()
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, st)
	}
	return s.barrier.RUnlock, nil
}

// SchemaVersion reports the on-disk schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	release, err := s.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	return userVersion(ctx, s.db)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside one write transaction while holding the write locks
// of cols. Nothing fn wrote is visible to readers unless fn returns nil and
// the commit succeeds.
func (s *Store) withTx(ctx context.Context, op string, cols []record.Collection, fn func(tx *sql.Tx) error) error {
	release, err := s.enter()
	if err != nil {
		return err
	}
	defer release()

	unlock := s.locks.lock(cols...)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ioError(op, "", "", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return asStoreError(op, err)
	}

	if err := tx.Commit(); err != nil {
		return ioError(op, "", "", fmt.Errorf("commit: %w", err))
	}
	return nil
}
