package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createStateTableSQL = `CREATE TABLE IF NOT EXISTS propagation_state (
        id              SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
        nvis_status     TEXT,
        mainland_status TEXT,
        timestamp_utc   TIMESTAMPTZ,
        updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	selectStateSQL = `SELECT
        nvis_status,
        mainland_status,
        timestamp_utc
    FROM propagation_state
    WHERE id = 1;`

	upsertStateSQL = `INSERT INTO propagation_state (
        id,
        nvis_status,
        mainland_status,
        timestamp_utc
    ) VALUES (
        1,$1,$2,$3
    )
    ON CONFLICT (id) DO UPDATE
    SET
        nvis_status     = EXCLUDED.nvis_status,
        mainland_status = EXCLUDED.mainland_status,
        timestamp_utc   = EXCLUDED.timestamp_utc,
        updated_at      = now();`

	pingSQL = `SELECT 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store keeps the propagation state in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the single-row state table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createStateTableSQL); err != nil {
		return fmt.Errorf("create propagation_state: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	var one int
	if err := pool.QueryRow(ctx, pingSQL).Scan(&one); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// LoadState returns the stored labels, or the empty state when no cycle has
// been recorded yet.
func (s *Store) LoadState(ctx context.Context) (PersistedState, error) {
	pool, err := s.getPool()
	if err != nil {
		return PersistedState{}, err
	}

	var (
		nvis, mainland *string
		ts             *time.Time
	)
	err = pool.QueryRow(ctx, selectStateSQL).Scan(&nvis, &mainland, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return PersistedState{}, nil
	}
	if err != nil {
		return PersistedState{}, fmt.Errorf("select propagation_state: %w", err)
	}

	state := PersistedState{Last: LastStatus{NVISStatus: nvis, MainlandStatus: mainland}}
	if ts != nil {
		stamp := FormatUTC(*ts)
		state.Last.TimestampUTC = &stamp
	}
	return state, nil
}

// SaveState upserts the single state row.
func (s *Store) SaveState(ctx context.Context, state PersistedState) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var ts *time.Time
	if state.Last.TimestampUTC != nil {
		parsed, err := ParseUTC(*state.Last.TimestampUTC)
		if err != nil {
			return fmt.Errorf("parse state timestamp: %w", err)
		}
		ts = &parsed
	}

	if _, err := pool.Exec(ctx, upsertStateSQL, state.Last.NVISStatus, state.Last.MainlandStatus, ts); err != nil {
		return fmt.Errorf("upsert propagation_state: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

var (
	_ StateStore     = (*Store)(nil)
	_ StateStore     = (*FileStateStore)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
