// Package postgres implements the storage interfaces on PostgreSQL. The
// single-open-session invariant is a partial unique index, split is a
// transaction, and reputation CAS is a guarded UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hushlab/hushd/internal/storage"
	_ "github.com/lib/pq"
)

// Store implements the storage.Store interface using PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, pings, and bootstraps the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			points INT NOT NULL DEFAULT 0,
			grade TEXT NOT NULL DEFAULT 'WARNING' CHECK(grade IN ('WARNING','GOOD','SILENT')),
			seat_id TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS usage_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			check_in TIMESTAMPTZ NOT NULL,
			check_out TIMESTAMPTZ,
			status TEXT NOT NULL CHECK(status IN ('IN_PROGRESS','COMPLETED','EXPIRED')),
			used_minutes INT NOT NULL DEFAULT 0,
			avg_decibel DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_decibel DOUBLE PRECISION NOT NULL DEFAULT 0,
			quiet_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			scored BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_usage_sessions_user_check_in ON usage_sessions(user_id, check_in);`,
		// The single-open-session invariant lives here, not in caller
		// convention.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_usage_sessions_one_open
			ON usage_sessions(user_id) WHERE status = 'IN_PROGRESS';`,
		`CREATE TABLE IF NOT EXISTS noise_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			decibel DOUBLE PRECISION NOT NULL CHECK(decibel >= 0),
			measured_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_noise_events_user_measured_at ON noise_events(user_id, measured_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

// NoiseEvents returns the noise event store.
func (s *Store) NoiseEvents() storage.NoiseEventStore { return &noiseEventStore{db: s.db} }

// Users returns the user store.
func (s *Store) Users() storage.UserStore { return &userStore{db: s.db} }
