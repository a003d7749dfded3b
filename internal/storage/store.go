package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrOpenSession is returned by SessionStore.Create when the user already
// has an IN_PROGRESS session. The single-open-session invariant is enforced
// here, at the store boundary, not by caller convention.
var ErrOpenSession = errors.New("storage: user already has an open session")

// ErrNotOpen is returned by conditional session writes (Close, Split) when
// the session has already left IN_PROGRESS. The losing writer's update is
// dropped, never partially applied.
var ErrNotOpen = errors.New("storage: session is not open")

// ErrConflict is returned when a conditional write loses: a
// CompareAndSetReputation whose expected points are stale, or a RecordStats
// on a session that is already scored.
var ErrConflict = errors.New("storage: reputation changed concurrently")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
	NoiseEvents() NoiseEventStore
	Users() UserStore
}

// SessionStore manages usage session records.
type SessionStore interface {
	// Create stores a new IN_PROGRESS session. Fails with ErrOpenSession
	// if the user already has one.
	Create(ctx context.Context, session UsageSession) error

	Get(ctx context.Context, id string) (*UsageSession, error)

	// LatestOpen returns the user's IN_PROGRESS session, ErrNotFound if none.
	LatestOpen(ctx context.Context, userID string) (*UsageSession, error)

	// LatestCompleted returns the user's most recent COMPLETED session by
	// check-in time, ErrNotFound if none.
	LatestCompleted(ctx context.Context, userID string) (*UsageSession, error)

	// ListOpen returns every IN_PROGRESS session across all users.
	ListOpen(ctx context.Context) ([]UsageSession, error)

	// ListForUser returns all of a user's sessions ordered by check-in
	// ascending.
	ListForUser(ctx context.Context, userID string) ([]UsageSession, error)

	// Close sets check-out and a terminal status on an open session.
	// Fails with ErrNotOpen if the session already left IN_PROGRESS.
	Close(ctx context.Context, id string, at time.Time, status SessionStatus, usedMinutes int) error

	// RecordStats attaches aggregate noise statistics to a closed session
	// and marks it scored. Stats are written at most once; a second call
	// fails with ErrConflict so a retried close never scores twice.
	RecordStats(ctx context.Context, id string, avgDecibel, maxDecibel, quietRatio float64) error

	// Split atomically closes the session COMPLETED at boundary and creates
	// a new IN_PROGRESS session with id newID for the same user checking in
	// at boundary. Either both writes happen or neither. Fails with
	// ErrNotOpen if the session already left IN_PROGRESS.
	Split(ctx context.Context, id string, boundary time.Time, newID string) error
}

// NoiseEventStore manages decibel samples. Appends are independent, so
// concurrent ingestion needs no cross-call coordination.
type NoiseEventStore interface {
	Add(ctx context.Context, event NoiseEvent) error

	// ListRange returns the user's events with measured-at in [from, to),
	// ordered ascending by measured-at.
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]NoiseEvent, error)

	// CountAbove counts the user's events in [from, to) whose decibel
	// exceeds threshold.
	CountAbove(ctx context.Context, userID string, threshold float64, from, to time.Time) (int, error)
}

// UserStore manages user records and their reputation fields.
type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	Upsert(ctx context.Context, user User) error

	// CompareAndSetReputation writes points and grade together only if the
	// stored points still equal oldPoints. Fails with ErrConflict otherwise,
	// so read-modify-write score application never loses an update.
	CompareAndSetReputation(ctx context.Context, id string, oldPoints, newPoints int, grade Grade) error
}
