package occupancy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hushlab/hushd/internal/clock"
	"github.com/hushlab/hushd/internal/metrics"
	"github.com/hushlab/hushd/internal/storage"
)

var (
	// ErrUserNotFound is returned when an operation references an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoOpenSession is returned when a check-out or expiry finds nothing to close.
	ErrNoOpenSession = errors.New("no open session")

	// ErrAlreadyCheckedIn is returned when a user with an open session checks in again.
	ErrAlreadyCheckedIn = errors.New("already checked in")
)

// Manager owns the usage-session lifecycle: check-in opens a session,
// check-out and expiry close it with a terminal status.
type Manager struct {
	store  storage.Store
	clock  clock.Clock
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a session manager backed by the given store.
func NewManager(store storage.Store, clk clock.Clock, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		clock:  clk,
		logger: logger.With().Str("component", "occupancy").Logger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing lifecycle operations for one user.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// CheckIn opens a new session for the user. A user can hold at most one
// open session; a second check-in fails with ErrAlreadyCheckedIn.
func (m *Manager) CheckIn(ctx context.Context, userID string) (*storage.UsageSession, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := m.store.Users().Get(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	session := storage.UsageSession{
		ID:      storage.NewID(),
		UserID:  userID,
		CheckIn: m.clock.Now(),
		Status:  storage.StatusInProgress,
	}
	if err := m.store.Sessions().Create(ctx, session); err != nil {
		if errors.Is(err, storage.ErrOpenSession) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, err
	}

	metrics.CheckInsTotal.Inc()
	m.logger.Info().
		Str("user_id", userID).
		Str("session_id", session.ID).
		Time("check_in", session.CheckIn).
		Msg("User checked in")
	return &session, nil
}

// History returns all of the user's sessions ordered by check-in.
func (m *Manager) History(ctx context.Context, userID string) ([]storage.UsageSession, error) {
	if _, err := m.store.Users().Get(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return m.store.Sessions().ListForUser(ctx, userID)
}

// CheckOut closes the user's open session as COMPLETED.
func (m *Manager) CheckOut(ctx context.Context, userID string) (*storage.UsageSession, error) {
	return m.closeOpen(ctx, userID, storage.StatusCompleted)
}

// Expire closes the user's open session as EXPIRED. Used when a reservation
// lapses without the user checking out.
func (m *Manager) Expire(ctx context.Context, userID string) (*storage.UsageSession, error) {
	return m.closeOpen(ctx, userID, storage.StatusExpired)
}

func (m *Manager) closeOpen(ctx context.Context, userID string, status storage.SessionStatus) (*storage.UsageSession, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	open, err := m.store.Sessions().LatestOpen(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	now := m.clock.Now()
	used := usedMinutes(open.CheckIn, now)
	if err := m.store.Sessions().Close(ctx, open.ID, now, status, used); err != nil {
		if errors.Is(err, storage.ErrNotOpen) {
			// Lost the race to another closer (or the midnight splitter).
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	open.CheckOut = &now
	open.Status = status
	open.UsedMinutes = used

	metrics.SessionsClosedTotal.WithLabelValues(string(status)).Inc()
	metrics.UsedMinutesTotal.Add(float64(used))
	m.logger.Info().
		Str("user_id", userID).
		Str("session_id", open.ID).
		Str("status", string(status)).
		Int("used_minutes", used).
		Msg("Session closed")
	return open, nil
}

// usedMinutes reports whole minutes elapsed between check-in and check-out,
// never negative.
func usedMinutes(checkIn, checkOut time.Time) int {
	minutes := int(checkOut.Sub(checkIn) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}
