package occupancy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hushlab/hushd/internal/clock"
	"github.com/hushlab/hushd/internal/storage"
	"github.com/hushlab/hushd/internal/storage/bolt"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedUser(t *testing.T, store storage.Store, id string) {
	t.Helper()
	err := store.Users().Upsert(context.Background(), storage.User{
		ID:     id,
		Name:   "Test User",
		Points: 200,
		Grade:  storage.GradeGood,
		SeatID: "A-01",
	})
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

func TestCheckInCheckOut(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")

	clk := &clock.TestClock{CurrentTime: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	manager := NewManager(store, clk, zerolog.Nop())
	ctx := context.Background()

	session, err := manager.CheckIn(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if session.Status != storage.StatusInProgress {
		t.Errorf("Expected IN_PROGRESS, got %s", session.Status)
	}
	if !session.CheckIn.Equal(clk.CurrentTime) {
		t.Errorf("Expected check-in at %v, got %v", clk.CurrentTime, session.CheckIn)
	}

	clk.CurrentTime = clk.CurrentTime.Add(95 * time.Minute)
	closed, err := manager.CheckOut(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if closed.Status != storage.StatusCompleted {
		t.Errorf("Expected COMPLETED, got %s", closed.Status)
	}
	if closed.UsedMinutes != 95 {
		t.Errorf("Expected 95 used minutes, got %d", closed.UsedMinutes)
	}
	if closed.CheckOut == nil || !closed.CheckOut.Equal(clk.CurrentTime) {
		t.Errorf("Expected check-out at %v, got %v", clk.CurrentTime, closed.CheckOut)
	}
}

func TestCheckInUnknownUser(t *testing.T) {
	store := newTestStore(t)
	manager := NewManager(store, clock.RealClock{}, zerolog.Nop())

	_, err := manager.CheckIn(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestDoubleCheckIn(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")
	manager := NewManager(store, clock.RealClock{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := manager.CheckIn(ctx, "alice"); err != nil {
		t.Fatalf("First check-in failed: %v", err)
	}
	_, err := manager.CheckIn(ctx, "alice")
	if !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Errorf("Expected ErrAlreadyCheckedIn, got %v", err)
	}
}

func TestDoubleCheckOut(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")
	manager := NewManager(store, clock.RealClock{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := manager.CheckIn(ctx, "alice"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if _, err := manager.CheckOut(ctx, "alice"); err != nil {
		t.Fatalf("First check-out failed: %v", err)
	}

	// Second check-out has nothing left to close.
	_, err := manager.CheckOut(ctx, "alice")
	if !errors.Is(err, ErrNoOpenSession) {
		t.Errorf("Expected ErrNoOpenSession, got %v", err)
	}
}

func TestExpire(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")

	clk := &clock.TestClock{CurrentTime: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	manager := NewManager(store, clk, zerolog.Nop())
	ctx := context.Background()

	if _, err := manager.CheckIn(ctx, "alice"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}

	clk.CurrentTime = clk.CurrentTime.Add(3 * time.Hour)
	expired, err := manager.Expire(ctx, "alice")
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if expired.Status != storage.StatusExpired {
		t.Errorf("Expected EXPIRED, got %s", expired.Status)
	}
	if expired.UsedMinutes != 180 {
		t.Errorf("Expected 180 used minutes, got %d", expired.UsedMinutes)
	}

	// Expired sessions do not become the latest completed one.
	_, err = store.Sessions().LatestCompleted(ctx, "alice")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for latest completed, got %v", err)
	}
}

func TestCheckOutAfterReCheckIn(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")

	clk := &clock.TestClock{CurrentTime: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	manager := NewManager(store, clk, zerolog.Nop())
	ctx := context.Background()

	first, err := manager.CheckIn(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	clk.CurrentTime = clk.CurrentTime.Add(30 * time.Minute)
	if _, err := manager.CheckOut(ctx, "alice"); err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}

	clk.CurrentTime = clk.CurrentTime.Add(time.Hour)
	second, err := manager.CheckIn(ctx, "alice")
	if err != nil {
		t.Fatalf("Re-check-in failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("Expected a fresh session id on re-check-in")
	}

	clk.CurrentTime = clk.CurrentTime.Add(10 * time.Minute)
	closed, err := manager.CheckOut(ctx, "alice")
	if err != nil {
		t.Fatalf("Second check-out failed: %v", err)
	}
	if closed.ID != second.ID {
		t.Errorf("Closed the wrong session: %s", closed.ID)
	}
	if closed.UsedMinutes != 10 {
		t.Errorf("Expected 10 used minutes, got %d", closed.UsedMinutes)
	}
}
