package occupancy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hushlab/hushd/internal/clock"
)

func TestSplitAll(t *testing.T) {
	store := newTestStore(t)
	seedUser(t, store, "alice")
	seedUser(t, store, "bob")

	clk := &clock.TestClock{CurrentTime: time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)}
	manager := NewManager(store, clk, zerolog.Nop())
	ctx := context.Background()

	// Alice is still studying at midnight; Bob already left.
	if _, err := manager.CheckIn(ctx, "alice"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	if _, err := manager.CheckIn(ctx, "bob"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	clk.CurrentTime = clk.CurrentTime.Add(30 * time.Minute)
	if _, err := manager.CheckOut(ctx, "bob"); err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}

	midnight := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	clk.CurrentTime = midnight
	splitter := NewMidnightSplitter(store, clk, zerolog.Nop())
	splitter.SplitAll(ctx, midnight)

	// Alice's original session closed at the boundary with 120 minutes.
	completed, err := store.Sessions().LatestCompleted(ctx, "alice")
	if err != nil {
		t.Fatalf("LatestCompleted failed: %v", err)
	}
	if completed.UsedMinutes != 120 {
		t.Errorf("Expected 120 used minutes, got %d", completed.UsedMinutes)
	}
	if completed.CheckOut == nil || !completed.CheckOut.Equal(midnight) {
		t.Errorf("Expected check-out at midnight, got %v", completed.CheckOut)
	}

	// And a fresh open session starts at the boundary.
	reopened, err := store.Sessions().LatestOpen(ctx, "alice")
	if err != nil {
		t.Fatalf("LatestOpen failed: %v", err)
	}
	if !reopened.CheckIn.Equal(midnight) {
		t.Errorf("Expected check-in at midnight, got %v", reopened.CheckIn)
	}

	// Bob had no open session, so nothing changed for him.
	bobDone, err := store.Sessions().LatestCompleted(ctx, "bob")
	if err != nil {
		t.Fatalf("LatestCompleted failed: %v", err)
	}
	if bobDone.UsedMinutes != 30 {
		t.Errorf("Expected 30 used minutes, got %d", bobDone.UsedMinutes)
	}

	// Checking out after the split closes only the post-midnight remainder.
	clk.CurrentTime = midnight.Add(45 * time.Minute)
	closed, err := manager.CheckOut(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckOut after split failed: %v", err)
	}
	if closed.UsedMinutes != 45 {
		t.Errorf("Expected 45 used minutes, got %d", closed.UsedMinutes)
	}
}

func TestSplitAllEmpty(t *testing.T) {
	store := newTestStore(t)
	clk := &clock.TestClock{CurrentTime: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)}
	splitter := NewMidnightSplitter(store, clk, zerolog.Nop())

	// No open sessions: the sweep is a no-op.
	splitter.SplitAll(context.Background(), clk.CurrentTime)

	open, err := store.Sessions().ListOpen(context.Background())
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("Expected no open sessions, got %d", len(open))
	}
}

func TestCalculateNextMidnight(t *testing.T) {
	clk := &clock.TestClock{CurrentTime: time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)}
	splitter := NewMidnightSplitter(nil, clk, zerolog.Nop())

	next := splitter.calculateNextMidnight()
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}

	// Exactly at midnight the next boundary is the following day.
	clk.CurrentTime = want
	next = splitter.calculateNextMidnight()
	if !next.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("Expected %v, got %v", want.AddDate(0, 0, 1), next)
	}
}
