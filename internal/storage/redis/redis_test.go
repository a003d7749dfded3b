package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hushlab/hushd/internal/config"
	"github.com/hushlab/hushd/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // full "host:port" address
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestSessionStore_CreateEnforcesSingleOpen(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	first := storage.UsageSession{ID: "s1", UserID: "user-a", CheckIn: checkIn, Status: storage.StatusInProgress}
	if err := sessions.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := storage.UsageSession{ID: "s2", UserID: "user-a", CheckIn: checkIn.Add(time.Minute), Status: storage.StatusInProgress}
	if err := sessions.Create(ctx, second); !errors.Is(err, storage.ErrOpenSession) {
		t.Fatalf("expected ErrOpenSession, got %v", err)
	}

	open, err := sessions.LatestOpen(ctx, "user-a")
	if err != nil {
		t.Fatalf("LatestOpen failed: %v", err)
	}
	if open.ID != "s1" {
		t.Errorf("expected open session s1, got %s", open.ID)
	}
}

func TestSessionStore_CloseAndLatestCompleted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	session := storage.UsageSession{ID: "s1", UserID: "user-a", CheckIn: checkIn, Status: storage.StatusInProgress}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	checkOut := checkIn.Add(2 * time.Hour)
	if err := sessions.Close(ctx, "s1", checkOut, storage.StatusCompleted, 120); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := sessions.Close(ctx, "s1", checkOut, storage.StatusExpired, 120); !errors.Is(err, storage.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen on double close, got %v", err)
	}

	latest, err := sessions.LatestCompleted(ctx, "user-a")
	if err != nil {
		t.Fatalf("LatestCompleted failed: %v", err)
	}
	if latest.ID != "s1" || latest.UsedMinutes != 120 {
		t.Errorf("unexpected latest completed session: %+v", latest)
	}
	if latest.CheckOut == nil || !latest.CheckOut.Equal(checkOut) {
		t.Errorf("unexpected check-out: %v", latest.CheckOut)
	}

	if _, err := sessions.LatestOpen(ctx, "user-a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no open session, got %v", err)
	}
}

func TestSessionStore_SplitIsAtomic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	checkIn := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	midnight := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	session := storage.UsageSession{ID: "s1", UserID: "user-a", CheckIn: checkIn, Status: storage.StatusInProgress}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := sessions.Split(ctx, "s1", midnight, "s2"); err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	closed, err := sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get closed session failed: %v", err)
	}
	if closed.Status != storage.StatusCompleted || closed.UsedMinutes != 120 {
		t.Errorf("closed half wrong: %+v", closed)
	}

	reopened, err := sessions.LatestOpen(ctx, "user-a")
	if err != nil {
		t.Fatalf("LatestOpen after split failed: %v", err)
	}
	if reopened.ID != "s2" || !reopened.CheckIn.Equal(midnight) {
		t.Errorf("reopened half wrong: %+v", reopened)
	}

	if err := sessions.Split(ctx, "s1", midnight, "s3"); !errors.Is(err, storage.ErrNotOpen) {
		t.Errorf("expected ErrNotOpen on re-split, got %v", err)
	}
}

func TestSessionStore_SplitClampsUsedMinutes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	// Check-in recorded after the boundary, as with a skewed clock.
	checkIn := time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC)
	boundary := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	session := storage.UsageSession{ID: "s1", UserID: "user-a", CheckIn: checkIn, Status: storage.StatusInProgress}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sessions.Split(ctx, "s1", boundary, "s2"); err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	closed, err := sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if closed.UsedMinutes != 0 {
		t.Errorf("expected 0 used minutes, got %d", closed.UsedMinutes)
	}
}

func TestSessionStore_RecordStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	sessions := store.Sessions()

	checkIn := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	session := storage.UsageSession{ID: "s1", UserID: "user-a", CheckIn: checkIn, Status: storage.StatusInProgress}
	if err := sessions.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := sessions.Close(ctx, "s1", checkIn.Add(time.Hour), storage.StatusCompleted, 60); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := sessions.RecordStats(ctx, "s1", 42.5, 61.0, 0.93); err != nil {
		t.Fatalf("RecordStats failed: %v", err)
	}

	// Retried writes lose; the first stats stand.
	if err := sessions.RecordStats(ctx, "s1", 90.0, 99.0, 0.1); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on second record, got %v", err)
	}

	got, err := sessions.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Scored || got.AvgDecibel != 42.5 || got.MaxDecibel != 61.0 || got.QuietRatio != 0.93 {
		t.Errorf("stats overwritten or not marked scored: %+v", got)
	}

	if err := sessions.RecordStats(ctx, "missing", 40, 50, 0.9); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNoiseEventStore_RangeAndCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	events := store.NoiseEvents()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, db := range []float64{40, 46, 52, 44} {
		event := storage.NoiseEvent{
			UserID:     "user-a",
			Decibel:    db,
			MeasuredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := events.Add(ctx, event); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	// [from, to) excludes the event at exactly +3m.
	inRange, err := events.ListRange(ctx, "user-a", base, base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("ListRange failed: %v", err)
	}
	if len(inRange) != 3 {
		t.Fatalf("expected 3 events, got %d", len(inRange))
	}

	over, err := events.CountAbove(ctx, "user-a", 45.0, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CountAbove failed: %v", err)
	}
	if over != 2 {
		t.Errorf("expected 2 events above threshold, got %d", over)
	}
}

func TestUserStore_CompareAndSetReputation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	users := store.Users()

	user := storage.User{ID: "user-a", Name: "A", Points: 150, Grade: storage.GradeWarning}
	if err := users.Upsert(ctx, user); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := users.CompareAndSetReputation(ctx, "user-a", 150, 165, storage.GradeGood); err != nil {
		t.Fatalf("CompareAndSetReputation failed: %v", err)
	}

	got, err := users.Get(ctx, "user-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Points != 165 || got.Grade != storage.GradeGood {
		t.Errorf("reputation not applied: %+v", got)
	}

	if err := users.CompareAndSetReputation(ctx, "user-a", 150, 180, storage.GradeGood); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if err := users.CompareAndSetReputation(ctx, "missing", 0, 5, storage.GradeWarning); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
