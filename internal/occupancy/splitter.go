package occupancy

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hushlab/hushd/internal/clock"
	"github.com/hushlab/hushd/internal/metrics"
	"github.com/hushlab/hushd/internal/storage"
)

// MidnightSplitter closes every open session at local midnight and reopens
// it immediately, so daily usage figures never span two days.
type MidnightSplitter struct {
	store    storage.Store
	clock    clock.Clock
	logger   zerolog.Logger
	stopChan chan struct{}
}

// NewMidnightSplitter creates a splitter backed by the given store.
func NewMidnightSplitter(store storage.Store, clk clock.Clock, logger zerolog.Logger) *MidnightSplitter {
	return &MidnightSplitter{
		store:    store,
		clock:    clk,
		logger:   logger.With().Str("component", "midnight-splitter").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the splitter loop.
func (ms *MidnightSplitter) Start() {
	go ms.run()
	ms.logger.Info().Msg("Midnight session splitter started")
}

// Stop stops the splitter loop.
func (ms *MidnightSplitter) Stop() {
	close(ms.stopChan)
	ms.logger.Info().Msg("Midnight session splitter stopped")
}

func (ms *MidnightSplitter) run() {
	for {
		next := ms.calculateNextMidnight()
		waitDuration := next.Sub(ms.clock.Now())

		ms.logger.Info().
			Time("next_split", next).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next midnight split")

		select {
		case <-time.After(waitDuration):
			ms.SplitAll(context.Background(), next)
		case <-ms.stopChan:
			return
		}
	}
}

// calculateNextMidnight returns the upcoming local midnight.
func (ms *MidnightSplitter) calculateNextMidnight() time.Time {
	now := ms.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

// SplitAll splits every open session at the given boundary. Each split is
// independent; one failing session does not stop the sweep. Sessions that
// were closed between listing and splitting are skipped.
func (ms *MidnightSplitter) SplitAll(ctx context.Context, boundary time.Time) {
	open, err := ms.store.Sessions().ListOpen(ctx)
	if err != nil {
		ms.logger.Error().Err(err).Msg("Failed to list open sessions for midnight split")
		return
	}

	split := 0
	for _, session := range open {
		newID := storage.NewID()
		err := ms.store.Sessions().Split(ctx, session.ID, boundary, newID)
		if errors.Is(err, storage.ErrNotOpen) || errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			ms.logger.Error().Err(err).
				Str("session_id", session.ID).
				Str("user_id", session.UserID).
				Msg("Failed to split session at midnight")
			continue
		}
		split++
		metrics.SessionsSplitTotal.Inc()
		ms.logger.Debug().
			Str("user_id", session.UserID).
			Str("old_session_id", session.ID).
			Str("new_session_id", newID).
			Msg("Session split at midnight")
	}

	ms.logger.Info().
		Int("open_sessions", len(open)).
		Int("split", split).
		Time("boundary", boundary).
		Msg("Midnight split complete")
}
