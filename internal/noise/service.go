package noise

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/hushlab/hushd/internal/clock"
	"github.com/hushlab/hushd/internal/metrics"
	"github.com/hushlab/hushd/internal/storage"
)

var (
	// ErrUserNotFound is returned when an operation references an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoSession is returned when no completed session exists to score or report on.
	ErrNoSession = errors.New("no completed session")

	// ErrSessionScored is returned when the latest completed session has
	// already been scored. A retried close must not change the reputation
	// again.
	ErrSessionScored = errors.New("session already scored")

	// ErrInvalidMeasurement is returned for samples or stats with out-of-range values.
	ErrInvalidMeasurement = errors.New("invalid measurement")
)

// casAttempts bounds the reputation update retry loop.
const casAttempts = 5

// Reputation is a user's current manner standing.
type Reputation struct {
	Points int           `json:"points"`
	Grade  storage.Grade `json:"grade"`
}

// ScoreSummary is the manner-score query result: the reputation plus the
// behavior behind it.
type ScoreSummary struct {
	Reputation
	// AvgDecibel is the mean of per-session average decibels across the
	// user's completed sessions with recorded stats.
	AvgDecibel float64 `json:"avgDecibel"`
	// TodayLoudCount is the number of above-threshold samples since local
	// midnight.
	TodayLoudCount int `json:"todayLoudCount"`
}

// Service ingests noise samples and converts closed-session behavior into
// manner-score updates.
type Service struct {
	store  storage.Store
	cache  *lru.Cache[string, ScoreSummary]
	clock  clock.Clock
	logger zerolog.Logger
}

// NewService creates a noise service with a reputation cache of the given size.
func NewService(store storage.Store, cacheSize int, clk clock.Clock, logger zerolog.Logger) (*Service, error) {
	cache, err := lru.New[string, ScoreSummary](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reputation cache: %w", err)
	}
	return &Service{
		store:  store,
		cache:  cache,
		clock:  clk,
		logger: logger.With().Str("component", "noise").Logger(),
	}, nil
}

// RecordEvent stores one decibel sample for the user. Negative or NaN
// readings are rejected and never stored. A zero measuredAt defaults to the
// current time.
func (s *Service) RecordEvent(ctx context.Context, userID string, decibel float64, measuredAt time.Time) error {
	if decibel < 0 || math.IsNaN(decibel) || math.IsInf(decibel, 0) {
		metrics.NoiseEventsRejected.Inc()
		return ErrInvalidMeasurement
	}
	if measuredAt.IsZero() {
		measuredAt = s.clock.Now()
	}
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.store.NoiseEvents().Add(ctx, storage.NoiseEvent{
		ID:         storage.NewID(),
		UserID:     userID,
		Decibel:    decibel,
		MeasuredAt: measuredAt,
	}); err != nil {
		return err
	}
	metrics.NoiseEventsTotal.Inc()
	return nil
}

// SessionStats are the client-reported aggregates for a finished session.
type SessionStats struct {
	AvgDecibel float64 `json:"avgDecibel"`
	MaxDecibel float64 `json:"maxDecibel"`
	QuietRatio float64 `json:"quietRatio"`
}

func (st SessionStats) validate() error {
	for _, v := range []float64{st.AvgDecibel, st.MaxDecibel, st.QuietRatio} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidMeasurement
		}
	}
	if st.QuietRatio > 1 {
		return ErrInvalidMeasurement
	}
	return nil
}

// CloseSession attaches the reported stats to the user's most recent
// completed session, scores it, and folds the delta into the user's
// reputation. Returns the updated reputation. A session is scored at most
// once; a retried close fails with ErrSessionScored.
func (s *Service) CloseSession(ctx context.Context, userID string, stats SessionStats) (*Reputation, error) {
	if err := stats.validate(); err != nil {
		return nil, err
	}

	session, err := s.store.Sessions().LatestCompleted(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if err := s.store.Sessions().RecordStats(ctx, session.ID, stats.AvgDecibel, stats.MaxDecibel, stats.QuietRatio); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// A retried close finds the session already scored; the first
			// attempt's delta stands.
			return nil, ErrSessionScored
		}
		return nil, err
	}

	events, err := s.store.NoiseEvents().ListRange(ctx, userID, session.CheckIn, *session.CheckOut)
	if err != nil {
		return nil, err
	}
	abrupt := CountAbruptNoises(events)
	delta := SessionScore(stats.AvgDecibel, stats.QuietRatio, abrupt)

	reputation, err := s.applyScore(ctx, userID, delta)
	if err != nil {
		return nil, err
	}

	metrics.SessionsScoredTotal.Inc()
	metrics.ScoreDelta.Observe(float64(delta))
	s.logger.Info().
		Str("user_id", userID).
		Str("session_id", session.ID).
		Int("abrupt_count", abrupt).
		Int("score_delta", delta).
		Int("points", reputation.Points).
		Str("grade", string(reputation.Grade)).
		Msg("Session scored")
	return reputation, nil
}

// applyScore adds delta to the user's points and recomputes their grade.
// Points and grade always change together; a concurrent update retries the
// whole read-modify-write.
func (s *Service) applyScore(ctx context.Context, userID string, delta int) (*Reputation, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		user, err := s.store.Users().Get(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}

		newPoints := ClampPoints(user.Points + delta)
		newGrade := GradeFor(newPoints)
		err = s.store.Users().CompareAndSetReputation(ctx, userID, user.Points, newPoints, newGrade)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.cache.Remove(userID)
		return &Reputation{Points: newPoints, Grade: newGrade}, nil
	}
	return nil, fmt.Errorf("reputation update for %s lost %d races", userID, casAttempts)
}

// MannerScore returns the user's current points and grade, the mean average
// decibel of their scored sessions, and today's loud-sample count. Results
// are cached until the next score application.
func (s *Service) MannerScore(ctx context.Context, userID string) (*ScoreSummary, error) {
	if cached, ok := s.cache.Get(userID); ok {
		return &cached, nil
	}

	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	sessions, err := s.store.Sessions().ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, scored := 0.0, 0
	for _, session := range sessions {
		if session.Status == storage.StatusCompleted && session.Scored {
			sum += session.AvgDecibel
			scored++
		}
	}
	avg := 0.0
	if scored > 0 {
		avg = sum / float64(scored)
	}

	now := s.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	loudToday, err := s.store.NoiseEvents().CountAbove(ctx, userID, QuietThreshold, midnight, now)
	if err != nil {
		return nil, err
	}

	summary := ScoreSummary{
		Reputation:     Reputation{Points: user.Points, Grade: user.Grade},
		AvgDecibel:     avg,
		TodayLoudCount: loudToday,
	}
	s.cache.Add(userID, summary)
	return &summary, nil
}
