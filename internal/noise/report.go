package noise

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hushlab/hushd/internal/storage"
)

// reportTopEvents is how many loud samples a report lists.
const reportTopEvents = 3

// timeFormat is the wire format for report timestamps.
const timeFormat = time.RFC3339

// LoudEvent is one above-threshold sample in a session report.
type LoudEvent struct {
	Decibel    float64 `json:"decibel"`
	MeasuredAt string  `json:"measuredAt"`
}

// Report summarizes the user's most recent completed session.
type Report struct {
	SessionID  string      `json:"sessionId"`
	CheckIn    string      `json:"checkIn"`
	CheckOut   string      `json:"checkOut"`
	AvgDecibel float64     `json:"avgDecibel"`
	MaxDecibel float64     `json:"maxDecibel"`
	QuietRatio float64     `json:"quietRatio"`
	EventCount int         `json:"eventCount"`
	LoudCount  int         `json:"loudCount"`
	TopEvents  []LoudEvent `json:"topEvents"`
}

// BuildReport summarizes the user's most recent completed session: its
// stored aggregates plus the loudest above-threshold samples.
func (s *Service) BuildReport(ctx context.Context, userID string) (*Report, error) {
	session, err := s.store.Sessions().LatestCompleted(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	events, err := s.store.NoiseEvents().ListRange(ctx, userID, session.CheckIn, *session.CheckOut)
	if err != nil {
		return nil, err
	}
	loudCount, err := s.store.NoiseEvents().CountAbove(ctx, userID, QuietThreshold, session.CheckIn, *session.CheckOut)
	if err != nil {
		return nil, err
	}

	loud := make([]storage.NoiseEvent, 0, len(events))
	for _, event := range events {
		if event.Decibel > QuietThreshold {
			loud = append(loud, event)
		}
	}
	sort.Slice(loud, func(i, j int) bool {
		return loud[i].Decibel > loud[j].Decibel
	})
	if len(loud) > reportTopEvents {
		loud = loud[:reportTopEvents]
	}

	top := make([]LoudEvent, 0, len(loud))
	for _, event := range loud {
		top = append(top, LoudEvent{
			Decibel:    event.Decibel,
			MeasuredAt: event.MeasuredAt.Format(timeFormat),
		})
	}

	return &Report{
		SessionID:  session.ID,
		CheckIn:    session.CheckIn.Format(timeFormat),
		CheckOut:   session.CheckOut.Format(timeFormat),
		AvgDecibel: session.AvgDecibel,
		MaxDecibel: session.MaxDecibel,
		QuietRatio: session.QuietRatio,
		EventCount: len(events),
		LoudCount:  loudCount,
		TopEvents:  top,
	}, nil
}
