package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionStatus represents the lifecycle state of a usage session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusExpired    SessionStatus = "EXPIRED"
)

// UnmarshalJSON implements json.Unmarshaler to normalize status to uppercase.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := SessionStatus(strings.ToUpper(raw))

	switch normalized {
	case StatusInProgress, StatusCompleted, StatusExpired:
		*s = normalized
		return nil
	default:
		return fmt.Errorf("invalid session status: %s (must be IN_PROGRESS, COMPLETED, or EXPIRED)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// Terminal reports whether the status permits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// Grade is the tiered manner reputation derived from cumulative points.
type Grade string

const (
	GradeWarning Grade = "WARNING"
	GradeGood    Grade = "GOOD"
	GradeSilent  Grade = "SILENT"
)

// UnmarshalJSON implements json.Unmarshaler to normalize grade to uppercase.
func (g *Grade) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	normalized := Grade(strings.ToUpper(raw))

	switch normalized {
	case GradeWarning, GradeGood, GradeSilent:
		*g = normalized
		return nil
	default:
		return fmt.Errorf("invalid grade: %s (must be WARNING, GOOD, or SILENT)", raw)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (g Grade) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(g))
}

// UsageSession represents one continuous interval of a user occupying a seat.
// CheckOut is nil while the session is IN_PROGRESS and is set exactly once
// when the session reaches a terminal status.
type UsageSession struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	CheckIn     time.Time     `json:"check_in"`
	CheckOut    *time.Time    `json:"check_out,omitempty"`
	Status      SessionStatus `json:"status"`
	UsedMinutes int           `json:"used_minutes"`
	AvgDecibel  float64       `json:"avg_decibel"`
	MaxDecibel  float64       `json:"max_decibel"`
	QuietRatio  float64       `json:"quiet_ratio"`
	// Scored is set when stats are recorded. A session is scored at most once.
	Scored bool `json:"scored"`
}

// Open reports whether the session is still IN_PROGRESS.
func (s *UsageSession) Open() bool {
	return s.Status == StatusInProgress
}

// NoiseEvent is a single timestamped decibel sample. Events are immutable
// once stored and are scoped to a session only by time range.
type NoiseEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Decibel    float64   `json:"decibel"`
	MeasuredAt time.Time `json:"measured_at"`
}

// User holds the reputation fields the noise engine owns plus the seat
// reference that the zone-gating consumer reads.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
	Grade  Grade  `json:"grade"`
	SeatID string `json:"seat_id,omitempty"`
}
