package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hushlab/hushd/internal/storage"
)

// parseSession converts a Redis hash to a UsageSession.
func parseSession(data map[string]string) (*storage.UsageSession, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	checkIn, err := time.Parse(time.RFC3339Nano, data["check_in"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse check_in: %w", err)
	}

	var checkOut *time.Time
	if raw := data["check_out"]; raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse check_out: %w", err)
		}
		checkOut = &parsed
	}

	usedMinutes, err := strconv.Atoi(data["used_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse used_minutes: %w", err)
	}

	avgDecibel, err := strconv.ParseFloat(data["avg_decibel"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse avg_decibel: %w", err)
	}

	maxDecibel, err := strconv.ParseFloat(data["max_decibel"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse max_decibel: %w", err)
	}

	quietRatio, err := strconv.ParseFloat(data["quiet_ratio"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quiet_ratio: %w", err)
	}

	return &storage.UsageSession{
		ID:          data["id"],
		UserID:      data["user_id"],
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Status:      storage.SessionStatus(data["status"]),
		UsedMinutes: usedMinutes,
		AvgDecibel:  avgDecibel,
		MaxDecibel:  maxDecibel,
		QuietRatio:  quietRatio,
		Scored:      data["scored"] == "1",
	}, nil
}

// parseUser converts a Redis hash to a User.
func parseUser(data map[string]string) (*storage.User, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	points, err := strconv.Atoi(data["points"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse points: %w", err)
	}

	return &storage.User{
		ID:     data["id"],
		Name:   data["name"],
		Points: points,
		Grade:  storage.Grade(data["grade"]),
		SeatID: data["seat_id"],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
