package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hushlab/hushd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type noiseEventStore struct {
	client *redis.Client
}

func eventsKey(userID string) string { return fmt.Sprintf("hushd:noise:%s", userID) }

func (s *noiseEventStore) Add(ctx context.Context, event storage.NoiseEvent) error {
	if event.MeasuredAt.IsZero() {
		event.MeasuredAt = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = storage.NewID()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal noise event: %w", err)
	}

	return s.client.ZAdd(ctx, eventsKey(event.UserID), redis.Z{
		Score:  float64(event.MeasuredAt.UnixNano()),
		Member: string(data),
	}).Err()
}

func (s *noiseEventStore) ListRange(ctx context.Context, userID string, from, to time.Time) ([]storage.NoiseEvent, error) {
	members, err := s.client.ZRangeByScore(ctx, eventsKey(userID), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", from.UnixNano()),
		Max: fmt.Sprintf("(%d", to.UnixNano()),
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]storage.NoiseEvent, 0, len(members))
	for _, member := range members {
		var event storage.NoiseEvent
		if err := json.Unmarshal([]byte(member), &event); err != nil {
			return nil, fmt.Errorf("unmarshal noise event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *noiseEventStore) CountAbove(ctx context.Context, userID string, threshold float64, from, to time.Time) (int, error) {
	events, err := s.ListRange(ctx, userID, from, to)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, event := range events {
		if event.Decibel > threshold {
			count++
		}
	}
	return count, nil
}
