package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/hushlab/hushd/internal/storage"
	"go.etcd.io/bbolt"
)

type noiseEventStore struct {
	db *bbolt.DB
}

func (s *noiseEventStore) Add(ctx context.Context, event storage.NoiseEvent) error {
	if event.MeasuredAt.IsZero() {
		event.MeasuredAt = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = storage.NewID()
	}
	suffix, err := randomSuffix()
	if err != nil {
		return err
	}
	data, err := marshal(event)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		user, err := tx.Bucket([]byte(bucketNoiseEvents)).CreateBucketIfNotExists([]byte(event.UserID))
		if err != nil {
			return fmt.Errorf("create user event bucket: %w", err)
		}
		return user.Put([]byte(timeKey(event.MeasuredAt, suffix)), data)
	})
}

func (s *noiseEventStore) ListRange(ctx context.Context, userID string, from, to time.Time) ([]storage.NoiseEvent, error) {
	events := make([]storage.NoiseEvent, 0)
	return events, s.db.View(func(tx *bbolt.Tx) error {
		user := tx.Bucket([]byte(bucketNoiseEvents)).Bucket([]byte(userID))
		if user == nil {
			return nil
		}
		start := []byte(fmt.Sprintf("%020d", from.UnixNano()))
		end := []byte(fmt.Sprintf("%020d", to.UnixNano()))
		c := user.Cursor()
		for k, v := c.Seek(start); k != nil && bytes.Compare(k, end) < 0; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var event storage.NoiseEvent
			if err := unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
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
