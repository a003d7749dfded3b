package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/hushlab/hushd/internal/storage"
)

type noiseEventStore struct {
	db *sql.DB
}

func (s *noiseEventStore) Add(ctx context.Context, event storage.NoiseEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO noise_events(id, user_id, decibel, measured_at) VALUES($1, $2, $3, $4);`,
		event.ID, event.UserID, event.Decibel, event.MeasuredAt.UTC(),
	)
	return err
}

func (s *noiseEventStore) ListRange(ctx context.Context, userID string, from, to time.Time) ([]storage.NoiseEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, decibel, measured_at FROM noise_events
			WHERE user_id=$1 AND measured_at >= $2 AND measured_at < $3
			ORDER BY measured_at;`,
		userID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]storage.NoiseEvent, 0)
	for rows.Next() {
		var event storage.NoiseEvent
		if err := rows.Scan(&event.ID, &event.UserID, &event.Decibel, &event.MeasuredAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *noiseEventStore) CountAbove(ctx context.Context, userID string, threshold float64, from, to time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM noise_events
			WHERE user_id=$1 AND decibel > $2 AND measured_at >= $3 AND measured_at < $4;`,
		userID, threshold, from.UTC(), to.UTC(),
	).Scan(&count)
	return count, err
}
