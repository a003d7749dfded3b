package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hushlab/hushd/internal/storage"
)

type userStore struct {
	db *sql.DB
}

func (s *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	var user storage.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, points, grade, seat_id FROM users WHERE id=$1;", id,
	).Scan(&user.ID, &user.Name, &user.Points, &user.Grade, &user.SeatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) Upsert(ctx context.Context, user storage.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, name, points, grade, seat_id) VALUES($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name=EXCLUDED.name, points=EXCLUDED.points,
				grade=EXCLUDED.grade, seat_id=EXCLUDED.seat_id;`,
		user.ID, user.Name, user.Points, string(user.Grade), user.SeatID,
	)
	return err
}

func (s *userStore) CompareAndSetReputation(ctx context.Context, id string, oldPoints, newPoints int, grade storage.Grade) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET points=$2, grade=$3 WHERE id=$1 AND points=$4;",
		id, newPoints, string(grade), oldPoints,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id=$1);", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}
