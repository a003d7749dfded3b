package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hushlab/hushd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type userStore struct {
	client *redis.Client
}

func userKey(id string) string { return fmt.Sprintf("hushd:user:%s", id) }

func (s *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	data, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseUser(data)
}

func (s *userStore) Upsert(ctx context.Context, user storage.User) error {
	return s.client.HSet(ctx, userKey(user.ID),
		"id", user.ID,
		"name", user.Name,
		"points", strconv.Itoa(user.Points),
		"grade", string(user.Grade),
		"seat_id", user.SeatID,
	).Err()
}

func (s *userStore) CompareAndSetReputation(ctx context.Context, id string, oldPoints, newPoints int, grade storage.Grade) error {
	script := redis.NewScript(casReputationScript)

	result, err := script.Run(ctx, s.client,
		[]string{userKey(id)},
		oldPoints, newPoints, string(grade),
	).Text()
	if err != nil {
		return err
	}
	switch result {
	case "NONE":
		return storage.ErrNotFound
	case "CONFLICT":
		return storage.ErrConflict
	}
	return nil
}
