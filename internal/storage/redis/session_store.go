package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hushlab/hushd/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
}

func sessionKey(id string) string       { return fmt.Sprintf("hushd:session:%s", id) }
func openPtrKey(userID string) string   { return fmt.Sprintf("hushd:sessions:open:%s", userID) }
func userIndexKey(userID string) string { return fmt.Sprintf("hushd:sessions:user:%s", userID) }

const openSetKey = "hushd:sessions:open"

func (s *sessionStore) Create(ctx context.Context, session storage.UsageSession) error {
	script := redis.NewScript(createSessionScript)

	keys := []string{
		sessionKey(session.ID),
		openPtrKey(session.UserID),
		openSetKey,
		userIndexKey(session.UserID),
	}
	args := []interface{}{
		session.ID,
		session.UserID,
		session.CheckIn.Format(time.RFC3339Nano),
		session.CheckIn.UnixNano(),
	}

	result, err := script.Run(ctx, s.client, keys, args...).Text()
	if err != nil {
		return err
	}
	if result == "OPEN" {
		return storage.ErrOpenSession
	}
	return nil
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.UsageSession, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	return parseSession(data)
}

func (s *sessionStore) LatestOpen(ctx context.Context, userID string) (*storage.UsageSession, error) {
	id, err := s.client.Get(ctx, openPtrKey(userID)).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *sessionStore) LatestCompleted(ctx context.Context, userID string) (*storage.UsageSession, error) {
	ids, err := s.client.ZRevRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if session.Status == storage.StatusCompleted {
			return session, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *sessionStore) ListOpen(ctx context.Context) ([]storage.UsageSession, error) {
	ids, err := s.client.SMembers(ctx, openSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []storage.UsageSession{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.UsageSession, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		session, err := parseSession(data)
		if err == nil {
			sessions = append(sessions, *session)
		}
	}
	return sessions, nil
}

func (s *sessionStore) ListForUser(ctx context.Context, userID string) ([]storage.UsageSession, error) {
	ids, err := s.client.ZRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]storage.UsageSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

func (s *sessionStore) Close(ctx context.Context, id string, at time.Time, status storage.SessionStatus, usedMinutes int) error {
	if !status.Terminal() {
		return fmt.Errorf("close requires a terminal status, got %s", status)
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	script := redis.NewScript(closeSessionScript)
	keys := []string{sessionKey(id), openPtrKey(session.UserID), openSetKey}
	args := []interface{}{
		id,
		at.Format(time.RFC3339Nano),
		string(status),
		strconv.Itoa(usedMinutes),
	}

	result, err := script.Run(ctx, s.client, keys, args...).Text()
	if err != nil {
		return err
	}
	switch result {
	case "NONE":
		return storage.ErrNotFound
	case "NOTOPEN":
		return storage.ErrNotOpen
	}
	return nil
}

func (s *sessionStore) RecordStats(ctx context.Context, id string, avgDecibel, maxDecibel, quietRatio float64) error {
	script := redis.NewScript(recordStatsScript)
	args := []interface{}{
		formatFloat(avgDecibel),
		formatFloat(maxDecibel),
		formatFloat(quietRatio),
	}

	result, err := script.Run(ctx, s.client, []string{sessionKey(id)}, args...).Text()
	if err != nil {
		return err
	}
	switch result {
	case "NONE":
		return storage.ErrNotFound
	case "SCORED":
		return storage.ErrConflict
	}
	return nil
}

func (s *sessionStore) Split(ctx context.Context, id string, boundary time.Time, newID string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	script := redis.NewScript(splitSessionScript)
	keys := []string{
		sessionKey(id),
		sessionKey(newID),
		openPtrKey(session.UserID),
		openSetKey,
		userIndexKey(session.UserID),
	}
	args := []interface{}{
		id,
		newID,
		session.UserID,
		boundary.Format(time.RFC3339Nano),
		boundary.UnixNano(),
	}

	result, err := script.Run(ctx, s.client, keys, args...).Text()
	if err != nil {
		return err
	}
	switch result {
	case "NONE":
		return storage.ErrNotFound
	case "NOTOPEN":
		return storage.ErrNotOpen
	}
	return nil
}
