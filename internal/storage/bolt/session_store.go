package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/hushlab/hushd/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Create(ctx context.Context, session storage.UsageSession) error {
	data, err := marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		open := tx.Bucket([]byte(bucketOpenSessions))
		if open.Get([]byte(session.UserID)) != nil {
			return storage.ErrOpenSession
		}
		if err := tx.Bucket([]byte(bucketSessions)).Put([]byte(session.ID), data); err != nil {
			return err
		}
		if err := open.Put([]byte(session.UserID), []byte(session.ID)); err != nil {
			return err
		}
		return putSessionIndex(tx, session)
	})
}

func putSessionIndex(tx *bbolt.Tx, session storage.UsageSession) error {
	index := tx.Bucket([]byte(bucketSessionIndex))
	user, err := index.CreateBucketIfNotExists([]byte(session.UserID))
	if err != nil {
		return fmt.Errorf("create user session index: %w", err)
	}
	return user.Put([]byte(timeKey(session.CheckIn, session.ID)), []byte(session.ID))
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.UsageSession, error) {
	return getBucketValue[storage.UsageSession](ctx, s.db, bucketSessions, id)
}

func (s *sessionStore) LatestOpen(ctx context.Context, userID string) (*storage.UsageSession, error) {
	var session *storage.UsageSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id := tx.Bucket([]byte(bucketOpenSessions)).Get([]byte(userID))
		if id == nil {
			return storage.ErrNotFound
		}
		value := tx.Bucket([]byte(bucketSessions)).Get(id)
		if value == nil {
			return storage.ErrNotFound
		}
		var result storage.UsageSession
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		session = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) LatestCompleted(ctx context.Context, userID string) (*storage.UsageSession, error) {
	var session *storage.UsageSession
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		user := tx.Bucket([]byte(bucketSessionIndex)).Bucket([]byte(userID))
		if user == nil {
			return storage.ErrNotFound
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		c := user.Cursor()
		for _, id := c.Last(); id != nil; _, id = c.Prev() {
			value := sessions.Get(id)
			if value == nil {
				continue
			}
			var candidate storage.UsageSession
			if err := unmarshal(value, &candidate); err != nil {
				return err
			}
			if candidate.Status == storage.StatusCompleted {
				session = &candidate
				return nil
			}
		}
		return storage.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) ListOpen(ctx context.Context) ([]storage.UsageSession, error) {
	sessions := make([]storage.UsageSession, 0)
	return sessions, s.db.View(func(tx *bbolt.Tx) error {
		all := tx.Bucket([]byte(bucketSessions))
		return tx.Bucket([]byte(bucketOpenSessions)).ForEach(func(_, id []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := all.Get(id)
			if value == nil {
				return nil
			}
			var session storage.UsageSession
			if err := unmarshal(value, &session); err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})
}

func (s *sessionStore) ListForUser(ctx context.Context, userID string) ([]storage.UsageSession, error) {
	sessions := make([]storage.UsageSession, 0)
	return sessions, s.db.View(func(tx *bbolt.Tx) error {
		user := tx.Bucket([]byte(bucketSessionIndex)).Bucket([]byte(userID))
		if user == nil {
			return nil
		}
		all := tx.Bucket([]byte(bucketSessions))
		return user.ForEach(func(_, id []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			value := all.Get(id)
			if value == nil {
				return nil
			}
			var session storage.UsageSession
			if err := unmarshal(value, &session); err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})
}

func (s *sessionStore) Close(ctx context.Context, id string, at time.Time, status storage.SessionStatus, usedMinutes int) error {
	if !status.Terminal() {
		return fmt.Errorf("close requires a terminal status, got %s", status)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		value := sessions.Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		var session storage.UsageSession
		if err := unmarshal(value, &session); err != nil {
			return err
		}
		if !session.Open() {
			return storage.ErrNotOpen
		}
		checkout := at
		session.CheckOut = &checkout
		session.Status = status
		session.UsedMinutes = usedMinutes
		data, err := marshal(session)
		if err != nil {
			return err
		}
		if err := sessions.Put([]byte(id), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketOpenSessions)).Delete([]byte(session.UserID))
	})
}

func (s *sessionStore) RecordStats(ctx context.Context, id string, avgDecibel, maxDecibel, quietRatio float64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		value := sessions.Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		var session storage.UsageSession
		if err := unmarshal(value, &session); err != nil {
			return err
		}
		if session.Scored {
			return storage.ErrConflict
		}
		session.AvgDecibel = avgDecibel
		session.MaxDecibel = maxDecibel
		session.QuietRatio = quietRatio
		session.Scored = true
		data, err := marshal(session)
		if err != nil {
			return err
		}
		return sessions.Put([]byte(id), data)
	})
}

func (s *sessionStore) Split(ctx context.Context, id string, boundary time.Time, newID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sessions := tx.Bucket([]byte(bucketSessions))
		value := sessions.Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		var session storage.UsageSession
		if err := unmarshal(value, &session); err != nil {
			return err
		}
		if !session.Open() {
			return storage.ErrNotOpen
		}

		used := int(boundary.Sub(session.CheckIn).Minutes())
		if used < 0 {
			used = 0
		}
		checkout := boundary
		session.CheckOut = &checkout
		session.Status = storage.StatusCompleted
		session.UsedMinutes = used
		closed, err := marshal(session)
		if err != nil {
			return err
		}
		if err := sessions.Put([]byte(id), closed); err != nil {
			return err
		}

		reopened := storage.UsageSession{
			ID:      newID,
			UserID:  session.UserID,
			CheckIn: boundary,
			Status:  storage.StatusInProgress,
		}
		data, err := marshal(reopened)
		if err != nil {
			return err
		}
		if err := sessions.Put([]byte(newID), data); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketOpenSessions)).Put([]byte(session.UserID), []byte(newID)); err != nil {
			return err
		}
		return putSessionIndex(tx, reopened)
	})
}
