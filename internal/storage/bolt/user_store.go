package bolt

import (
	"context"

	"github.com/hushlab/hushd/internal/storage"
	"go.etcd.io/bbolt"
)

type userStore struct {
	db *bbolt.DB
}

func (s *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	return getBucketValue[storage.User](ctx, s.db, bucketUsers, id)
}

func (s *userStore) Upsert(ctx context.Context, user storage.User) error {
	return putBucketValue(ctx, s.db, bucketUsers, user.ID, user)
}

func (s *userStore) CompareAndSetReputation(ctx context.Context, id string, oldPoints, newPoints int, grade storage.Grade) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsers))
		value := b.Get([]byte(id))
		if value == nil {
			return storage.ErrNotFound
		}
		var user storage.User
		if err := unmarshal(value, &user); err != nil {
			return err
		}
		if user.Points != oldPoints {
			return storage.ErrConflict
		}
		user.Points = newPoints
		user.Grade = grade
		data, err := marshal(user)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), data)
	})
}
