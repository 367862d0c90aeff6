package bolt

import (
	"context"
	"errors"

	"github.com/goodtune/timewarden/internal/storage"
	"go.etcd.io/bbolt"
)

type alarmStore struct {
	db *bbolt.DB
}

func (s *alarmStore) Put(ctx context.Context, record storage.AlarmRecord) error {
	return putBucketValue(ctx, s.db, bucketAlarms, record.Name, record)
}

func (s *alarmStore) Delete(ctx context.Context, name string) error {
	err := deleteBucketValue(ctx, s.db, bucketAlarms, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func (s *alarmStore) List(ctx context.Context) ([]storage.AlarmRecord, error) {
	return listBucket[storage.AlarmRecord](ctx, s.db, bucketAlarms)
}
