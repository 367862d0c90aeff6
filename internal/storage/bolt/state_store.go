package bolt

import (
	"context"
	"errors"

	"github.com/goodtune/timewarden/internal/storage"
	"go.etcd.io/bbolt"
)

type stateStore struct {
	db *bbolt.DB
}

// Reads never fail on corrupt values: a key that does not decode falls back to
// its default, the same way a missing key does. Valid neighbouring keys are
// unaffected.

func (s *stateStore) GetConfigs(ctx context.Context) ([]storage.HostnameConfig, error) {
	configs, err := getBucketValue[[]storage.HostnameConfig](ctx, s.db, bucketState, keyConfigs)
	if err != nil {
		if recoverable(err) {
			return []storage.HostnameConfig{}, nil
		}
		return nil, err
	}
	return storage.SanitizeConfigs(*configs), nil
}

func (s *stateStore) PutConfigs(ctx context.Context, configs []storage.HostnameConfig) error {
	return putBucketValue(ctx, s.db, bucketState, keyConfigs, configs)
}

func (s *stateStore) GetUsageLog(ctx context.Context) (storage.UsageLog, error) {
	log, err := getBucketValue[storage.UsageLog](ctx, s.db, bucketState, keyUsageLog)
	if err != nil {
		if recoverable(err) {
			return storage.UsageLog{}, nil
		}
		return nil, err
	}
	return *log, nil
}

func (s *stateStore) PutUsageLog(ctx context.Context, log storage.UsageLog) error {
	return putBucketValue(ctx, s.db, bucketState, keyUsageLog, log)
}

func (s *stateStore) GetSettings(ctx context.Context) (storage.GlobalSettings, error) {
	settings, err := getBucketValue[storage.GlobalSettings](ctx, s.db, bucketState, keySettings)
	if err != nil {
		if recoverable(err) {
			return storage.DefaultSettings(), nil
		}
		return storage.GlobalSettings{}, err
	}
	return storage.SanitizeSettings(*settings), nil
}

func (s *stateStore) PutSettings(ctx context.Context, settings storage.GlobalSettings) error {
	return putBucketValue(ctx, s.db, bucketState, keySettings, settings)
}

// recoverable reports whether a read error should fall back to defaults
// rather than surface. Context cancellation always surfaces.
func recoverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
