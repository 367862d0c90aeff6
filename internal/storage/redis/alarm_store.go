package redis

import (
	"context"
	"encoding/json"

	"github.com/goodtune/timewarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

type alarmStore struct {
	client *redis.Client
}

func (s *alarmStore) Put(ctx context.Context, record storage.AlarmRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, keyAlarms, record.Name, data).Err()
}

func (s *alarmStore) Delete(ctx context.Context, name string) error {
	return s.client.HDel(ctx, keyAlarms, name).Err()
}

func (s *alarmStore) List(ctx context.Context) ([]storage.AlarmRecord, error) {
	values, err := s.client.HGetAll(ctx, keyAlarms).Result()
	if err != nil {
		return nil, err
	}
	records := make([]storage.AlarmRecord, 0, len(values))
	for _, raw := range values {
		var record storage.AlarmRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
