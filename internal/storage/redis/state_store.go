package redis

import (
	"context"
	"encoding/json"

	"github.com/goodtune/timewarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

type stateStore struct {
	client *redis.Client
}

// Each state key holds one JSON document. A missing or undecodable value
// falls back to the key's default; other keys are unaffected.

func (s *stateStore) GetConfigs(ctx context.Context) ([]storage.HostnameConfig, error) {
	data, err := s.client.Get(ctx, keyConfigs).Bytes()
	if err == redis.Nil {
		return []storage.HostnameConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	var configs []storage.HostnameConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return []storage.HostnameConfig{}, nil
	}
	return storage.SanitizeConfigs(configs), nil
}

func (s *stateStore) PutConfigs(ctx context.Context, configs []storage.HostnameConfig) error {
	data, err := json.Marshal(configs)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyConfigs, data, 0).Err()
}

func (s *stateStore) GetUsageLog(ctx context.Context) (storage.UsageLog, error) {
	data, err := s.client.Get(ctx, keyUsageLog).Bytes()
	if err == redis.Nil {
		return storage.UsageLog{}, nil
	}
	if err != nil {
		return nil, err
	}
	var log storage.UsageLog
	if err := json.Unmarshal(data, &log); err != nil {
		return storage.UsageLog{}, nil
	}
	return log, nil
}

func (s *stateStore) PutUsageLog(ctx context.Context, log storage.UsageLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyUsageLog, data, 0).Err()
}

func (s *stateStore) GetSettings(ctx context.Context) (storage.GlobalSettings, error) {
	data, err := s.client.Get(ctx, keySettings).Bytes()
	if err == redis.Nil {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.GlobalSettings{}, err
	}
	var settings storage.GlobalSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return storage.DefaultSettings(), nil
	}
	return storage.SanitizeSettings(settings), nil
}

func (s *stateStore) PutSettings(ctx context.Context, settings storage.GlobalSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keySettings, data, 0).Err()
}
