package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/timewarden/internal/config"
	"github.com/goodtune/timewarden/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keyConfigs  = "timewarden:state:configs"
	keyUsageLog = "timewarden:state:usageLog"
	keySettings = "timewarden:state:settings"
	keyAlarms   = "timewarden:alarms"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client     *redis.Client
	stateStore *stateStore
	alarmStore *alarmStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	// Create Redis client
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:     client,
		stateStore: &stateStore{client: client},
		alarmStore: &alarmStore{client: client},
	}

	return store, nil
}

// NewFromClient wraps an existing client. Used by tests running against
// miniredis.
func NewFromClient(client *redis.Client) *Store {
	return &Store{
		client:     client,
		stateStore: &stateStore{client: client},
		alarmStore: &alarmStore{client: client},
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// State returns the StateStore implementation
func (s *Store) State() storage.StateStore {
	return s.stateStore
}

// Alarms returns the AlarmRecordStore implementation
func (s *Store) Alarms() storage.AlarmRecordStore {
	return s.alarmStore
}
