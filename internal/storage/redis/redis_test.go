package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/timewarden/internal/config"
	"github.com/goodtune/timewarden/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{
		Host:         mr.Addr(), // Full address "host:port"
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestStateStore_ConfigsRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	configs := []storage.HostnameConfig{
		{Hostname: "youtube.com", Enabled: true, DailyLimitSeconds: 3600, CreatedAt: time.Now().UTC()},
	}

	if err := store.State().PutConfigs(ctx, configs); err != nil {
		t.Fatalf("PutConfigs failed: %v", err)
	}

	got, err := store.State().GetConfigs(ctx)
	if err != nil {
		t.Fatalf("GetConfigs failed: %v", err)
	}
	if len(got) != 1 || got[0].Hostname != "youtube.com" {
		t.Fatalf("Expected youtube.com config, got %+v", got)
	}
}

func TestStateStore_MissingKeysFallBack(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	configs, err := store.State().GetConfigs(ctx)
	if err != nil {
		t.Fatalf("GetConfigs failed: %v", err)
	}
	if len(configs) != 0 {
		t.Fatalf("Expected no configs, got %d", len(configs))
	}

	log, err := store.State().GetUsageLog(ctx)
	if err != nil {
		t.Fatalf("GetUsageLog failed: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("Expected empty usage log, got %d days", len(log))
	}

	settings, err := store.State().GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if settings.ResetTime != storage.DefaultResetTime {
		t.Fatalf("Expected default reset time, got %q", settings.ResetTime)
	}
}

func TestStateStore_CorruptKeyFallsBack(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	settings := storage.DefaultSettings()
	settings.Theme = "dark"
	if err := store.State().PutSettings(ctx, settings); err != nil {
		t.Fatalf("PutSettings failed: %v", err)
	}

	if err := mr.Set(keyUsageLog, "{not json"); err != nil {
		t.Fatalf("corrupt key: %v", err)
	}

	log, err := store.State().GetUsageLog(ctx)
	if err != nil {
		t.Fatalf("GetUsageLog failed: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("Expected empty usage log after corruption, got %d days", len(log))
	}

	got, err := store.State().GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings failed: %v", err)
	}
	if got.Theme != "dark" {
		t.Fatalf("Expected neighbouring settings to survive, got theme %q", got.Theme)
	}
}

func TestAlarmStore_Lifecycle(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	alarms := store.Alarms()

	when := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if err := alarms.Put(ctx, storage.AlarmRecord{Name: "limit-youtube.com", When: when}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := alarms.Put(ctx, storage.AlarmRecord{Name: "badge-refresh", PeriodMinutes: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	listed, err := alarms.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 alarms, got %d", len(listed))
	}

	if err := alarms.Delete(ctx, "limit-youtube.com"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := alarms.Delete(ctx, "limit-youtube.com"); err != nil {
		t.Fatalf("Delete of missing alarm failed: %v", err)
	}

	listed, err = alarms.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "badge-refresh" {
		t.Fatalf("Expected only badge-refresh, got %+v", listed)
	}
}
