package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/timewarden/internal/storage"
	"go.etcd.io/bbolt"
)

func TestStateStoreConfigsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	reset := "22:00"
	configs := []storage.HostnameConfig{
		{
			Hostname:          "youtube.com",
			Enabled:           true,
			DailyLimitSeconds: 3600,
			ResetTime:         &reset,
			CreatedAt:         time.Now().UTC(),
		},
		{
			Hostname:          "reddit.com",
			Enabled:           false,
			DailyLimitSeconds: 1800,
			CreatedAt:         time.Now().UTC(),
		},
	}

	if err := store.State().PutConfigs(context.Background(), configs); err != nil {
		t.Fatalf("put configs: %v", err)
	}

	got, err := store.State().GetConfigs(context.Background())
	if err != nil {
		t.Fatalf("get configs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 configs, got %d", len(got))
	}
	if got[0].Hostname != "youtube.com" || got[0].ResetTime == nil || *got[0].ResetTime != "22:00" {
		t.Fatalf("unexpected first config: %+v", got[0])
	}
}

func TestStateStoreConfigsEmptyWhenMissing(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	got, err := store.State().GetConfigs(context.Background())
	if err != nil {
		t.Fatalf("get configs: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no configs, got %d", len(got))
	}
}

func TestStateStoreDropsInvalidConfigsOnRead(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	configs := []storage.HostnameConfig{
		{Hostname: "youtube.com", DailyLimitSeconds: 3600},
		{Hostname: "BadCase.com", DailyLimitSeconds: 3600},
		{Hostname: "over.com", DailyLimitSeconds: 999999},
	}
	if err := store.State().PutConfigs(context.Background(), configs); err != nil {
		t.Fatalf("put configs: %v", err)
	}

	got, err := store.State().GetConfigs(context.Background())
	if err != nil {
		t.Fatalf("get configs: %v", err)
	}
	if len(got) != 1 || got[0].Hostname != "youtube.com" {
		t.Fatalf("expected only the valid config, got %+v", got)
	}
}

func TestStateStoreSettingsDefaultsWhenMissing(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	settings, err := store.State().GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.ResetTime != storage.DefaultResetTime {
		t.Fatalf("expected default reset time, got %q", settings.ResetTime)
	}
	if len(settings.NotificationRules) != 2 {
		t.Fatalf("expected 2 default rules, got %d", len(settings.NotificationRules))
	}
}

func TestStateStoreCorruptKeyFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timewarden.bolt")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	settings := storage.DefaultSettings()
	settings.Theme = "dark"
	if err := store.State().PutSettings(context.Background(), settings); err != nil {
		t.Fatalf("put settings: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Corrupt the usage log key directly; settings must stay intact.
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketState)).Put([]byte(keyUsageLog), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("corrupt key: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	log, err := store.State().GetUsageLog(context.Background())
	if err != nil {
		t.Fatalf("get usage log: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("expected empty usage log after corruption, got %d days", len(log))
	}

	got, err := store.State().GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.Theme != "dark" {
		t.Fatalf("expected neighbouring settings to survive, got theme %q", got.Theme)
	}
}

func TestStateStoreUsageLogRoundTrip(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	log := storage.UsageLog{
		{
			Date: "2024-06-01",
			Hostnames: []storage.HostnameUsage{
				{
					Hostname:         "youtube.com",
					TimeSpentSeconds: 900,
					VisitCount:       3,
					LimitSeconds:     3600,
					ResetTime:        "00:00",
					Sessions:         []storage.Session{},
					Notifications:    map[string]bool{"default-80-percent": true},
				},
			},
		},
	}

	if err := store.State().PutUsageLog(context.Background(), log); err != nil {
		t.Fatalf("put usage log: %v", err)
	}

	got, err := store.State().GetUsageLog(context.Background())
	if err != nil {
		t.Fatalf("get usage log: %v", err)
	}
	day := got.Day("2024-06-01")
	if day == nil {
		t.Fatal("expected day entry")
	}
	usage := day.Usage("youtube.com")
	if usage == nil || usage.TimeSpentSeconds != 900 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if !usage.RuleFired("default-80-percent") {
		t.Fatal("expected fired rule to persist")
	}
}

func TestAlarmStoreLifecycle(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	alarms := store.Alarms()
	when := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)

	records := []storage.AlarmRecord{
		{Name: "reset-youtube.com", When: when},
		{Name: "badge-refresh", PeriodMinutes: 1},
	}
	for _, record := range records {
		if err := alarms.Put(context.Background(), record); err != nil {
			t.Fatalf("put alarm %s: %v", record.Name, err)
		}
	}

	listed, err := alarms.List(context.Background())
	if err != nil {
		t.Fatalf("list alarms: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 alarms, got %d", len(listed))
	}

	if err := alarms.Delete(context.Background(), "reset-youtube.com"); err != nil {
		t.Fatalf("delete alarm: %v", err)
	}
	// Deleting a missing alarm is not an error.
	if err := alarms.Delete(context.Background(), "reset-youtube.com"); err != nil {
		t.Fatalf("delete missing alarm: %v", err)
	}

	listed, err = alarms.List(context.Background())
	if err != nil {
		t.Fatalf("list alarms: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "badge-refresh" {
		t.Fatalf("expected only badge-refresh, got %+v", listed)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "timewarden.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}
