package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TIMEWARDEN_STORAGE_PATH", filepath.Join(dir, "state.bolt"))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.APIListen != "127.0.0.1:8377" {
		t.Errorf("APIListen = %q", cfg.Server.APIListen)
	}
	if cfg.Browser.DevtoolsURL != "http://127.0.0.1:9222" {
		t.Errorf("DevtoolsURL = %q", cfg.Browser.DevtoolsURL)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("storage type = %q", cfg.Storage.Type)
	}
	if cfg.Tracking.FlushInterval != "30s" {
		t.Errorf("flush interval = %q", cfg.Tracking.FlushInterval)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  api_listen: "127.0.0.1:9000"
storage:
  type: redis
  redis:
    host: "redis.local"
    port: 6380
tracking:
  flush_interval: "10s"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.APIListen != "127.0.0.1:9000" {
		t.Errorf("APIListen = %q", cfg.Server.APIListen)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "redis.local" || cfg.Storage.Redis.Port != 6380 {
		t.Errorf("redis config = %+v", cfg.Storage.Redis)
	}
	if cfg.Tracking.FlushInterval != "10s" {
		t.Errorf("flush interval = %q", cfg.Tracking.FlushInterval)
	}
	// Defaults survive for untouched sections.
	if cfg.Storage.Redis.DialTimeout != "5s" {
		t.Errorf("dial timeout = %q", cfg.Storage.Redis.DialTimeout)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("tracking:\n  flush_interval: \"soon\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TIMEWARDEN_STORAGE_PATH", filepath.Join(dir, "state.bolt"))

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable flush_interval")
	}
}

func TestLoadRejectsUnknownStorageType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  type: carrier-pigeon\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}
