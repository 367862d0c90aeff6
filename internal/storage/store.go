package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	State() StateStore
	Alarms() AlarmRecordStore
}

// StateStore persists the three top-level state documents. Each key is read
// and written atomically on its own; read-modify-write atomicity across calls
// is the engine's responsibility (serial queue), not storage's.
//
// Reads return a sanitized view: corrupt or missing values fall back to
// defaults per key, valid neighbours are preserved.
type StateStore interface {
	GetConfigs(ctx context.Context) ([]HostnameConfig, error)
	PutConfigs(ctx context.Context, configs []HostnameConfig) error
	GetUsageLog(ctx context.Context) (UsageLog, error)
	PutUsageLog(ctx context.Context, log UsageLog) error
	GetSettings(ctx context.Context) (GlobalSettings, error)
	PutSettings(ctx context.Context, settings GlobalSettings) error
}

// AlarmRecordStore persists alarm records so scheduled alarms survive process
// restarts.
type AlarmRecordStore interface {
	Put(ctx context.Context, record AlarmRecord) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]AlarmRecord, error)
}
