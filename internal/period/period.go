// Package period computes per-hostname period dates and reset moments from
// the layered limit/reset configuration.
package period

import (
	"time"

	"github.com/goodtune/timewarden/internal/storage"
)

// DateFormat is the calendar date key used by the usage log.
const DateFormat = "2006-01-02"

// Effective is the resolved limit and reset time governing one weekday.
type Effective struct {
	LimitSeconds int
	ResetTime    string
}

// Resolve returns the effective limit and reset time for the given weekday.
// Most specific wins: day override, then per-hostname value, then the global
// reset time.
func Resolve(config storage.HostnameConfig, settings storage.GlobalSettings, weekday time.Weekday) Effective {
	eff := Effective{
		LimitSeconds: config.DailyLimitSeconds,
		ResetTime:    settings.ResetTime,
	}
	if config.ResetTime != nil {
		eff.ResetTime = *config.ResetTime
	}
	if override, ok := config.DayOverrides[weekday]; ok {
		if override.LimitSeconds != nil {
			eff.LimitSeconds = *override.LimitSeconds
		}
		if override.ResetTime != nil {
			eff.ResetTime = *override.ResetTime
		}
	}
	return eff
}

// resetMomentOn returns the reset moment on the calendar day of ref, using
// ref's weekday to resolve the effective reset time. The boolean is false
// when the reset string does not parse.
func resetMomentOn(config storage.HostnameConfig, settings storage.GlobalSettings, ref time.Time) (time.Time, bool) {
	eff := Resolve(config, settings, ref.Weekday())
	parsed, err := time.Parse("15:04", eff.ResetTime)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(
		ref.Year(), ref.Month(), ref.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0,
		ref.Location(),
	), true
}

// Date returns the period date a wall-clock instant belongs to. Before
// today's reset moment the instant still belongs to the period that began
// yesterday; at or after it, to today's. An unparseable reset time falls
// back to the calendar date.
func Date(config storage.HostnameConfig, settings storage.GlobalSettings, now time.Time) string {
	reset, ok := resetMomentOn(config, settings, now)
	if !ok {
		return now.Format(DateFormat)
	}
	if now.Before(reset) {
		return now.AddDate(0, 0, -1).Format(DateFormat)
	}
	return now.Format(DateFormat)
}

// NextReset returns the next reset moment strictly after now. If today's
// reset has not yet occurred it is the next; otherwise tomorrow's weekday
// resolves its own effective reset time.
func NextReset(config storage.HostnameConfig, settings storage.GlobalSettings, now time.Time) time.Time {
	if reset, ok := resetMomentOn(config, settings, now); ok && now.Before(reset) {
		return reset
	}
	tomorrow := now.AddDate(0, 0, 1)
	if reset, ok := resetMomentOn(config, settings, tomorrow); ok {
		return reset
	}
	// Unparseable reset string: fall back to midnight tomorrow.
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, now.Location())
}

// Snapshot freezes the effective values for the period containing now, as
// recorded on a newly created usage record.
func Snapshot(config storage.HostnameConfig, settings storage.GlobalSettings, now time.Time) storage.PeriodSnapshot {
	eff := Resolve(config, settings, now.Weekday())
	return storage.PeriodSnapshot{
		LimitSeconds: eff.LimitSeconds,
		ResetTime:    eff.ResetTime,
	}
}
