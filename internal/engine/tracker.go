package engine

import (
	"context"
	"time"

	"github.com/goodtune/timewarden/internal/alarm"
	"github.com/goodtune/timewarden/internal/attention"
	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/metrics"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

// reevaluate recomputes the ON/OFF decision for every hostname with runtime
// state. Running it twice with no intervening change writes nothing the
// second time.
func (e *Engine) reevaluate(ctx context.Context) error {
	for _, host := range e.observer.Hostnames() {
		reason, want := e.observer.Decide(host, e.isPaused(host))
		startedAt, current, tracking := e.observer.Tracking(host)

		switch {
		case want && !tracking:
			if err := e.startTracking(ctx, host, reason); err != nil {
				e.logger.Error().Err(err).Str("hostname", host).Msg("Failed to start tracking")
			}
		case !want && tracking:
			if err := e.stopTracking(ctx, host); err != nil {
				e.logger.Error().Err(err).Str("hostname", host).Msg("Failed to stop tracking")
			}
		case want && tracking && reason != current:
			// Reason flip only; no storage write.
			e.observer.SetTracking(host, startedAt, reason)
		}
	}
	e.observer.Prune()
	e.updateGauges()
	return e.refreshBadge(ctx)
}

func (e *Engine) updateGauges() {
	tracked := 0
	tabs := 0
	for _, host := range e.observer.Hostnames() {
		if _, _, ok := e.observer.Tracking(host); ok {
			tracked++
		}
		tabs += len(e.observer.TabsOf(host))
	}
	metrics.TrackedHostnames.Set(float64(tracked))
	metrics.OpenTabs.Set(float64(tabs))
}

// startTracking flips tracking ON for a hostname: opens a session in the
// current period's usage record and schedules warning and limit alarms.
func (e *Engine) startTracking(ctx context.Context, host string, reason attention.Reason) error {
	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return err
	}
	if !ok || !cfg.Enabled {
		return nil
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	date := period.Date(cfg, settings, now)
	log, err := e.state.GetUsageLog(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_usage_log").Inc()
		return err
	}
	usage := storage.EnsurePeriod(&log, date, host, period.Snapshot(cfg, settings, now))
	if usage == nil {
		return nil
	}
	if usage.Blocked || e.inGrace(host) {
		return nil
	}

	usage.AppendOpenSession(now)
	if err := e.state.PutUsageLog(ctx, log); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("put_usage_log").Inc()
		return err
	}
	e.observer.SetTracking(host, now, reason)
	e.scheduleWarningAlarms(ctx, cfg, settings, usage, now)

	e.logger.Info().Str("hostname", host).Str("reason", string(reason)).
		Int64("time_spent", usage.TimeSpentSeconds).Msg("Tracking started")
	return nil
}

// stopTracking flips tracking OFF: accumulates elapsed time, closes the open
// session and clears this hostname's warning and limit alarms.
func (e *Engine) stopTracking(ctx context.Context, host string) error {
	startedAt, reason, ok := e.observer.Tracking(host)
	if !ok {
		return nil
	}
	now := e.clock.Now()
	elapsed := int64(now.Sub(startedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	e.observer.ClearTracking(host)

	if err := e.recordElapsed(ctx, host, now, now, elapsed, true); err != nil {
		return err
	}
	e.clearWarningAlarms(ctx, host)
	metrics.TrackingSecondsTotal.WithLabelValues(host, string(reason)).Add(float64(elapsed))

	e.logger.Info().Str("hostname", host).Int64("elapsed", elapsed).Msg("Tracking stopped")
	return nil
}

// recordElapsed adds elapsed seconds to the usage record of the period that
// ref belongs to. closeSession also stamps the open session's end time. A
// hostname whose config vanished mid-flight is dropped silently.
func (e *Engine) recordElapsed(ctx context.Context, host string, ref, end time.Time, elapsed int64, closeSession bool) error {
	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}

	date := period.Date(cfg, settings, ref)
	log, err := e.state.GetUsageLog(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_usage_log").Inc()
		return err
	}
	usage := storage.EnsurePeriod(&log, date, host, period.Snapshot(cfg, settings, ref))
	if usage == nil {
		return nil
	}
	usage.TimeSpentSeconds += elapsed
	if closeSession {
		usage.CloseOpenSession(end, elapsed)
	} else {
		usage.AccrueOpenSession(elapsed)
	}
	if err := e.state.PutUsageLog(ctx, log); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("put_usage_log").Inc()
		return err
	}
	return nil
}

// visit increments the period's visit counter, lazily creating the usage
// record on the first visit of the period.
func (e *Engine) visit(ctx context.Context, host string) error {
	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return err
	}
	if !ok || !cfg.Enabled {
		return nil
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}

	now := e.clock.Now()
	date := period.Date(cfg, settings, now)
	log, err := e.state.GetUsageLog(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_usage_log").Inc()
		return err
	}
	usage := storage.EnsurePeriod(&log, date, host, period.Snapshot(cfg, settings, now))
	if usage == nil {
		return nil
	}
	usage.VisitCount++
	if err := e.state.PutUsageLog(ctx, log); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("put_usage_log").Inc()
		return err
	}
	metrics.VisitsTotal.WithLabelValues(host).Inc()
	return nil
}

// scheduleWarningAlarms arms notification-rule alarms and the limit alarm
// relative to now. Rules that already fired this period are skipped.
func (e *Engine) scheduleWarningAlarms(ctx context.Context, cfg storage.HostnameConfig, settings storage.GlobalSettings, usage *storage.HostnameUsage, now time.Time) {
	for _, rule := range cfg.EffectiveRules(settings) {
		if !rule.Enabled || usage.RuleFired(rule.ID) {
			continue
		}
		threshold, ok := rule.ThresholdSeconds(usage.LimitSeconds)
		if !ok || usage.TimeSpentSeconds >= threshold {
			continue
		}
		when := now.Add(time.Duration(threshold-usage.TimeSpentSeconds) * time.Second)
		err := e.alarms.Create(ctx, browser.Alarm{
			Name: alarm.RuleName(rule.ID, cfg.Hostname),
			When: when,
		})
		if err != nil {
			e.logger.Warn().Err(err).Str("rule", rule.ID).Str("hostname", cfg.Hostname).
				Msg("Failed to schedule rule alarm")
		}
	}

	remaining := int64(usage.LimitSeconds) - usage.TimeSpentSeconds
	err := e.alarms.Create(ctx, browser.Alarm{
		Name: alarm.LimitName(cfg.Hostname),
		When: now.Add(time.Duration(remaining) * time.Second),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Failed to schedule limit alarm")
	}
}

// clearWarningAlarms removes the hostname's rule and limit alarms.
// Best-effort: a racing fire is tolerated because handlers re-check state.
func (e *Engine) clearWarningAlarms(ctx context.Context, host string) {
	all, err := e.alarms.GetAll(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to enumerate alarms")
		return
	}
	for _, a := range all {
		if !alarm.IsWarningFor(a.Name, host) {
			continue
		}
		if err := e.alarms.Clear(ctx, a.Name); err != nil {
			e.logger.Warn().Err(err).Str("name", a.Name).Msg("Failed to clear alarm")
		}
	}
}

// flush persists the live elapsed time of every tracked hostname and resets
// each tracking baseline to now. The next stop or flush measures from the new
// baseline, so nothing is double-counted.
func (e *Engine) flush(ctx context.Context) error {
	now := e.clock.Now()
	for _, host := range e.observer.Hostnames() {
		startedAt, reason, ok := e.observer.Tracking(host)
		if !ok {
			continue
		}
		elapsed := int64(now.Sub(startedAt) / time.Second)
		if elapsed <= 0 {
			continue
		}
		if err := e.recordElapsed(ctx, host, now, now, elapsed, false); err != nil {
			e.logger.Error().Err(err).Str("hostname", host).Msg("Flush failed")
			continue
		}
		e.observer.SetTracking(host, now, reason)
		metrics.TrackingSecondsTotal.WithLabelValues(host, string(reason)).Add(float64(elapsed))
	}
	return nil
}

// suspendPersist is the pre-exit safety net: like flush, but sessions are
// closed and baselines left alone because the process is going away.
func (e *Engine) suspendPersist(ctx context.Context) error {
	now := e.clock.Now()
	for _, host := range e.observer.Hostnames() {
		startedAt, _, ok := e.observer.Tracking(host)
		if !ok {
			continue
		}
		elapsed := int64(now.Sub(startedAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		if err := e.recordElapsed(ctx, host, now, now, elapsed, true); err != nil {
			e.logger.Error().Err(err).Str("hostname", host).Msg("Suspend persistence failed")
		}
	}
	e.logger.Info().Msg("Tracking state persisted for suspend")
	return nil
}
