package engine

import (
	"context"
	"time"

	"github.com/goodtune/timewarden/internal/alarm"
	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/metrics"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

// scheduleReset arms the next reset alarm for one hostname.
func (e *Engine) scheduleReset(ctx context.Context, cfg storage.HostnameConfig, settings storage.GlobalSettings) {
	next := period.NextReset(cfg, settings, e.clock.Now())
	err := e.alarms.Create(ctx, browser.Alarm{
		Name: alarm.ResetName(cfg.Hostname),
		When: next,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Failed to schedule reset alarm")
		return
	}
	e.logger.Debug().Str("hostname", cfg.Hostname).Time("at", next).Msg("Reset scheduled")
}

// scheduleAllResets (re)arms the reset alarm of every enabled hostname. Run
// at startup this also covers resets missed while the process was down: the
// period-date function assigns new time to the new period on its own.
func (e *Engine) scheduleAllResets(ctx context.Context) error {
	configs, err := e.state.GetConfigs(ctx)
	if err != nil {
		return err
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		e.scheduleReset(ctx, cfg, settings)
	}
	return nil
}

// handleReset is the reset-alarm handler: time accrued up to the boundary is
// written to the period that just ended, the next reset is armed, and
// re-evaluation restarts tracking into the fresh period if tabs remain open.
func (e *Engine) handleReset(ctx context.Context, host string) error {
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
	if startedAt, reason, tracking := e.observer.Tracking(host); tracking {
		elapsed := int64(now.Sub(startedAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		e.observer.ClearTracking(host)
		// The boundary instant itself belongs to the new period, so the
		// closing write targets the period one second earlier.
		ref := now.Add(-time.Second)
		if err := e.recordElapsed(ctx, host, ref, now, elapsed, true); err != nil {
			e.logger.Error().Err(err).Str("hostname", host).Msg("Failed to close period at reset")
		}
		metrics.TrackingSecondsTotal.WithLabelValues(host, string(reason)).Add(float64(elapsed))
	}

	e.clearWarningAlarms(ctx, host)

	// A grace countdown never outlives its period.
	if _, ok := e.graceEnds[host]; ok {
		delete(e.graceEnds, host)
		if err := e.alarms.Clear(ctx, alarm.GraceEndName(host)); err != nil {
			e.logger.Warn().Err(err).Str("hostname", host).Msg("Failed to clear grace-end alarm")
		}
	}

	e.scheduleReset(ctx, cfg, settings)
	e.logger.Info().Str("hostname", host).Msg("Period reset")
	return e.reevaluate(ctx)
}
