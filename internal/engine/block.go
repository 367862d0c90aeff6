package engine

import (
	"context"
	"strings"
	"time"

	"github.com/goodtune/timewarden/internal/alarm"
	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/metrics"
	"github.com/goodtune/timewarden/internal/notify"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

// inGrace reports whether host has a live grace countdown. The map is
// runtime-only: process death during grace means the grace-end alarm, which
// is durably stored, drives the block on restart.
func (e *Engine) inGrace(host string) bool {
	end, ok := e.graceEnds[host]
	return ok && e.clock.Now().Before(end)
}

func (e *Engine) graceRemaining(host string, now time.Time) int64 {
	end, ok := e.graceEnds[host]
	if !ok || !now.Before(end) {
		return 0
	}
	return int64((end.Sub(now) + time.Second - 1) / time.Second)
}

// handleLimit is the limit-alarm handler: tracking stops, and the grace
// countdown (or an immediate block) begins. Stale fires are ignored by
// re-checking the stored usage.
func (e *Engine) handleLimit(ctx context.Context, host string) error {
	if err := e.stopTracking(ctx, host); err != nil {
		e.logger.Error().Err(err).Str("hostname", host).Msg("Failed to stop tracking at limit")
	}

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
	usage, _, _, err := e.usageFor(ctx, cfg, settings, now)
	if err != nil {
		return err
	}
	if usage == nil || usage.Blocked || usage.TimeSpentSeconds < int64(usage.LimitSeconds) {
		// Stale fire: the stop above was spurious, so let re-evaluation
		// restart tracking if the tab is still attended.
		return e.reevaluate(ctx)
	}

	if settings.GracePeriodSeconds <= 0 {
		return e.blockHostname(ctx, host)
	}

	end := now.Add(time.Duration(settings.GracePeriodSeconds) * time.Second)
	e.graceEnds[host] = end
	if err := e.alarms.Create(ctx, browser.Alarm{Name: alarm.GraceEndName(host), When: end}); err != nil {
		e.logger.Warn().Err(err).Str("hostname", host).Msg("Failed to schedule grace-end alarm")
	}
	e.notifier.Dispatch(ctx, notify.GraceTitle, notify.GraceMessage, host)
	e.logger.Info().Str("hostname", host).Time("grace_ends", end).Msg("Grace period started")
	return e.refreshBadge(ctx)
}

// handleGraceEnd is the grace-end alarm handler.
func (e *Engine) handleGraceEnd(ctx context.Context, host string) error {
	delete(e.graceEnds, host)
	return e.blockHostname(ctx, host)
}

// blockHostname durably marks the current period blocked and redirects every
// open tab of the hostname to the blocked page.
func (e *Engine) blockHostname(ctx context.Context, host string) error {
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
	if !usage.Blocked {
		usage.Blocked = true
		blockedAt := now
		usage.BlockedAt = &blockedAt
		if err := e.state.PutUsageLog(ctx, log); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("put_usage_log").Inc()
			return err
		}
		metrics.BlocksTotal.WithLabelValues(host).Inc()
		e.notifier.Dispatch(ctx, notify.BlockTitle, notify.BlockMessage, host)
		e.logger.Info().Str("hostname", host).Msg("Hostname blocked")
	}

	e.redirectTabs(ctx, host)
	return e.refreshBadge(ctx)
}

// redirectTabs sends every known tab of the hostname to the blocked page.
func (e *Engine) redirectTabs(ctx context.Context, host string) {
	target := browser.BlockedURL(e.blockedRoot, host)
	for _, tabID := range e.observer.TabsOf(host) {
		if err := e.surface.Navigation.Redirect(ctx, tabID, target); err != nil {
			e.logger.Warn().Err(err).Int("tab", tabID).Str("hostname", host).
				Msg("Failed to redirect tab to blocked page")
			continue
		}
		metrics.RedirectsTotal.Inc()
	}
}

// interceptNavigation redirects a navigation landing on a hostname that is
// blocked for its current period and not in grace. Local pages are skipped.
func (e *Engine) interceptNavigation(ctx context.Context, tab browser.Tab) error {
	if e.blockedRoot != "" && strings.HasPrefix(tab.URL, e.blockedRoot) {
		return nil
	}
	host, ok := e.matcher.MatchURL(tab.URL)
	if !ok || e.inGrace(host) {
		return nil
	}
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
	usage, _, _, err := e.usageFor(ctx, cfg, settings, e.clock.Now())
	if err != nil {
		return err
	}
	if usage == nil || !usage.Blocked {
		return nil
	}
	if err := e.surface.Navigation.Redirect(ctx, tab.ID, browser.BlockedURL(e.blockedRoot, host)); err != nil {
		return err
	}
	metrics.RedirectsTotal.Inc()
	e.logger.Info().Int("tab", tab.ID).Str("hostname", host).Msg("Blocked navigation intercepted")
	return nil
}

// enforceBlocks redirects tabs already sitting on blocked hostnames. Run at
// startup, after attention recovery has registered the open tabs.
func (e *Engine) enforceBlocks(ctx context.Context) error {
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}
	configs, err := e.state.GetConfigs(ctx)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	log, err := e.state.GetUsageLog(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_usage_log").Inc()
		return err
	}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		day := log.Day(period.Date(cfg, settings, now))
		if day == nil {
			continue
		}
		usage := day.Usage(cfg.Hostname)
		if usage == nil || !usage.Blocked || e.inGrace(cfg.Hostname) {
			continue
		}
		e.redirectTabs(ctx, cfg.Hostname)
	}
	return nil
}
