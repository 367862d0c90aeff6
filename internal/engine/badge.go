package engine

import (
	"context"
	"fmt"

	"github.com/goodtune/timewarden/internal/alarm"
	"github.com/goodtune/timewarden/internal/browser"
)

// Badge colours. Red doubles for blocked and nearly-out-of-time.
const (
	badgeRed   = "#d93025"
	badgeAmber = "#f9ab00"
	badgeGreen = "#188038"
	badgeGray  = "#5f6368"
)

// Badge refresh cadences in alarm period-minutes: 30 s normally, 1 s while a
// grace or pause countdown is showing.
const (
	badgeSlowPeriod = 0.5
	badgeFastPeriod = 1.0 / 60.0
)

// refreshBadge renders the toolbar badge for the active tab's hostname.
// Priority: blocked > grace countdown > paused > tracking remaining > empty.
func (e *Engine) refreshBadge(ctx context.Context) error {
	tabID := e.observer.ActiveTab()
	host, ok := e.observer.HostnameOf(tabID)
	if tabID == 0 || !ok {
		e.setBadge("", "")
		e.setBadgeCadence(ctx, false)
		return nil
	}

	now := e.clock.Now()

	if remaining := e.graceRemaining(host, now); remaining > 0 {
		e.setBadge(fmt.Sprintf("%d", remaining), badgeRed)
		e.setBadgeCadence(ctx, true)
		return nil
	}

	if e.isPaused(host) {
		e.setBadge(formatBadgeSeconds(e.pauseRemaining(host, now)), badgeAmber)
		e.setBadgeCadence(ctx, true)
		return nil
	}

	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return err
	}
	if !ok || !cfg.Enabled {
		e.setBadge("", "")
		e.setBadgeCadence(ctx, false)
		return nil
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}
	usage, _, _, err := e.usageFor(ctx, cfg, settings, now)
	if err != nil {
		return err
	}
	e.setBadgeCadence(ctx, false)

	if usage == nil {
		e.setBadge(formatBadgeSeconds(int64(cfg.DailyLimitSeconds)), badgeGreen)
		return nil
	}
	if usage.Blocked {
		e.setBadge("!", badgeRed)
		return nil
	}

	spent := usage.TimeSpentSeconds
	if startedAt, _, tracking := e.observer.Tracking(host); tracking {
		if live := int64(now.Sub(startedAt).Seconds()); live > 0 {
			spent += live
		}
	}
	remaining := int64(usage.LimitSeconds) - spent
	if remaining < 0 {
		remaining = 0
	}
	e.setBadge(formatBadgeSeconds(remaining), badgeColorFor(remaining, usage.LimitSeconds))
	return nil
}

func badgeColorFor(remaining int64, limit int) string {
	if limit <= 0 {
		return badgeGray
	}
	pct := remaining * 100 / int64(limit)
	switch {
	case pct > 25:
		return badgeGreen
	case pct > 10:
		return badgeAmber
	default:
		return badgeRed
	}
}

// formatBadgeSeconds keeps the text within the ~4 characters a toolbar badge
// can show.
func formatBadgeSeconds(seconds int64) string {
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func (e *Engine) setBadge(text, color string) {
	e.surface.Badge.SetText(text)
	if color != "" {
		e.surface.Badge.SetBackgroundColor(color)
	}
}

// setBadgeCadence switches the periodic badge-refresh alarm between the slow
// and the 1-second countdown cadence. Creating under the same name replaces
// the previous timer, so only one is ever outstanding.
func (e *Engine) setBadgeCadence(ctx context.Context, fast bool) {
	if fast == e.badgeFast {
		return
	}
	e.badgeFast = fast
	period := badgeSlowPeriod
	if fast {
		period = badgeFastPeriod
	}
	err := e.alarms.Create(ctx, browser.Alarm{
		Name:          alarm.BadgeRefreshName,
		PeriodMinutes: period,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to retune badge refresh alarm")
	}
}
