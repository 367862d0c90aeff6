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

// pauseState is the runtime-only record of an active pause. Lost on restart;
// the durable pause-end alarm re-fires and resumes cleanly because resume
// treats a missing entry as a no-op.
type pauseState struct {
	pausedAt              time.Time
	previousPausedSeconds int64
	allowanceSeconds      int64
}

// PauseResult answers a TogglePause request.
type PauseResult struct {
	Success               bool  `json:"success"`
	IsPaused              bool  `json:"isPaused"`
	PauseRemainingSeconds int64 `json:"pauseRemainingSeconds"`
}

func (e *Engine) isPaused(host string) bool {
	return e.paused[host] != nil
}

// pauseRemaining returns the allowance seconds left, counting a live pause's
// elapsed time against it.
func (e *Engine) pauseRemaining(host string, now time.Time) int64 {
	st := e.paused[host]
	if st == nil {
		return 0
	}
	elapsed := int64(now.Sub(st.pausedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := st.allowanceSeconds - st.previousPausedSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// TogglePause pauses or resumes tracking for a hostname. Pausing fails when
// the hostname is unknown, disabled, blocked, or out of allowance.
func (e *Engine) TogglePause(ctx context.Context, host string) (PauseResult, error) {
	var out PauseResult
	err := e.queue.enqueueWait(ctx, operation{name: "toggle-pause", fn: func(qctx context.Context) error {
		var err error
		out, err = e.togglePause(qctx, host)
		return err
	}})
	return out, err
}

func (e *Engine) togglePause(ctx context.Context, host string) (PauseResult, error) {
	if e.isPaused(host) {
		remaining, err := e.resumePause(ctx, host)
		if err != nil {
			return PauseResult{}, err
		}
		return PauseResult{Success: true, IsPaused: false, PauseRemainingSeconds: remaining}, nil
	}

	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return PauseResult{}, err
	}
	if !ok || !cfg.Enabled {
		return PauseResult{}, nil
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return PauseResult{}, err
	}

	now := e.clock.Now()
	usage, _, _, err := e.usageFor(ctx, cfg, settings, now)
	if err != nil {
		return PauseResult{}, err
	}
	if usage != nil && usage.Blocked {
		return PauseResult{}, nil
	}

	var previous int64
	if usage != nil {
		previous = usage.PausedSeconds
	}
	allowance := int64(cfg.PauseAllowanceSeconds)
	remaining := allowance - previous
	if remaining <= 0 {
		return PauseResult{Success: false, IsPaused: false, PauseRemainingSeconds: 0}, nil
	}

	if err := e.stopTracking(ctx, host); err != nil {
		return PauseResult{}, err
	}
	e.paused[host] = &pauseState{
		pausedAt:              now,
		previousPausedSeconds: previous,
		allowanceSeconds:      allowance,
	}
	err = e.alarms.Create(ctx, browser.Alarm{
		Name: alarm.PauseEndName(host),
		When: now.Add(time.Duration(remaining) * time.Second),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("hostname", host).Msg("Failed to schedule pause-end alarm")
	}
	if err := e.reevaluate(ctx); err != nil {
		return PauseResult{}, err
	}

	e.logger.Info().Str("hostname", host).Int64("remaining", remaining).Msg("Hostname paused")
	return PauseResult{Success: true, IsPaused: true, PauseRemainingSeconds: remaining}, nil
}

// resumePause ends a pause: the paused stretch is charged against the
// allowance in storage and tracking is re-evaluated. Returns the allowance
// seconds still unspent.
func (e *Engine) resumePause(ctx context.Context, host string) (int64, error) {
	st := e.paused[host]
	if st == nil {
		return 0, nil
	}
	now := e.clock.Now()
	elapsed := int64(now.Sub(st.pausedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	total := st.previousPausedSeconds + elapsed
	if total > st.allowanceSeconds {
		total = st.allowanceSeconds
	}

	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return 0, err
	}
	if ok {
		settings, err := e.state.GetSettings(ctx)
		if err != nil {
			return 0, err
		}
		date := period.Date(cfg, settings, now)
		log, err := e.state.GetUsageLog(ctx)
		if err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("get_usage_log").Inc()
			return 0, err
		}
		usage := storage.EnsurePeriod(&log, date, host, period.Snapshot(cfg, settings, now))
		if usage != nil {
			usage.PausedSeconds = total
			if err := e.state.PutUsageLog(ctx, log); err != nil {
				metrics.StorageErrorsTotal.WithLabelValues("put_usage_log").Inc()
				return 0, err
			}
		}
	}

	delete(e.paused, host)
	if err := e.alarms.Clear(ctx, alarm.PauseEndName(host)); err != nil {
		e.logger.Warn().Err(err).Str("hostname", host).Msg("Failed to clear pause-end alarm")
	}
	if err := e.reevaluate(ctx); err != nil {
		return 0, err
	}

	remaining := st.allowanceSeconds - total
	if remaining < 0 {
		remaining = 0
	}
	e.logger.Info().Str("hostname", host).Int64("paused", elapsed).Msg("Hostname resumed")
	return remaining, nil
}

// handlePauseEnd is the pause-end alarm handler: identical to a manual resume.
func (e *Engine) handlePauseEnd(ctx context.Context, host string) error {
	_, err := e.resumePause(ctx, host)
	return err
}
