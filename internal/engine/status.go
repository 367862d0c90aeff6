package engine

import (
	"context"
	"time"

	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

// Status is the live per-hostname answer for the UI surfaces. Read-only:
// live elapsed is derived on the fly, nothing is written.
type Status struct {
	Hostname              string     `json:"hostname"`
	Enabled               bool       `json:"enabled"`
	PeriodDate            string     `json:"periodDate"`
	TimeSpentSeconds      int64      `json:"timeSpentSeconds"`
	LimitSeconds          int        `json:"limitSeconds"`
	TimeRemainingSeconds  int64      `json:"timeRemainingSeconds"`
	VisitCount            int        `json:"visitCount"`
	ResetTime             string     `json:"resetTime"`
	Tracking              bool       `json:"tracking"`
	Reason                string     `json:"reason,omitempty"`
	Blocked               bool       `json:"blocked"`
	BlockedAt             *time.Time `json:"blockedAt,omitempty"`
	Paused                bool       `json:"paused"`
	PauseRemainingSeconds int64      `json:"pauseRemainingSeconds"`
	GraceActive           bool       `json:"graceActive"`
	GraceRemainingSeconds int64      `json:"graceRemainingSeconds"`
}

// Dashboard bundles everything the dashboard UI renders in one response.
type Dashboard struct {
	Configs  []storage.HostnameConfig `json:"configs"`
	Settings storage.GlobalSettings   `json:"settings"`
	UsageLog storage.UsageLog         `json:"usageLog"`
}

// BlockedInfo is what the blocked page shows for one hostname.
type BlockedInfo struct {
	Hostname              string     `json:"hostname"`
	TimeSpentSeconds      int64      `json:"timeSpentSeconds"`
	LimitSeconds          int        `json:"limitSeconds"`
	VisitCount            int        `json:"visitCount"`
	SessionCount          int        `json:"sessionCount"`
	LongestSessionSeconds int64      `json:"longestSessionSeconds"`
	ResetTime             string     `json:"resetTime"`
	BlockedAt             *time.Time `json:"blockedAt,omitempty"`
}

// Status answers a live status query for one hostname.
func (e *Engine) Status(ctx context.Context, host string) (Status, error) {
	var out Status
	err := e.queue.enqueueWait(ctx, operation{name: "status", fn: func(qctx context.Context) error {
		cfg, ok, err := e.config(qctx, host)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownHostname
		}
		settings, err := e.state.GetSettings(qctx)
		if err != nil {
			return err
		}
		out, err = e.status(qctx, cfg, settings)
		return err
	}})
	return out, err
}

// AllStatus answers live status for every enabled hostname.
func (e *Engine) AllStatus(ctx context.Context) ([]Status, error) {
	var out []Status
	err := e.queue.enqueueWait(ctx, operation{name: "all-status", fn: func(qctx context.Context) error {
		configs, err := e.state.GetConfigs(qctx)
		if err != nil {
			return err
		}
		settings, err := e.state.GetSettings(qctx)
		if err != nil {
			return err
		}
		out = make([]Status, 0, len(configs))
		for _, cfg := range configs {
			if !cfg.Enabled {
				continue
			}
			s, err := e.status(qctx, cfg, settings)
			if err != nil {
				e.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Status query failed")
				continue
			}
			out = append(out, s)
		}
		return nil
	}})
	return out, err
}

func (e *Engine) status(ctx context.Context, cfg storage.HostnameConfig, settings storage.GlobalSettings) (Status, error) {
	now := e.clock.Now()
	usage, _, date, err := e.usageFor(ctx, cfg, settings, now)
	if err != nil {
		return Status{}, err
	}

	eff := period.Resolve(cfg, settings, now.Weekday())
	s := Status{
		Hostname:     cfg.Hostname,
		Enabled:      cfg.Enabled,
		PeriodDate:   date,
		LimitSeconds: eff.LimitSeconds,
		ResetTime:    eff.ResetTime,
	}
	if usage != nil {
		s.TimeSpentSeconds = usage.TimeSpentSeconds
		s.LimitSeconds = usage.LimitSeconds
		s.ResetTime = usage.ResetTime
		s.VisitCount = usage.VisitCount
		s.Blocked = usage.Blocked
		s.BlockedAt = usage.BlockedAt
	}
	if startedAt, reason, tracking := e.observer.Tracking(cfg.Hostname); tracking {
		s.Tracking = true
		s.Reason = string(reason)
		if live := int64(now.Sub(startedAt).Seconds()); live > 0 {
			s.TimeSpentSeconds += live
		}
	}
	s.TimeRemainingSeconds = int64(s.LimitSeconds) - s.TimeSpentSeconds
	if s.TimeRemainingSeconds < 0 {
		s.TimeRemainingSeconds = 0
	}
	if e.isPaused(cfg.Hostname) {
		s.Paused = true
		s.PauseRemainingSeconds = e.pauseRemaining(cfg.Hostname, now)
	}
	if remaining := e.graceRemaining(cfg.Hostname, now); remaining > 0 {
		s.GraceActive = true
		s.GraceRemainingSeconds = remaining
	}
	return s, nil
}

// DashboardData returns configs, settings and the usage log with live
// elapsed folded into the current period's entries. The log is copied;
// nothing in storage changes.
func (e *Engine) DashboardData(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := e.queue.enqueueWait(ctx, operation{name: "dashboard", fn: func(qctx context.Context) error {
		configs, err := e.state.GetConfigs(qctx)
		if err != nil {
			return err
		}
		settings, err := e.state.GetSettings(qctx)
		if err != nil {
			return err
		}
		log, err := e.state.GetUsageLog(qctx)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		copied := make(storage.UsageLog, len(log))
		for i, day := range log {
			copied[i] = day
			copied[i].Hostnames = append([]storage.HostnameUsage(nil), day.Hostnames...)
		}
		for _, cfg := range configs {
			startedAt, _, tracking := e.observer.Tracking(cfg.Hostname)
			if !tracking {
				continue
			}
			live := int64(now.Sub(startedAt).Seconds())
			if live <= 0 {
				continue
			}
			day := copied.Day(period.Date(cfg, settings, now))
			if day == nil {
				continue
			}
			if usage := day.Usage(cfg.Hostname); usage != nil {
				usage.TimeSpentSeconds += live
			}
		}

		out = Dashboard{Configs: configs, Settings: settings, UsageLog: copied}
		return nil
	}})
	return out, err
}

// BlockedStatus answers the blocked page's query for one hostname.
func (e *Engine) BlockedStatus(ctx context.Context, host string) (BlockedInfo, error) {
	var out BlockedInfo
	err := e.queue.enqueueWait(ctx, operation{name: "blocked-status", fn: func(qctx context.Context) error {
		cfg, ok, err := e.config(qctx, host)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownHostname
		}
		settings, err := e.state.GetSettings(qctx)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		usage, _, _, err := e.usageFor(qctx, cfg, settings, now)
		if err != nil {
			return err
		}

		eff := period.Resolve(cfg, settings, now.Weekday())
		out = BlockedInfo{
			Hostname:     cfg.Hostname,
			LimitSeconds: eff.LimitSeconds,
			ResetTime:    eff.ResetTime,
		}
		if usage != nil {
			out.TimeSpentSeconds = usage.TimeSpentSeconds
			out.LimitSeconds = usage.LimitSeconds
			out.ResetTime = usage.ResetTime
			out.VisitCount = usage.VisitCount
			out.SessionCount = len(usage.Sessions)
			out.BlockedAt = usage.BlockedAt
			for _, sess := range usage.Sessions {
				if sess.DurationSeconds > out.LongestSessionSeconds {
					out.LongestSessionSeconds = sess.DurationSeconds
				}
			}
		}
		return nil
	}})
	return out, err
}
