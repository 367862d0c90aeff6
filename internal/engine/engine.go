// Package engine is the tracking engine: a single serialized state machine
// that turns attention signals into per-hostname, per-period time accounting,
// schedules warning/limit/reset alarms, and drives the grace/block and pause
// lifecycles.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/alarm"
	"github.com/goodtune/timewarden/internal/attention"
	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/hostname"
	"github.com/goodtune/timewarden/internal/metrics"
	"github.com/goodtune/timewarden/internal/notify"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
)

const (
	// DefaultFlushInterval is how often open sessions are persisted while
	// tracking is ON.
	DefaultFlushInterval = 30 * time.Second

	// initRetryDelay spaces out initialization retries.
	initRetryDelay = 5 * time.Second

	queueSize = 1024
)

// ErrUnknownHostname is returned by queries for hostnames with no config.
var ErrUnknownHostname = errors.New("engine: unknown hostname")

// Options wires the engine's collaborators.
type Options struct {
	State    storage.StateStore
	Observer *attention.Observer
	Matcher  *hostname.Matcher
	Alarms   browser.AlarmStore
	Surface  browser.Surface
	Notifier *notify.Dispatcher
	Clock    period.Clock

	// Events carries browser events (tabs, windows, idle, alarm fires,
	// notification clicks). AlarmEvents optionally carries fires from a
	// separate alarm scheduler; nil is fine.
	Events      <-chan browser.Event
	AlarmEvents <-chan browser.Event

	// BlockedRoot is the base URL of the blocked page.
	BlockedRoot string

	FlushInterval time.Duration
}

// Engine owns all mutating hostname state. Every external signal is funneled
// through its serial queue; runtime-only maps (pause, grace) are touched only
// from queued operations.
type Engine struct {
	state    storage.StateStore
	observer *attention.Observer
	matcher  *hostname.Matcher
	alarms   browser.AlarmStore
	surface  browser.Surface
	notifier *notify.Dispatcher
	clock    period.Clock
	logger   zerolog.Logger
	queue    *queue

	events      <-chan browser.Event
	alarmEvents <-chan browser.Event

	blockedRoot   string
	flushInterval time.Duration

	paused    map[string]*pauseState
	graceEnds map[string]time.Time
	badgeFast bool
}

// New creates an engine. Run must be called before the public API is used.
func New(opts Options, logger zerolog.Logger) *Engine {
	if opts.Clock == nil {
		opts.Clock = period.RealClock{}
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	log := logger.With().Str("component", "engine").Logger()
	return &Engine{
		state:         opts.State,
		observer:      opts.Observer,
		matcher:       opts.Matcher,
		alarms:        opts.Alarms,
		surface:       opts.Surface,
		notifier:      opts.Notifier,
		clock:         opts.Clock,
		logger:        log,
		queue:         newQueue(queueSize, log),
		events:        opts.Events,
		alarmEvents:   opts.AlarmEvents,
		blockedRoot:   opts.BlockedRoot,
		flushInterval: opts.FlushInterval,
		paused:        make(map[string]*pauseState),
		graceEnds:     make(map[string]time.Time),
	}
}

// Run starts the serial queue, initializes state, and processes events until
// ctx is cancelled. Initialization failures are retried; the engine never
// stays uninitialized while the process lives.
func (e *Engine) Run(ctx context.Context) error {
	go e.queue.run(ctx)

	for {
		err := e.queue.enqueueWait(ctx, operation{name: "startup", fn: e.startup})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Error().Err(err).Dur("retry_in", initRetryDelay).Msg("Initialization failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(initRetryDelay):
		}
	}

	flush := time.NewTicker(e.flushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			e.enqueueEvent(ctx, ev)
		case ev := <-e.alarmEvents:
			e.enqueueEvent(ctx, ev)
		case <-flush.C:
			_ = e.queue.enqueue(ctx, operation{name: "flush", fn: e.flush})
		}
	}
}

func (e *Engine) enqueueEvent(ctx context.Context, ev browser.Event) {
	_ = e.queue.enqueue(ctx, operation{name: "event", fn: func(qctx context.Context) error {
		return e.processEvent(qctx, ev)
	}})
}

// processEvent runs inside the queue: it feeds the observer, intercepts
// blocked navigations, and folds the resulting attention signals into visit
// and re-evaluate operations.
func (e *Engine) processEvent(ctx context.Context, ev browser.Event) error {
	switch ev := ev.(type) {
	case browser.AlarmFired:
		return e.dispatchAlarm(ctx, ev.Name)
	case browser.NotificationClicked:
		e.notifier.Clear(ctx, ev.ID)
		return nil
	case browser.TabUpdated:
		e.observer.HandleEvent(ev)
		if err := e.interceptNavigation(ctx, ev.Tab); err != nil {
			e.logger.Warn().Err(err).Int("tab", ev.Tab.ID).Msg("Navigation interception failed")
		}
		return e.drainSignals(ctx)
	default:
		e.observer.HandleEvent(ev)
		return e.drainSignals(ctx)
	}
}

// drainSignals consumes every pending attention signal, applies visits, and
// collapses any number of state changes into one re-evaluate pass.
func (e *Engine) drainSignals(ctx context.Context) error {
	changed := false
	for {
		select {
		case s := <-e.observer.Signals():
			switch sig := s.(type) {
			case attention.Visit:
				if err := e.visit(ctx, sig.Hostname); err != nil {
					e.logger.Error().Err(err).Str("hostname", sig.Hostname).Msg("Visit handling failed")
				}
			case attention.StateChange:
				changed = true
			}
		default:
			if changed {
				return e.reevaluate(ctx)
			}
			return nil
		}
	}
}

// dispatchAlarm routes a fired alarm to its handler by name.
func (e *Engine) dispatchAlarm(ctx context.Context, name string) error {
	kind, host, ruleID := alarm.Parse(name)
	metrics.AlarmsFiredTotal.WithLabelValues(kindLabel(kind)).Inc()

	switch kind {
	case alarm.KindReset:
		return e.handleReset(ctx, host)
	case alarm.KindLimit:
		return e.handleLimit(ctx, host)
	case alarm.KindRule:
		return e.handleRule(ctx, host, ruleID)
	case alarm.KindGraceEnd:
		return e.handleGraceEnd(ctx, host)
	case alarm.KindPauseEnd:
		return e.handlePauseEnd(ctx, host)
	case alarm.KindBadgeRefresh:
		return e.refreshBadge(ctx)
	default:
		e.logger.Debug().Str("name", name).Msg("Ignoring unknown alarm")
		return nil
	}
}

func kindLabel(k alarm.Kind) string {
	switch k {
	case alarm.KindReset:
		return "reset"
	case alarm.KindLimit:
		return "limit"
	case alarm.KindRule:
		return "rule"
	case alarm.KindGraceEnd:
		return "grace-end"
	case alarm.KindPauseEnd:
		return "pause-end"
	case alarm.KindBadgeRefresh:
		return "badge-refresh"
	default:
		return "unknown"
	}
}

// startup recovers runtime state, schedules resets, enforces existing blocks
// and arms the periodic badge refresh.
func (e *Engine) startup(ctx context.Context) error {
	configs, err := e.state.GetConfigs(ctx)
	if err != nil {
		return err
	}
	e.syncHostnames(configs)

	if err := e.observer.Recover(ctx, e.surface); err != nil {
		return err
	}
	if err := e.drainSignals(ctx); err != nil {
		return err
	}
	if err := e.scheduleAllResets(ctx); err != nil {
		return err
	}
	if err := e.enforceBlocks(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Startup block enforcement failed")
	}
	if err := e.alarms.Create(ctx, browser.Alarm{
		Name:          alarm.BadgeRefreshName,
		PeriodMinutes: 0.5,
	}); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to arm badge refresh alarm")
	}
	e.logger.Info().Int("hostnames", len(configs)).Msg("Engine initialized")
	return nil
}

// syncHostnames refreshes the matcher's enabled hostname set.
func (e *Engine) syncHostnames(configs []storage.HostnameConfig) {
	enabled := make([]string, 0, len(configs))
	for _, c := range configs {
		if c.Enabled {
			enabled = append(enabled, c.Hostname)
		}
	}
	e.matcher.SetHostnames(enabled)
}

// config returns the stored config for host, reporting absence without error.
func (e *Engine) config(ctx context.Context, host string) (storage.HostnameConfig, bool, error) {
	configs, err := e.state.GetConfigs(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_configs").Inc()
		return storage.HostnameConfig{}, false, err
	}
	for _, c := range configs {
		if c.Hostname == host {
			return c, true, nil
		}
	}
	return storage.HostnameConfig{}, false, nil
}

// usageFor reads the current-period usage record for host without creating
// it. A nil usage means no visit has happened this period.
func (e *Engine) usageFor(ctx context.Context, cfg storage.HostnameConfig, settings storage.GlobalSettings, now time.Time) (*storage.HostnameUsage, storage.UsageLog, string, error) {
	date := period.Date(cfg, settings, now)
	log, err := e.state.GetUsageLog(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get_usage_log").Inc()
		return nil, nil, date, err
	}
	day := log.Day(date)
	if day == nil {
		return nil, log, date, nil
	}
	return day.Usage(cfg.Hostname), log, date, nil
}

// --- configuration surface ---

// Settings returns the global settings.
func (e *Engine) Settings(ctx context.Context) (storage.GlobalSettings, error) {
	var out storage.GlobalSettings
	err := e.queue.enqueueWait(ctx, operation{name: "get-settings", fn: func(qctx context.Context) error {
		var err error
		out, err = e.state.GetSettings(qctx)
		return err
	}})
	return out, err
}

// SaveSettings persists sanitized settings, reschedules every hostname's
// reset alarm and re-evaluates tracking.
func (e *Engine) SaveSettings(ctx context.Context, settings storage.GlobalSettings) error {
	return e.queue.enqueueWait(ctx, operation{name: "save-settings", fn: func(qctx context.Context) error {
		if err := e.state.PutSettings(qctx, storage.SanitizeSettings(settings)); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("put_settings").Inc()
			return err
		}
		if err := e.scheduleAllResets(qctx); err != nil {
			e.logger.Warn().Err(err).Msg("Reset rescheduling failed after settings save")
		}
		return e.reevaluate(qctx)
	}})
}

// Configs returns every hostname config.
func (e *Engine) Configs(ctx context.Context) ([]storage.HostnameConfig, error) {
	var out []storage.HostnameConfig
	err := e.queue.enqueueWait(ctx, operation{name: "get-configs", fn: func(qctx context.Context) error {
		var err error
		out, err = e.state.GetConfigs(qctx)
		return err
	}})
	return out, err
}

// SaveConfig validates and upserts one hostname config, then refreshes the
// hostname cache, re-scans open tabs, reschedules the hostname's reset alarm
// and re-evaluates tracking.
func (e *Engine) SaveConfig(ctx context.Context, cfg storage.HostnameConfig) error {
	cfg.Hostname = hostname.Normalize(cfg.Hostname)
	if err := storage.ValidateConfig(cfg); err != nil {
		return err
	}
	return e.queue.enqueueWait(ctx, operation{name: "save-config", fn: func(qctx context.Context) error {
		configs, err := e.state.GetConfigs(qctx)
		if err != nil {
			return err
		}
		replaced := false
		for i := range configs {
			if configs[i].Hostname == cfg.Hostname {
				if cfg.CreatedAt.IsZero() {
					cfg.CreatedAt = configs[i].CreatedAt
				}
				configs[i] = cfg
				replaced = true
				break
			}
		}
		if !replaced {
			if cfg.CreatedAt.IsZero() {
				cfg.CreatedAt = e.clock.Now()
			}
			configs = append(configs, cfg)
		}
		if err := e.state.PutConfigs(qctx, configs); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("put_configs").Inc()
			return err
		}
		e.syncHostnames(configs)

		settings, err := e.state.GetSettings(qctx)
		if err != nil {
			return err
		}
		if cfg.Enabled {
			e.scheduleReset(qctx, cfg, settings)
		} else {
			if err := e.alarms.Clear(qctx, alarm.ResetName(cfg.Hostname)); err != nil {
				e.logger.Warn().Err(err).Str("hostname", cfg.Hostname).Msg("Failed to clear reset alarm")
			}
			if _, _, tracking := e.observer.Tracking(cfg.Hostname); tracking {
				if err := e.stopTracking(qctx, cfg.Hostname); err != nil {
					return err
				}
			}
		}
		if err := e.observer.Rescan(qctx, e.surface.Tabs); err != nil {
			e.logger.Warn().Err(err).Msg("Tab rescan failed after config save")
		}
		return e.drainSignals(qctx)
	}})
}

// RemoveHostname deletes a hostname config along with its alarms and runtime
// state, then re-scans and re-evaluates.
func (e *Engine) RemoveHostname(ctx context.Context, host string) error {
	host = hostname.Normalize(host)
	return e.queue.enqueueWait(ctx, operation{name: "remove-hostname", fn: func(qctx context.Context) error {
		configs, err := e.state.GetConfigs(qctx)
		if err != nil {
			return err
		}
		kept := make([]storage.HostnameConfig, 0, len(configs))
		for _, c := range configs {
			if c.Hostname != host {
				kept = append(kept, c)
			}
		}
		if err := e.state.PutConfigs(qctx, kept); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("put_configs").Inc()
			return err
		}
		e.syncHostnames(kept)

		if _, _, tracking := e.observer.Tracking(host); tracking {
			// Config is gone, so record nothing; just drop the runtime state.
			e.observer.ClearTracking(host)
		}
		delete(e.paused, host)
		delete(e.graceEnds, host)
		for _, name := range []string{
			alarm.ResetName(host),
			alarm.GraceEndName(host),
			alarm.PauseEndName(host),
		} {
			if err := e.alarms.Clear(qctx, name); err != nil {
				e.logger.Warn().Err(err).Str("name", name).Msg("Failed to clear alarm")
			}
		}
		e.clearWarningAlarms(qctx, host)

		if err := e.observer.Rescan(qctx, e.surface.Tabs); err != nil {
			e.logger.Warn().Err(err).Msg("Tab rescan failed after hostname removal")
		}
		return e.drainSignals(qctx)
	}})
}

// RefreshBadge re-renders the toolbar badge for the active tab.
func (e *Engine) RefreshBadge(ctx context.Context) error {
	return e.queue.enqueueWait(ctx, operation{name: "refresh-badge", fn: e.refreshBadge})
}

// Flush forces an immediate persistence pass for every tracked hostname.
func (e *Engine) Flush(ctx context.Context) error {
	return e.queue.enqueueWait(ctx, operation{name: "flush", fn: e.flush})
}

// Suspend persists all open tracking state ahead of process exit. Open
// sessions get an end time; runtime state is left as-is.
func (e *Engine) Suspend(ctx context.Context) error {
	return e.queue.enqueueWait(ctx, operation{name: "suspend", fn: e.suspendPersist})
}
