package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goodtune/timewarden/internal/alarm"
	"github.com/goodtune/timewarden/internal/api"
	"github.com/goodtune/timewarden/internal/attention"
	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/browser/cdp"
	"github.com/goodtune/timewarden/internal/browser/dbus"
	"github.com/goodtune/timewarden/internal/config"
	"github.com/goodtune/timewarden/internal/engine"
	"github.com/goodtune/timewarden/internal/hostname"
	"github.com/goodtune/timewarden/internal/metrics"
	"github.com/goodtune/timewarden/internal/notify"
	"github.com/goodtune/timewarden/internal/period"
	"github.com/goodtune/timewarden/internal/storage"
	"github.com/goodtune/timewarden/internal/storage/bolt"
	"github.com/goodtune/timewarden/internal/storage/redis"
	"github.com/goodtune/timewarden/internal/systemd"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the TimeWarden daemon",
	Long:  `Start the TimeWarden daemon: browser attachment, tracking engine, localhost API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

// store is the slice of the storage backends the daemon wires up.
type store interface {
	State() storage.StateStore
	Alarms() storage.AlarmRecordStore
	Close() error
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting TimeWarden")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	st, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hostname matcher and attention observer
	matcher, err := hostname.NewMatcher(nil, cfg.Tracking.HostnameCacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize hostname matcher: %w", err)
	}
	observer := attention.NewObserver(matcher, logger)

	clock := period.RealClock{}

	// Alarm scheduler re-arms persisted alarms and emits fires as events
	scheduler := alarm.NewScheduler(st.Alarms(), clock, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start alarm scheduler: %w", err)
	}
	defer scheduler.Stop()

	// Browser attachment over the DevTools protocol
	adapter := cdp.New(cdp.Options{
		DevtoolsURL:   cfg.Browser.DevtoolsURL,
		PollInterval:  parseDuration(cfg.Browser.PollInterval, cdp.DefaultPollInterval),
		AssumeFocused: cfg.Browser.AssumeFocused,
	}, logger)
	adapter.Start(ctx)
	defer adapter.Stop()

	logger.Info().
		Str("devtools_url", cfg.Browser.DevtoolsURL).
		Msg("Browser adapter started")

	// Desktop notifications over DBus; the daemon keeps tracking without them
	var notes browser.NotificationStore
	var notifierEvents <-chan browser.Event
	if cfg.Browser.Notifications {
		notifier, err := dbus.NewNotifier(logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Desktop notifications unavailable")
		} else {
			notes = notifier
			notifierEvents = notifier.Events()
			defer func() { _ = notifier.Close() }()
		}
	}
	if notes == nil {
		notes = nopNotifications{}
	}

	// Idle detection over logind; absence means the user always counts as active
	var idle browser.IdleMonitor
	var idleEvents <-chan browser.Event
	idleMon, err := dbus.NewIdleMonitor(logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Idle detection unavailable")
		idle = alwaysActive{}
	} else {
		idle = idleMon
		idleEvents = idleMon.Events()
		defer func() { _ = idleMon.Close() }()
	}

	dispatcher := notify.NewDispatcher(notes, func(ctx context.Context) bool {
		settings, err := st.State().GetSettings(ctx)
		return err == nil && settings.NotificationsEnabled
	}, logger)

	surface := browser.Surface{
		Tabs:          adapter,
		Windows:       cdp.Windows{AssumeFocused: cfg.Browser.AssumeFocused},
		Idle:          idle,
		Alarms:        scheduler,
		Notifications: notes,
		Navigation:    adapter,
		Badge:         &logBadge{logger: logger},
	}

	eng := engine.New(engine.Options{
		State:         st.State(),
		Observer:      observer,
		Matcher:       matcher,
		Alarms:        scheduler,
		Surface:       surface,
		Notifier:      dispatcher,
		Clock:         clock,
		Events:        mergeEvents(ctx, adapter.Events(), notifierEvents, idleEvents),
		AlarmEvents:   scheduler.Events(),
		BlockedRoot:   cfg.Server.BlockedRoot,
		FlushInterval: parseDuration(cfg.Tracking.FlushInterval, engine.DefaultFlushInterval),
	}, logger)

	engDone := make(chan struct{})
	go func() {
		defer close(engDone)
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("Engine stopped")
		}
	}()

	logger.Info().Msg("Tracking engine started")

	// Initialize API server
	apiServer := api.NewServer(api.Config{ListenAddr: cfg.Server.APIListen}, eng, logger)
	if sdListeners.Activated && sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Server.APIListen).
		Msg("API server started")

	// Initialize Metrics server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}

		logger.Info().
			Str("addr", metricsAddr).
			Msg("Metrics server started")
	}

	logger.Info().Msg("TimeWarden startup complete")
	logger.Info().Msgf("API: http://%s", cfg.Server.APIListen)
	if cfg.Server.MetricsPort > 0 {
		logger.Info().Msgf("Metrics: http://127.0.0.1:%d/metrics", cfg.Server.MetricsPort)
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or flush)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan

		switch sig {
		case syscall.SIGHUP:
			logger.Info().Msg("SIGHUP received, flushing usage to storage...")
			if err := eng.Flush(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to flush usage")
			} else {
				logger.Info().Msg("Usage flushed")
			}
			// Continue running
			continue

		case os.Interrupt, syscall.SIGTERM:
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		}

		// Only reached on shutdown signals
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Close open sessions and persist before the queue goes away
	suspendCtx, suspendCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := eng.Suspend(suspendCtx); err != nil {
		logger.Error().Err(err).Msg("Error suspending engine")
	}
	suspendCancel()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	cancel()
	<-engDone

	logger.Info().Msg("TimeWarden stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: cfg.File != ""}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// mergeEvents fans several event sources into one channel. Nil sources are
// skipped.
func mergeEvents(ctx context.Context, sources ...<-chan browser.Event) <-chan browser.Event {
	out := make(chan browser.Event, 256)
	var wg sync.WaitGroup
	for _, src := range sources {
		if src == nil {
			continue
		}
		wg.Add(1)
		go func(src <-chan browser.Event) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-src:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// logBadge renders badge updates into the log stream. The desktop daemon has
// no toolbar to draw on.
type logBadge struct {
	logger zerolog.Logger

	mu    sync.Mutex
	text  string
	color string
}

func (b *logBadge) SetText(text string) {
	b.mu.Lock()
	changed := text != b.text
	b.text = text
	b.mu.Unlock()
	if changed {
		b.logger.Debug().Str("text", text).Msg("Badge updated")
	}
}

func (b *logBadge) SetBackgroundColor(color string) {
	b.mu.Lock()
	b.color = color
	b.mu.Unlock()
}

// nopNotifications satisfies browser.NotificationStore when no DBus
// notification service is reachable.
type nopNotifications struct{}

func (nopNotifications) Create(ctx context.Context, id string, n browser.Notification) error {
	return nil
}

func (nopNotifications) Clear(ctx context.Context, id string) error { return nil }

// alwaysActive satisfies browser.IdleMonitor when logind is unreachable.
type alwaysActive struct{}

func (alwaysActive) State(ctx context.Context) (browser.IdleState, error) {
	return browser.IdleActive, nil
}

func (alwaysActive) SetDetectionInterval(seconds int) {}
