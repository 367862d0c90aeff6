package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Attention metrics
	VisitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timewarden_visits_total",
			Help: "Total navigations landing on a tracked hostname",
		},
		[]string{"hostname"},
	)

	TrackingSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timewarden_tracking_seconds_total",
			Help: "Total tracked seconds accrued",
		},
		[]string{"hostname", "reason"},
	)

	TrackedHostnames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timewarden_tracked_hostnames",
			Help: "Hostnames currently tracking ON",
		},
	)

	OpenTabs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "timewarden_open_tabs",
			Help: "Open tabs registered on tracked hostnames",
		},
	)

	// Alarm metrics
	AlarmsFiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timewarden_alarms_fired_total",
			Help: "Total alarms fired, by kind",
		},
		[]string{"kind"},
	)

	// Enforcement metrics
	BlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timewarden_blocks_total",
			Help: "Total hostname blocks applied",
		},
		[]string{"hostname"},
	)

	RedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timewarden_redirects_total",
			Help: "Total tab redirects to the blocked page",
		},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timewarden_notifications_total",
			Help: "Total notifications dispatched",
		},
		[]string{"result"},
	)

	// Storage metrics
	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timewarden_storage_errors_total",
			Help: "Total storage operation failures",
		},
		[]string{"operation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		VisitsTotal,
		TrackingSecondsTotal,
		TrackedHostnames,
		OpenTabs,
		AlarmsFiredTotal,
		BlocksTotal,
		RedirectsTotal,
		NotificationsTotal,
		StorageErrorsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
