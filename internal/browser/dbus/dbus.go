// Package dbus provides desktop-integration capabilities over D-Bus:
// notifications via org.freedesktop.Notifications on the session bus, and
// idle detection via the org.freedesktop.login1 IdleHint on the system bus.
package dbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser"
)

const appName = "TimeWarden"

// Notifier implements browser.NotificationStore over the session bus.
type Notifier struct {
	conn   *godbus.Conn
	logger zerolog.Logger

	mu     sync.Mutex
	shown  map[string]uint32
	events chan browser.Event
}

// NewNotifier connects to the session bus.
func NewNotifier(logger zerolog.Logger) (*Notifier, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	n := &Notifier{
		conn:   conn,
		logger: logger.With().Str("component", "dbus-notify").Logger(),
		shown:  make(map[string]uint32),
		events: make(chan browser.Event, 16),
	}
	n.watchActions()
	return n, nil
}

// Events carries NotificationClicked events.
func (n *Notifier) Events() <-chan browser.Event { return n.events }

func (n *Notifier) watchActions() {
	if err := n.conn.AddMatchSignal(
		godbus.WithMatchInterface("org.freedesktop.Notifications"),
		godbus.WithMatchMember("ActionInvoked"),
	); err != nil {
		n.logger.Warn().Err(err).Msg("Cannot watch notification actions")
		return
	}
	signals := make(chan *godbus.Signal, 16)
	n.conn.Signal(signals)
	go func() {
		for sig := range signals {
			if len(sig.Body) < 1 {
				continue
			}
			handle, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if id := n.lookup(handle); id != "" {
				select {
				case n.events <- browser.NotificationClicked{ID: id}:
				default:
				}
			}
		}
	}()
}

func (n *Notifier) lookup(handle uint32) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, h := range n.shown {
		if h == handle {
			return id
		}
	}
	return ""
}

// Create shows a notification. Re-using an id replaces the previous one.
func (n *Notifier) Create(ctx context.Context, id string, note browser.Notification) error {
	n.mu.Lock()
	replaces := n.shown[id]
	n.mu.Unlock()

	obj := n.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.CallWithContext(ctx, "org.freedesktop.Notifications.Notify", 0,
		appName,          // app_name
		replaces,         // replaces_id
		"dialog-warning", // app_icon
		note.Title,       // summary
		note.Message,     // body
		[]string{},       // actions
		map[string]godbus.Variant{
			"urgency": godbus.MakeVariant(byte(1)),
		},
		int32(10000), // expire_timeout
	)
	if call.Err != nil {
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}

	var handle uint32
	if err := call.Store(&handle); err != nil {
		return fmt.Errorf("failed to parse notification handle: %w", err)
	}
	n.mu.Lock()
	n.shown[id] = handle
	n.mu.Unlock()
	return nil
}

// Clear closes a previously shown notification.
func (n *Notifier) Clear(ctx context.Context, id string) error {
	n.mu.Lock()
	handle, ok := n.shown[id]
	delete(n.shown, id)
	n.mu.Unlock()
	if !ok {
		return nil
	}

	obj := n.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.CallWithContext(ctx, "org.freedesktop.Notifications.CloseNotification", 0, handle)
	if call.Err != nil {
		return fmt.Errorf("failed to close notification: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (n *Notifier) Close() error {
	return n.conn.Close()
}

// IdleMonitor implements browser.IdleMonitor by polling the logind IdleHint
// of the seat.
type IdleMonitor struct {
	conn   *godbus.Conn
	logger zerolog.Logger

	mu       sync.Mutex
	interval time.Duration
	last     browser.IdleState

	events chan browser.Event
	stop   chan struct{}
	once   sync.Once
}

// NewIdleMonitor connects to the system bus and begins polling.
func NewIdleMonitor(logger zerolog.Logger) (*IdleMonitor, error) {
	conn, err := godbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	m := &IdleMonitor{
		conn:     conn,
		logger:   logger.With().Str("component", "dbus-idle").Logger(),
		interval: 15 * time.Second,
		last:     browser.IdleActive,
		events:   make(chan browser.Event, 16),
		stop:     make(chan struct{}),
	}
	go m.poll()
	return m, nil
}

// Events carries IdleStateChanged events.
func (m *IdleMonitor) Events() <-chan browser.Event { return m.events }

// State queries the current idle state.
func (m *IdleMonitor) State(ctx context.Context) (browser.IdleState, error) {
	state, err := m.query()
	if err != nil {
		return browser.IdleActive, err
	}
	return state, nil
}

// SetDetectionInterval adjusts the polling cadence.
func (m *IdleMonitor) SetDetectionInterval(seconds int) {
	if seconds <= 0 {
		return
	}
	m.mu.Lock()
	m.interval = time.Duration(seconds) * time.Second
	m.mu.Unlock()
}

func (m *IdleMonitor) query() (browser.IdleState, error) {
	obj := m.conn.Object("org.freedesktop.login1", "/org/freedesktop/login1")
	variant, err := obj.GetProperty("org.freedesktop.login1.Manager.IdleHint")
	if err != nil {
		return browser.IdleActive, fmt.Errorf("failed to get IdleHint: %w", err)
	}
	idle, ok := variant.Value().(bool)
	if !ok {
		return browser.IdleActive, fmt.Errorf("unexpected IdleHint type %T", variant.Value())
	}
	if idle {
		return browser.IdleIdle, nil
	}
	return browser.IdleActive, nil
}

func (m *IdleMonitor) poll() {
	for {
		m.mu.Lock()
		interval := m.interval
		m.mu.Unlock()

		select {
		case <-m.stop:
			return
		case <-time.After(interval):
		}

		state, err := m.query()
		if err != nil {
			m.logger.Warn().Err(err).Msg("Idle query failed")
			continue
		}
		m.mu.Lock()
		changed := state != m.last
		m.last = state
		m.mu.Unlock()
		if changed {
			select {
			case m.events <- browser.IdleStateChanged{State: state}:
			default:
			}
		}
	}
}

// Close stops polling and releases the bus connection.
func (m *IdleMonitor) Close() error {
	m.once.Do(func() { close(m.stop) })
	return m.conn.Close()
}
