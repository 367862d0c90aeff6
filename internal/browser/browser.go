// Package browser defines the capability interfaces the engine consumes from
// its browser collaborator. Adapters (cdp, dbus) and the test fakes implement
// them; the engine never depends on a concrete browser.
package browser

import (
	"context"
	"net/url"
	"time"
)

// WindowNone is the sentinel window id meaning "no browser window focused".
const WindowNone = -1

// Tab is the engine's view of one open browser tab.
type Tab struct {
	ID       int
	URL      string
	Audible  bool
	Active   bool
	WindowID int
}

// Window is the engine's view of one browser window.
type Window struct {
	ID      int
	Focused bool
}

// IdleState is the user attention state reported by the idle monitor.
type IdleState string

const (
	IdleActive IdleState = "active"
	IdleIdle   IdleState = "idle"
	IdleLocked IdleState = "locked"
)

// Inactive reports whether the state means the user is away.
func (s IdleState) Inactive() bool { return s == IdleIdle || s == IdleLocked }

// TabStore lists and mutates tabs.
type TabStore interface {
	List(ctx context.Context) ([]Tab, error)
	Update(ctx context.Context, tabID int, url string) error
}

// WindowStore lists windows.
type WindowStore interface {
	List(ctx context.Context) ([]Window, error)
}

// IdleMonitor queries user idle state.
type IdleMonitor interface {
	State(ctx context.Context) (IdleState, error)
	SetDetectionInterval(seconds int)
}

// Alarm is a scheduled wake-up. One-shot alarms carry When; periodic alarms
// carry PeriodMinutes.
type Alarm struct {
	Name          string
	When          time.Time
	PeriodMinutes float64
}

// AlarmStore schedules named alarms. Implementations must persist alarms
// across process restarts.
type AlarmStore interface {
	Create(ctx context.Context, alarm Alarm) error
	Clear(ctx context.Context, name string) error
	GetAll(ctx context.Context) ([]Alarm, error)
}

// Notification is a user-visible message.
type Notification struct {
	Title   string
	Message string
}

// NotificationStore shows and clears notifications. Failures are expected to
// be logged and swallowed by callers.
type NotificationStore interface {
	Create(ctx context.Context, id string, n Notification) error
	Clear(ctx context.Context, id string) error
}

// Navigation redirects tabs.
type Navigation interface {
	Redirect(ctx context.Context, tabID int, url string) error
}

// BadgeSurface renders the toolbar badge.
type BadgeSurface interface {
	SetText(text string)
	SetBackgroundColor(color string)
}

// Surface bundles every capability the engine needs.
type Surface struct {
	Tabs          TabStore
	Windows       WindowStore
	Idle          IdleMonitor
	Alarms        AlarmStore
	Notifications NotificationStore
	Navigation    Navigation
	Badge         BadgeSurface
}

// BlockedURL builds the local blocked-page URL for a hostname.
func BlockedURL(root, hostname string) string {
	return root + "/blocked?domain=" + url.QueryEscape(hostname)
}
