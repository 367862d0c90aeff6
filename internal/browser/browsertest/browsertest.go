// Package browsertest provides in-memory implementations of the browser
// capability interfaces for engine and observer tests.
package browsertest

import (
	"context"
	"sort"
	"sync"

	"github.com/goodtune/timewarden/internal/browser"
)

// Fake implements every browser capability in memory and exposes mutators
// that emit the corresponding events, so tests can script a browser session.
type Fake struct {
	mu sync.Mutex

	tabs      map[int]browser.Tab
	windows   map[int]bool // id -> focused
	idle      browser.IdleState
	alarms    map[string]browser.Alarm
	notes     map[string]browser.Notification
	redirects []Redirect

	BadgeText  string
	BadgeColor string

	events chan browser.Event
}

// Redirect records one Navigation.Redirect call.
type Redirect struct {
	TabID int
	URL   string
}

// New creates an empty fake browser with an active user and no windows.
func New() *Fake {
	return &Fake{
		tabs:    make(map[int]browser.Tab),
		windows: make(map[int]bool),
		idle:    browser.IdleActive,
		alarms:  make(map[string]browser.Alarm),
		notes:   make(map[string]browser.Notification),
		events:  make(chan browser.Event, 256),
	}
}

// Surface returns the capability bundle backed by this fake. Windows and
// Notifications go through thin adapters because their method names collide
// with TabStore and AlarmStore on the shared receiver.
func (f *Fake) Surface() browser.Surface {
	return browser.Surface{
		Tabs:          f,
		Windows:       windowStore{f},
		Idle:          f,
		Alarms:        f,
		Notifications: noteStore{f},
		Navigation:    f,
		Badge:         f,
	}
}

type windowStore struct{ f *Fake }

func (w windowStore) List(ctx context.Context) ([]browser.Window, error) {
	return w.f.ListWindows(ctx)
}

type noteStore struct{ f *Fake }

func (n noteStore) Create(ctx context.Context, id string, note browser.Notification) error {
	return n.f.CreateNotification(ctx, id, note)
}

func (n noteStore) Clear(ctx context.Context, id string) error {
	return n.f.ClearNotification(ctx, id)
}

// Events returns the event stream produced by the mutators.
func (f *Fake) Events() <-chan browser.Event { return f.events }

func (f *Fake) emit(e browser.Event) {
	select {
	case f.events <- e:
	default:
	}
}

// --- TabStore ---

func (f *Fake) List(ctx context.Context) ([]browser.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tabs := make([]browser.Tab, 0, len(f.tabs))
	for _, t := range f.tabs {
		tabs = append(tabs, t)
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	return tabs, nil
}

func (f *Fake) Update(ctx context.Context, tabID int, url string) error {
	f.mu.Lock()
	t, ok := f.tabs[tabID]
	if ok {
		t.URL = url
		f.tabs[tabID] = t
	}
	f.mu.Unlock()
	if ok {
		f.emit(browser.TabUpdated{Tab: t})
	}
	return nil
}

// --- WindowStore ---

// ListWindows is exposed through the WindowStore interface.
func (f *Fake) ListWindows(ctx context.Context) ([]browser.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	windows := make([]browser.Window, 0, len(f.windows))
	for id, focused := range f.windows {
		windows = append(windows, browser.Window{ID: id, Focused: focused})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].ID < windows[j].ID })
	return windows, nil
}

// --- IdleMonitor ---

func (f *Fake) State(ctx context.Context) (browser.IdleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle, nil
}

func (f *Fake) SetDetectionInterval(seconds int) {}

// --- AlarmStore ---

func (f *Fake) Create(ctx context.Context, alarm browser.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alarms[alarm.Name] = alarm
	return nil
}

func (f *Fake) Clear(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.alarms, name)
	return nil
}

func (f *Fake) GetAll(ctx context.Context) ([]browser.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alarms := make([]browser.Alarm, 0, len(f.alarms))
	for _, a := range f.alarms {
		alarms = append(alarms, a)
	}
	sort.Slice(alarms, func(i, j int) bool { return alarms[i].Name < alarms[j].Name })
	return alarms, nil
}

// --- NotificationStore ---

// CreateNotification is exposed through the NotificationStore interface.
func (f *Fake) CreateNotification(ctx context.Context, id string, n browser.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[id] = n
	return nil
}

// ClearNotification is exposed through the NotificationStore interface.
func (f *Fake) ClearNotification(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notes, id)
	return nil
}

// --- Navigation ---

func (f *Fake) Redirect(ctx context.Context, tabID int, url string) error {
	f.mu.Lock()
	f.redirects = append(f.redirects, Redirect{TabID: tabID, URL: url})
	if t, ok := f.tabs[tabID]; ok {
		t.URL = url
		f.tabs[tabID] = t
	}
	f.mu.Unlock()
	return nil
}

// --- BadgeSurface ---

func (f *Fake) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BadgeText = text
}

func (f *Fake) SetBackgroundColor(color string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BadgeColor = color
}

// --- test mutators ---

// OpenTab adds a tab and emits TabUpdated plus, if active, TabActivated.
func (f *Fake) OpenTab(t browser.Tab) {
	f.mu.Lock()
	f.tabs[t.ID] = t
	if _, ok := f.windows[t.WindowID]; !ok {
		f.windows[t.WindowID] = false
	}
	f.mu.Unlock()
	f.emit(browser.TabUpdated{Tab: t})
	if t.Active {
		f.emit(browser.TabActivated{TabID: t.ID, WindowID: t.WindowID})
	}
}

// NavigateTab changes a tab's URL and emits TabUpdated.
func (f *Fake) NavigateTab(tabID int, url string) {
	f.mu.Lock()
	t, ok := f.tabs[tabID]
	if ok {
		t.URL = url
		f.tabs[tabID] = t
	}
	f.mu.Unlock()
	if ok {
		f.emit(browser.TabUpdated{Tab: t})
	}
}

// SetAudible toggles a tab's audible flag and emits TabUpdated.
func (f *Fake) SetAudible(tabID int, audible bool) {
	f.mu.Lock()
	t, ok := f.tabs[tabID]
	if ok {
		t.Audible = audible
		f.tabs[tabID] = t
	}
	f.mu.Unlock()
	if ok {
		f.emit(browser.TabUpdated{Tab: t})
	}
}

// ActivateTab marks a tab active within its window and emits TabActivated.
func (f *Fake) ActivateTab(tabID int) {
	f.mu.Lock()
	t, ok := f.tabs[tabID]
	if ok {
		for id, other := range f.tabs {
			if other.WindowID == t.WindowID {
				other.Active = id == tabID
				f.tabs[id] = other
			}
		}
	}
	f.mu.Unlock()
	if ok {
		f.emit(browser.TabActivated{TabID: tabID, WindowID: t.WindowID})
	}
}

// CloseTab removes a tab and emits TabRemoved.
func (f *Fake) CloseTab(tabID int) {
	f.mu.Lock()
	delete(f.tabs, tabID)
	f.mu.Unlock()
	f.emit(browser.TabRemoved{TabID: tabID})
}

// FocusWindow marks the given window focused (browser.WindowNone for none)
// and emits WindowFocusChanged.
func (f *Fake) FocusWindow(windowID int) {
	f.mu.Lock()
	for id := range f.windows {
		f.windows[id] = id == windowID
	}
	if windowID != browser.WindowNone {
		f.windows[windowID] = true
	}
	f.mu.Unlock()
	f.emit(browser.WindowFocusChanged{WindowID: windowID})
}

// SetIdle changes the idle state and emits IdleStateChanged.
func (f *Fake) SetIdle(state browser.IdleState) {
	f.mu.Lock()
	f.idle = state
	f.mu.Unlock()
	f.emit(browser.IdleStateChanged{State: state})
}

// FireAlarm emits AlarmFired without consulting the alarm table, as a real
// browser would on a racing fire.
func (f *Fake) FireAlarm(name string) {
	f.emit(browser.AlarmFired{Name: name})
}

// Alarm returns the stored alarm by name.
func (f *Fake) Alarm(name string) (browser.Alarm, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alarms[name]
	return a, ok
}

// Redirects returns a copy of all recorded redirects.
func (f *Fake) Redirects() []Redirect {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Redirect, len(f.redirects))
	copy(out, f.redirects)
	return out
}

// Notification returns a displayed notification by id.
func (f *Fake) Notification(id string) (browser.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	return n, ok
}

// Notifications returns all currently displayed notifications. Order is
// unspecified; callers with generated ids assert on contents.
func (f *Fake) Notifications() []browser.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]browser.Notification, 0, len(f.notes))
	for _, n := range f.notes {
		out = append(out, n)
	}
	return out
}
