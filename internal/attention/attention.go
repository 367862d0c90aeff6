// Package attention maintains the runtime picture of the user's attention:
// which tabs belong to which tracked hostname, which window is focused,
// which tab is active, and whether the user is idle. It feeds the tracking
// engine with state-change and visit signals.
package attention

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/hostname"
)

// Reason is why a hostname is tracked.
type Reason string

const (
	ReasonFocused Reason = "focused"
	ReasonAudible Reason = "audible"
)

// Signal is what the observer emits toward the engine.
type Signal interface {
	isSignal()
}

// StateChange means some input changed that could alter an ON/OFF decision.
type StateChange struct{}

// Visit means a navigation landed on the hostname.
type Visit struct {
	Hostname string
}

func (StateChange) isSignal() {}
func (Visit) isSignal()       {}

// tabState is what the observer keeps per registered tab.
type tabState struct {
	audible bool
}

// entry is the per-hostname runtime record.
type entry struct {
	tabs      map[int]*tabState
	startedAt time.Time
	reason    Reason
}

// Observer ingests browser events and answers the engine's attention queries.
type Observer struct {
	matcher *hostname.Matcher
	logger  zerolog.Logger
	signals chan Signal

	mu            sync.Mutex
	tracking      map[string]*entry
	tabHost       map[int]string
	tabWindow     map[int]int
	focusedWindow int
	activeTab     int
	idle          bool
}

// NewObserver creates an observer over the given matcher.
func NewObserver(matcher *hostname.Matcher, logger zerolog.Logger) *Observer {
	return &Observer{
		matcher:       matcher,
		logger:        logger.With().Str("component", "attention").Logger(),
		signals:       make(chan Signal, 256),
		tracking:      make(map[string]*entry),
		tabHost:       make(map[int]string),
		tabWindow:     make(map[int]int),
		focusedWindow: browser.WindowNone,
	}
}

// Signals returns the engine-facing signal stream.
func (o *Observer) Signals() <-chan Signal { return o.signals }

func (o *Observer) emit(s Signal) {
	select {
	case o.signals <- s:
	default:
		o.logger.Warn().Msg("Attention signal dropped, consumer too slow")
	}
}

// HandleEvent ingests one browser event.
func (o *Observer) HandleEvent(e browser.Event) {
	switch ev := e.(type) {
	case browser.TabActivated:
		o.mu.Lock()
		o.activeTab = ev.TabID
		o.mu.Unlock()
		o.emit(StateChange{})
	case browser.TabUpdated:
		o.handleTabUpdated(ev.Tab)
	case browser.TabRemoved:
		o.mu.Lock()
		o.unregisterLocked(ev.TabID)
		if o.activeTab == ev.TabID {
			o.activeTab = 0
		}
		o.mu.Unlock()
		o.emit(StateChange{})
	case browser.WindowFocusChanged:
		o.mu.Lock()
		o.focusedWindow = ev.WindowID
		o.activeTab = o.activeTabInLocked(ev.WindowID)
		o.mu.Unlock()
		o.emit(StateChange{})
	case browser.IdleStateChanged:
		o.mu.Lock()
		o.idle = ev.State.Inactive()
		o.mu.Unlock()
		o.emit(StateChange{})
	}
}

func (o *Observer) handleTabUpdated(tab browser.Tab) {
	matched, _ := o.matcher.MatchURL(tab.URL)

	o.mu.Lock()
	o.tabWindow[tab.ID] = tab.WindowID
	prev := o.tabHost[tab.ID]

	var visited string
	if matched != prev {
		o.unregisterLocked(tab.ID)
		if matched != "" {
			o.registerLocked(tab.ID, matched, tab.Audible)
			visited = matched
		}
	} else if matched != "" {
		if e := o.tracking[matched]; e != nil {
			if t := e.tabs[tab.ID]; t != nil {
				t.audible = tab.Audible
			}
		}
	}
	if tab.Active {
		o.activeTab = tab.ID
	}
	o.mu.Unlock()

	if visited != "" {
		o.emit(Visit{Hostname: visited})
	}
	o.emit(StateChange{})
}

func (o *Observer) registerLocked(tabID int, host string, audible bool) {
	e := o.tracking[host]
	if e == nil {
		e = &entry{tabs: make(map[int]*tabState)}
		o.tracking[host] = e
	}
	e.tabs[tabID] = &tabState{audible: audible}
	o.tabHost[tabID] = host
}

func (o *Observer) unregisterLocked(tabID int) {
	host, ok := o.tabHost[tabID]
	if !ok {
		return
	}
	delete(o.tabHost, tabID)
	delete(o.tabWindow, tabID)
	if e := o.tracking[host]; e != nil {
		delete(e.tabs, tabID)
	}
}

func (o *Observer) activeTabInLocked(windowID int) int {
	if windowID == browser.WindowNone {
		return 0
	}
	// Keep the current active tab if it lives in the newly focused window.
	if o.activeTab != 0 && o.tabWindow[o.activeTab] == windowID {
		return o.activeTab
	}
	return 0
}

// Recover rebuilds runtime state from the live browser. Emits one visit per
// unique matched hostname, not per tab.
func (o *Observer) Recover(ctx context.Context, surface browser.Surface) error {
	tabs, err := surface.Tabs.List(ctx)
	if err != nil {
		return err
	}
	windows, err := surface.Windows.List(ctx)
	if err != nil {
		return err
	}
	idleState, err := surface.Idle.State(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Idle query failed during recovery, assuming active")
		idleState = browser.IdleActive
	}

	o.mu.Lock()
	o.tracking = make(map[string]*entry)
	o.tabHost = make(map[int]string)
	o.tabWindow = make(map[int]int)
	o.focusedWindow = browser.WindowNone
	o.activeTab = 0
	o.idle = idleState.Inactive()

	for _, w := range windows {
		if w.Focused {
			o.focusedWindow = w.ID
		}
	}

	visited := make(map[string]bool)
	for _, tab := range tabs {
		o.tabWindow[tab.ID] = tab.WindowID
		if tab.Active && tab.WindowID == o.focusedWindow {
			o.activeTab = tab.ID
		}
		matched, ok := o.matcher.MatchURL(tab.URL)
		if !ok {
			continue
		}
		o.registerLocked(tab.ID, matched, tab.Audible)
		visited[matched] = true
	}
	o.mu.Unlock()

	for host := range visited {
		o.emit(Visit{Hostname: host})
	}
	o.emit(StateChange{})

	o.logger.Info().Int("tabs", len(tabs)).Int("hostnames", len(visited)).
		Msg("Attention state recovered")
	return nil
}

// Rescan re-matches every known tab against the current hostname set. Used
// after config changes.
func (o *Observer) Rescan(ctx context.Context, tabs browser.TabStore) error {
	list, err := tabs.List(ctx)
	if err != nil {
		return err
	}
	for _, tab := range list {
		o.handleTabUpdated(tab)
	}
	return nil
}

// Decide is the shouldTrack decision for one hostname. paused is supplied by
// the pause manager.
func (o *Observer) Decide(host string, paused bool) (Reason, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.idle || paused {
		return "", false
	}
	e := o.tracking[host]
	if e == nil || len(e.tabs) == 0 {
		return "", false
	}
	if o.focusedWindow != browser.WindowNone {
		if _, ok := e.tabs[o.activeTab]; ok && o.activeTab != 0 {
			return ReasonFocused, true
		}
	}
	for _, t := range e.tabs {
		if t.audible {
			return ReasonAudible, true
		}
	}
	return "", false
}

// Hostnames returns every hostname with runtime state.
func (o *Observer) Hostnames() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	hosts := make([]string, 0, len(o.tracking))
	for h := range o.tracking {
		hosts = append(hosts, h)
	}
	return hosts
}

// TabsOf returns the tab ids registered for a hostname.
func (o *Observer) TabsOf(host string) []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.tracking[host]
	if e == nil {
		return nil
	}
	ids := make([]int, 0, len(e.tabs))
	for id := range e.tabs {
		ids = append(ids, id)
	}
	return ids
}

// HostnameOf returns the hostname a tab is registered under.
func (o *Observer) HostnameOf(tabID int) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.tabHost[tabID]
	return h, ok
}

// ActiveTab returns the currently active tab id, 0 if none.
func (o *Observer) ActiveTab() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeTab
}

// IsIdle reports whether the user is away.
func (o *Observer) IsIdle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.idle
}

// SetTracking records that tracking switched ON for a hostname.
func (o *Observer) SetTracking(host string, startedAt time.Time, reason Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.tracking[host]
	if e == nil {
		e = &entry{tabs: make(map[int]*tabState)}
		o.tracking[host] = e
	}
	e.startedAt = startedAt
	e.reason = reason
}

// Tracking returns the tracking start time and reason for a hostname; ok is
// false when tracking is OFF.
func (o *Observer) Tracking(host string) (time.Time, Reason, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.tracking[host]
	if e == nil || e.startedAt.IsZero() {
		return time.Time{}, "", false
	}
	return e.startedAt, e.reason, true
}

// ClearTracking records that tracking switched OFF for a hostname.
func (o *Observer) ClearTracking(host string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e := o.tracking[host]; e != nil {
		e.startedAt = time.Time{}
		e.reason = ""
	}
}

// Prune drops hostnames with no tabs and no active tracking.
func (o *Observer) Prune() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for host, e := range o.tracking {
		if len(e.tabs) == 0 && e.startedAt.IsZero() {
			delete(o.tracking, host)
		}
	}
}
