package attention

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/browser/browsertest"
	"github.com/goodtune/timewarden/internal/hostname"
)

func newTestObserver(t *testing.T, hosts ...string) *Observer {
	t.Helper()
	matcher, err := hostname.NewMatcher(hosts, 0)
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	return NewObserver(matcher, zerolog.Nop())
}

// drainSignals empties the signal channel and returns the visited hostnames
// in order.
func drainSignals(o *Observer) []string {
	var visits []string
	for {
		select {
		case s := <-o.Signals():
			if v, ok := s.(Visit); ok {
				visits = append(visits, v.Hostname)
			}
		default:
			return visits
		}
	}
}

func TestTabUpdateRegistersAndEmitsVisit(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/watch?v=x",
	}})

	if h, ok := o.HostnameOf(1); !ok || h != "youtube.com" {
		t.Fatalf("HostnameOf(1) = (%q, %v), want youtube.com", h, ok)
	}
	visits := drainSignals(o)
	if len(visits) != 1 || visits[0] != "youtube.com" {
		t.Fatalf("visits = %v, want one visit to youtube.com", visits)
	}
}

func TestNavigationAwayUnregisters(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/",
	}})
	drainSignals(o)

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://example.org/",
	}})

	if _, ok := o.HostnameOf(1); ok {
		t.Fatal("tab should be unregistered after navigating away")
	}
	if visits := drainSignals(o); len(visits) != 0 {
		t.Fatalf("navigating away emitted visits: %v", visits)
	}
}

func TestSameHostNavigationEmitsNoVisit(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/",
	}})
	drainSignals(o)

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/watch?v=y",
	}})

	if visits := drainSignals(o); len(visits) != 0 {
		t.Fatalf("same-host navigation emitted visits: %v", visits)
	}
	if h, _ := o.HostnameOf(1); h != "youtube.com" {
		t.Fatal("tab must stay registered across same-host navigation")
	}
}

func TestWWWVariantMatches(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://www.youtube.com/",
	}})

	if h, ok := o.HostnameOf(1); !ok || h != "youtube.com" {
		t.Fatalf("www variant should register under youtube.com, got (%q, %v)", h, ok)
	}
}

func TestDecideFocused(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.WindowFocusChanged{WindowID: 1})
	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/", Active: true,
	}})

	reason, on := o.Decide("youtube.com", false)
	if !on || reason != ReasonFocused {
		t.Fatalf("Decide = (%v, %v), want focused", reason, on)
	}
}

func TestDecideAudibleWhenNotFocused(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/", Audible: true,
	}})
	// Browser lost focus entirely; audio keeps tracking on.
	o.HandleEvent(browser.WindowFocusChanged{WindowID: browser.WindowNone})

	reason, on := o.Decide("youtube.com", false)
	if !on || reason != ReasonAudible {
		t.Fatalf("Decide = (%v, %v), want audible", reason, on)
	}
}

func TestDecideFocusedBeatsAudible(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.WindowFocusChanged{WindowID: 1})
	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/", Active: true,
	}})
	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 2, WindowID: 1, URL: "https://youtube.com/music", Audible: true,
	}})

	reason, on := o.Decide("youtube.com", false)
	if !on || reason != ReasonFocused {
		t.Fatalf("Decide = (%v, %v), want focused to win over audible", reason, on)
	}
}

func TestDecideOffCases(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	if _, on := o.Decide("youtube.com", false); on {
		t.Fatal("no tabs must decide OFF")
	}

	o.HandleEvent(browser.WindowFocusChanged{WindowID: 1})
	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/", Active: true,
	}})

	if _, on := o.Decide("youtube.com", true); on {
		t.Fatal("paused must decide OFF")
	}

	o.HandleEvent(browser.IdleStateChanged{State: browser.IdleIdle})
	if _, on := o.Decide("youtube.com", false); on {
		t.Fatal("idle must decide OFF")
	}
	if !o.IsIdle() {
		t.Fatal("IsIdle should report true")
	}

	o.HandleEvent(browser.IdleStateChanged{State: browser.IdleActive})
	if reason, on := o.Decide("youtube.com", false); !on || reason != ReasonFocused {
		t.Fatalf("returning to active should decide ON, got (%v, %v)", reason, on)
	}
}

func TestWindowFocusKeepsActiveTabInSameWindow(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/", Active: true,
	}})
	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 2, WindowID: 2, URL: "https://example.org/",
	}})

	o.HandleEvent(browser.WindowFocusChanged{WindowID: 1})
	if got := o.ActiveTab(); got != 1 {
		t.Fatalf("active tab = %d, want 1 after focusing its window", got)
	}

	// Focusing a window the active tab does not live in clears it.
	o.HandleEvent(browser.WindowFocusChanged{WindowID: 2})
	if got := o.ActiveTab(); got != 0 {
		t.Fatalf("active tab = %d, want 0 after focusing another window", got)
	}
}

func TestTabRemovedClearsState(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.WindowFocusChanged{WindowID: 1})
	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/", Active: true,
	}})
	o.HandleEvent(browser.TabRemoved{TabID: 1})

	if _, ok := o.HostnameOf(1); ok {
		t.Fatal("removed tab should be unregistered")
	}
	if got := o.ActiveTab(); got != 0 {
		t.Fatalf("active tab = %d, want 0 after removal", got)
	}
	if _, on := o.Decide("youtube.com", false); on {
		t.Fatal("hostname without tabs must decide OFF")
	}
}

func TestRecoverEmitsOneVisitPerHostname(t *testing.T) {
	fake := browsertest.New()
	fake.OpenTab(browser.Tab{ID: 1, WindowID: 1, URL: "https://youtube.com/", Active: true})
	fake.OpenTab(browser.Tab{ID: 2, WindowID: 1, URL: "https://youtube.com/watch"})
	fake.OpenTab(browser.Tab{ID: 3, WindowID: 1, URL: "https://reddit.com/"})
	fake.OpenTab(browser.Tab{ID: 4, WindowID: 1, URL: "https://example.org/"})
	fake.FocusWindow(1)

	o := newTestObserver(t, "youtube.com", "reddit.com")
	if err := o.Recover(context.Background(), fake.Surface()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	visits := drainSignals(o)
	seen := make(map[string]int)
	for _, v := range visits {
		seen[v]++
	}
	if len(seen) != 2 || seen["youtube.com"] != 1 || seen["reddit.com"] != 1 {
		t.Fatalf("visits = %v, want exactly one per hostname", visits)
	}

	if got := o.ActiveTab(); got != 1 {
		t.Fatalf("active tab = %d, want 1", got)
	}
	if ids := o.TabsOf("youtube.com"); len(ids) != 2 {
		t.Fatalf("TabsOf(youtube.com) = %v, want two tabs", ids)
	}
	if reason, on := o.Decide("youtube.com", false); !on || reason != ReasonFocused {
		t.Fatalf("recovered state should decide focused, got (%v, %v)", reason, on)
	}
}

func TestRescanAfterConfigChange(t *testing.T) {
	fake := browsertest.New()
	fake.OpenTab(browser.Tab{ID: 1, WindowID: 1, URL: "https://reddit.com/"})

	matcher, err := hostname.NewMatcher([]string{"youtube.com"}, 0)
	if err != nil {
		t.Fatalf("matcher: %v", err)
	}
	o := NewObserver(matcher, zerolog.Nop())
	if err := o.Recover(context.Background(), fake.Surface()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	drainSignals(o)
	if _, ok := o.HostnameOf(1); ok {
		t.Fatal("reddit tab should not match before config change")
	}

	matcher.SetHostnames([]string{"reddit.com"})
	if err := o.Rescan(context.Background(), fake); err != nil {
		t.Fatalf("rescan: %v", err)
	}

	if h, ok := o.HostnameOf(1); !ok || h != "reddit.com" {
		t.Fatalf("HostnameOf(1) = (%q, %v), want reddit.com after rescan", h, ok)
	}
	if visits := drainSignals(o); len(visits) != 1 || visits[0] != "reddit.com" {
		t.Fatalf("visits = %v, want one visit from rescan", visits)
	}
}

func TestTrackingStateAndPrune(t *testing.T) {
	o := newTestObserver(t, "youtube.com")

	o.HandleEvent(browser.TabUpdated{Tab: browser.Tab{
		ID: 1, WindowID: 1, URL: "https://youtube.com/",
	}})
	drainSignals(o)

	started := time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)
	o.SetTracking("youtube.com", started, ReasonFocused)

	at, reason, ok := o.Tracking("youtube.com")
	if !ok || !at.Equal(started) || reason != ReasonFocused {
		t.Fatalf("Tracking = (%v, %v, %v)", at, reason, ok)
	}

	// Tracking survives the last tab closing until explicitly cleared.
	o.HandleEvent(browser.TabRemoved{TabID: 1})
	o.Prune()
	if _, _, ok := o.Tracking("youtube.com"); !ok {
		t.Fatal("tracking entry must survive prune while tracking is ON")
	}

	o.ClearTracking("youtube.com")
	if _, _, ok := o.Tracking("youtube.com"); ok {
		t.Fatal("cleared tracking should report OFF")
	}
	o.Prune()
	if hosts := o.Hostnames(); len(hosts) != 0 {
		t.Fatalf("hostnames after prune = %v, want none", hosts)
	}
}
