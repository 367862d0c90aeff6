// Package cdp adapts a Chrome DevTools Protocol endpoint to the browser
// capability interfaces. Tabs come from polling the devtools target list;
// navigation goes through Page.Navigate on a per-call connection.
//
// The protocol does not expose window focus or per-tab audio, so the adapter
// reports a single window whose focus follows the AssumeFocused option, and
// audible=false. The first listed page target counts as active, matching
// Chrome's most-recently-activated ordering.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"
	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser"
)

// DefaultPollInterval is how often the target list is refreshed.
const DefaultPollInterval = 2 * time.Second

const windowID = 1

// Options configures the adapter.
type Options struct {
	DevtoolsURL   string
	PollInterval  time.Duration
	AssumeFocused bool
}

// Adapter implements browser.TabStore, browser.WindowStore and
// browser.Navigation over a devtools endpoint.
type Adapter struct {
	opts   Options
	logger zerolog.Logger
	events chan browser.Event

	mu       sync.Mutex
	tabs     map[int]browser.Tab
	byTarget map[string]int
	targets  map[int]string
	nextID   int
	activeID int

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an adapter for the given devtools endpoint, e.g.
// "http://127.0.0.1:9222".
func New(opts Options, logger zerolog.Logger) *Adapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Adapter{
		opts:     opts,
		logger:   logger.With().Str("component", "cdp").Logger(),
		events:   make(chan browser.Event, 256),
		tabs:     make(map[int]browser.Tab),
		byTarget: make(map[string]int),
		targets:  make(map[int]string),
	}
}

// Events returns the tab event stream produced by polling.
func (a *Adapter) Events() <-chan browser.Event { return a.events }

// Start begins polling the target list until the context is cancelled or
// Stop is called.
func (a *Adapter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(a.opts.PollInterval)
		defer ticker.Stop()
		for {
			if err := a.poll(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("Target list poll failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts polling and waits for the poll loop to exit.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

func (a *Adapter) poll(ctx context.Context) error {
	dt := devtool.New(a.opts.DevtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}

	type change struct {
		event browser.Event
	}
	var changes []change

	a.mu.Lock()
	seen := make(map[string]bool, len(targets))
	first := 0
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		seen[t.ID] = true

		id, known := a.byTarget[t.ID]
		if !known {
			a.nextID++
			id = a.nextID
			a.byTarget[t.ID] = id
			a.targets[id] = t.ID
		}
		if first == 0 {
			first = id
		}

		tab := browser.Tab{
			ID:       id,
			URL:      t.URL,
			WindowID: windowID,
		}
		prev, had := a.tabs[id]
		tab.Active = id == first
		if !had || prev.URL != tab.URL {
			changes = append(changes, change{browser.TabUpdated{Tab: tab}})
		}
		a.tabs[id] = tab
	}

	for targetID, id := range a.byTarget {
		if !seen[targetID] {
			delete(a.byTarget, targetID)
			delete(a.targets, id)
			delete(a.tabs, id)
			changes = append(changes, change{browser.TabRemoved{TabID: id}})
		}
	}

	if first != 0 && first != a.activeID {
		a.activeID = first
		changes = append(changes, change{browser.TabActivated{TabID: first, WindowID: windowID}})
	}
	a.mu.Unlock()

	for _, c := range changes {
		select {
		case a.events <- c.event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// List returns the current tab snapshot.
func (a *Adapter) List(ctx context.Context) ([]browser.Tab, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tabs := make([]browser.Tab, 0, len(a.tabs))
	for _, t := range a.tabs {
		tabs = append(tabs, t)
	}
	return tabs, nil
}

// Update navigates a tab to a new URL.
func (a *Adapter) Update(ctx context.Context, tabID int, url string) error {
	return a.navigate(ctx, tabID, url)
}

// Redirect navigates a tab to a new URL. Same operation as Update; kept as a
// distinct capability so the engine can depend on Navigation alone.
func (a *Adapter) Redirect(ctx context.Context, tabID int, url string) error {
	return a.navigate(ctx, tabID, url)
}

func (a *Adapter) navigate(ctx context.Context, tabID int, url string) error {
	a.mu.Lock()
	targetID, ok := a.targets[tabID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown tab %d", tabID)
	}

	dt := devtool.New(a.opts.DevtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if targets[i].ID == targetID {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		return fmt.Errorf("target gone for tab %d", tabID)
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("dial target: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client := cdp.NewClient(conn)
	if _, err := client.Page.Navigate(ctx, page.NewNavigateArgs(url)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	a.logger.Debug().Int("tab", tabID).Str("url", url).Msg("Tab navigated")
	return nil
}

// Windows implements browser.WindowStore over the single devtools-visible
// window.
type Windows struct {
	AssumeFocused bool
}

// List returns the one window the protocol exposes.
func (w Windows) List(ctx context.Context) ([]browser.Window, error) {
	return []browser.Window{{ID: windowID, Focused: w.AssumeFocused}}, nil
}
