// Package notify dispatches user-facing notifications. Dispatch is
// best-effort: failures are logged and swallowed so the tracking engine never
// stalls on the notification surface.
package notify

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser"
	"github.com/goodtune/timewarden/internal/metrics"
)

// Default texts used when a notification rule carries no title or message.
const (
	DefaultRuleTitle   = "Time reminder"
	DefaultRuleMessage = "You are approaching your daily limit for {hostname}."

	GraceTitle   = "Time limit reached"
	GraceMessage = "Your daily limit for {hostname} is up. Access will be blocked shortly."

	BlockTitle   = "Access blocked"
	BlockMessage = "{hostname} is blocked until the next reset."
)

// Expand substitutes {hostname} placeholders in notification text.
func Expand(text, hostname string) string {
	return strings.ReplaceAll(text, "{hostname}", hostname)
}

// Dispatcher sends notifications through the browser surface.
type Dispatcher struct {
	notes   browser.NotificationStore
	enabled func(ctx context.Context) bool
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. enabled is consulted before every
// dispatch; pass nil to always dispatch.
func NewDispatcher(notes browser.NotificationStore, enabled func(ctx context.Context) bool, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notes:   notes,
		enabled: enabled,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Dispatch shows a notification with {hostname} substituted into title and
// message. Each dispatch gets a fresh id so repeated notifications re-display.
func (d *Dispatcher) Dispatch(ctx context.Context, title, message, hostname string) {
	if d.enabled != nil && !d.enabled(ctx) {
		return
	}
	id := uuid.NewString()
	note := browser.Notification{
		Title:   Expand(title, hostname),
		Message: Expand(message, hostname),
	}
	if err := d.notes.Create(ctx, id, note); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.logger.Warn().Err(err).Str("hostname", hostname).Str("title", note.Title).
			Msg("Failed to show notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	d.logger.Debug().Str("hostname", hostname).Str("title", note.Title).Msg("Notification shown")
}

// Clear removes a displayed notification. Best-effort.
func (d *Dispatcher) Clear(ctx context.Context, id string) {
	if err := d.notes.Clear(ctx, id); err != nil {
		d.logger.Debug().Err(err).Str("id", id).Msg("Failed to clear notification")
	}
}
