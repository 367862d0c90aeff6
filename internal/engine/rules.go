package engine

import (
	"context"

	"github.com/goodtune/timewarden/internal/metrics"
	"github.com/goodtune/timewarden/internal/notify"
	"github.com/goodtune/timewarden/internal/storage"
)

// handleRule is the warning-rule alarm handler. The fired marker is written
// before the notification goes out, so a crash between the two drops the
// notification rather than repeating it.
func (e *Engine) handleRule(ctx context.Context, host, ruleID string) error {
	cfg, ok, err := e.config(ctx, host)
	if err != nil {
		return err
	}
	if !ok || !cfg.Enabled {
		return nil
	}
	settings, err := e.state.GetSettings(ctx)
	if err != nil {
		return err
	}

	usage, log, _, err := e.usageFor(ctx, cfg, settings, e.clock.Now())
	if err != nil {
		return err
	}
	if usage == nil || usage.Blocked || usage.RuleFired(ruleID) {
		return nil
	}

	var rule *storage.NotificationRule
	rules := cfg.EffectiveRules(settings)
	for i := range rules {
		if rules[i].ID == ruleID {
			rule = &rules[i]
			break
		}
	}
	if rule == nil || !rule.Enabled {
		return nil
	}

	usage.MarkRuleFired(ruleID)
	if err := e.state.PutUsageLog(ctx, log); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("put_usage_log").Inc()
		return err
	}

	title := rule.Title
	if title == "" {
		title = notify.DefaultRuleTitle
	}
	message := rule.Message
	if message == "" {
		message = notify.DefaultRuleMessage
	}
	e.notifier.Dispatch(ctx, title, message, host)
	e.logger.Info().Str("hostname", host).Str("rule", ruleID).Msg("Warning notification fired")
	return nil
}
