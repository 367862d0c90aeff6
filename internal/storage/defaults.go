package storage

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxUsageLogDays caps the rolling usage history.
	MaxUsageLogDays = 30

	// MinDailyLimitSeconds and MaxDailyLimitSeconds bound a daily budget.
	MinDailyLimitSeconds = 1
	MaxDailyLimitSeconds = 86400

	// MaxPauseAllowanceSeconds bounds the per-period pause budget.
	MaxPauseAllowanceSeconds = 3600

	// DefaultResetTime is the global fallback period boundary.
	DefaultResetTime = "00:00"

	// DefaultGracePeriodSeconds is the warning window between limit and block.
	DefaultGracePeriodSeconds = 60
)

// DefaultSettings returns the global settings used when nothing valid is stored.
func DefaultSettings() GlobalSettings {
	pct := 80
	fiveMin := 300
	return GlobalSettings{
		ResetTime:            DefaultResetTime,
		NotificationsEnabled: true,
		GracePeriodSeconds:   DefaultGracePeriodSeconds,
		Theme:                "system",
		NotificationRules: []NotificationRule{
			{
				ID:             "default-80-percent",
				Enabled:        true,
				Type:           RulePercentage,
				PercentageUsed: &pct,
				Title:          "Time budget warning",
				Message:        "You have used 80% of your time on {hostname}",
			},
			{
				ID:                   "default-5-minutes",
				Enabled:              true,
				Type:                 RuleTime,
				TimeRemainingSeconds: &fiveMin,
				Title:                "Five minutes left",
				Message:              "Only 5 minutes remaining on {hostname}",
			},
		},
	}
}

// ValidResetTime reports whether s is a well-formed "HH:MM" clock time.
func ValidResetTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// SanitizeSettings repairs invalid fields one by one, keeping valid neighbours.
func SanitizeSettings(s GlobalSettings) GlobalSettings {
	defaults := DefaultSettings()

	if !ValidResetTime(s.ResetTime) {
		s.ResetTime = defaults.ResetTime
	}
	if s.GracePeriodSeconds < 0 {
		s.GracePeriodSeconds = defaults.GracePeriodSeconds
	}
	if s.Theme == "" {
		s.Theme = defaults.Theme
	}
	if s.NotificationRules == nil {
		s.NotificationRules = defaults.NotificationRules
	} else {
		s.NotificationRules = sanitizeRules(s.NotificationRules)
	}
	return s
}

func sanitizeRules(rules []NotificationRule) []NotificationRule {
	kept := make([]NotificationRule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			continue
		}
		switch r.Type {
		case RulePercentage:
			if r.PercentageUsed == nil || *r.PercentageUsed <= 0 || *r.PercentageUsed > 100 {
				continue
			}
		case RuleTime:
			if r.TimeRemainingSeconds == nil || *r.TimeRemainingSeconds <= 0 {
				continue
			}
		default:
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// ValidateConfig checks a hostname config as supplied by the UI surface.
func ValidateConfig(c HostnameConfig) error {
	if c.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if c.Hostname != strings.ToLower(c.Hostname) {
		return fmt.Errorf("hostname must be lowercase: %s", c.Hostname)
	}
	if strings.ContainsAny(c.Hostname, "/: ") {
		return fmt.Errorf("hostname must not carry scheme, port or path: %s", c.Hostname)
	}
	if c.DailyLimitSeconds < MinDailyLimitSeconds || c.DailyLimitSeconds > MaxDailyLimitSeconds {
		return fmt.Errorf("dailyLimitSeconds out of range [%d, %d]: %d",
			MinDailyLimitSeconds, MaxDailyLimitSeconds, c.DailyLimitSeconds)
	}
	if c.PauseAllowanceSeconds < 0 || c.PauseAllowanceSeconds > MaxPauseAllowanceSeconds {
		return fmt.Errorf("pauseAllowanceSeconds out of range [0, %d]: %d",
			MaxPauseAllowanceSeconds, c.PauseAllowanceSeconds)
	}
	if c.ResetTime != nil && !ValidResetTime(*c.ResetTime) {
		return fmt.Errorf("invalid resetTime: %s", *c.ResetTime)
	}
	for day, override := range c.DayOverrides {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("invalid weekday in dayOverrides: %d", day)
		}
		if override.LimitSeconds != nil &&
			(*override.LimitSeconds < MinDailyLimitSeconds || *override.LimitSeconds > MaxDailyLimitSeconds) {
			return fmt.Errorf("dayOverrides[%d].limitSeconds out of range: %d", day, *override.LimitSeconds)
		}
		if override.ResetTime != nil && !ValidResetTime(*override.ResetTime) {
			return fmt.Errorf("dayOverrides[%d].resetTime invalid: %s", day, *override.ResetTime)
		}
	}
	return nil
}

// SanitizeConfigs drops entries that fail validation. Used on load so one
// corrupt config cannot poison the rest.
func SanitizeConfigs(configs []HostnameConfig) []HostnameConfig {
	kept := make([]HostnameConfig, 0, len(configs))
	for _, c := range configs {
		if err := ValidateConfig(c); err != nil {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
