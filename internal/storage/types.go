package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RuleType distinguishes the two notification rule variants.
type RuleType string

const (
	RulePercentage RuleType = "percentage"
	RuleTime       RuleType = "time"
)

// UnmarshalJSON implements json.Unmarshaler to normalize and validate the rule type.
func (r *RuleType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := RuleType(strings.ToLower(s))
	switch normalized {
	case RulePercentage, RuleTime:
		*r = normalized
		return nil
	default:
		return fmt.Errorf("invalid rule type: %s (must be percentage or time)", s)
	}
}

// NotificationRule describes a single warning threshold. Exactly one of
// PercentageUsed or TimeRemainingSeconds is populated, according to Type.
type NotificationRule struct {
	ID                   string   `json:"id"`
	Enabled              bool     `json:"enabled"`
	Type                 RuleType `json:"type"`
	PercentageUsed       *int     `json:"percentageUsed,omitempty"`
	TimeRemainingSeconds *int     `json:"timeRemainingSeconds,omitempty"`
	Title                string   `json:"title,omitempty"`
	Message              string   `json:"message,omitempty"`
}

// ThresholdSeconds returns the time-spent value at which this rule fires for
// the given period limit. The second return is false when the rule carries no
// usable value for its type.
func (r NotificationRule) ThresholdSeconds(limitSeconds int) (int64, bool) {
	switch r.Type {
	case RulePercentage:
		if r.PercentageUsed == nil {
			return 0, false
		}
		return int64(*r.PercentageUsed) * int64(limitSeconds) / 100, true
	case RuleTime:
		if r.TimeRemainingSeconds == nil {
			return 0, false
		}
		return int64(limitSeconds) - int64(*r.TimeRemainingSeconds), true
	default:
		return 0, false
	}
}

// DayOverride overrides limit and/or reset time for one weekday.
type DayOverride struct {
	LimitSeconds *int    `json:"limitSeconds,omitempty"`
	ResetTime    *string `json:"resetTime,omitempty"`
}

// HostnameConfig is the durable per-site configuration.
type HostnameConfig struct {
	Hostname              string              `json:"hostname"`
	Enabled               bool                `json:"enabled"`
	DailyLimitSeconds     int                 `json:"dailyLimitSeconds"`
	PauseAllowanceSeconds int                 `json:"pauseAllowanceSeconds"`
	// ResetTime is "HH:MM"; nil inherits the global reset time.
	ResetTime              *string                 `json:"resetTime"`
	DayOverrides           map[time.Weekday]DayOverride `json:"dayOverrides,omitempty"`
	CreatedAt              time.Time               `json:"createdAt"`
	NotificationRules      []NotificationRule      `json:"notificationRules,omitempty"`
	UseGlobalNotifications bool                    `json:"useGlobalNotifications"`
}

// EffectiveRules returns the notification rules governing this hostname.
func (c HostnameConfig) EffectiveRules(settings GlobalSettings) []NotificationRule {
	if c.UseGlobalNotifications || len(c.NotificationRules) == 0 {
		return settings.NotificationRules
	}
	return c.NotificationRules
}

// GlobalSettings is the durable global configuration.
type GlobalSettings struct {
	ResetTime            string             `json:"resetTime"`
	NotificationsEnabled bool               `json:"notificationsEnabled"`
	GracePeriodSeconds   int                `json:"gracePeriodSeconds"`
	Theme                string             `json:"theme"`
	NotificationRules    []NotificationRule `json:"notificationRules"`
}

// Session records one contiguous stretch of tracked time. EndTime is nil
// while the session is open.
type Session struct {
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationSeconds int64      `json:"durationSeconds"`
}

// Open reports whether the session has not yet been closed.
func (s Session) Open() bool { return s.EndTime == nil }

// HostnameUsage is the per-hostname, per-period accounting record.
// LimitSeconds and ResetTime are frozen at creation and never rewritten.
type HostnameUsage struct {
	Hostname         string          `json:"hostname"`
	TimeSpentSeconds int64           `json:"timeSpentSeconds"`
	VisitCount       int             `json:"visitCount"`
	PausedSeconds    int64           `json:"pausedSeconds"`
	Blocked          bool            `json:"blocked"`
	BlockedAt        *time.Time      `json:"blockedAt,omitempty"`
	Sessions         []Session       `json:"sessions"`
	LimitSeconds     int             `json:"limitSeconds"`
	ResetTime        string          `json:"resetTime"`
	Notifications    map[string]bool `json:"notifications"`
}

// OpenSession returns the newest session if it is still open, else nil.
// At most one session is open at any instant.
func (u *HostnameUsage) OpenSession() *Session {
	if len(u.Sessions) == 0 {
		return nil
	}
	last := &u.Sessions[len(u.Sessions)-1]
	if last.Open() {
		return last
	}
	return nil
}

// AppendOpenSession starts a new open session at the given instant. Any
// session still open is closed first so the single-open invariant holds.
func (u *HostnameUsage) AppendOpenSession(start time.Time) {
	if open := u.OpenSession(); open != nil {
		end := start
		open.EndTime = &end
	}
	u.Sessions = append(u.Sessions, Session{StartTime: start})
}

// CloseOpenSession closes the newest open session, adding elapsedSeconds to
// its duration. Additive accumulation keeps it correct after partial flushes.
func (u *HostnameUsage) CloseOpenSession(end time.Time, elapsedSeconds int64) {
	open := u.OpenSession()
	if open == nil {
		return
	}
	e := end
	open.EndTime = &e
	open.DurationSeconds += elapsedSeconds
}

// AccrueOpenSession adds elapsedSeconds to the open session without closing it.
func (u *HostnameUsage) AccrueOpenSession(elapsedSeconds int64) {
	if open := u.OpenSession(); open != nil {
		open.DurationSeconds += elapsedSeconds
	}
}

// RuleFired reports whether the given notification rule already fired this period.
func (u *HostnameUsage) RuleFired(ruleID string) bool {
	return u.Notifications[ruleID]
}

// MarkRuleFired idempotently records that a notification rule fired.
func (u *HostnameUsage) MarkRuleFired(ruleID string) {
	if u.Notifications == nil {
		u.Notifications = make(map[string]bool)
	}
	u.Notifications[ruleID] = true
}

// DailyUsage groups the HostnameUsage records of one period date.
type DailyUsage struct {
	Date      string          `json:"date"`
	Hostnames []HostnameUsage `json:"hostnames"`
}

// Usage returns the record for hostname, or nil.
func (d *DailyUsage) Usage(hostname string) *HostnameUsage {
	for i := range d.Hostnames {
		if d.Hostnames[i].Hostname == hostname {
			return &d.Hostnames[i]
		}
	}
	return nil
}

// UsageLog is the rolling per-period usage history, sorted by date ascending
// and capped at MaxUsageLogDays entries.
type UsageLog []DailyUsage

// Day returns the entry for the given period date, or nil.
func (l UsageLog) Day(date string) *DailyUsage {
	for i := range l {
		if l[i].Date == date {
			return &l[i]
		}
	}
	return nil
}

// AlarmRecord is a durable alarm owned by the alarm scheduler. One-shot
// alarms carry When; periodic alarms carry PeriodMinutes.
type AlarmRecord struct {
	Name          string    `json:"name"`
	When          time.Time `json:"when,omitzero"`
	PeriodMinutes float64   `json:"periodMinutes,omitempty"`
}
