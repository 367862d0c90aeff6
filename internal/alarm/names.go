package alarm

import "strings"

// Alarm name grammar. Names route fires to their handlers; hostnames are the
// exact configured strings, rule ids are opaque.
const (
	resetPrefix   = "reset-"
	limitPrefix   = "limit-"
	rulePrefix    = "notify-rule-"
	gracePrefix   = "grace-end-"
	pausePrefix   = "pause-end-"
	ruleSeparator = "::"

	// BadgeRefreshName is the periodic badge refresh alarm.
	BadgeRefreshName = "badge-refresh"
)

// Kind classifies an alarm name.
type Kind int

const (
	KindUnknown Kind = iota
	KindReset
	KindLimit
	KindRule
	KindGraceEnd
	KindPauseEnd
	KindBadgeRefresh
)

func ResetName(hostname string) string { return resetPrefix + hostname }
func LimitName(hostname string) string { return limitPrefix + hostname }
func RuleName(ruleID, hostname string) string {
	return rulePrefix + ruleID + ruleSeparator + hostname
}
func GraceEndName(hostname string) string { return gracePrefix + hostname }
func PauseEndName(hostname string) string { return pausePrefix + hostname }

// Parse splits an alarm name into its kind, hostname, and rule id (rule
// alarms only).
func Parse(name string) (kind Kind, hostname, ruleID string) {
	switch {
	case name == BadgeRefreshName:
		return KindBadgeRefresh, "", ""
	case strings.HasPrefix(name, rulePrefix):
		rest := strings.TrimPrefix(name, rulePrefix)
		idx := strings.LastIndex(rest, ruleSeparator)
		if idx < 0 {
			return KindUnknown, "", ""
		}
		return KindRule, rest[idx+len(ruleSeparator):], rest[:idx]
	case strings.HasPrefix(name, gracePrefix):
		return KindGraceEnd, strings.TrimPrefix(name, gracePrefix), ""
	case strings.HasPrefix(name, pausePrefix):
		return KindPauseEnd, strings.TrimPrefix(name, pausePrefix), ""
	case strings.HasPrefix(name, resetPrefix):
		return KindReset, strings.TrimPrefix(name, resetPrefix), ""
	case strings.HasPrefix(name, limitPrefix):
		return KindLimit, strings.TrimPrefix(name, limitPrefix), ""
	default:
		return KindUnknown, "", ""
	}
}

// IsWarningFor reports whether the alarm name is a notification-rule or
// limit alarm belonging to hostname. Used when clearing a hostname's warning
// alarms on stop, pause or reset.
func IsWarningFor(name, hostname string) bool {
	if name == limitPrefix+hostname {
		return true
	}
	return strings.HasPrefix(name, rulePrefix) && strings.HasSuffix(name, ruleSeparator+hostname)
}
