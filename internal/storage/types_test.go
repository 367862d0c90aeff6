package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRuleTypeUnmarshalNormalizes(t *testing.T) {
	var r RuleType
	if err := json.Unmarshal([]byte(`"Percentage"`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r != RulePercentage {
		t.Fatalf("expected percentage, got %q", r)
	}

	if err := json.Unmarshal([]byte(`"countdown"`), &r); err == nil {
		t.Fatal("expected error for unknown rule type")
	}
}

func TestThresholdSeconds(t *testing.T) {
	pct := 80
	remaining := 300

	tests := []struct {
		name  string
		rule  NotificationRule
		limit int
		want  int64
		ok    bool
	}{
		{
			name:  "percentage",
			rule:  NotificationRule{Type: RulePercentage, PercentageUsed: &pct},
			limit: 3600,
			want:  2880,
			ok:    true,
		},
		{
			name:  "time remaining",
			rule:  NotificationRule{Type: RuleTime, TimeRemainingSeconds: &remaining},
			limit: 3600,
			want:  3300,
			ok:    true,
		},
		{
			name:  "time remaining exceeds limit",
			rule:  NotificationRule{Type: RuleTime, TimeRemainingSeconds: &remaining},
			limit: 120,
			want:  -180,
			ok:    true,
		},
		{
			name:  "percentage without value",
			rule:  NotificationRule{Type: RulePercentage},
			limit: 3600,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rule.ThresholdSeconds(tt.limit)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("threshold = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEffectiveRules(t *testing.T) {
	pct := 50
	settings := DefaultSettings()
	own := []NotificationRule{{ID: "own", Type: RulePercentage, PercentageUsed: &pct}}

	c := HostnameConfig{NotificationRules: own}
	if got := c.EffectiveRules(settings); len(got) != 1 || got[0].ID != "own" {
		t.Fatalf("expected own rules, got %+v", got)
	}

	c.UseGlobalNotifications = true
	if got := c.EffectiveRules(settings); len(got) != 2 {
		t.Fatalf("expected global rules, got %+v", got)
	}

	c = HostnameConfig{}
	if got := c.EffectiveRules(settings); len(got) != 2 {
		t.Fatalf("expected global rules when none configured, got %+v", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	var u HostnameUsage
	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	if u.OpenSession() != nil {
		t.Fatal("expected no open session initially")
	}

	u.AppendOpenSession(start)
	open := u.OpenSession()
	if open == nil || !open.StartTime.Equal(start) {
		t.Fatalf("expected open session at %v, got %+v", start, open)
	}

	// Starting again closes the previous one first.
	second := start.Add(5 * time.Minute)
	u.AppendOpenSession(second)
	if len(u.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(u.Sessions))
	}
	if u.Sessions[0].Open() {
		t.Fatal("first session should be closed")
	}

	u.AccrueOpenSession(60)
	u.CloseOpenSession(second.Add(2*time.Minute), 60)
	if u.OpenSession() != nil {
		t.Fatal("expected no open session after close")
	}
	if u.Sessions[1].DurationSeconds != 120 {
		t.Fatalf("expected accumulated duration 120, got %d", u.Sessions[1].DurationSeconds)
	}

	// Closing with nothing open is a no-op.
	u.CloseOpenSession(second.Add(3*time.Minute), 30)
	if u.Sessions[1].DurationSeconds != 120 {
		t.Fatal("close without open session must not mutate")
	}
}

func TestMarkRuleFired(t *testing.T) {
	var u HostnameUsage
	if u.RuleFired("r1") {
		t.Fatal("rule should not be fired initially")
	}
	u.MarkRuleFired("r1")
	u.MarkRuleFired("r1")
	if !u.RuleFired("r1") {
		t.Fatal("rule should be fired")
	}
	if len(u.Notifications) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(u.Notifications))
	}
}
