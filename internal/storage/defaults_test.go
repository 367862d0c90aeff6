package storage

import (
	"testing"
	"time"
)

func TestSanitizeSettingsRepairsFieldByField(t *testing.T) {
	s := GlobalSettings{
		ResetTime:          "25:99",
		GracePeriodSeconds: -5,
		Theme:              "dark",
		NotificationRules:  nil,
	}

	got := SanitizeSettings(s)
	if got.ResetTime != DefaultResetTime {
		t.Fatalf("expected default reset time, got %q", got.ResetTime)
	}
	if got.GracePeriodSeconds != DefaultGracePeriodSeconds {
		t.Fatalf("expected default grace period, got %d", got.GracePeriodSeconds)
	}
	if got.Theme != "dark" {
		t.Fatalf("valid field was rewritten: %q", got.Theme)
	}
	if len(got.NotificationRules) != 2 {
		t.Fatalf("expected default rules, got %d", len(got.NotificationRules))
	}
}

func TestSanitizeSettingsDropsInvalidRules(t *testing.T) {
	bad := 150
	good := 50
	s := DefaultSettings()
	s.NotificationRules = []NotificationRule{
		{ID: "over", Type: RulePercentage, PercentageUsed: &bad},
		{ID: "", Type: RulePercentage, PercentageUsed: &good},
		{ID: "ok", Type: RulePercentage, PercentageUsed: &good},
		{ID: "no-value", Type: RuleTime},
	}

	got := SanitizeSettings(s)
	if len(got.NotificationRules) != 1 || got.NotificationRules[0].ID != "ok" {
		t.Fatalf("expected only the valid rule, got %+v", got.NotificationRules)
	}
}

func TestValidateConfig(t *testing.T) {
	reset := "08:30"
	badReset := "8:3x"
	limit := 1200
	tests := []struct {
		name    string
		config  HostnameConfig
		wantErr bool
	}{
		{
			name:   "valid",
			config: HostnameConfig{Hostname: "youtube.com", DailyLimitSeconds: 3600},
		},
		{
			name:    "empty hostname",
			config:  HostnameConfig{DailyLimitSeconds: 3600},
			wantErr: true,
		},
		{
			name:    "uppercase hostname",
			config:  HostnameConfig{Hostname: "YouTube.com", DailyLimitSeconds: 3600},
			wantErr: true,
		},
		{
			name:    "hostname with scheme characters",
			config:  HostnameConfig{Hostname: "youtube.com/watch", DailyLimitSeconds: 3600},
			wantErr: true,
		},
		{
			name:    "limit too small",
			config:  HostnameConfig{Hostname: "a.com", DailyLimitSeconds: 0},
			wantErr: true,
		},
		{
			name:    "limit too large",
			config:  HostnameConfig{Hostname: "a.com", DailyLimitSeconds: 86401},
			wantErr: true,
		},
		{
			name:    "pause allowance over cap",
			config:  HostnameConfig{Hostname: "a.com", DailyLimitSeconds: 3600, PauseAllowanceSeconds: 3601},
			wantErr: true,
		},
		{
			name:    "bad reset time",
			config:  HostnameConfig{Hostname: "a.com", DailyLimitSeconds: 3600, ResetTime: &badReset},
			wantErr: true,
		},
		{
			name: "valid day override",
			config: HostnameConfig{
				Hostname:          "a.com",
				DailyLimitSeconds: 3600,
				DayOverrides: map[time.Weekday]DayOverride{
					time.Saturday: {LimitSeconds: &limit, ResetTime: &reset},
				},
			},
		},
		{
			name: "day override limit out of range",
			config: HostnameConfig{
				Hostname:          "a.com",
				DailyLimitSeconds: 3600,
				DayOverrides: map[time.Weekday]DayOverride{
					time.Monday: {LimitSeconds: intPtr(0)},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeConfigsDropsOnlyInvalid(t *testing.T) {
	configs := []HostnameConfig{
		{Hostname: "good.com", DailyLimitSeconds: 3600},
		{Hostname: "Bad.com", DailyLimitSeconds: 3600},
	}
	got := SanitizeConfigs(configs)
	if len(got) != 1 || got[0].Hostname != "good.com" {
		t.Fatalf("expected only good.com, got %+v", got)
	}
}

func intPtr(v int) *int { return &v }
