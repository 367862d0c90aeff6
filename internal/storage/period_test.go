package storage

import (
	"fmt"
	"testing"
)

func TestEnsurePeriodCreatesLazily(t *testing.T) {
	var log UsageLog

	snap := PeriodSnapshot{LimitSeconds: 3600, ResetTime: "00:00"}
	usage := EnsurePeriod(&log, "2024-06-01", "youtube.com", snap)
	if usage == nil {
		t.Fatal("expected usage record")
	}
	if usage.LimitSeconds != 3600 || usage.ResetTime != "00:00" {
		t.Fatalf("snapshot not applied: %+v", usage)
	}
	if usage.Sessions == nil || usage.Notifications == nil {
		t.Fatal("expected initialized sessions and notifications")
	}
	if len(log) != 1 {
		t.Fatalf("expected 1 day, got %d", len(log))
	}
}

func TestEnsurePeriodIsWriteOnce(t *testing.T) {
	var log UsageLog

	first := EnsurePeriod(&log, "2024-06-01", "youtube.com", PeriodSnapshot{LimitSeconds: 3600, ResetTime: "00:00"})
	first.TimeSpentSeconds = 500

	// A changed config must not rewrite the existing record's snapshot.
	second := EnsurePeriod(&log, "2024-06-01", "youtube.com", PeriodSnapshot{LimitSeconds: 60, ResetTime: "09:00"})
	if second.LimitSeconds != 3600 || second.ResetTime != "00:00" {
		t.Fatalf("snapshot was rewritten: %+v", second)
	}
	if second.TimeSpentSeconds != 500 {
		t.Fatalf("existing usage lost: %+v", second)
	}
}

func TestEnsurePeriodKeepsDatesSorted(t *testing.T) {
	var log UsageLog

	snap := PeriodSnapshot{LimitSeconds: 3600, ResetTime: "00:00"}
	EnsurePeriod(&log, "2024-06-03", "a.com", snap)
	EnsurePeriod(&log, "2024-06-01", "a.com", snap)
	EnsurePeriod(&log, "2024-06-02", "a.com", snap)

	want := []string{"2024-06-01", "2024-06-02", "2024-06-03"}
	for i, date := range want {
		if log[i].Date != date {
			t.Fatalf("expected %s at index %d, got %s", date, i, log[i].Date)
		}
	}
}

func TestEnsurePeriodEvictsOldestBeyondCap(t *testing.T) {
	var log UsageLog

	snap := PeriodSnapshot{LimitSeconds: 3600, ResetTime: "00:00"}
	for i := 1; i <= MaxUsageLogDays+5; i++ {
		date := fmt.Sprintf("2024-01-%02d", i)
		EnsurePeriod(&log, date, "a.com", snap)
	}

	if len(log) != MaxUsageLogDays {
		t.Fatalf("expected %d days, got %d", MaxUsageLogDays, len(log))
	}
	if log[0].Date != "2024-01-06" {
		t.Fatalf("expected oldest retained day 2024-01-06, got %s", log[0].Date)
	}
	if log[len(log)-1].Date != "2024-01-35" {
		t.Fatalf("expected newest day 2024-01-35, got %s", log[len(log)-1].Date)
	}
}

func TestEnsurePeriodTooOldDateEvictedImmediately(t *testing.T) {
	var log UsageLog

	snap := PeriodSnapshot{LimitSeconds: 3600, ResetTime: "00:00"}
	for i := 1; i <= MaxUsageLogDays; i++ {
		EnsurePeriod(&log, fmt.Sprintf("2024-03-%02d", i), "a.com", snap)
	}

	usage := EnsurePeriod(&log, "2024-01-01", "a.com", snap)
	if usage != nil {
		t.Fatalf("expected nil for a date older than the whole retained window, got %+v", usage)
	}
	if len(log) != MaxUsageLogDays {
		t.Fatalf("cap violated: %d days", len(log))
	}
}

func TestEnsurePeriodSeparateHostnamesShareDay(t *testing.T) {
	var log UsageLog

	snap := PeriodSnapshot{LimitSeconds: 3600, ResetTime: "00:00"}
	EnsurePeriod(&log, "2024-06-01", "a.com", snap)
	EnsurePeriod(&log, "2024-06-01", "b.com", snap)

	if len(log) != 1 {
		t.Fatalf("expected 1 day, got %d", len(log))
	}
	if len(log[0].Hostnames) != 2 {
		t.Fatalf("expected 2 hostname records, got %d", len(log[0].Hostnames))
	}
}
