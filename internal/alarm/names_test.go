package alarm

import "testing"

func TestNameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		hostname string
		ruleID   string
	}{
		{ResetName("youtube.com"), KindReset, "youtube.com", ""},
		{LimitName("youtube.com"), KindLimit, "youtube.com", ""},
		{RuleName("default-80-percent", "youtube.com"), KindRule, "youtube.com", "default-80-percent"},
		{GraceEndName("youtube.com"), KindGraceEnd, "youtube.com", ""},
		{PauseEndName("youtube.com"), KindPauseEnd, "youtube.com", ""},
		{BadgeRefreshName, KindBadgeRefresh, "", ""},
		{"something-else", KindUnknown, "", ""},
	}

	for _, tt := range tests {
		kind, hostname, ruleID := Parse(tt.name)
		if kind != tt.kind || hostname != tt.hostname || ruleID != tt.ruleID {
			t.Fatalf("Parse(%q) = (%v, %q, %q), want (%v, %q, %q)",
				tt.name, kind, hostname, ruleID, tt.kind, tt.hostname, tt.ruleID)
		}
	}
}

func TestRuleNameWithSeparatorInRuleID(t *testing.T) {
	// Rule ids are opaque; the last separator wins so hostnames parse
	// correctly even for odd ids.
	name := RuleName("a::b", "c.test")
	kind, hostname, ruleID := Parse(name)
	if kind != KindRule || hostname != "c.test" || ruleID != "a::b" {
		t.Fatalf("got (%v, %q, %q)", kind, hostname, ruleID)
	}
}

func TestIsWarningFor(t *testing.T) {
	if !IsWarningFor(LimitName("a.test"), "a.test") {
		t.Fatal("limit alarm is a warning alarm")
	}
	if !IsWarningFor(RuleName("r1", "a.test"), "a.test") {
		t.Fatal("rule alarm is a warning alarm")
	}
	if IsWarningFor(LimitName("b.test"), "a.test") {
		t.Fatal("other hostname's limit alarm must not match")
	}
	if IsWarningFor(ResetName("a.test"), "a.test") {
		t.Fatal("reset alarm is not a warning alarm")
	}
	if IsWarningFor(GraceEndName("a.test"), "a.test") {
		t.Fatal("grace-end alarm is not a warning alarm")
	}
}
