package hostname

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"YouTube.com", " youtube.com. ", "www.Example.ORG"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
	if Normalize("YouTube.com.") != "youtube.com" {
		t.Fatalf("unexpected: %q", Normalize("YouTube.com."))
	}
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		url  string
		host string
		ok   bool
	}{
		{"https://youtube.com/watch?v=x", "youtube.com", true},
		{"http://Example.COM:8080/path", "example.com", true},
		{"chrome-extension://abcdef/blocked.html", "", false},
		{"about:blank", "", false},
		{"file:///tmp/x.html", "", false},
		{"not a url at all ://", "", false},
	}
	for _, tt := range tests {
		host, ok := FromURL(tt.url)
		if ok != tt.ok || host != tt.host {
			t.Fatalf("FromURL(%q) = (%q, %v), want (%q, %v)", tt.url, host, ok, tt.host, tt.ok)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		configured string
		host       string
		want       bool
	}{
		{"youtube.com", "youtube.com", true},
		{"youtube.com", "www.youtube.com", true},
		{"youtube.com", "music.youtube.com", false},
		{"www.youtube.com", "www.youtube.com", true},
		{"www.youtube.com", "youtube.com", false},
		{"youtube.com", "notyoutube.com", false},
	}
	for _, tt := range tests {
		if got := Matches(tt.configured, tt.host); got != tt.want {
			t.Fatalf("Matches(%q, %q) = %v, want %v", tt.configured, tt.host, got, tt.want)
		}
	}
}

func TestMatcherMatchURL(t *testing.T) {
	m, err := NewMatcher([]string{"youtube.com", "www.strict.com"}, 16)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if got, ok := m.MatchURL("https://www.youtube.com/watch"); !ok || got != "youtube.com" {
		t.Fatalf("expected youtube.com, got (%q, %v)", got, ok)
	}
	// Cached second lookup.
	if got, ok := m.MatchURL("https://www.youtube.com/watch"); !ok || got != "youtube.com" {
		t.Fatalf("cached lookup mismatch: (%q, %v)", got, ok)
	}
	if _, ok := m.MatchURL("https://strict.com/"); ok {
		t.Fatal("www-configured hostname must not match bare host")
	}
	if _, ok := m.MatchURL("chrome-extension://x/blocked.html"); ok {
		t.Fatal("extension URLs never match")
	}
}

func TestMatcherSetHostnamesDropsCache(t *testing.T) {
	m, err := NewMatcher([]string{"a.com"}, 16)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if _, ok := m.MatchURL("https://b.com/"); ok {
		t.Fatal("b.com should not match yet")
	}
	m.SetHostnames([]string{"a.com", "b.com"})
	if got, ok := m.MatchURL("https://b.com/"); !ok || got != "b.com" {
		t.Fatalf("expected b.com after reconfigure, got (%q, %v)", got, ok)
	}
}
