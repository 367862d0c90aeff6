package browser

import "testing"

func TestBlockedURL(t *testing.T) {
	got := BlockedURL("http://127.0.0.1:8275", "youtube.com")
	want := "http://127.0.0.1:8275/blocked?domain=youtube.com"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got = BlockedURL("http://127.0.0.1:8275", "a b")
	want = "http://127.0.0.1:8275/blocked?domain=a+b"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestIdleStateInactive(t *testing.T) {
	if IdleActive.Inactive() {
		t.Fatal("active is not inactive")
	}
	if !IdleIdle.Inactive() || !IdleLocked.Inactive() {
		t.Fatal("idle and locked are inactive")
	}
}
