package notify

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/browser/browsertest"
)

func TestExpand(t *testing.T) {
	got := Expand("Limit for {hostname} reached on {hostname}", "a.test")
	want := "Limit for a.test reached on a.test"
	if got != want {
		t.Fatalf("Expand = %q, want %q", got, want)
	}
	if Expand("no placeholder", "a.test") != "no placeholder" {
		t.Fatal("text without placeholder must pass through")
	}
}

func TestDispatchSubstitutesHostname(t *testing.T) {
	fake := browsertest.New()
	d := NewDispatcher(fake.Surface().Notifications, nil, zerolog.Nop())

	d.Dispatch(context.Background(), GraceTitle, GraceMessage, "a.test")

	notes := fake.Notifications()
	if len(notes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notes))
	}
	if notes[0].Title != GraceTitle {
		t.Fatalf("title = %q", notes[0].Title)
	}
	want := "Your daily limit for a.test is up. Access will be blocked shortly."
	if notes[0].Message != want {
		t.Fatalf("message = %q, want %q", notes[0].Message, want)
	}
}

func TestDispatchRespectsEnabled(t *testing.T) {
	fake := browsertest.New()
	d := NewDispatcher(fake.Surface().Notifications, func(ctx context.Context) bool { return false }, zerolog.Nop())

	d.Dispatch(context.Background(), DefaultRuleTitle, DefaultRuleMessage, "a.test")

	if notes := fake.Notifications(); len(notes) != 0 {
		t.Fatalf("disabled dispatcher showed %d notifications", len(notes))
	}
}
