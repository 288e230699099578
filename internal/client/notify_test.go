package client

import (
	"strings"
	"testing"
)

type recordingNotifier struct {
	cues  int
	shown []string
}

func (r *recordingNotifier) PlayCue() { r.cues++ }
func (r *recordingNotifier) Show(title, body string) {
	_ = title
	r.shown = append(r.shown, body)
}

func TestGateway_RequestPermissionOnlyWhenUndecided(t *testing.T) {
	g := NewGateway(&recordingNotifier{})

	prompts := 0
	got := g.RequestPermission(func() Permission {
		prompts++
		return PermissionDenied
	})
	if got != PermissionDenied || prompts != 1 {
		t.Fatalf("first request: perm=%v prompts=%d", got, prompts)
	}

	// decided state never prompts again
	got = g.RequestPermission(func() Permission {
		prompts++
		return PermissionGranted
	})
	if got != PermissionDenied || prompts != 1 {
		t.Fatalf("second request: perm=%v prompts=%d", got, prompts)
	}
}

func TestGateway_EmitCueAlwaysNotifyOnlyHidden(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGateway(n)
	g.RequestPermission(func() Permission { return PermissionGranted })

	g.Emit("hello", false)
	if n.cues != 1 || len(n.shown) != 0 {
		t.Fatalf("visible emit: cues=%d shown=%d", n.cues, len(n.shown))
	}

	g.Emit("hello", true)
	if n.cues != 2 || len(n.shown) != 1 {
		t.Fatalf("hidden emit: cues=%d shown=%d", n.cues, len(n.shown))
	}
}

func TestGateway_EmitWithoutPermissionNeverShows(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGateway(n)
	g.RequestPermission(func() Permission { return PermissionDenied })

	g.Emit("hello", true)
	if len(n.shown) != 0 {
		t.Fatalf("denied permission still showed a notification")
	}
	if n.cues != 1 {
		t.Fatalf("cue suppressed: %d", n.cues)
	}
}

func TestGateway_EmitTruncatesBody(t *testing.T) {
	n := &recordingNotifier{}
	g := NewGateway(n)
	g.RequestPermission(func() Permission { return PermissionGranted })

	g.Emit(strings.Repeat("x", 150), true)
	if len(n.shown) != 1 {
		t.Fatalf("no notification")
	}
	if got := len([]rune(n.shown[0])); got != 100 {
		t.Fatalf("body length = %d, want 100", got)
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := strings.Repeat("я", 120)
	got := Truncate(s, 100)
	if len([]rune(got)) != 100 {
		t.Fatalf("runes = %d, want 100", len([]rune(got)))
	}
	if !strings.HasPrefix(s, got) {
		t.Fatalf("truncation split a rune")
	}

	if Truncate("short", 100) != "short" {
		t.Fatalf("short string modified")
	}
	if Truncate("anything", 0) != "" {
		t.Fatalf("zero cap not empty")
	}
}
