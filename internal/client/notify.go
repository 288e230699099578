package client

import "sync"

// Permission mirrors the browser notification permission states.
type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

// Notifier delivers the two alert channels: an in-page audio cue and an
// OS-level notification.
type Notifier interface {
	PlayCue()
	Show(title, body string)
}

// Gateway gates notification delivery behind the permission state and the
// document's visibility. Permission is only ever requested from the
// undecided state, never automatically.
type Gateway struct {
	mu         sync.Mutex
	notifier   Notifier
	permission Permission
}

func NewGateway(n Notifier) *Gateway {
	return &Gateway{notifier: n, permission: PermissionDefault}
}

func (g *Gateway) Permission() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.permission
}

// RequestPermission runs the prompt only when the state is still undecided.
func (g *Gateway) RequestPermission(prompt func() Permission) Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.permission == PermissionDefault && prompt != nil {
		g.permission = prompt()
	}
	return g.permission
}

// Emit handles one detected new message: the audio cue always plays while
// the page is open; the OS notification fires only when the document is
// hidden and permission was granted. The body is capped at 100 characters.
func (g *Gateway) Emit(content string, hidden bool) {
	g.mu.Lock()
	perm := g.permission
	n := g.notifier
	g.mu.Unlock()

	if n == nil {
		return
	}
	n.PlayCue()
	if hidden && perm == PermissionGranted {
		n.Show("New message in chat", Truncate(content, 100))
	}
}

// Truncate caps a string at n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
