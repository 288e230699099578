package client

import (
	"context"
	"log"
	"time"
)

// BackgroundChecker is the out-of-page poller: it runs on its own timer in
// its own goroutine and talks to the foreground engine only through one-way
// channel signals, the way the original service worker exchanged
// postMessage events. It raises an OS notification when the newest id
// advances while the document is hidden.
type BackgroundChecker struct {
	api      *Client
	notifier Notifier
	hidden   func() bool
	interval time.Duration

	checkNow chan struct{}
	latestID chan int64

	lastSeen int64
}

func NewBackgroundChecker(api *Client, notifier Notifier, hidden func() bool) *BackgroundChecker {
	return &BackgroundChecker{
		api:      api,
		notifier: notifier,
		hidden:   hidden,
		interval: 15 * time.Second,
		checkNow: make(chan struct{}, 1),
		latestID: make(chan int64, 16),
	}
}

// Forward hands the checker the newest id the foreground has seen, keeping
// the two watermarks consistent. Never blocks.
func (b *BackgroundChecker) Forward(id int64) {
	select {
	case b.latestID <- id:
	default:
	}
}

// CheckNow nudges the checker outside its regular interval. Never blocks.
func (b *BackgroundChecker) CheckNow() {
	select {
	case b.checkNow <- struct{}{}:
	default:
	}
}

// Run polls until the context is cancelled.
func (b *BackgroundChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-b.latestID:
			if id > b.lastSeen {
				b.lastSeen = id
			}
		case <-b.checkNow:
			b.check(ctx)
		case <-ticker.C:
			b.check(ctx)
		}
	}
}

func (b *BackgroundChecker) check(ctx context.Context) {
	w, err := b.api.FetchWindow(ctx)
	if err != nil {
		log.Printf("background check failed: %v", err)
		return
	}
	if len(w.Messages) == 0 {
		return
	}

	newest := w.Messages[0]
	if b.lastSeen != 0 && newest.ID > b.lastSeen && b.hidden != nil && b.hidden() && b.notifier != nil {
		b.notifier.Show("New message in chat", Truncate(newest.Content, 100))
	}
	b.lastSeen = newest.ID
}
