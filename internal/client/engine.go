package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAuthorName is the display-name fallback for subscribers who never
// set one.
const DefaultAuthorName = "Member"

// EditWindow bounds client-side edit eligibility. The server is the actual
// authority; this only controls whether the edit action is offered.
const EditWindow = 5 * time.Minute

// PollInterval is the in-page refresh cadence while the chat view is
// active and entitled.
const PollInterval = 10 * time.Second

// Alerts is where user-visible failures and confirmations land (a toast
// stack in the original, stderr in the terminal client).
type Alerts interface {
	Error(title, detail string)
	Info(title, detail string)
}

// Engine is the chat synchronization engine: it owns the locally cached
// window, the unread watermark and the compose field, and mediates every
// chat mutation through the remote API. All reads return snapshots; the
// cache is replaced wholesale on every reload (last response wins).
type Engine struct {
	api     *Client
	session *SessionStore
	gateway *Gateway
	alerts  Alerts
	bg      *BackgroundChecker

	mu         sync.Mutex
	messages   []Message
	typing     []TypingUser
	compose    string
	unread     int
	viewActive bool
	hidden     bool
	loading    bool
	subActive  bool

	pollCancel context.CancelFunc

	typingLimiter *rate.Limiter
	now           func() time.Time
}

func NewEngine(api *Client, session *SessionStore, gateway *Gateway, alerts Alerts) *Engine {
	e := &Engine{
		api:     api,
		session: session,
		gateway: gateway,
		alerts:  alerts,
		// one typing signal per 3-second burst
		typingLimiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		now:           time.Now,
	}
	e.bg = NewBackgroundChecker(api, passthroughNotifier{gateway}, e.DocumentHidden)
	return e
}

// passthroughNotifier lets the background checker raise OS notifications
// through the gateway's permission gate without replaying the audio cue.
type passthroughNotifier struct{ g *Gateway }

func (p passthroughNotifier) PlayCue() {}
func (p passthroughNotifier) Show(title, body string) {
	if p.g.Permission() == PermissionGranted {
		p.g.notifier.Show(title, body)
	}
}

// Background returns the out-of-page checker so the caller can run it.
func (e *Engine) Background() *BackgroundChecker { return e.bg }

// Messages returns a snapshot of the cached window, newest first.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

func (e *Engine) TypingUsers() []TypingUser {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TypingUser, len(e.typing))
	copy(out, e.typing)
	return out
}

func (e *Engine) Unread() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

func (e *Engine) Compose() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compose
}

func (e *Engine) SetCompose(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compose = s
}

// SetViewActive records whether the chat view is the active tab. Activating
// the view consumes the unread counter and advances the read watermark.
func (e *Engine) SetViewActive(active bool) {
	e.mu.Lock()
	e.viewActive = active
	if active {
		e.unread = 0
		if len(e.messages) > 0 {
			_ = e.session.SetLastRead(e.messages[0].ID)
		}
	}
	e.mu.Unlock()
}

// SetDocumentHidden records visibility. Going hidden nudges the background
// checker outside its regular interval so it takes over promptly.
func (e *Engine) SetDocumentHidden(hidden bool) {
	e.mu.Lock()
	wentHidden := hidden && !e.hidden
	e.hidden = hidden
	e.mu.Unlock()
	if wentHidden {
		e.bg.CheckNow()
	}
}

func (e *Engine) DocumentHidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hidden
}

// RefreshSubscription re-fetches entitlement state; called after login and
// after a payment redirect. An unknown token is recorded as inactive, not
// surfaced as an error.
func (e *Engine) RefreshSubscription(ctx context.Context) error {
	if e.session.Token() == "" {
		return nil
	}
	status, err := e.api.Subscription(ctx)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			e.mu.Lock()
			e.subActive = false
			e.mu.Unlock()
			return nil
		}
		return err
	}
	e.mu.Lock()
	e.subActive = status.IsActive
	e.mu.Unlock()
	return nil
}

func (e *Engine) SubscriptionActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subActive
}

// Entitled reports whether the engine should poll at all: an active
// subscription or admin rights.
func (e *Engine) Entitled() bool {
	e.mu.Lock()
	sub := e.subActive
	e.mu.Unlock()
	return sub || e.session.Current().IsAdmin
}

// LoadMessages fetches the full window and reconciles the local cache.
// A silent load never toggles the loading state and raises a notification
// only when the newest id advanced. Errors on non-silent loads surface an
// alert unless the viewer holds neither an active subscription nor admin
// rights, where access-denied is the expected outcome.
func (e *Engine) LoadMessages(ctx context.Context, silent bool) error {
	if e.session.Token() == "" {
		return nil
	}

	if !silent {
		e.mu.Lock()
		e.loading = true
		e.mu.Unlock()
		defer func() {
			e.mu.Lock()
			e.loading = false
			e.mu.Unlock()
		}()
	}

	e.mu.Lock()
	var prevLatest int64
	if len(e.messages) > 0 {
		prevLatest = e.messages[0].ID
	}
	e.mu.Unlock()

	w, err := e.api.FetchWindow(ctx)
	if err != nil {
		if !silent && e.Entitled() && e.alerts != nil {
			detail := "Could not load messages"
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				detail = apiErr.Message
			}
			e.alerts.Error("Load failed", detail)
		}
		return err
	}

	e.reconcile(w, silent, prevLatest)
	return nil
}

// reconcile replaces the cache with the fresh window and derives the
// side effects: notification, unread count, background watermark. The
// unread counter is recomputed only while the chat view is inactive;
// a reconcile that lands while the view is active zeroes it in the same
// step, so it can never stick non-zero for a viewer who is looking at
// the chat.
func (e *Engine) reconcile(w *Window, silent bool, prevLatest int64) {
	var newest int64
	if len(w.Messages) > 0 {
		newest = w.Messages[0].ID
	}

	e.mu.Lock()
	e.messages = w.Messages
	e.typing = w.TypingUsers

	notify := silent && prevLatest > 0 && newest > prevLatest
	var notifyContent string
	if notify {
		notifyContent = w.Messages[0].Content
	}

	if e.viewActive {
		e.unread = 0
		if newest > 0 {
			_ = e.session.SetLastRead(newest)
		}
	} else {
		lastRead := e.session.LastRead()
		n := 0
		for _, m := range w.Messages {
			if m.ID > lastRead {
				n++
			}
		}
		e.unread = n
	}
	hidden := e.hidden
	e.mu.Unlock()

	if notify && e.gateway != nil {
		e.gateway.Emit(notifyContent, hidden)
	}
	if newest > 0 {
		e.bg.Forward(newest)
	}
}

// SendMessage posts the compose field. Empty content with no images is a
// no-op: no request, no loading state. The compose field is cleared only
// after the server accepted the message.
func (e *Engine) SendMessage(ctx context.Context, replyTo *int64, imageURLs []string) error {
	token := e.session.Token()
	if token == "" {
		return nil
	}

	e.mu.Lock()
	content := strings.TrimSpace(e.compose)
	e.mu.Unlock()
	if content == "" && len(imageURLs) == 0 {
		return nil
	}

	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	name := e.session.Current().AuthorName
	if name == "" {
		name = DefaultAuthorName
	}

	err := e.api.PostMessage(ctx, PostMessageRequest{
		Content:    content,
		AuthorName: name,
		ReplyTo:    replyTo,
		ImageURLs:  imageURLs,
	})
	if err != nil {
		if e.alerts != nil {
			detail := "Could not send message"
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Message != "" {
				detail = apiErr.Message
			}
			e.alerts.Error("Send failed", detail)
		}
		return err
	}

	e.mu.Lock()
	e.compose = ""
	e.mu.Unlock()
	return e.LoadMessages(ctx, false)
}

// ReplyCount reports the reply subtree size for the delete confirmation.
func (e *Engine) ReplyCount(id int64) int {
	roots := BuildForest(e.Messages())
	if n := FindNode(roots, id); n != nil {
		return CountReplies(n)
	}
	return 0
}

func (e *Engine) DeleteMessage(ctx context.Context, id int64) error {
	if e.session.Token() == "" {
		return nil
	}
	if err := e.api.DeleteMessage(ctx, id); err != nil {
		if e.alerts != nil {
			e.alerts.Error("Delete failed", "Could not delete message")
		}
		return err
	}
	if e.alerts != nil {
		e.alerts.Info("Message deleted", "The message was removed")
	}
	return e.LoadMessages(ctx, false)
}

func (e *Engine) TogglePin(ctx context.Context, id int64, currentlyPinned bool) error {
	if e.session.Token() == "" {
		return nil
	}
	if err := e.api.SetPinned(ctx, id, !currentlyPinned); err != nil {
		if e.alerts != nil {
			e.alerts.Error("Pin failed", "Could not pin or unpin message")
		}
		return err
	}
	return e.LoadMessages(ctx, false)
}

// CanEdit is the client-side eligibility courtesy: own message, within the
// edit window. The server enforces the same rule authoritatively.
func (e *Engine) CanEdit(m Message) bool {
	s := e.session.Current()
	if s.IsAdmin {
		return true
	}
	if s.Token == "" || m.UserToken != s.Token {
		return false
	}
	return e.now().Sub(m.CreatedAt) <= EditWindow
}

func (e *Engine) EditMessage(ctx context.Context, id int64, content string) error {
	if e.session.Token() == "" {
		return nil
	}
	if err := e.api.EditMessage(ctx, id, content); err != nil {
		if e.alerts != nil {
			e.alerts.Error("Edit failed", "Could not edit message")
		}
		return err
	}
	if e.alerts != nil {
		e.alerts.Info("Message updated", "Changes saved")
	}
	return e.LoadMessages(ctx, false)
}

// ToggleReaction adds or removes depending on whether the viewer already
// reacted; the follow-up reload is silent since reactions are low-priority
// visual feedback.
func (e *Engine) ToggleReaction(ctx context.Context, id int64, emoji string, alreadyReacted bool) error {
	if e.session.Token() == "" {
		return nil
	}
	var err error
	if alreadyReacted {
		err = e.api.RemoveReaction(ctx, id, emoji)
	} else {
		err = e.api.AddReaction(ctx, id, emoji)
	}
	if err != nil {
		return err
	}
	return e.LoadMessages(ctx, true)
}

// HandleTyping emits at most one typing signal per 3-second input burst,
// and none at all without an active subscription.
func (e *Engine) HandleTyping(ctx context.Context) {
	if e.session.Token() == "" || !e.SubscriptionActive() {
		return
	}
	if !e.typingLimiter.Allow() {
		return
	}
	name := e.session.Current().AuthorName
	if name == "" {
		name = DefaultAuthorName
	}
	_ = e.api.Typing(ctx, name)
}

// Search filters the cached window; it never calls the remote API.
func (e *Engine) Search(query string) (matches []Message, count int) {
	matches = Filter(e.Messages(), query)
	return matches, len(matches)
}

// StartPolling begins the 10-second silent refresh loop. Safe to call when
// already running. The loop stops on StopPolling or context cancellation;
// callers start it on entering the chat view entitled and stop it on the
// inverse transition.
func (e *Engine) StartPolling(ctx context.Context) {
	e.mu.Lock()
	if e.pollCancel != nil {
		e.mu.Unlock()
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	e.pollCancel = cancel
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
				_ = e.LoadMessages(pctx, true)
			}
		}
	}()
}

func (e *Engine) StopPolling() {
	e.mu.Lock()
	cancel := e.pollCancel
	e.pollCancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Logout tears the poller down before clearing the credential so no timer
// keeps polling against a dead token.
func (e *Engine) Logout() error {
	e.StopPolling()
	e.mu.Lock()
	e.messages = nil
	e.typing = nil
	e.unread = 0
	e.subActive = false
	e.mu.Unlock()
	return e.session.Logout()
}

// EstablishFromURL consumes a magic-link login: if the URL carries a token
// parameter the token is verified against the subscription API before the
// session is established, and the returned URL has the token stripped so
// it never lands in history. A URL without a token is returned unchanged.
func (e *Engine) EstablishFromURL(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	q := u.Query()
	token := q.Get("token")
	if token == "" {
		return rawURL, nil
	}

	candidate := NewClient(e.api.BaseURL, func() string { return token })
	candidate.HTTPClient = e.api.HTTPClient
	if _, err := candidate.Subscription(ctx); err != nil {
		return rawURL, err
	}

	if err := e.session.Login(token, false); err != nil {
		return rawURL, err
	}

	q.Del("token")
	u.RawQuery = q.Encode()
	return u.String(), e.RefreshSubscription(ctx)
}
