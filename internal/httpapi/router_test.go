package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/chat-bankrot/community-chat/internal/auth"
	"github.com/chat-bankrot/community-chat/internal/chat"
	"github.com/chat-bankrot/community-chat/internal/config"
	"github.com/chat-bankrot/community-chat/internal/httpapi/handlers"
	"github.com/chat-bankrot/community-chat/internal/models"
	"github.com/chat-bankrot/community-chat/internal/subscription"
	"github.com/chat-bankrot/community-chat/internal/support"
)

// memoryStore is an in-process stand-in for the Redis store: typing
// presence plus the admin JWT denylist.
type memoryStore struct {
	mu     sync.Mutex
	typing map[string]string
	denied map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{typing: map[string]string{}, denied: map[string]bool{}}
}

func (m *memoryStore) SetTyping(ctx context.Context, token, name string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing[token] = name
	return nil
}

func (m *memoryStore) Typing(ctx context.Context) (map[string]string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.typing))
	for k, v := range m.typing {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) DenyJWT(ctx context.Context, jti string, ttl time.Duration) error {
	_ = ctx
	_ = ttl
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[jti] = true
	return nil
}

func (m *memoryStore) IsJWTDenied(ctx context.Context, jti string) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.denied[jti], nil
}

type testApp struct {
	router http.Handler
	subs   *subscription.Service
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.Subscription{}, &models.PaymentOrder{},
		&chat.Message{}, &chat.Reaction{},
		&support.Ticket{}, &support.Message{}, &support.Reaction{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:      "test-secret",
		PublicBaseURL:  "https://chat.example.com",
		ChatWindowSize: 100,
	}

	store := newMemoryStore()
	subRepo := subscription.NewRepo(gdb)
	chatRepo := chat.NewRepo(gdb)
	chatSvc := chat.NewService(chatRepo, store, subRepo, cfg.ChatWindowSize)
	subSvc := subscription.NewService(subRepo, chatRepo)
	supportSvc := support.NewService(support.NewRepo(gdb))

	adminHash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	h := handlers.NewHandler(cfg, store, chatSvc, subSvc, nil, supportSvc, nil, adminHash)
	return &testApp{
		router: NewRouter(cfg, store, h),
		subs:   subSvc,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, method, path, token, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-User-Token", token)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (a *testApp) activeToken(t *testing.T) string {
	t.Helper()
	sub, err := a.subs.Mint(context.Background(), subscription.PlanMonth, nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return sub.UserToken
}

func TestChat_RequiresToken(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodGet, "/chat", "", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if env.Message != "Token required" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestChat_RejectsUnknownToken(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodGet, "/chat", "no-such-token", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if env.Message != "Subscription expired or invalid" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestChat_PostAndReadWindow(t *testing.T) {
	app := newTestApp(t)
	token := app.activeToken(t)

	w, _ := app.do(t, http.MethodPost, "/chat", token, "", map[string]any{
		"content":     "hello everyone",
		"author_name": "Alice",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("post status = %d body=%s", w.Code, w.Body.String())
	}

	w, env := app.do(t, http.MethodGet, "/chat", token, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var win struct {
		Messages []struct {
			Content string  `json:"content"`
			Email   *string `json:"email,omitempty"`
		} `json:"messages"`
		TypingUsers []any `json:"typing_users"`
	}
	if err := json.Unmarshal(env.Data, &win); err != nil {
		t.Fatalf("decode window: %v", err)
	}
	if len(win.Messages) != 1 || win.Messages[0].Content != "hello everyone" {
		t.Fatalf("window = %+v", win)
	}
	if win.Messages[0].Email != nil {
		t.Fatalf("subscriber view leaked an email")
	}
	if win.TypingUsers == nil {
		t.Fatalf("typing_users missing from payload")
	}
}

func TestChat_TokenViaQueryParam(t *testing.T) {
	app := newTestApp(t)
	token := app.activeToken(t)

	w, _ := app.do(t, http.MethodGet, "/chat?token="+token, "", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAdmin_LoginLogoutDenylist(t *testing.T) {
	app := newTestApp(t)

	// wrong password
	w, _ := app.do(t, http.MethodPost, "/admin/login", "", "", map[string]string{"password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", w.Code)
	}

	w, env := app.do(t, http.MethodPost, "/admin/login", "", "", map[string]string{"password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	var loginData struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &loginData); err != nil || loginData.Token == "" {
		t.Fatalf("no admin token in response")
	}

	// admin bypasses the subscription gate
	w, _ = app.do(t, http.MethodGet, "/chat", "", loginData.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin chat status = %d", w.Code)
	}

	w, _ = app.do(t, http.MethodGet, "/admin/users", "", loginData.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin users status = %d", w.Code)
	}

	w, _ = app.do(t, http.MethodPost, "/admin/logout", "", loginData.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	// denylisted token no longer grants admin
	w, _ = app.do(t, http.MethodGet, "/admin/users", "", loginData.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("denylisted token status = %d, want 403", w.Code)
	}
}

func TestAdmin_DeleteRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	token := app.activeToken(t)

	w, _ := app.do(t, http.MethodPost, "/chat", token, "", map[string]any{"content": "to be removed"})
	if w.Code != http.StatusCreated {
		t.Fatalf("post status = %d", w.Code)
	}

	w, _ = app.do(t, http.MethodDelete, "/chat", token, "", map[string]any{"message_id": 1})
	if w.Code != http.StatusForbidden {
		t.Fatalf("subscriber delete status = %d, want 403", w.Code)
	}

	_, env := app.do(t, http.MethodPost, "/admin/login", "", "", map[string]string{"password": "hunter2"})
	var loginData struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &loginData)

	w, env = app.do(t, http.MethodDelete, "/chat", "", loginData.Token, map[string]any{"message_id": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("admin delete status = %d body=%s", w.Code, w.Body.String())
	}
	var data struct {
		DeletedReplies int `json:"deleted_replies"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.DeletedReplies != 0 {
		t.Fatalf("deleted_replies = %d, want 0", data.DeletedReplies)
	}
}

func TestAdmin_BlockUserCutsAccess(t *testing.T) {
	app := newTestApp(t)
	token := app.activeToken(t)

	_, env := app.do(t, http.MethodPost, "/admin/login", "", "", map[string]string{"password": "hunter2"})
	var loginData struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &loginData)

	w, _ := app.do(t, http.MethodPut, "/admin/users", "", loginData.Token, map[string]any{
		"user_token": token,
		"is_blocked": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("block status = %d body=%s", w.Code, w.Body.String())
	}

	w, _ = app.do(t, http.MethodGet, "/chat", token, "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("blocked subscriber status = %d, want 403", w.Code)
	}
}

func TestSubscription_StatusAndNotFound(t *testing.T) {
	app := newTestApp(t)
	token := app.activeToken(t)

	w, env := app.do(t, http.MethodGet, "/subscription", token, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var st struct {
		IsActive bool `json:"is_active"`
	}
	if err := json.Unmarshal(env.Data, &st); err != nil || !st.IsActive {
		t.Fatalf("status payload = %s", env.Data)
	}

	w, env = app.do(t, http.MethodGet, "/subscription", "unknown", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if env.Message != "Subscription not found" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestCORS_Preflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://course.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodGet, "/nope", "", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if env.Code != 40400 {
		t.Fatalf("code = %d", env.Code)
	}
}

// doSupport is do with the X-User-Email identity header.
func (a *testApp) doSupport(t *testing.T, method, path, email, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestSupport_RequiresEmail(t *testing.T) {
	app := newTestApp(t)

	w, env := app.doSupport(t, http.MethodGet, "/support", "", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.Message != "User email required" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestSupport_ThreadRoundtrip(t *testing.T) {
	app := newTestApp(t)

	w, env := app.doSupport(t, http.MethodPost, "/support", "ann@example.com", "", map[string]any{
		"message": "my access code stopped working",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d body=%s", w.Code, w.Body.String())
	}
	var sent struct {
		MessageID uint64 `json:"message_id"`
		TicketID  uint64 `json:"ticket_id"`
	}
	if err := json.Unmarshal(env.Data, &sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sent.MessageID == 0 || sent.TicketID == 0 {
		t.Fatalf("sent = %+v", sent)
	}

	w, env = app.doSupport(t, http.MethodGet, "/support", "ann@example.com", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("thread status = %d", w.Code)
	}
	var thread struct {
		Ticket struct {
			ID     uint64 `json:"id"`
			Status string `json:"status"`
		} `json:"ticket"`
		Messages []struct {
			ID         uint64 `json:"id"`
			SenderType string `json:"sender_type"`
			Message    string `json:"message"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(env.Data, &thread); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if thread.Ticket.ID != sent.TicketID || thread.Ticket.Status != "open" {
		t.Fatalf("ticket = %+v", thread.Ticket)
	}
	if len(thread.Messages) != 1 || thread.Messages[0].SenderType != "client" {
		t.Fatalf("messages = %+v", thread.Messages)
	}
}

func TestSupport_AdminTicketsAndStatus(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.doSupport(t, http.MethodPost, "/support", "ann@example.com", "", map[string]any{
		"message": "help",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d", w.Code)
	}

	w, _ = app.doSupport(t, http.MethodGet, "/admin/support/tickets", "", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unauthenticated listing status = %d, want 403", w.Code)
	}

	_, env := app.do(t, http.MethodPost, "/admin/login", "", "", map[string]string{"password": "hunter2"})
	var loginData struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &loginData)

	w, env = app.doSupport(t, http.MethodGet, "/admin/support/tickets", "", loginData.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("listing status = %d body=%s", w.Code, w.Body.String())
	}
	var listing struct {
		Tickets []struct {
			ID           uint64 `json:"id"`
			ClientEmail  string `json:"client_email"`
			MessageCount int64  `json:"message_count"`
		} `json:"tickets"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Tickets) != 1 || listing.Tickets[0].MessageCount != 1 {
		t.Fatalf("tickets = %+v", listing.Tickets)
	}
	if listing.Tickets[0].ClientEmail != "ann@example.com" {
		t.Fatalf("client_email = %q", listing.Tickets[0].ClientEmail)
	}

	ticketID := listing.Tickets[0].ID
	w, _ = app.doSupport(t, http.MethodPut, "/admin/support/tickets", "", loginData.Token, map[string]any{
		"ticket_id": ticketID,
		"status":    "closed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status update = %d", w.Code)
	}

	w, env = app.doSupport(t, http.MethodGet, fmt.Sprintf("/support?ticket_id=%d", ticketID), "support@example.com", loginData.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("thread status = %d", w.Code)
	}
	var thread struct {
		Ticket struct {
			Status string `json:"status"`
		} `json:"ticket"`
	}
	if err := json.Unmarshal(env.Data, &thread); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if thread.Ticket.Status != "closed" {
		t.Fatalf("status = %q, want closed", thread.Ticket.Status)
	}
}
