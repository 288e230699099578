package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is an HTTP-level failure carrying the server's envelope message
// when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status=%d", e.StatusCode)
}

// Reaction mirrors the aggregated reaction counts the server sends.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

type Message struct {
	ID            int64      `json:"id"`
	Content       string     `json:"content"`
	ImageURLs     []string   `json:"image_urls,omitempty"`
	AuthorName    *string    `json:"author_name"`
	CreatedAt     time.Time  `json:"created_at"`
	ReplyTo       *int64     `json:"reply_to"`
	UserToken     string     `json:"user_token"`
	Email         *string    `json:"email,omitempty"`
	IsPinned      bool       `json:"is_pinned"`
	EditedAt      *time.Time `json:"edited_at"`
	Reactions     []Reaction `json:"reactions"`
	UserReactions []string   `json:"user_reactions"`
}

type TypingUser struct {
	UserToken  string  `json:"user_token"`
	AuthorName *string `json:"author_name"`
}

// Window is the full chat snapshot a poll returns.
type Window struct {
	Messages    []Message    `json:"messages"`
	TypingUsers []TypingUser `json:"typing_users"`
}

// SubscriptionStatus is the entitlement payload.
type SubscriptionStatus struct {
	Plan      string    `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// Client is the HTTP client for the chat and subscription APIs. The token
// is read through TokenSource on every request so a login or logout takes
// effect immediately.
type Client struct {
	BaseURL     string
	TokenSource func() string
	HTTPClient  *http.Client
}

func NewClient(baseURL string, tokenSource func() string) *Client {
	return &Client{
		BaseURL:     baseURL,
		TokenSource: tokenSource,
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.TokenSource != nil {
		if t := c.TokenSource(); t != "" {
			req.Header.Set("X-User-Token", t)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Message
		if msg == "ok" {
			msg = ""
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) FetchWindow(ctx context.Context) (*Window, error) {
	var w Window
	if err := c.do(ctx, http.MethodGet, "/chat", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

type PostMessageRequest struct {
	Content    string   `json:"content"`
	AuthorName string   `json:"author_name"`
	ReplyTo    *int64   `json:"reply_to,omitempty"`
	ImageURLs  []string `json:"image_urls,omitempty"`
}

func (c *Client) PostMessage(ctx context.Context, req PostMessageRequest) error {
	return c.do(ctx, http.MethodPost, "/chat", req, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/chat", map[string]any{"message_id": id}, nil)
}

func (c *Client) EditMessage(ctx context.Context, id int64, content string) error {
	return c.do(ctx, http.MethodPut, "/chat", map[string]any{"message_id": id, "content": content}, nil)
}

func (c *Client) SetPinned(ctx context.Context, id int64, pinned bool) error {
	return c.do(ctx, http.MethodPatch, "/chat", map[string]any{"message_id": id, "is_pinned": pinned}, nil)
}

func (c *Client) AddReaction(ctx context.Context, id int64, emoji string) error {
	return c.do(ctx, http.MethodPost, "/chat/reactions", map[string]any{"message_id": id, "emoji": emoji}, nil)
}

func (c *Client) RemoveReaction(ctx context.Context, id int64, emoji string) error {
	return c.do(ctx, http.MethodDelete, "/chat/reactions", map[string]any{"message_id": id, "emoji": emoji}, nil)
}

func (c *Client) Typing(ctx context.Context, authorName string) error {
	return c.do(ctx, http.MethodPost, "/chat/typing", map[string]any{"author_name": authorName}, nil)
}

func (c *Client) Subscription(ctx context.Context) (*SubscriptionStatus, error) {
	var s SubscriptionStatus
	if err := c.do(ctx, http.MethodGet, "/subscription", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
