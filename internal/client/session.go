package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Session is the persisted identity: who the viewer is across restarts.
type Session struct {
	Token      string `json:"token"`
	IsAdmin    bool   `json:"is_admin"`
	AuthorName string `json:"author_name"`
	// watermark for unread counting
	LastReadMessageID int64 `json:"last_read_message_id"`
}

// SessionStore owns the session and persists every change to a JSON file,
// the durable-local-storage analogue.
type SessionStore struct {
	path string

	mu sync.Mutex
	s  Session
}

// LoadSession reads the session file; a missing file yields an empty session.
func LoadSession(path string) (*SessionStore, error) {
	st := &SessionStore{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, &st.s); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *SessionStore) persistLocked() error {
	b, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(st.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(st.path, b, 0o600)
}

func (st *SessionStore) Current() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

func (st *SessionStore) Token() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Token
}

func (st *SessionStore) Login(token string, isAdmin bool) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Token = token
	st.s.IsAdmin = isAdmin
	return st.persistLocked()
}

// Logout clears the credential but keeps the author name: it is a cosmetic
// preference, not a secret.
func (st *SessionStore) Logout() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Token = ""
	st.s.IsAdmin = false
	return st.persistLocked()
}

func (st *SessionStore) SetAuthorName(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.AuthorName = name
	return st.persistLocked()
}

func (st *SessionStore) LastRead() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.LastReadMessageID
}

func (st *SessionStore) SetLastRead(id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id <= st.s.LastReadMessageID {
		return nil
	}
	st.s.LastReadMessageID = id
	return st.persistLocked()
}
