package client

import (
	"path/filepath"
	"testing"
)

func newTestSession(t *testing.T) *SessionStore {
	t.Helper()
	st, err := LoadSession(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return st
}

func TestLoadSession_MissingFileIsEmpty(t *testing.T) {
	st := newTestSession(t)
	if s := st.Current(); s.Token != "" || s.IsAdmin || s.AuthorName != "" || s.LastReadMessageID != 0 {
		t.Fatalf("session not empty: %+v", s)
	}
}

func TestSession_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	st, err := LoadSession(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := st.Login("tok-1", true); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := st.SetAuthorName("Alice"); err != nil {
		t.Fatalf("name: %v", err)
	}
	if err := st.SetLastRead(42); err != nil {
		t.Fatalf("last read: %v", err)
	}

	again, err := LoadSession(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	s := again.Current()
	if s.Token != "tok-1" || !s.IsAdmin || s.AuthorName != "Alice" || s.LastReadMessageID != 42 {
		t.Fatalf("session = %+v", s)
	}
}

func TestLogout_KeepsAuthorName(t *testing.T) {
	st := newTestSession(t)
	_ = st.Login("tok-1", false)
	_ = st.SetAuthorName("Alice")

	if err := st.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	s := st.Current()
	if s.Token != "" || s.IsAdmin {
		t.Fatalf("credential survived logout: %+v", s)
	}
	if s.AuthorName != "Alice" {
		t.Fatalf("author name lost on logout")
	}
}

func TestSetLastRead_Monotonic(t *testing.T) {
	st := newTestSession(t)
	_ = st.SetLastRead(10)
	_ = st.SetLastRead(5)
	if got := st.LastRead(); got != 10 {
		t.Fatalf("last read = %d, want 10", got)
	}
	_ = st.SetLastRead(11)
	if got := st.LastRead(); got != 11 {
		t.Fatalf("last read = %d, want 11", got)
	}
}
