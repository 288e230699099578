package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("message not found")
	ErrEmptyContent     = errors.New("content required")
	ErrNotOwner         = errors.New("not the message owner")
	ErrEditWindowClosed = errors.New("edit window closed")
)

// EditWindow bounds how long a subscriber may edit their own message.
const EditWindow = 5 * time.Minute

// TypingStore is the ephemeral presence backend (Redis in production).
type TypingStore interface {
	SetTyping(ctx context.Context, token, name string) error
	Typing(ctx context.Context) (map[string]string, error)
}

// EmailLookup resolves subscriber emails for admin views.
type EmailLookup interface {
	EmailsByTokens(ctx context.Context, tokens []string) (map[string]string, error)
}

type Service struct {
	repo       *Repo
	typing     TypingStore
	emails     EmailLookup
	windowSize int
	now        func() time.Time
}

func NewService(repo *Repo, typing TypingStore, emails EmailLookup, windowSize int) *Service {
	if windowSize <= 0 || windowSize > 500 {
		windowSize = 100
	}
	return &Service{
		repo:       repo,
		typing:     typing,
		emails:     emails,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// ListWindow assembles the chat window for a viewer: newest-first messages,
// per-message reaction counts, the viewer's own reactions, and the current
// typing snapshot (excluding the viewer). Admin viewers additionally see the
// author's subscription email.
func (s *Service) ListWindow(ctx context.Context, viewerToken string, isAdmin bool) (*Window, error) {
	msgs, err := s.repo.ListWindow(ctx, s.windowSize)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	reactions, err := s.repo.ReactionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	counts := make(map[uint64]map[string]int)
	mine := make(map[uint64][]string)
	for _, r := range reactions {
		if counts[r.MessageID] == nil {
			counts[r.MessageID] = make(map[string]int)
		}
		counts[r.MessageID][r.Emoji]++
		if r.UserToken == viewerToken {
			mine[r.MessageID] = append(mine[r.MessageID], r.Emoji)
		}
	}

	var emails map[string]string
	if isAdmin && s.emails != nil {
		tokens := make([]string, 0, len(msgs))
		seen := make(map[string]bool)
		for _, m := range msgs {
			if !seen[m.UserToken] {
				seen[m.UserToken] = true
				tokens = append(tokens, m.UserToken)
			}
		}
		emails, err = s.emails.EmailsByTokens(ctx, tokens)
		if err != nil {
			return nil, err
		}
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := MessageView{
			Message:       m,
			Reactions:     []ReactionCount{},
			UserReactions: []string{},
		}
		if cs := counts[m.ID]; cs != nil {
			emojis := make([]string, 0, len(cs))
			for e := range cs {
				emojis = append(emojis, e)
			}
			sort.Strings(emojis)
			for _, e := range emojis {
				v.Reactions = append(v.Reactions, ReactionCount{Emoji: e, Count: cs[e]})
			}
		}
		if rs := mine[m.ID]; rs != nil {
			v.UserReactions = rs
		}
		if isAdmin {
			if e, ok := emails[m.UserToken]; ok {
				v.Email = &e
			}
		}
		views = append(views, v)
	}

	var typingUsers []TypingUser
	if s.typing != nil {
		snapshot, err := s.typing.Typing(ctx)
		if err == nil {
			for token, name := range snapshot {
				if token == viewerToken {
					continue
				}
				tu := TypingUser{UserToken: token}
				if name != "" {
					n := name
					tu.AuthorName = &n
				}
				typingUsers = append(typingUsers, tu)
			}
			sort.Slice(typingUsers, func(i, j int) bool {
				return typingUsers[i].UserToken < typingUsers[j].UserToken
			})
		}
	}
	if typingUsers == nil {
		typingUsers = []TypingUser{}
	}

	return &Window{Messages: views, TypingUsers: typingUsers}, nil
}

// Post stores a new message. Content is trimmed; an empty body is allowed
// only when images are attached.
func (s *Service) Post(ctx context.Context, token, content, authorName string, replyTo *uint64, imageURLs []string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && len(imageURLs) == 0 {
		return nil, ErrEmptyContent
	}

	m := &Message{
		Content:   content,
		ImageURLs: imageURLs,
		UserToken: token,
		ReplyTo:   replyTo,
	}
	if authorName != "" {
		m.AuthorName = &authorName
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Edit replaces a message body. Subscribers may edit only their own messages
// and only within EditWindow of creation; admins are exempt from both checks.
func (s *Service) Edit(ctx context.Context, token string, isAdmin bool, id uint64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !isAdmin {
		if m.UserToken != token {
			return ErrNotOwner
		}
		if s.now().Sub(m.CreatedAt) > EditWindow {
			return ErrEditWindowClosed
		}
	}

	now := s.now()
	return s.repo.Update(ctx, id, map[string]any{
		"content":   content,
		"edited_at": &now,
	})
}

func (s *Service) SetPinned(ctx context.Context, id uint64, pinned bool) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.repo.Update(ctx, id, map[string]any{"is_pinned": pinned})
}

// Delete removes a message and its reply subtree, returning the reply count.
func (s *Service) Delete(ctx context.Context, id uint64) (int, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return s.repo.DeleteCascade(ctx, id)
}

func (s *Service) React(ctx context.Context, token string, id uint64, emoji string) error {
	if emoji == "" {
		return ErrEmptyContent
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.repo.AddReaction(ctx, id, token, emoji)
}

func (s *Service) Unreact(ctx context.Context, token string, id uint64, emoji string) error {
	return s.repo.RemoveReaction(ctx, id, token, emoji)
}

// Typing records an ephemeral typing signal for the token. Viewers without
// an opaque token (a JWT-only admin) have no presence key and are skipped.
func (s *Service) Typing(ctx context.Context, token, authorName string) error {
	if s.typing == nil || token == "" {
		return nil
	}
	return s.typing.SetTyping(ctx, token, authorName)
}
