package subscription

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/chat-bankrot/community-chat/internal/models"
)

var (
	ErrNotFound    = errors.New("subscription not found")
	ErrInvalidPlan = errors.New("invalid plan, use week or month")
)

const (
	PlanWeek  = "week"
	PlanMonth = "month"
)

// PlanDuration returns the access window a plan grants.
func PlanDuration(plan string) (time.Duration, error) {
	switch plan {
	case PlanWeek:
		return 7 * 24 * time.Hour, nil
	case PlanMonth:
		return 30 * 24 * time.Hour, nil
	default:
		return 0, ErrInvalidPlan
	}
}

// MessageCounter reports how many chat messages a token has posted.
type MessageCounter interface {
	CountByToken(ctx context.Context, token string) (int64, error)
}

type Service struct {
	repo     *Repo
	messages MessageCounter
	now      func() time.Time
}

func NewService(repo *Repo, messages MessageCounter) *Service {
	return &Service{repo: repo, messages: messages, now: time.Now}
}

// Status is the entitlement payload returned to clients.
type Status struct {
	Plan      string    `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

func (s *Service) Status(ctx context.Context, token string) (*Status, error) {
	sub, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Status{
		Plan:      sub.Plan,
		ExpiresAt: sub.ExpiresAt,
		CreatedAt: sub.CreatedAt,
		IsActive:  sub.Active(s.now()),
	}, nil
}

// Mint creates a new subscription with a fresh token.
func (s *Service) Mint(ctx context.Context, plan string, email *string) (*models.Subscription, error) {
	d, err := PlanDuration(plan)
	if err != nil {
		return nil, err
	}
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	sub := &models.Subscription{
		UserToken: token,
		Email:     email,
		Plan:      plan,
		ExpiresAt: s.now().Add(d),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// HasChatAccess reports whether a token may read and post in the chat.
// Unknown, expired and blocked tokens are all denied the same way.
func (s *Service) HasChatAccess(ctx context.Context, token string) (bool, error) {
	sub, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.Active(s.now()), nil
}

// AdminUser is one row of the admin user listing.
type AdminUser struct {
	UserToken    string    `json:"user_token"`
	Email        *string   `json:"email"`
	Plan         string    `json:"plan"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	IsBlocked    bool      `json:"is_blocked"`
	MessageCount int64     `json:"message_count"`
}

func (s *Service) ListUsers(ctx context.Context) ([]AdminUser, error) {
	subs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]AdminUser, 0, len(subs))
	for _, sub := range subs {
		u := AdminUser{
			UserToken: sub.UserToken,
			Email:     sub.Email,
			Plan:      sub.Plan,
			ExpiresAt: sub.ExpiresAt,
			CreatedAt: sub.CreatedAt,
			IsBlocked: sub.IsBlocked,
		}
		if s.messages != nil {
			if n, err := s.messages.CountByToken(ctx, sub.UserToken); err == nil {
				u.MessageCount = n
			}
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Service) SetBlocked(ctx context.Context, token string, blocked bool) (*models.Subscription, error) {
	sub, err := s.repo.SetBlocked(ctx, token, blocked)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}
