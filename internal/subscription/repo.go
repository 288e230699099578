package subscription

import (
	"context"

	"gorm.io/gorm"

	"github.com/chat-bankrot/community-chat/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, s *models.Subscription) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetByToken(ctx context.Context, token string) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_token = ?", token).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListAll returns subscriptions newest-first for the admin panel.
func (r *Repo) ListAll(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *Repo) SetBlocked(ctx context.Context, token string, blocked bool) (*models.Subscription, error) {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_token = ?", token).
		Update("is_blocked", blocked)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByToken(ctx, token)
}

// EmailsByTokens resolves subscriber emails for a token set. Tokens without
// a stored email are absent from the result.
func (r *Repo) EmailsByTokens(ctx context.Context, tokens []string) (map[string]string, error) {
	if len(tokens) == 0 {
		return map[string]string{}, nil
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_token IN ?", tokens).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(subs))
	for _, s := range subs {
		if s.Email != nil && *s.Email != "" {
			out[s.UserToken] = *s.Email
		}
	}
	return out, nil
}
