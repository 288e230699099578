package chat

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ListWindow returns the newest messages in DESC id order (newest -> oldest).
func (r *Repo) ListWindow(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) Insert(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) Update(ctx context.Context, id uint64, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// DeleteCascade removes a message and every reply beneath it, any depth.
// Returns the number of replies removed (not counting the message itself).
func (r *Repo) DeleteCascade(ctx context.Context, id uint64) (int, error) {
	all := []uint64{id}
	frontier := []uint64{id}
	for len(frontier) > 0 {
		var next []uint64
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("reply_to IN ?", frontier).
			Pluck("id", &next).Error; err != nil {
			return 0, err
		}
		all = append(all, next...)
		frontier = next
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id IN ?", all).Delete(&Reaction{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", all).Delete(&Message{}).Error
	})
	if err != nil {
		return 0, err
	}
	return len(all) - 1, nil
}

func (r *Repo) ReactionsFor(ctx context.Context, messageIDs []uint64) ([]Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var rs []Reaction
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("id ASC").
		Find(&rs).Error; err != nil {
		return nil, err
	}
	return rs, nil
}

// AddReaction is idempotent per (message, token, emoji).
func (r *Repo) AddReaction(ctx context.Context, messageID uint64, token, emoji string) error {
	return r.db.WithContext(ctx).
		Where(Reaction{MessageID: messageID, UserToken: token, Emoji: emoji}).
		FirstOrCreate(&Reaction{MessageID: messageID, UserToken: token, Emoji: emoji}).Error
}

func (r *Repo) RemoveReaction(ctx context.Context, messageID uint64, token, emoji string) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_token = ? AND emoji = ?", messageID, token, emoji).
		Delete(&Reaction{}).Error
}

// CountByToken reports how many messages a subscriber has posted. Used by
// the admin user listing.
func (r *Repo) CountByToken(ctx context.Context, token string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Where("user_token = ?", token).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
