package support

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// LatestTicketByEmail returns the caller's newest ticket, or nil when they
// have none yet.
func (r *Repo) LatestTicketByEmail(ctx context.Context, email string) (*Ticket, error) {
	var t Ticket
	err := r.db.WithContext(ctx).
		Where("client_email = ?", email).
		Order("created_at DESC").
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) GetTicket(ctx context.Context, id uint64) (*Ticket, error) {
	var t Ticket
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) CreateTicket(ctx context.Context, t *Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ListSummaries returns every ticket with its message count and the time of
// its newest message, most recently active first.
func (r *Repo) ListSummaries(ctx context.Context) ([]TicketSummary, error) {
	var tickets []Ticket
	if err := r.db.WithContext(ctx).
		Order("last_message_at DESC, created_at DESC").
		Find(&tickets).Error; err != nil {
		return nil, err
	}

	out := make([]TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		var count int64
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("ticket_id = ?", t.ID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		var last *time.Time
		if count > 0 {
			var newest Message
			if err := r.db.WithContext(ctx).
				Where("ticket_id = ?", t.ID).
				Order("created_at DESC").
				First(&newest).Error; err != nil {
				return nil, err
			}
			last = &newest.CreatedAt
		}
		out = append(out, TicketSummary{Ticket: t, MessageCount: count, LastMessageTime: last})
	}
	return out, nil
}

// MessagesWithReactions returns a ticket's messages oldest first, each with
// its reactions.
func (r *Repo) MessagesWithReactions(ctx context.Context, ticketID uint64) ([]MessageView, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	byMessage := make(map[uint64][]ReactionView)
	if len(ids) > 0 {
		var reactions []Reaction
		if err := r.db.WithContext(ctx).
			Where("message_id IN ?", ids).
			Order("id ASC").
			Find(&reactions).Error; err != nil {
			return nil, err
		}
		for _, re := range reactions {
			byMessage[re.MessageID] = append(byMessage[re.MessageID], ReactionView{
				Reaction:  re.Reaction,
				UserEmail: re.UserEmail,
			})
		}
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views := byMessage[m.ID]
		if views == nil {
			views = []ReactionView{}
		}
		out = append(out, MessageView{Message: m, Reactions: views})
	}
	return out, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// TouchTicket bumps the ticket's activity timestamps after a new message.
func (r *Repo) TouchTicket(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_message_at": at,
			"updated_at":      at,
		}).Error
}

func (r *Repo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ToggleReaction adds the (message, email, reaction) row, or removes it if
// it already exists. Reports whether the reaction is present afterwards.
func (r *Repo) ToggleReaction(ctx context.Context, messageID uint64, email, reaction string) (bool, error) {
	var existing Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_email = ? AND reaction = ?", messageID, email, reaction).
		First(&existing).Error
	if err == nil {
		if err := r.db.WithContext(ctx).Delete(&existing).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	re := Reaction{MessageID: messageID, UserEmail: email, Reaction: reaction}
	if err := r.db.WithContext(ctx).Create(&re).Error; err != nil {
		return false, err
	}
	return true, nil
}
