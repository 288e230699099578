package chat

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("chat: unsupported StringList source")
	}
}

type Message struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	ImageURLs  StringList `gorm:"type:text" json:"image_urls,omitempty"`
	AuthorName *string    `gorm:"type:varchar(128)" json:"author_name"`
	UserToken  string     `gorm:"type:varchar(64);index;not null" json:"user_token"`
	ReplyTo    *uint64    `gorm:"index" json:"reply_to"`
	IsPinned   bool       `gorm:"not null;default:false" json:"is_pinned"`
	EditedAt   *time.Time `json:"edited_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

type Reaction struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID uint64    `gorm:"not null;index;index:uniq_reaction,unique,priority:1" json:"message_id"`
	UserToken string    `gorm:"type:varchar(64);not null;index:uniq_reaction,unique,priority:2" json:"-"`
	Emoji     string    `gorm:"type:varchar(16);not null;index:uniq_reaction,unique,priority:3" json:"emoji"`
	CreatedAt time.Time `json:"-"`
}

func (Reaction) TableName() string { return "message_reactions" }

// ReactionCount is the aggregated view the chat window carries per message.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// TypingUser is an ephemeral presence entry, refreshed by the typing
// endpoint and expired by Redis.
type TypingUser struct {
	UserToken  string  `json:"user_token"`
	AuthorName *string `json:"author_name"`
}

// MessageView is a message decorated for a particular viewer. Email is
// populated for admin viewers only.
type MessageView struct {
	Message
	Email         *string         `json:"email,omitempty"`
	Reactions     []ReactionCount `json:"reactions"`
	UserReactions []string        `json:"user_reactions"`
}

// Window is the full GET /chat payload.
type Window struct {
	Messages    []MessageView `json:"messages"`
	TypingUsers []TypingUser  `json:"typing_users"`
}
