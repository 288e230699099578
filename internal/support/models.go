package support

import "time"

type Ticket struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientEmail   string     `gorm:"type:varchar(255);index;not null" json:"client_email"`
	Status        string     `gorm:"type:varchar(32);not null;default:open" json:"status"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Ticket) TableName() string { return "support_tickets" }

type Message struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID      uint64    `gorm:"index;not null" json:"ticket_id"`
	SenderType    string    `gorm:"type:varchar(16);not null" json:"sender_type"`
	SenderEmail   *string   `gorm:"type:varchar(255)" json:"sender_email"`
	MessageText   string    `gorm:"type:text;not null" json:"message"`
	AttachmentURL *string   `gorm:"type:text" json:"attachment_url"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Message) TableName() string { return "support_messages" }

type Reaction struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID uint64    `gorm:"not null;index;index:uniq_support_reaction,unique,priority:1" json:"message_id"`
	UserEmail string    `gorm:"type:varchar(255);not null;index:uniq_support_reaction,unique,priority:2" json:"user_email"`
	Reaction  string    `gorm:"type:varchar(16);not null;index:uniq_support_reaction,unique,priority:3" json:"reaction"`
	CreatedAt time.Time `json:"-"`
}

func (Reaction) TableName() string { return "support_reactions" }

// ReactionView is what a message carries to the client.
type ReactionView struct {
	Reaction  string `json:"reaction"`
	UserEmail string `json:"user_email"`
}

// MessageView is a message with its reactions attached.
type MessageView struct {
	Message
	Reactions []ReactionView `json:"reactions"`
}

// TicketSummary is the admin listing row: the ticket plus activity counters.
type TicketSummary struct {
	Ticket
	MessageCount    int64      `json:"message_count"`
	LastMessageTime *time.Time `json:"last_message_time"`
}

// Thread is the client view: one ticket and its messages, oldest first.
type Thread struct {
	Ticket   Ticket        `json:"ticket"`
	Messages []MessageView `json:"messages"`
}
