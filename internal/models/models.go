package models

import "time"

type Subscription struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserToken string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_token"`
	Email     *string   `gorm:"type:varchar(255);index" json:"email"`
	Plan      string    `gorm:"type:varchar(16);not null" json:"plan"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	IsBlocked bool      `gorm:"not null;default:false" json:"is_blocked"`
	CreatedAt time.Time `json:"created_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Active reports whether the subscription grants chat access at t.
func (s *Subscription) Active(t time.Time) bool {
	return !s.IsBlocked && s.ExpiresAt.After(t)
}

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
)

type PaymentOrder struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement" json:"-"`
	InvoiceID string      `gorm:"type:varchar(26);uniqueIndex;not null" json:"invoice_id"`
	Plan      string      `gorm:"type:varchar(16);not null" json:"plan"`
	Amount    int         `gorm:"not null" json:"amount"`
	Status    OrderStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	// set once the webhook mints the subscription for this order
	UserToken *string   `gorm:"type:varchar(64);index" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (PaymentOrder) TableName() string { return "payment_orders" }
