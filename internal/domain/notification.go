package domain

import "time"

// Channel is the delivery medium for a notification.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelPush    Channel = "push"
	ChannelSMS     Channel = "sms"
	ChannelInApp   Channel = "in_app"
	ChannelWebhook Channel = "webhook"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelSMS, ChannelInApp, ChannelWebhook:
		return true
	}
	return false
}

// AllChannels lists every supported channel in a stable order.
func AllChannels() []Channel {
	return []Channel{ChannelEmail, ChannelPush, ChannelSMS, ChannelInApp, ChannelWebhook}
}

// NotificationType classifies what event produced a notification.
type NotificationType string

const (
	TypeSticker   NotificationType = "sticker"
	TypeInstagram NotificationType = "instagram"
	TypePoints    NotificationType = "points"
	TypeLevelUp   NotificationType = "level_up"
	TypeSystem    NotificationType = "system"
	TypeWelcome   NotificationType = "welcome"
	TypeReminder  NotificationType = "reminder"
	TypePromotion NotificationType = "promotion"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeSticker, TypeInstagram, TypePoints, TypeLevelUp,
		TypeSystem, TypeWelcome, TypeReminder, TypePromotion:
		return true
	}
	return false
}

// Priority of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status tracks the lifecycle of a notification.
//
// Transitions are forward-only:
//
//	pending → sent | failed | cancelled
//	sent    → delivered | read
//	delivered → read
//	failed  → sent | cancelled
//
// read and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether moving from s to next is a legal forward
// transition. Store implementations use this as the guard condition on every
// status update, which is what makes a second dispatch of an already-sent
// notification a no-op.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusSent || next == StatusFailed || next == StatusCancelled
	case StatusSent:
		return next == StatusDelivered || next == StatusRead
	case StatusDelivered:
		return next == StatusRead
	case StatusFailed:
		return next == StatusSent || next == StatusCancelled
	case StatusRead, StatusCancelled:
		return false
	}
	return false
}

// Notification is the core domain entity. The dispatch core never owns the
// record: it reads and mutates status/timestamps through the store contract,
// always scoped by TenantID.
type Notification struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	RecipientID  string           `json:"recipient_id"`
	Type         NotificationType `json:"type"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Priority     Priority         `json:"priority"`
	Channels     []Channel        `json:"channels"`
	Status       Status           `json:"status"`
	ErrorMessage *string          `json:"error_message,omitempty"`
	DeliveredAt  *time.Time       `json:"delivered_at,omitempty"`
	ReadAt       *time.Time       `json:"read_at,omitempty"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Expired reports whether the notification's retention window has passed.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}
