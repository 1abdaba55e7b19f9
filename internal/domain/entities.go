package domain

import "time"

// User описывает пользователя Telegram в системе.
type User struct {
	ID         int64
	TGUserID   int64
	Username   string
	FirstName  string
	LastName   string
	IsBlocked  bool
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// DeliveryStatus описывает статус доставки обращения.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// FeedbackMessage представляет одно обращение пользователя к автору.
// Статус переходит из pending в delivered или failed ровно один раз.
type FeedbackMessage struct {
	ID          int64
	UserTGID    int64
	Text        string
	Status      DeliveryStatus
	Error       string
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// Route связывает пересланную копию обращения с исходным пользователем.
type Route struct {
	UserTGID   int64 `json:"user_tg_id"`
	FeedbackID int64 `json:"feedback_id,omitempty"`
}

// ConversationState описывает состояние диалога пользователя с ботом.
type ConversationState string

const (
	StateIdle            ConversationState = "idle"
	StateAwaitingMessage ConversationState = "awaiting_message"
)
