package domain

import (
	"context"
	"errors"
	"time"
)

// ErrRouteNotFound возвращается, когда связка с пересланной копией не найдена или истекла.
var ErrRouteNotFound = errors.New("маршрут ответа не найден")

// ErrUserNotFound возвращается, когда операция требует уже известного пользователя.
var ErrUserNotFound = errors.New("пользователь не найден")

// UserRepo управляет пользователями и флагом блокировки.
type UserRepo interface {
	Upsert(identity Identity) (User, error)
	// SetBlocked выставляет флаг блокировки. Неизвестный пользователь не создаётся:
	// возвращается ErrUserNotFound.
	SetBlocked(tgUserID int64, blocked bool) error
	IsBlocked(tgUserID int64) (bool, error)
}

// FeedbackRepo ведёт журнал обращений к автору.
type FeedbackRepo interface {
	Create(userTGID int64, text string) (int64, error)
	MarkDelivered(id int64) error
	MarkFailed(id int64, errText string) error
}

// RateLimiter выдаёт не более одного допуска на пользователя за окно охлаждения.
type RateLimiter interface {
	// TryAdmit атомарно пытается занять билет. Ошибка хранилища возвращается
	// как есть: решение об отказе принимает вызывающий.
	TryAdmit(ctx context.Context, tgUserID int64) (bool, error)
	RemainingCooldown(ctx context.Context, tgUserID int64) (time.Duration, error)
}

// RouteStore хранит соответствие пересланной копии исходному пользователю.
type RouteStore interface {
	Remember(ctx context.Context, chatID int64, messageID int, route Route) error
	// Resolve возвращает ErrRouteNotFound для отсутствующей или истёкшей записи.
	Resolve(ctx context.Context, chatID int64, messageID int) (Route, error)
}

// ConversationStates хранит эфемерное состояние диалога каждого пользователя.
type ConversationStates interface {
	Get(tgUserID int64) ConversationState
	Set(tgUserID int64, state ConversationState)
	Reset(tgUserID int64)
}

// Sender отправляет текст в чат и возвращает id доставленного сообщения.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) (int, error)
	SendWithMarkup(ctx context.Context, chatID int64, text string, markup any) (int, error)
}
