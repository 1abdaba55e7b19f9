package delivery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/config"
)

// Recipient описывает адресата доставки.
type Recipient struct {
	ChatID int64
	Label  string
}

// Outcome хранит результат отправки одному адресату.
type Outcome struct {
	OK  bool
	Err string
}

// Result описывает итог доставки по всем адресатам.
type Result struct {
	// Хотя бы один адресат получил копию.
	Success bool
	Details map[int64]Outcome
}

// ErrorSummary собирает описание ошибок для журнала обращений.
func (r Result) ErrorSummary() string {
	chatIDs := make([]int64, 0, len(r.Details))
	for chatID := range r.Details {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })

	var errs []string
	for _, chatID := range chatIDs {
		if outcome := r.Details[chatID]; !outcome.OK {
			errs = append(errs, fmt.Sprintf("chat %d: %s", chatID, outcome.Err))
		}
	}
	return strings.Join(errs, "; ")
}

// RecipientsForMode разворачивает режим доставки в список адресатов.
func RecipientsForMode(mode string, adminID, groupChatID int64) []Recipient {
	var recipients []Recipient
	if mode == config.NotifyAdmin || mode == config.NotifyBoth {
		recipients = append(recipients, Recipient{ChatID: adminID, Label: "admin"})
	}
	if (mode == config.NotifyGroup || mode == config.NotifyBoth) && groupChatID != 0 {
		recipients = append(recipients, Recipient{ChatID: groupChatID, Label: "group"})
	}
	return recipients
}

// Service доставляет обращения адресатам и регистрирует маршруты ответов.
type Service struct {
	sender     domain.Sender
	routes     domain.RouteStore
	recipients []Recipient
	log        zerolog.Logger
}

// NewService создаёт движок доставки.
func NewService(sender domain.Sender, routes domain.RouteStore, recipients []Recipient, log zerolog.Logger) *Service {
	return &Service{sender: sender, routes: routes, recipients: recipients, log: log}
}

// Deliver отправляет копию обращения каждому адресату независимо: отказ
// одного не мешает попыткам к остальным. Каждая успешная копия сразу
// регистрируется как маршрут ответа, ошибка регистрации доставку не отменяет.
func (s *Service) Deliver(ctx context.Context, identity domain.Identity, text string, feedbackID int64) Result {
	formatted := FormatForStaff(identity, text)
	result := Result{Details: make(map[int64]Outcome, len(s.recipients))}

	for _, recipient := range s.recipients {
		messageID, err := s.sender.Send(ctx, recipient.ChatID, formatted)
		if err != nil {
			s.log.Error().Err(err).Str("recipient", recipient.Label).Int64("chat", recipient.ChatID).
				Int64("user", identity.TGUserID).Msg("не удалось доставить обращение")
			result.Details[recipient.ChatID] = Outcome{Err: err.Error()}
			continue
		}
		result.Details[recipient.ChatID] = Outcome{OK: true}
		s.log.Info().Str("recipient", recipient.Label).Int64("chat", recipient.ChatID).
			Int64("user", identity.TGUserID).Msg("обращение доставлено")

		route := domain.Route{UserTGID: identity.TGUserID, FeedbackID: feedbackID}
		if err := s.routes.Remember(ctx, recipient.ChatID, messageID, route); err != nil {
			s.log.Error().Err(err).Int64("chat", recipient.ChatID).Msg("не удалось сохранить маршрут ответа")
		}
	}

	for _, outcome := range result.Details {
		if outcome.OK {
			result.Success = true
			break
		}
	}
	return result
}
