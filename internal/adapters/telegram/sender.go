package telegram

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/metrics"
)

// Sender отправляет сообщения через Bot API.
type Sender struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Sender = (*Sender)(nil)

// NewSender создаёт отправитель.
func NewSender(bot *tgbotapi.BotAPI, log zerolog.Logger) *Sender {
	return &Sender{bot: bot, log: log}
}

// Send отправляет текст, при необходимости разбивая его на части.
// Возвращает id последнего доставленного сообщения.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) (int, error) {
	return s.send(chatID, text, nil)
}

// SendWithMarkup отправляет текст с клавиатурой на первой части.
func (s *Sender) SendWithMarkup(ctx context.Context, chatID int64, text string, markup any) (int, error) {
	return s.send(chatID, text, markup)
}

func (s *Sender) send(chatID int64, text string, markup any) (int, error) {
	var lastID int
	for i, part := range SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && markup != nil {
			msg.ReplyMarkup = markup
		}
		start := time.Now()
		sent, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			s.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
			return 0, err
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}
