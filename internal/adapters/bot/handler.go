package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-feedback-bot/internal/domain"
	"tg-feedback-bot/internal/infra/metrics"
	"tg-feedback-bot/internal/usecase/delivery"
)

// Handler интерпретирует входящие апдейты: команды, тексты обращений
// и ответы staff на пересланные копии.
type Handler struct {
	sender      domain.Sender
	log         zerolog.Logger
	users       domain.UserRepo
	feedback    domain.FeedbackRepo
	limiter     domain.RateLimiter
	routes      domain.RouteStore
	states      domain.ConversationStates
	deliveryUC  *delivery.Service
	roster      domain.Roster
	groupChatID int64
	maxLength   int
}

// NewHandler создаёт обработчик.
func NewHandler(
	sender domain.Sender,
	log zerolog.Logger,
	users domain.UserRepo,
	feedback domain.FeedbackRepo,
	limiter domain.RateLimiter,
	routes domain.RouteStore,
	states domain.ConversationStates,
	deliveryUC *delivery.Service,
	roster domain.Roster,
	groupChatID int64,
	maxLength int,
) *Handler {
	return &Handler{
		sender:      sender,
		log:         log,
		users:       users,
		feedback:    feedback,
		limiter:     limiter,
		routes:      routes,
		states:      states,
		deliveryUC:  deliveryUC,
		roster:      roster,
		groupChatID: groupChatID,
		maxLength:   maxLength,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	from := msg.From
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	isPrivate := msg.Chat.IsPrivate()

	if msg.ReplyToMessage != nil && h.roster.IsStaff(from.ID) && (isPrivate || chatID == h.groupChatID) {
		if h.handleStaffReply(ctx, msg, text, isPrivate) {
			return
		}
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(ctx, msg)
	case strings.HasPrefix(text, "/getid"):
		h.handleGetID(ctx, msg)
	case text == BtnWrite || strings.HasPrefix(text, "/write"):
		h.handleWriteRequest(ctx, chatID, from.ID)
	default:
		if h.states.Get(from.ID) == domain.StateAwaitingMessage {
			h.handleFeedbackText(ctx, msg)
			return
		}
		// В группах посторонние сообщения не комментируем, чтобы не шуметь.
		if isPrivate {
			h.reply(ctx, chatID, msgUnknown, mainKeyboard())
		}
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	h.log.Info().Int64("user", from.ID).Str("username", from.UserName).Msg("/start")

	if _, err := h.users.Upsert(identityOf(from)); err != nil {
		h.log.Error().Err(err).Int64("user", from.ID).Msg("не удалось сохранить профиль")
	}
	h.states.Reset(from.ID)
	h.reply(ctx, msg.Chat.ID, msgStart, mainKeyboard())
}

// handleGetID показывает идентификатор текущего чата. Только для администратора.
func (h *Handler) handleGetID(ctx context.Context, msg *tgbotapi.Message) {
	if !h.roster.IsAdmin(msg.From.ID) {
		return
	}
	chat := msg.Chat
	title := chat.Title
	if title == "" {
		title = chat.UserName
	}
	if title == "" {
		title = chat.FirstName
	}
	if title == "" {
		title = "—"
	}
	h.reply(ctx, chat.ID, fmt.Sprintf(msgChatInfo, chat.ID, chat.Type, title), nil)
	h.log.Info().Int64("chat", chat.ID).Str("type", chat.Type).Msg("/getid")
}

// handleWriteRequest начинает сценарий обращения: проверяет блокировку и лимит,
// затем переводит пользователя в ожидание текста.
func (h *Handler) handleWriteRequest(ctx context.Context, chatID, tgUserID int64) {
	if !h.roster.IsStaff(tgUserID) {
		blocked, err := h.users.IsBlocked(tgUserID)
		if err != nil {
			h.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось проверить блокировку")
			h.reply(ctx, chatID, msgTryLater, mainKeyboard())
			return
		}
		if blocked {
			h.reply(ctx, chatID, msgBlocked, nil)
			return
		}

		admitted, err := h.limiter.TryAdmit(ctx, tgUserID)
		if err != nil {
			// Недоступное хранилище лимитов не превращаем в молчаливый допуск.
			h.log.Error().Err(err).Int64("user", tgUserID).Msg("лимитер недоступен")
			h.reply(ctx, chatID, msgTryLater, mainKeyboard())
			return
		}
		if !admitted {
			metrics.RateLimitHitsTotal.Inc()
			cooldown, err := h.limiter.RemainingCooldown(ctx, tgUserID)
			if err != nil {
				h.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось получить остаток охлаждения")
			}
			minutes := int64(cooldown.Minutes())
			h.reply(ctx, chatID, fmt.Sprintf(msgRateLimited, minutes), mainKeyboard())
			return
		}
	}

	h.states.Set(tgUserID, domain.StateAwaitingMessage)
	h.reply(ctx, chatID, fmt.Sprintf(msgAskMessage, h.maxLength), nil)
}

// handleFeedbackText валидирует и доставляет текст обращения.
// Состояние ожидания сбрасывается до любых проверок, чтобы не залипать.
func (h *Handler) handleFeedbackText(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	h.states.Reset(from.ID)

	staff := h.roster.IsStaff(from.ID)
	if !staff {
		blocked, err := h.users.IsBlocked(from.ID)
		if err != nil {
			// Недоступный реестр не превращаем в молчаливый допуск.
			h.log.Error().Err(err).Int64("user", from.ID).Msg("не удалось проверить блокировку")
			h.reply(ctx, chatID, msgTryLater, mainKeyboard())
			return
		}
		if blocked {
			h.reply(ctx, chatID, msgBlocked, nil)
			return
		}
		// Команды через слот обращения не пропускаем.
		if strings.HasPrefix(text, "/") {
			h.reply(ctx, chatID, msgUnknown, mainKeyboard())
			return
		}
	}

	if text == "" {
		h.reply(ctx, chatID, msgEmptyMessage, mainKeyboard())
		return
	}
	if length := utf8.RuneCountInString(text); length > h.maxLength {
		h.reply(ctx, chatID, fmt.Sprintf(msgTooLong, length, h.maxLength), mainKeyboard())
		return
	}

	identity := identityOf(from)
	if _, err := h.users.Upsert(identity); err != nil {
		h.log.Error().Err(err).Int64("user", from.ID).Msg("не удалось сохранить профиль")
	}

	metrics.FeedbackReceivedTotal.Inc()
	var feedbackID int64
	if id, err := h.feedback.Create(from.ID, text); err != nil {
		h.log.Error().Err(err).Int64("user", from.ID).Msg("не удалось записать обращение")
	} else {
		feedbackID = id
	}

	result := h.deliveryUC.Deliver(ctx, identity, text, feedbackID)

	// Журнал — только аудит: его ошибки не влияют на вердикт для пользователя.
	if feedbackID != 0 {
		if result.Success {
			if err := h.feedback.MarkDelivered(feedbackID); err != nil {
				h.log.Error().Err(err).Int64("feedback", feedbackID).Msg("не удалось отметить доставку")
			}
		} else {
			summary := result.ErrorSummary()
			if summary == "" {
				summary = "telegram api error"
			}
			if err := h.feedback.MarkFailed(feedbackID, summary); err != nil {
				h.log.Error().Err(err).Int64("feedback", feedbackID).Msg("не удалось отметить провал доставки")
			}
		}
	}

	if result.Success {
		metrics.FeedbackDeliveredTotal.Inc()
		h.reply(ctx, chatID, msgSentOK, mainKeyboard())
	} else {
		metrics.FeedbackFailedTotal.Inc()
		h.reply(ctx, chatID, msgSentFail, mainKeyboard())
	}
}

// handleStaffReply обрабатывает ответ staff на пересланную копию обращения.
// В общем чате принимаются только фиксированные команды, голый текст — лишь
// в личной переписке с ботом. Возвращает true, если событие обработано.
func (h *Handler) handleStaffReply(ctx context.Context, msg *tgbotapi.Message, text string, isPrivate bool) bool {
	cmd, payload := splitCommand(text)
	switch cmd {
	case "/ban", "/unban", "/reply":
	default:
		if !isPrivate {
			return false
		}
		cmd, payload = "", text
	}

	chatID := msg.Chat.ID
	route, err := h.routes.Resolve(ctx, chatID, msg.ReplyToMessage.MessageID)
	if err != nil {
		if errors.Is(err, domain.ErrRouteNotFound) {
			h.reply(ctx, chatID, msgTargetNotFound, nil)
			return true
		}
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось разрешить маршрут ответа")
		h.reply(ctx, chatID, msgTryLater, nil)
		return true
	}

	switch cmd {
	case "/ban":
		h.setBan(ctx, chatID, route.UserTGID, true)
	case "/unban":
		h.setBan(ctx, chatID, route.UserTGID, false)
	default:
		if payload == "" {
			// Пустой ответ молча игнорируем.
			return true
		}
		h.sendAuthorReply(ctx, chatID, route.UserTGID, payload)
	}
	return true
}

func (h *Handler) setBan(ctx context.Context, staffChatID, tgUserID int64, banned bool) {
	err := h.users.SetBlocked(tgUserID, banned)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		h.reply(ctx, staffChatID, msgBanNotFound, nil)
	case err != nil:
		h.log.Error().Err(err).Int64("user", tgUserID).Bool("banned", banned).Msg("не удалось обновить блокировку")
		h.reply(ctx, staffChatID, msgBanFail, nil)
	case banned:
		h.log.Info().Int64("user", tgUserID).Msg("пользователь заблокирован")
		h.reply(ctx, staffChatID, msgBanOK, nil)
	default:
		h.log.Info().Int64("user", tgUserID).Msg("пользователь разблокирован")
		h.reply(ctx, staffChatID, msgUnbanOK, nil)
	}
}

func (h *Handler) sendAuthorReply(ctx context.Context, staffChatID, tgUserID int64, text string) {
	if _, err := h.sender.Send(ctx, tgUserID, replyPrefix+text); err != nil {
		h.log.Error().Err(err).Int64("user", tgUserID).Msg("не удалось доставить ответ автора")
		h.reply(ctx, staffChatID, msgReplyFail, nil)
		return
	}
	metrics.StaffRepliesTotal.Inc()
	h.reply(ctx, staffChatID, msgReplyOK, nil)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, markup any) {
	if _, err := h.sender.SendWithMarkup(ctx, chatID, text, markup); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить ответ")
	}
}

// splitCommand выделяет ведущую команду и её аргумент.
// Упоминание бота после команды (/reply@bot) отбрасывается.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd := text
	payload := ""
	if idx := strings.IndexFunc(text, unicode.IsSpace); idx != -1 {
		cmd = text[:idx]
		payload = strings.TrimSpace(text[idx:])
	}
	if idx := strings.IndexByte(cmd, '@'); idx != -1 {
		cmd = cmd[:idx]
	}
	return cmd, payload
}

func identityOf(from *tgbotapi.User) domain.Identity {
	return domain.NormalizeIdentity(domain.Identity{
		TGUserID:  from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
}
