package bot

// BtnWrite — подпись кнопки обращения к автору.
const BtnWrite = "✍️ Написать автору"

// Тексты ответов бота.
const (
	msgStart = "Привет! Это бот обратной связи с автором.\n" +
		"Нажмите кнопку ниже или отправьте /write, чтобы написать сообщение."
	msgAskMessage     = "Напишите ваше сообщение одним текстом (до %d символов)."
	msgRateLimited    = "Вы недавно уже писали автору. Попробуйте снова через %d мин."
	msgEmptyMessage   = "Сообщение пустое. Отправьте текст."
	msgTooLong        = "Сообщение слишком длинное: %d символов при лимите %d. Сократите и отправьте ещё раз."
	msgSentOK         = "Сообщение отправлено автору. Спасибо!"
	msgSentFail       = "Не удалось отправить сообщение. Попробуйте позже."
	msgUnknown        = "Не понимаю. Нажмите кнопку «Написать автору» или отправьте /start."
	msgBlocked        = "Вы заблокированы и не можете писать автору."
	msgTryLater       = "Сервис временно недоступен. Попробуйте позже."
	msgTargetNotFound = "Адресат не найден: связка с этим сообщением отсутствует или истекла."
	msgBanOK          = "Пользователь заблокирован."
	msgUnbanOK        = "Пользователь разблокирован."
	msgBanNotFound    = "Пользователь не найден в базе."
	msgBanFail        = "Не удалось обновить блокировку. Попробуйте позже."
	msgReplyOK        = "Ответ отправлен."
	msgReplyFail      = "Не удалось отправить ответ пользователю."
	msgChatInfo       = "Chat ID: %d\nТип: %s\nНазвание: %s"
)

// replyPrefix предваряет ответ автора, чтобы пользователь понимал, от кого сообщение.
const replyPrefix = "✉️ Ответ автора:\n\n"
