package delivery

import (
	"fmt"
	"strings"

	"tg-feedback-bot/internal/domain"
)

const forwardHeader = "✉️ Новое сообщение автору"

// FormatForStaff детерминированно собирает копию обращения для адресатов:
// заголовок, строка с данными отправителя (id всегда, ник и имя — только
// непустые), пустая строка и исходный текст без изменений.
func FormatForStaff(identity domain.Identity, text string) string {
	var info strings.Builder
	fmt.Fprintf(&info, "От: id %d", identity.TGUserID)
	if identity.Username != "" {
		fmt.Fprintf(&info, ", @%s", identity.Username)
	}
	if identity.FirstName != "" {
		fmt.Fprintf(&info, " (%s)", identity.FirstName)
	}
	return forwardHeader + "\n\n" + info.String() + "\n\n" + text
}
