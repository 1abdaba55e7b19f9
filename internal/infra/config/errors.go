package config

import (
	"errors"
	"fmt"
)

var errGroupChatRequired = errors.New("GROUP_CHAT_ID обязателен для режимов group и both")

func errInvalidNotifyMode(mode string) error {
	return fmt.Errorf("неизвестный NOTIFY_MODE %q: допустимы admin, group, both", mode)
}
