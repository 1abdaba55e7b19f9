package domain

import "strings"

// Identity содержит публичные поля профиля отправителя.
type Identity struct {
	TGUserID  int64
	Username  string
	FirstName string
	LastName  string
}

// NormalizeIdentity приводит сырые поля профиля к каноничному виду:
// пробелы по краям убираются, ведущая @ у ника отбрасывается,
// пустые строки считаются отсутствующими значениями.
func NormalizeIdentity(raw Identity) Identity {
	return Identity{
		TGUserID:  raw.TGUserID,
		Username:  strings.TrimPrefix(strings.TrimSpace(raw.Username), "@"),
		FirstName: strings.TrimSpace(raw.FirstName),
		LastName:  strings.TrimSpace(raw.LastName),
	}
}
