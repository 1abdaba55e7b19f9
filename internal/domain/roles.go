package domain

// Role описывает уровень доступа отправителя.
type Role string

const (
	RolePublic Role = "public"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// Roster хранит привилегированные идентификаторы деплоя.
type Roster struct {
	adminID    int64
	moderators map[int64]struct{}
}

// NewRoster создаёт реестр ролей из идентификатора администратора и списка модераторов.
func NewRoster(adminID int64, moderatorIDs []int64) Roster {
	mods := make(map[int64]struct{}, len(moderatorIDs))
	for _, id := range moderatorIDs {
		mods[id] = struct{}{}
	}
	return Roster{adminID: adminID, moderators: mods}
}

// RoleOf возвращает роль пользователя по его tg id.
func (r Roster) RoleOf(tgUserID int64) Role {
	switch {
	case tgUserID == r.adminID:
		return RoleAdmin
	default:
		if _, ok := r.moderators[tgUserID]; ok {
			return RoleStaff
		}
		return RolePublic
	}
}

// IsAdmin проверяет, что пользователь — администратор.
func (r Roster) IsAdmin(tgUserID int64) bool {
	return r.RoleOf(tgUserID) == RoleAdmin
}

// IsStaff проверяет, что пользователь — администратор или модератор.
func (r Roster) IsStaff(tgUserID int64) bool {
	role := r.RoleOf(tgUserID)
	return role == RoleAdmin || role == RoleStaff
}
