package state

import (
	"sync"

	"tg-feedback-bot/internal/domain"
)

// Memory хранит состояния диалогов в памяти процесса.
// Потеря состояний при рестарте допустима: пользователь просто начинает заново.
type Memory struct {
	mu     sync.Mutex
	states map[int64]domain.ConversationState
}

var _ domain.ConversationStates = (*Memory)(nil)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{states: make(map[int64]domain.ConversationState)}
}

// Get возвращает состояние пользователя, по умолчанию idle.
func (m *Memory) Get(tgUserID int64) domain.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[tgUserID]; ok {
		return s
	}
	return domain.StateIdle
}

// Set задаёт состояние пользователя.
func (m *Memory) Set(tgUserID int64, s domain.ConversationState) {
	m.mu.Lock()
	m.states[tgUserID] = s
	m.mu.Unlock()
}

// Reset сбрасывает состояние. Повторный сброс безопасен.
func (m *Memory) Reset(tgUserID int64) {
	m.mu.Lock()
	delete(m.states, tgUserID)
	m.mu.Unlock()
}
