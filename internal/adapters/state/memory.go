package state

import (
	"context"
	"sync"

	"peaks-bot/internal/domain"
)

// Memory хранит состояние диалогов в памяти процесса. Мьютекс защищает только карту,
// последовательность изменений одного диалога обеспечивает диспетчер.
type Memory struct {
	mu     sync.Mutex
	states map[int64]domain.ConversationState
}

var _ domain.StateStore = (*Memory)(nil)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{states: make(map[int64]domain.ConversationState)}
}

// Get возвращает копию состояния диалога или пустое состояние.
func (m *Memory) Get(ctx context.Context, conversationID int64) (domain.ConversationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[conversationID]
	if !ok {
		return domain.NewConversationState(), nil
	}
	return clone(st), nil
}

// Put сохраняет состояние.
func (m *Memory) Put(ctx context.Context, conversationID int64, st domain.ConversationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[conversationID] = clone(st)
	return nil
}

// Clear удаляет состояние диалога.
func (m *Memory) Clear(ctx context.Context, conversationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, conversationID)
	return nil
}

func clone(st domain.ConversationState) domain.ConversationState {
	out := domain.ConversationState{Awaiting: st.Awaiting, Categories: make(map[string]string, len(st.Categories))}
	for k, v := range st.Categories {
		out.Categories[k] = v
	}
	return out
}
