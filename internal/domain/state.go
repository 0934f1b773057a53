package domain

// AwaitState: ожидаемый от пользователя ввод.
type AwaitState string

const (
	AwaitNone        AwaitState = ""
	AwaitNewsKeyword AwaitState = "news_keyword"
	AwaitPostKeyword AwaitState = "post_keyword"
)

// ConversationState хранит временные данные диалога: таблицу токенов категорий и ожидаемый ввод.
// Не переживает перезапуск процесса при хранении в памяти.
type ConversationState struct {
	Categories map[string]string `json:"categories,omitempty"`
	Awaiting   AwaitState        `json:"awaiting,omitempty"`
}

// NewConversationState создаёт пустое состояние.
func NewConversationState() ConversationState {
	return ConversationState{Categories: make(map[string]string)}
}

// Idle сообщает, что бот не ждёт ввода.
func (s ConversationState) Idle() bool {
	return s.Awaiting == AwaitNone
}
