package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"peaks-bot/internal/domain"
)

// Cached хранит состояние диалогов в TTL-кэше (Redis) в виде JSON.
type Cached struct {
	cache domain.Cache
	ttl   time.Duration
}

var _ domain.StateStore = (*Cached)(nil)

// NewCached создаёт хранилище поверх кэша.
func NewCached(cache domain.Cache, ttl time.Duration) *Cached {
	return &Cached{cache: cache, ttl: ttl}
}

func key(conversationID int64) string {
	return "conv:" + strconv.FormatInt(conversationID, 10)
}

// Get возвращает состояние диалога. Отсутствующий ключ даёт пустое состояние.
func (c *Cached) Get(ctx context.Context, conversationID int64) (domain.ConversationState, error) {
	raw, err := c.cache.Get(ctx, key(conversationID))
	if errors.Is(err, domain.ErrCacheMiss) {
		return domain.NewConversationState(), nil
	}
	if err != nil {
		return domain.ConversationState{}, fmt.Errorf("чтение состояния: %w", err)
	}
	st := domain.NewConversationState()
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.ConversationState{}, fmt.Errorf("разбор состояния: %w", err)
	}
	if st.Categories == nil {
		st.Categories = make(map[string]string)
	}
	return st, nil
}

// Put сохраняет состояние и продлевает TTL.
func (c *Cached) Put(ctx context.Context, conversationID int64, st domain.ConversationState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("сериализация состояния: %w", err)
	}
	if err := c.cache.Set(ctx, key(conversationID), raw, c.ttl); err != nil {
		return fmt.Errorf("запись состояния: %w", err)
	}
	return nil
}

// Clear удаляет состояние.
func (c *Cached) Clear(ctx context.Context, conversationID int64) error {
	if err := c.cache.Del(ctx, key(conversationID)); err != nil {
		return fmt.Errorf("удаление состояния: %w", err)
	}
	return nil
}
