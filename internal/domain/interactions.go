package domain

import (
	"context"
	"time"
)

// InteractionType: тип действия пользователя для журнала.
type InteractionType string

const (
	InteractionQRScan         InteractionType = "qr_scan"
	InteractionQRScanNotFound InteractionType = "qr_scan_not_found"
	InteractionPostView       InteractionType = "post_view"
	InteractionSearch         InteractionType = "search"
	InteractionNewsSearch     InteractionType = "news_search"
	InteractionNewsCategory   InteractionType = "news_category"
	InteractionNewsPage       InteractionType = "news_page"
)

// Interaction: запись журнала действий. Доставка at-least-once, ID делает вставку идемпотентной.
type Interaction struct {
	ID         string          `json:"id"`
	UserID     int64           `json:"user_id"`
	Username   string          `json:"username,omitempty"`
	FirstName  string          `json:"first_name,omitempty"`
	LastName   string          `json:"last_name,omitempty"`
	Type       InteractionType `json:"type"`
	Ref        string          `json:"ref,omitempty"`
	PostID     *int64          `json:"post_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// InteractionStat агрегирует действия одного типа.
type InteractionStat struct {
	Type  InteractionType
	Count int
	Users int
}

// InteractionSink принимает записи журнала действий.
type InteractionSink interface {
	AppendInteraction(ctx context.Context, interaction Interaction) error
}

// InteractionStatsRepo считает статистику действий.
type InteractionStatsRepo interface {
	InteractionStats(ctx context.Context, since time.Time) ([]InteractionStat, error)
}

// InteractionAckFunc подтверждает обработку записи или возвращает её в очередь.
type InteractionAckFunc func(success bool) error

// InteractionQueue: очередь записей журнала между ботом и воркером.
type InteractionQueue interface {
	InteractionSink
	Receive(ctx context.Context) (Interaction, InteractionAckFunc, error)
}
