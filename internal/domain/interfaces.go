package domain

import (
	"context"
	"time"
)

// NewsRepo отдаёт новости и категории.
type NewsRepo interface {
	ListCategories(ctx context.Context) ([]Category, error)
	// ListNews возвращает новости категории (пустая строка означает все категории), новые первыми.
	ListNews(ctx context.Context, category string, offset, limit int) ([]NewsItem, error)
	CountNews(ctx context.Context, category string) (int, error)
	SearchNews(ctx context.Context, keyword string, limit int) ([]NewsItem, error)
	AddNews(ctx context.Context, item NewsItem) (int64, error)
}

// PostRepo отдаёт карточки вершин.
type PostRepo interface {
	GetPostByQRID(ctx context.Context, qrID string) (Post, error)
	NextPost(ctx context.Context, afterID int64) (Post, error)
	SearchPosts(ctx context.Context, keyword string, limit int) ([]Post, error)
	AddPost(ctx context.Context, post Post) (int64, error)
}

// StateStore хранит состояние диалогов. Конкурентные изменения одного диалога
// должны упорядочиваться вызывающей стороной.
type StateStore interface {
	Get(ctx context.Context, conversationID int64) (ConversationState, error)
	Put(ctx context.Context, conversationID int64, state ConversationState) error
	Clear(ctx context.Context, conversationID int64) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}
