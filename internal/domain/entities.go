package domain

import (
	"fmt"
	"time"
)

// NewsItem описывает новость, опубликованную в канале сообщества.
type NewsItem struct {
	ID        int64
	Link      string
	Category  string
	Title     string
	CreatedAt time.Time
}

// DisplayTitle возвращает заголовок или заглушку с номером новости.
func (n NewsItem) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return fmt.Sprintf("Новость #%d", n.ID)
}

// Category: категория новостей с количеством записей. В БД не хранится.
type Category struct {
	Name  string
	Count int
}

// Post описывает карточку вершины, на которую ведёт QR-код.
type Post struct {
	ID          int64
	QRID        string
	Title       string
	Description string
	ImageURL    string
	ContentURL  string
	IsActive    bool
	CreatedAt   time.Time
}

// Page: одна страница новостей категории.
type Page struct {
	Items    []NewsItem
	Total    int
	Offset   int
	PageSize int
}

// HasPrevious сообщает, есть ли предыдущая страница.
func (p Page) HasPrevious() bool {
	return p.Offset > 0
}

// HasNext сообщает, есть ли следующая страница.
func (p Page) HasNext() bool {
	return p.Offset+len(p.Items) < p.Total
}

// Remaining возвращает количество новостей после текущей страницы.
func (p Page) Remaining() int {
	rest := p.Total - (p.Offset + len(p.Items))
	if rest < 0 {
		return 0
	}
	return rest
}

// TelegramProfile содержит данные пользователя Telegram, попадающие в журнал действий.
type TelegramProfile struct {
	TGUserID  int64
	Username  string
	FirstName string
	LastName  string
}
