package news

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"peaks-bot/internal/domain"
)

// SearchLimit: максимум новостей, которые возвращает поиск.
const SearchLimit = 15

var (
	ErrInvalidPage = errors.New("некорректные параметры страницы")
	ErrFetchFailed = errors.New("не удалось получить новости")
	ErrInvalidNews = errors.New("некорректная новость")
)

// Service отдаёт страницы новостей, список категорий и результаты поиска.
type Service struct {
	repo domain.NewsRepo
}

// NewService создаёт сервис новостей.
func NewService(repo domain.NewsRepo) *Service {
	return &Service{repo: repo}
}

// FetchPage возвращает страницу новостей категории, новые первыми.
// Пустая категория означает все категории. Смещение за пределами выборки даёт пустую страницу.
func (s *Service) FetchPage(ctx context.Context, category string, offset, pageSize int) (domain.Page, error) {
	if offset < 0 || pageSize <= 0 {
		return domain.Page{}, fmt.Errorf("%w: offset=%d size=%d", ErrInvalidPage, offset, pageSize)
	}
	total, err := s.repo.CountNews(ctx, category)
	if err != nil {
		return domain.Page{}, fmt.Errorf("%w: подсчёт: %v", ErrFetchFailed, err)
	}
	page := domain.Page{Total: total, Offset: offset, PageSize: pageSize}
	if offset >= total {
		return page, nil
	}
	items, err := s.repo.ListNews(ctx, category, offset, pageSize)
	if err != nil {
		return domain.Page{}, fmt.Errorf("%w: выборка: %v", ErrFetchFailed, err)
	}
	// между COUNT и SELECT могли добавиться строки
	want := total - offset
	if want > pageSize {
		want = pageSize
	}
	if len(items) > want {
		items = items[:want]
	}
	if len(items) < want {
		page.Total = offset + len(items)
	}
	page.Items = items
	return page, nil
}

// Categories возвращает категории по убыванию количества новостей.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: категории: %v", ErrFetchFailed, err)
	}
	return cats, nil
}

// Add сохраняет новость из канала. Ссылка должна быть http(s), категория обязательна.
func (s *Service) Add(ctx context.Context, link, category, title string) (int64, error) {
	link = strings.TrimSpace(link)
	category = strings.TrimSpace(category)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return 0, fmt.Errorf("%w: ссылка %q", ErrInvalidNews, link)
	}
	if category == "" {
		return 0, fmt.Errorf("%w: категория не указана", ErrInvalidNews)
	}
	id, err := s.repo.AddNews(ctx, domain.NewsItem{Link: link, Category: category, Title: strings.TrimSpace(title)})
	if err != nil {
		return 0, fmt.Errorf("сохранение новости: %w", err)
	}
	return id, nil
}

// Search ищет новости по заголовку или категории без учёта регистра.
func (s *Service) Search(ctx context.Context, keyword string) ([]domain.NewsItem, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	items, err := s.repo.SearchNews(ctx, keyword, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: поиск: %v", ErrFetchFailed, err)
	}
	return items, nil
}
