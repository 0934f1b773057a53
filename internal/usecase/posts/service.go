package posts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"peaks-bot/internal/domain"
)

// SearchLimit: максимум карточек в результатах поиска.
const SearchLimit = 10

// ErrInvalidPost возвращается для карточки без названия или с неподходящим QR-идентификатором.
var ErrInvalidPost = errors.New("некорректная карточка")

var qrIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,50}$`)

// Service отдаёт карточки вершин.
type Service struct {
	repo domain.PostRepo
}

// NewService создаёт сервис карточек.
func NewService(repo domain.PostRepo) *Service {
	return &Service{repo: repo}
}

// ByQRID возвращает активную карточку по идентификатору QR-кода.
func (s *Service) ByQRID(ctx context.Context, qrID string) (domain.Post, error) {
	qrID = strings.TrimSpace(qrID)
	if qrID == "" {
		return domain.Post{}, domain.ErrNotFound
	}
	post, err := s.repo.GetPostByQRID(ctx, qrID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("карточка %s: %w", qrID, err)
	}
	return post, nil
}

// Next возвращает следующую активную карточку. После последней снова идёт первая.
func (s *Service) Next(ctx context.Context, currentID int64) (domain.Post, error) {
	post, err := s.repo.NextPost(ctx, currentID)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Post{}, fmt.Errorf("следующая карточка: %w", err)
	}
	if currentID == 0 {
		return domain.Post{}, err
	}
	post, err = s.repo.NextPost(ctx, 0)
	if err != nil {
		return domain.Post{}, fmt.Errorf("первая карточка: %w", err)
	}
	return post, nil
}

// Search ищет активные карточки по названию или описанию.
func (s *Service) Search(ctx context.Context, keyword string) ([]domain.Post, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	found, err := s.repo.SearchPosts(ctx, keyword, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("поиск карточек: %w", err)
	}
	return found, nil
}

// Add создаёт карточку или обновляет существующую с тем же QR-идентификатором.
func (s *Service) Add(ctx context.Context, post domain.Post) (int64, error) {
	post.QRID = strings.TrimSpace(post.QRID)
	post.Title = strings.TrimSpace(post.Title)
	if !qrIDRegex.MatchString(post.QRID) {
		return 0, fmt.Errorf("%w: qr_id %q", ErrInvalidPost, post.QRID)
	}
	if post.Title == "" {
		return 0, fmt.Errorf("%w: нет названия", ErrInvalidPost)
	}
	id, err := s.repo.AddPost(ctx, post)
	if err != nil {
		return 0, fmt.Errorf("сохранение карточки %s: %w", post.QRID, err)
	}
	return id, nil
}
