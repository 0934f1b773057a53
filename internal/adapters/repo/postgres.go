package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
)

// Postgres реализует репозитории новостей, карточек и журнала на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.NewsRepo             = (*Postgres)(nil)
	_ domain.PostRepo             = (*Postgres)(nil)
	_ domain.InteractionSink      = (*Postgres)(nil)
	_ domain.InteractionStatsRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// ListCategories возвращает категории с количеством новостей.
func (p *Postgres) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT news_type, COUNT(*)
FROM news
GROUP BY news_type
ORDER BY COUNT(*) DESC, news_type
`)
	metrics.ObserveNetworkRequest("postgres", "news_categories", "news", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// ListNews возвращает новости категории, новые первыми. Пустая категория означает все новости.
func (p *Postgres) ListNews(ctx context.Context, category string, offset, limit int) ([]domain.NewsItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, telegram_url, news_type, title, created_at
FROM news
WHERE ($1 = '' OR news_type = $1)
ORDER BY id DESC
OFFSET $2 LIMIT $3
`, category, offset, limit)
	metrics.ObserveNetworkRequest("postgres", "news_list", "news", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

// CountNews считает новости категории.
func (p *Postgres) CountNews(ctx context.Context, category string) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM news WHERE ($1 = '' OR news_type = $1)`, category).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "news_count", "news", start, err)
	return count, err
}

// SearchNews ищет по заголовку и категории без учёта регистра.
func (p *Postgres) SearchNews(ctx context.Context, keyword string, limit int) ([]domain.NewsItem, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	pattern := likePattern(keyword)
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, telegram_url, news_type, title, created_at
FROM news
WHERE LOWER(title) LIKE $1 OR LOWER(news_type) LIKE $1
ORDER BY id DESC
LIMIT $2
`, pattern, limit)
	metrics.ObserveNetworkRequest("postgres", "news_search", "news", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNews(rows)
}

func scanNews(rows pgx.Rows) ([]domain.NewsItem, error) {
	var res []domain.NewsItem
	for rows.Next() {
		var n domain.NewsItem
		if err := rows.Scan(&n.ID, &n.Link, &n.Category, &n.Title, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// AddNews сохраняет новость. Повтор ссылки не создаёт дубль.
func (p *Postgres) AddNews(ctx context.Context, item domain.NewsItem) (int64, error) {
	if strings.TrimSpace(item.Category) == "" {
		return 0, errors.New("категория новости не указана")
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO news (telegram_url, news_type, title)
VALUES ($1, $2, $3)
ON CONFLICT (telegram_url) DO UPDATE SET news_type = EXCLUDED.news_type, title = EXCLUDED.title
RETURNING id
`, item.Link, item.Category, item.Title).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "news_insert", "news", start, err)
	return id, err
}

const postColumns = `id, qr_id, title, description, image_url, content_url, is_active, created_at`

func scanPost(row pgx.Row) (domain.Post, error) {
	var post domain.Post
	err := row.Scan(&post.ID, &post.QRID, &post.Title, &post.Description, &post.ImageURL, &post.ContentURL, &post.IsActive, &post.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.ErrNotFound
	}
	return post, err
}

// GetPostByQRID возвращает активную карточку по QR-коду.
func (p *Postgres) GetPostByQRID(ctx context.Context, qrID string) (domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPost(p.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE qr_id = $1 AND is_active`, qrID))
	metrics.ObserveNetworkRequest("postgres", "post_by_qr", "posts", start, ignoreNotFound(err))
	return post, err
}

// NextPost возвращает первую активную карточку с id больше afterID.
func (p *Postgres) NextPost(ctx context.Context, afterID int64) (domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPost(p.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id > $1 AND is_active ORDER BY id LIMIT 1`, afterID))
	metrics.ObserveNetworkRequest("postgres", "post_next", "posts", start, ignoreNotFound(err))
	return post, err
}

// SearchPosts ищет активные карточки по названию или описанию.
func (p *Postgres) SearchPosts(ctx context.Context, keyword string, limit int) ([]domain.Post, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+postColumns+`
FROM posts
WHERE is_active AND (LOWER(title) LIKE $1 OR LOWER(description) LIKE $1)
ORDER BY id
LIMIT $2
`, likePattern(keyword), limit)
	metrics.ObserveNetworkRequest("postgres", "post_search", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, post)
	}
	return res, rows.Err()
}

// AddPost сохраняет карточку или обновляет существующую с тем же QR-кодом.
func (p *Postgres) AddPost(ctx context.Context, post domain.Post) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO posts (qr_id, title, description, image_url, content_url, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (qr_id) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    image_url = EXCLUDED.image_url,
    content_url = EXCLUDED.content_url,
    is_active = EXCLUDED.is_active
RETURNING id
`, post.QRID, post.Title, post.Description, post.ImageURL, post.ContentURL, post.IsActive).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "post_upsert", "posts", start, err)
	return id, err
}

// AppendInteraction пишет действие пользователя. Повторная доставка того же события игнорируется.
func (p *Postgres) AppendInteraction(ctx context.Context, interaction domain.Interaction) error {
	eventID, err := uuid.Parse(interaction.ID)
	if err != nil {
		return fmt.Errorf("идентификатор события %q: %w: %v", interaction.ID, domain.ErrRejectedInteraction, err)
	}
	if interaction.OccurredAt.IsZero() {
		interaction.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO user_interactions (event_id, user_id, username, first_name, last_name, interaction_type, ref, post_id, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9)
ON CONFLICT (event_id) DO NOTHING
`, eventID.String(), interaction.UserID, interaction.Username, interaction.FirstName, interaction.LastName,
		string(interaction.Type), interaction.Ref, interaction.PostID, interaction.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "interaction_insert", "user_interactions", start, err)
	if err != nil {
		if isPermanent(err) {
			return fmt.Errorf("запись действия: %w: %v", domain.ErrRejectedInteraction, err)
		}
		return fmt.Errorf("запись действия: %w", err)
	}
	return nil
}

// isPermanent: ошибки данных (класс 22) и нарушения ограничений (класс 23) не исправятся повтором.
func isPermanent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

// InteractionStats считает действия по типам начиная с since.
func (p *Postgres) InteractionStats(ctx context.Context, since time.Time) ([]domain.InteractionStat, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT interaction_type, COUNT(*), COUNT(DISTINCT user_id)
FROM user_interactions
WHERE created_at >= $1
GROUP BY interaction_type
`, since)
	metrics.ObserveNetworkRequest("postgres", "interaction_stats", "user_interactions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.InteractionStat
	for rows.Next() {
		var (
			stat domain.InteractionStat
			kind string
		)
		if err := rows.Scan(&kind, &stat.Count, &stat.Users); err != nil {
			return nil, err
		}
		stat.Type = domain.InteractionType(kind)
		res = append(res, stat)
	}
	return res, rows.Err()
}

func likePattern(keyword string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(strings.TrimSpace(keyword)))
	return "%" + escaped + "%"
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
