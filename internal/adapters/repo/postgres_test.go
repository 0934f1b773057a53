package repo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"peaks-bot/internal/domain"
	"peaks-bot/migrations"
)

// Интеграционные тесты поднимают PostgreSQL через testcontainers-go и применяют миграции.
// Запуск: GO_TEST_INTEGRATION=1 go test ./internal/adapters/repo -v -count=1

func startPostgres(t *testing.T) *Postgres {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return false
		}
		if pool.Ping(ctx) != nil {
			pool.Close()
			return false
		}
		return true
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.Apply(ctx, pool, false))
	return NewPostgres(pool)
}

func TestPostgresNewsPaging(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		_, err := repo.AddNews(ctx, domain.NewsItem{Link: fmt.Sprintf("https://t.me/x/%d", i), Category: "X", Title: fmt.Sprintf("Новость %d", i)})
		require.NoError(t, err)
	}
	_, err := repo.AddNews(ctx, domain.NewsItem{Link: "https://t.me/y/1", Category: "Y", Title: "Другая"})
	require.NoError(t, err)

	total, err := repo.CountNews(ctx, "X")
	require.NoError(t, err)
	require.Equal(t, 7, total)

	all, err := repo.CountNews(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 8, all)

	first, err := repo.ListNews(ctx, "X", 0, 5)
	require.NoError(t, err)
	require.Len(t, first, 5)
	require.Equal(t, "Новость 7", first[0].Title)

	second, err := repo.ListNews(ctx, "X", 5, 5)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, "Новость 1", second[1].Title)

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.Category{{Name: "X", Count: 7}, {Name: "Y", Count: 1}}, cats)

	found, err := repo.SearchNews(ctx, "ДРУГ", 15)
	require.NoError(t, err)
	require.Len(t, found, 1)

	none, err := repo.SearchNews(ctx, "100%", 15)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPostgresPosts(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	_, err := repo.AddPost(ctx, domain.Post{QRID: "p0001", Title: "Эльбрус", Description: "Высочайшая вершина", IsActive: true})
	require.NoError(t, err)
	_, err = repo.AddPost(ctx, domain.Post{QRID: "p0002", Title: "Казбек", Description: "Вулкан", IsActive: false})
	require.NoError(t, err)
	lastID, err := repo.AddPost(ctx, domain.Post{QRID: "p0003", Title: "Белуха", Description: "Алтай", IsActive: true})
	require.NoError(t, err)

	post, err := repo.GetPostByQRID(ctx, "p0001")
	require.NoError(t, err)
	require.Equal(t, "Эльбрус", post.Title)

	_, err = repo.GetPostByQRID(ctx, "p0002")
	require.ErrorIs(t, err, domain.ErrNotFound)

	next, err := repo.NextPost(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, "p0003", next.QRID)

	_, err = repo.NextPost(ctx, lastID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	found, err := repo.SearchPosts(ctx, "вулкан", 10)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestPostgresInteractionsIdempotent(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	event := domain.Interaction{
		ID:         uuid.NewString(),
		UserID:     42,
		Username:   "climber",
		Type:       domain.InteractionSearch,
		Ref:        "эльбрус",
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, repo.AppendInteraction(ctx, event))
	require.NoError(t, repo.AppendInteraction(ctx, event))

	other := event
	other.ID = uuid.NewString()
	other.UserID = 43
	require.NoError(t, repo.AppendInteraction(ctx, other))

	stats, err := repo.InteractionStats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, []domain.InteractionStat{{Type: domain.InteractionSearch, Count: 2, Users: 2}}, stats)

	err = repo.AppendInteraction(ctx, domain.Interaction{ID: "bad", UserID: 1, Type: domain.InteractionSearch})
	require.ErrorIs(t, err, domain.ErrRejectedInteraction)
}

func TestPostgresInteractionMissingPostIsRejected(t *testing.T) {
	repo := startPostgres(t)
	missing := int64(9999)
	err := repo.AppendInteraction(context.Background(), domain.Interaction{
		ID:     uuid.NewString(),
		UserID: 42,
		Type:   domain.InteractionPostView,
		Ref:    "p9999",
		PostID: &missing,
	})
	require.ErrorIs(t, err, domain.ErrRejectedInteraction)
}

func TestLikePatternEscapes(t *testing.T) {
	cases := map[string]string{
		"Эльбрус":  "%эльбрус%",
		" 100% ":   `%100\%%`,
		"snake_ok": `%snake\_ok%`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Fatalf("likePattern(%q) = %q, ожидали %q", in, got, want)
		}
	}
}
