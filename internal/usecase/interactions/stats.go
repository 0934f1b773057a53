package interactions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"peaks-bot/internal/domain"
)

// Stats считает статистику журнала за последние дни.
type Stats struct {
	repo domain.InteractionStatsRepo
	now  func() time.Time
}

// NewStats создаёт сервис статистики.
func NewStats(repo domain.InteractionStatsRepo) *Stats {
	return &Stats{repo: repo, now: time.Now}
}

// Since возвращает счётчики за days суток, самые частые действия первыми.
func (s *Stats) Since(ctx context.Context, days int) ([]domain.InteractionStat, error) {
	if days <= 0 {
		days = 7
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	stats, err := s.repo.InteractionStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("статистика действий: %w", err)
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Type < stats[j].Type
	})
	return stats, nil
}
