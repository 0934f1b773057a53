// Package migrations содержит SQL-схему и тестовые данные.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// Schema возвращает миграции схемы в порядке применения.
func Schema() ([]string, error) {
	names, err := fs.Glob(files, "[0-9]*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("чтение %s: %w", name, err)
		}
		out = append(out, string(body))
	}
	return out, nil
}

// Seed возвращает SQL с тестовыми карточками и новостями.
func Seed() (string, error) {
	body, err := files.ReadFile("seed.sql")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Apply применяет схему и, если нужно, тестовые данные. Все запросы идемпотентны.
func Apply(ctx context.Context, pool *pgxpool.Pool, withSeed bool) error {
	stmts, err := Schema()
	if err != nil {
		return err
	}
	if withSeed {
		seed, err := Seed()
		if err != nil {
			return err
		}
		stmts = append(stmts, seed)
	}
	for i, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}
