package main

import (
	"context"
	"flag"
	"time"

	"peaks-bot/internal/infra/config"
	"peaks-bot/internal/infra/db"
	applog "peaks-bot/internal/infra/log"
	"peaks-bot/migrations"
)

func main() {
	withSeed := flag.Bool("seed", false, "загрузить тестовые карточки и новости")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: нет подключения к БД")
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool, *withSeed); err != nil {
		logger.Fatal().Err(err).Msg("migrate: не удалось применить миграции")
	}
	logger.Info().Bool("seed", *withSeed).Msg("миграции применены")
}
