package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"peaks-bot/internal/adapters/repo"
	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/cache"
	"peaks-bot/internal/infra/config"
	"peaks-bot/internal/infra/db"
	applog "peaks-bot/internal/infra/log"
	"peaks-bot/internal/infra/metrics"
	"peaks-bot/internal/infra/queue"
	"peaks-bot/internal/usecase/interactions"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("interaction-worker: нет подключения к БД")
	}
	defer pool.Close()

	var source domain.InteractionQueue
	switch cfg.Interactions.Sink {
	case "redis":
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("interaction-worker: нет подключения к Redis")
		}
		defer client.Close()
		source = queue.NewRedisInteractionQueue(client, cfg.Queues.Interactions)
	case "rabbitmq":
		rabbit, err := queue.NewRabbitInteractionQueue(cfg.RabbitURL, cfg.Queues.Interactions)
		if err != nil {
			logger.Fatal().Err(err).Msg("interaction-worker: не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		source = rabbit
	default:
		logger.Fatal().Str("sink", cfg.Interactions.Sink).Msg("interaction-worker: журнал пишется напрямую в БД, очередь не настроена")
	}

	logger.Info().Str("queue", cfg.Queues.Interactions).Str("sink", cfg.Interactions.Sink).Msg("interaction-worker запущен")
	if err := interactions.NewForwarder(source, repo.NewPostgres(pool), logger).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("interaction-worker: остановлен с ошибкой")
	}
	logger.Info().Msg("interaction-worker остановлен")
}
