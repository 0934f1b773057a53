package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"peaks-bot/internal/adapters/bot"
	"peaks-bot/internal/adapters/repo"
	"peaks-bot/internal/adapters/state"
	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/cache"
	"peaks-bot/internal/infra/config"
	"peaks-bot/internal/infra/db"
	apphttp "peaks-bot/internal/infra/http"
	applog "peaks-bot/internal/infra/log"
	"peaks-bot/internal/infra/metrics"
	"peaks-bot/internal/infra/queue"
	"peaks-bot/internal/usecase/category"
	"peaks-bot/internal/usecase/interactions"
	"peaks-bot/internal/usecase/news"
	"peaks-bot/internal/usecase/posts"
)

const webhookPath = "/bot/webhook"

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("не указан токен Telegram (TG_BOT_TOKEN)")
	}

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var redisClient *redis.Client
	if cfg.State.Backend == "redis" || cfg.Interactions.Sink == "redis" {
		redisClient, err = cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к Redis")
		}
		defer redisClient.Close()
	}

	var states domain.StateStore = state.NewMemory()
	if cfg.State.Backend == "redis" {
		states = state.NewCached(cache.NewRedis(redisClient), cfg.State.TTL)
	}

	var sink domain.InteractionSink = repoAdapter
	switch cfg.Interactions.Sink {
	case "redis":
		sink = queue.NewRedisInteractionQueue(redisClient, cfg.Queues.Interactions)
	case "rabbitmq":
		rabbit, err := queue.NewRabbitInteractionQueue(cfg.RabbitURL, cfg.Queues.Interactions)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		sink = rabbit
	}
	recorder := interactions.NewRecorder(sink, cfg.Interactions.Buffer, logger)

	codec, err := category.NewCodec(cfg.News.TokenLength, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("некорректная длина токена категории")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	botUsername := cfg.Telegram.BotUsername
	if botAPI.Self.UserName != "" {
		botUsername = botAPI.Self.UserName
	}

	h := bot.NewHandler(botAPI, logger, bot.Options{
		News:     news.NewService(repoAdapter),
		Posts:    posts.NewService(repoAdapter),
		Stats:    interactions.NewStats(repoAdapter),
		Codec:    codec,
		States:   states,
		Recorder: recorder,
		Links: bot.Links{
			Chat:    cfg.Links.Chat,
			Channel: cfg.Links.Channel,
			Site:    cfg.Links.Site,
			Contest: cfg.Links.Contest,
		},
		PageSize:    cfg.News.PageSize,
		BotUsername: botUsername,
		AdminIDs:    cfg.Telegram.AdminIDs,
	})
	dispatcher := bot.NewDispatcher(ctx, h, logger)

	logger.Info().Str("mode", cfg.Telegram.Mode).Str("bot", botUsername).Msg("бот-гейтвей запущен")
	if cfg.Telegram.Mode == "webhook" {
		runWebhook(ctx, cfg, botAPI, dispatcher, logger)
	} else {
		runPolling(ctx, botAPI, dispatcher, logger)
	}

	logger.Info().Msg("остановка бота")
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelDrain()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("не все апдейты обработаны до остановки")
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := recorder.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("не все действия записаны в журнал")
	}
}

func runPolling(ctx context.Context, botAPI *tgbotapi.BotAPI, dispatcher *bot.Dispatcher, logger zerolog.Logger) {
	if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Warn().Err(err).Msg("не удалось снять вебхук")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botAPI.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			dispatcher.Submit(upd)
		}
	}
}

func runWebhook(ctx context.Context, cfg config.AppConfig, botAPI *tgbotapi.BotAPI, dispatcher *bot.Dispatcher, logger zerolog.Logger) {
	if cfg.Telegram.WebhookURL == "" {
		logger.Fatal().Msg("не указан адрес вебхука (TG_WEBHOOK_URL)")
	}
	params := tgbotapi.Params{"url": cfg.Telegram.WebhookURL + webhookPath}
	params.AddNonEmpty("secret_token", cfg.Telegram.Secret)
	if _, err := botAPI.MakeRequest("setWebhook", params); err != nil {
		logger.Fatal().Err(err).Msg("не удалось установить вебхук")
	}

	srv := apphttp.NewServer(logger.With().Str("component", "http").Logger())
	srv.Router.With(apphttp.WebhookSecretMiddleware(cfg.Telegram.Secret)).
		Post(webhookPath, apphttp.WebhookHandler(dispatcher.Submit, logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP сервер: ошибка остановки")
	}
}
