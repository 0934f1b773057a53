package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token       string  `envconfig:"TG_BOT_TOKEN"`
		Mode        string  `envconfig:"TG_MODE" default:"polling"`
		WebhookURL  string  `envconfig:"TG_WEBHOOK_URL"`
		Secret      string  `envconfig:"TG_WEBHOOK_SECRET"`
		BotUsername string  `envconfig:"BOT_USERNAME" default:"vershiny_rossii_bot"`
		AdminIDs    []int64 `envconfig:"ADMIN_IDS"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	State struct {
		Backend string        `envconfig:"STATE_BACKEND" default:"memory"`
		TTL     time.Duration `envconfig:"STATE_TTL" default:"24h"`
	} `envconfig:""`

	News struct {
		PageSize    int `envconfig:"NEWS_PAGE_SIZE" default:"5"`
		TokenLength int `envconfig:"CATEGORY_TOKEN_LENGTH" default:"12"`
	} `envconfig:""`

	Links struct {
		Chat    string `envconfig:"LINK_CHAT" default:"https://t.me/topofrussia"`
		Channel string `envconfig:"LINK_CHANNEL" default:"https://t.me/TopRussiaBrand"`
		Site    string `envconfig:"LINK_SITE" default:"https://xn--80adjmba6ajodma8f.xn--p1ai/"`
		Contest string `envconfig:"LINK_CONTEST" default:"https://t.me/TopRussiaBrand/618"`
	} `envconfig:""`

	Interactions struct {
		Sink   string `envconfig:"INTERACTIONS_SINK" default:"postgres"`
		Buffer int    `envconfig:"INTERACTIONS_BUFFER" default:"256"`
	} `envconfig:""`

	Queues struct {
		Interactions string `envconfig:"INTERACTIONS_QUEUE" default:"user_interactions"`
	} `envconfig:""`
}

// Parse читает конфиг из окружения.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.Telegram.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("TG_MODE: неизвестный режим %q", c.Telegram.Mode)
	}
	switch c.State.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("STATE_BACKEND: неизвестное хранилище %q", c.State.Backend)
	}
	switch c.Interactions.Sink {
	case "postgres", "redis", "rabbitmq":
	default:
		return fmt.Errorf("INTERACTIONS_SINK: неизвестный приёмник %q", c.Interactions.Sink)
	}
	if c.News.PageSize <= 0 {
		return fmt.Errorf("NEWS_PAGE_SIZE должен быть больше нуля")
	}
	return nil
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
