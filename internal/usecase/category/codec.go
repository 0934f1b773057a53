package category

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
)

const (
	// AllToken обозначает «все категории». Не является hex-строкой, поэтому кодек его не выдаёт.
	AllToken = "all"

	// MaxPayloadBytes: лимит Telegram на callback_data.
	MaxPayloadBytes = 64

	minTokenLength = 8
	maxTokenLength = 32
	maxAttempts    = 8

	navPrefix = "news_nav:"
)

var ErrTokenLength = errors.New("недопустимая длина токена категории")

// Codec превращает названия категорий в короткие токены для кнопок.
type Codec struct {
	tokenLen int
	logger   zerolog.Logger
}

// NewCodec создаёт кодек. Длина токена ограничена так, чтобы самый длинный
// payload навигации укладывался в 64 байта.
func NewCodec(tokenLen int, logger zerolog.Logger) (*Codec, error) {
	if tokenLen < minTokenLength || tokenLen > maxTokenLength {
		return nil, fmt.Errorf("%w: %d", ErrTokenLength, tokenLen)
	}
	if MaxNavPayloadLen(tokenLen) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: payload %d байт", ErrTokenLength, MaxNavPayloadLen(tokenLen))
	}
	return &Codec{tokenLen: tokenLen, logger: logger.With().Str("component", "category_codec").Logger()}, nil
}

// MaxNavPayloadLen возвращает длину самого длинного payload навигации для токена заданной длины.
func MaxNavPayloadLen(tokenLen int) int {
	return len(navPrefix) + tokenLen + 1 + len(strconv.Itoa(maxOffset))
}

const maxOffset = 1<<31 - 1

// Encode детерминированно вычисляет токен по названию.
func (c *Codec) Encode(name string) string {
	return c.encodeSalted(name, 0)
}

func (c *Codec) encodeSalted(name string, attempt int) string {
	h := sha256.New()
	h.Write([]byte(name))
	if attempt > 0 {
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(attempt)))
	}
	return hex.EncodeToString(h.Sum(nil))[:c.tokenLen]
}

// Register связывает токен с названием в состоянии диалога.
// Повторная регистрация того же названия ничего не меняет.
func (c *Codec) Register(state *domain.ConversationState, token, name string) error {
	if state.Categories == nil {
		state.Categories = make(map[string]string)
	}
	if existing, ok := state.Categories[token]; ok {
		if existing == name {
			return nil
		}
		return fmt.Errorf("%w: %s", domain.ErrTokenCollision, token)
	}
	state.Categories[token] = name
	return nil
}

// Resolve возвращает название категории по токену. Для AllToken возвращает пустую строку.
func (c *Codec) Resolve(state domain.ConversationState, token string) (string, error) {
	if token == AllToken {
		return "", nil
	}
	name, ok := state.Categories[token]
	if !ok {
		return "", fmt.Errorf("токен %q: %w", token, domain.ErrNotFound)
	}
	return name, nil
}

// Assign выдаёт токен для категории. Уже выданный токен переиспользуется,
// при коллизии токен пересчитывается с солью.
func (c *Codec) Assign(state *domain.ConversationState, name string) (string, error) {
	for token, existing := range state.Categories {
		if existing == name {
			return token, nil
		}
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		token := c.encodeSalted(name, attempt)
		err := c.Register(state, token, name)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, domain.ErrTokenCollision) {
			return "", err
		}
		metrics.TokenCollisions.Inc()
		c.logger.Warn().Str("category", name).Str("token", token).Int("attempt", attempt).Msg("коллизия токена категории")
	}
	return "", fmt.Errorf("категория %q: %w", name, domain.ErrTokenCollision)
}
