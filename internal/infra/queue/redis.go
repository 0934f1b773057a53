package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
)

// RedisInteractionQueue реализует очередь записей журнала на базе Redis lists.
type RedisInteractionQueue struct {
	client *redis.Client
	key    string
}

var _ domain.InteractionQueue = (*RedisInteractionQueue)(nil)

// NewRedisInteractionQueue создаёт очередь по указанному ключу.
func NewRedisInteractionQueue(client *redis.Client, key string) *RedisInteractionQueue {
	return &RedisInteractionQueue{client: client, key: key}
}

// AppendInteraction публикует запись в очередь.
func (q *RedisInteractionQueue) AppendInteraction(ctx context.Context, interaction domain.Interaction) error {
	payload, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push interaction: %w", err)
	}
	return nil
}

// Receive блокирующе читает запись из очереди. При неуспешной обработке запись возвращается в хвост.
func (q *RedisInteractionQueue) Receive(ctx context.Context) (domain.Interaction, domain.InteractionAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Interaction{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.Interaction{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.Interaction{}, nil, err
		}
		if len(res) != 2 {
			return domain.Interaction{}, nil, errors.New("redis queue: unexpected response")
		}
		raw := res[1]
		var interaction domain.Interaction
		if err := json.Unmarshal([]byte(raw), &interaction); err != nil {
			return domain.Interaction{}, nil, fmt.Errorf("decode interaction: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.RPush(context.Background(), q.key, raw).Err()
		}
		return interaction, ack, nil
	}
}
