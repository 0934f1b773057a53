package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
)

// RabbitInteractionQueue реализует очередь записей журнала поверх AMQP.
type RabbitInteractionQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.InteractionQueue = (*RabbitInteractionQueue)(nil)

// NewRabbitInteractionQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitInteractionQueue(amqpURL, queue string) (*RabbitInteractionQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitInteractionQueue{conn: conn, queue: queue, publishCh: ch}, nil
}

// AppendInteraction публикует запись как persistent-сообщение.
func (q *RabbitInteractionQueue) AppendInteraction(ctx context.Context, interaction domain.Interaction) error {
	payload, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("marshal interaction: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    interaction.ID,
		Timestamp:    interaction.OccurredAt,
		Body:         payload,
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	err = q.publishCh.PublishWithContext(ctx, "", q.queue, false, false, msg)
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish interaction: %w", err)
	}
	return nil
}

// Receive читает следующую запись. Ack подтверждает доставку, Nack возвращает запись в очередь.
func (q *RabbitInteractionQueue) Receive(ctx context.Context) (domain.Interaction, domain.InteractionAckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.Interaction{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.Interaction{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.Interaction{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var interaction domain.Interaction
			if err := json.Unmarshal(d.Body, &interaction); err != nil {
				_ = d.Nack(false, false)
				return domain.Interaction{}, nil, fmt.Errorf("decode interaction: %w", err)
			}
			if interaction.ID == "" {
				interaction.ID = d.MessageId
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return interaction, ack, nil
		}
	}
}

func (q *RabbitInteractionQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "interaction-worker", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consumeCh = ch
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает каналы и соединение.
func (q *RabbitInteractionQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumeCh != nil {
		_ = q.consumeCh.Close()
	}
	if q.publishCh != nil {
		_ = q.publishCh.Close()
	}
	return q.conn.Close()
}
