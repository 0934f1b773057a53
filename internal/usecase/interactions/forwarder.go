package interactions

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
)

// MaxDeliveries ограничивает число попыток сохранить одну запись.
const MaxDeliveries = 5

// Forwarder переносит записи журнала из очереди в хранилище.
type Forwarder struct {
	queue domain.InteractionQueue
	sink  domain.InteractionSink
	log   zerolog.Logger
	retry time.Duration

	// попытки по event_id; запись удаляется после успеха или отказа
	attempts map[string]int
}

// NewForwarder создаёт воркер переноса.
func NewForwarder(queue domain.InteractionQueue, sink domain.InteractionSink, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		queue:    queue,
		sink:     sink,
		log:      log.With().Str("component", "interaction_worker").Logger(),
		retry:    time.Second,
		attempts: make(map[string]int),
	}
}

// Run читает очередь до отмены контекста. Запись подтверждается только после вставки в хранилище,
// поэтому доставка at-least-once, а повтор гасится уникальным event_id.
// Отвергнутые хранилищем записи и записи, исчерпавшие MaxDeliveries, подтверждаются и отбрасываются.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		interaction, ack, err := f.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			f.log.Error().Err(err).Msg("не удалось получить запись из очереди")
			if !f.pause(ctx) {
				return nil
			}
			continue
		}

		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = f.sink.AppendInteraction(writeCtx, interaction)
		cancel()
		if err == nil {
			delete(f.attempts, interaction.ID)
			metrics.InteractionsRecorded.WithLabelValues("ok").Inc()
			f.settle(ack, true, interaction.ID)
			continue
		}

		f.attempts[interaction.ID]++
		attempt := f.attempts[interaction.ID]
		if errors.Is(err, domain.ErrRejectedInteraction) || attempt >= MaxDeliveries {
			delete(f.attempts, interaction.ID)
			metrics.InteractionsRecorded.WithLabelValues("rejected").Inc()
			f.log.Error().Err(err).Str("event_id", interaction.ID).Int("attempt", attempt).Msg("запись журнала отброшена")
			f.settle(ack, true, interaction.ID)
			continue
		}

		metrics.InteractionsRecorded.WithLabelValues("error").Inc()
		f.log.Error().Err(err).Str("event_id", interaction.ID).Int("attempt", attempt).Msg("не удалось сохранить действие, возвращаем в очередь")
		f.settle(ack, false, interaction.ID)
		if !f.pause(ctx) {
			return nil
		}
	}
}

func (f *Forwarder) settle(ack domain.InteractionAckFunc, success bool, eventID string) {
	if err := ack(success); err != nil {
		f.log.Error().Err(err).Str("event_id", eventID).Bool("success", success).Msg("не удалось подтвердить запись")
	}
}

func (f *Forwarder) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(f.retry):
		return true
	}
}
