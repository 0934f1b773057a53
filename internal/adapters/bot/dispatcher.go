package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"peaks-bot/internal/infra/metrics"
)

// UpdateHandler обрабатывает один апдейт.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Dispatcher обрабатывает апдейты одного чата строго по очереди, разные чаты параллельно.
// На каждый чат с непустой очередью живёт одна горутина.
type Dispatcher struct {
	ctx     context.Context
	cancel  context.CancelFunc
	handler UpdateHandler
	log     zerolog.Logger

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
	wg     sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. Отмена ctx не прерывает обработку уже принятых апдейтов:
// они дорабатываются в Shutdown, Telegram уже получил на них ответ.
func NewDispatcher(ctx context.Context, handler UpdateHandler, log zerolog.Logger) *Dispatcher {
	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Dispatcher{
		ctx:     procCtx,
		cancel:  cancel,
		handler: handler,
		log:     log.With().Str("component", "dispatcher").Logger(),
		queues:  make(map[int64][]tgbotapi.Update),
	}
}

// Submit ставит апдейт в очередь его чата и сразу возвращает управление.
func (d *Dispatcher) Submit(upd tgbotapi.Update) {
	id := ChatID(upd)
	metrics.UpdatesTotal.WithLabelValues(updateKind(upd)).Inc()

	d.mu.Lock()
	pending, running := d.queues[id]
	d.queues[id] = append(pending, upd)
	d.mu.Unlock()

	if !running {
		d.wg.Add(1)
		go d.drain(id)
	}
}

// Wait дожидается обработки всех поставленных апдейтов.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown дорабатывает очереди. Если ctx истёк раньше, контекст обработки отменяется,
// и оставшиеся апдейты завершаются с ошибкой отмены.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) drain(id int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.queues[id]
		if len(queue) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		upd := queue[0]
		queue[0] = tgbotapi.Update{}
		d.queues[id] = queue[1:]
		d.mu.Unlock()

		d.handle(upd)
	}
}

func (d *Dispatcher) handle(upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Int("update_id", upd.UpdateID).Msg("паника при обработке апдейта")
		}
	}()
	d.handler.HandleUpdate(d.ctx, upd)
}

// ChatID возвращает идентификатор диалога, к которому относится апдейт.
func ChatID(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	}
	return 0
}

func updateKind(upd tgbotapi.Update) string {
	switch {
	case upd.Message != nil && upd.Message.IsCommand():
		return "command"
	case upd.Message != nil:
		return "message"
	case upd.CallbackQuery != nil:
		return "callback"
	}
	return "other"
}
