package interactions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"peaks-bot/internal/domain"
	"peaks-bot/internal/infra/metrics"
)

const writeTimeout = 5 * time.Second

// Recorder пишет журнал действий в фоне. Запись не блокирует обработку апдейтов:
// при переполнении буфера событие отбрасывается.
type Recorder struct {
	sink   domain.InteractionSink
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	events chan domain.Interaction
	done   chan struct{}
}

// NewRecorder создаёт рекордер и запускает воркер.
func NewRecorder(sink domain.InteractionSink, buffer int, logger zerolog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1
	}
	r := &Recorder{
		sink:   sink,
		logger: logger.With().Str("component", "interactions").Logger(),
		now:    time.Now,
		events: make(chan domain.Interaction, buffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record ставит событие в очередь на запись. Возвращает false, если событие отброшено.
func (r *Recorder) Record(profile domain.TelegramProfile, kind domain.InteractionType, ref string, postID *int64) bool {
	event := domain.Interaction{
		ID:         uuid.NewString(),
		UserID:     profile.TGUserID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Type:       kind,
		Ref:        ref,
		PostID:     postID,
		OccurredAt: r.now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.InteractionsRecorded.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case r.events <- event:
		return true
	default:
		metrics.InteractionsRecorded.WithLabelValues("dropped").Inc()
		r.logger.Warn().Str("type", string(kind)).Msg("буфер журнала переполнен, событие отброшено")
		return false
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := r.sink.AppendInteraction(ctx, event)
		cancel()
		if err != nil {
			metrics.InteractionsRecorded.WithLabelValues("error").Inc()
			r.logger.Error().Err(err).Str("type", string(event.Type)).Int64("user_id", event.UserID).Msg("не удалось записать действие")
			continue
		}
		metrics.InteractionsRecorded.WithLabelValues("ok").Inc()
	}
}

// Close прекращает приём событий и дожидается записи оставшихся.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
