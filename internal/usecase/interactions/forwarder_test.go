package interactions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"peaks-bot/internal/domain"
)

type chanQueue struct {
	ch    chan domain.Interaction
	mu    sync.Mutex
	acked []bool
}

func (q *chanQueue) AppendInteraction(ctx context.Context, interaction domain.Interaction) error {
	q.ch <- interaction
	return nil
}

func (q *chanQueue) Receive(ctx context.Context) (domain.Interaction, domain.InteractionAckFunc, error) {
	select {
	case <-ctx.Done():
		return domain.Interaction{}, nil, ctx.Err()
	case it := <-q.ch:
		return it, func(success bool) error {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.acked = append(q.acked, success)
			if !success {
				go func() { q.ch <- it }()
			}
			return nil
		}, nil
	}
}

type flakySink struct {
	mu       sync.Mutex
	failures int
	broken   map[string]error
	calls    map[string]int
	written  []string
}

func (s *flakySink) AppendInteraction(ctx context.Context, interaction domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[interaction.ID]++
	if err, ok := s.broken[interaction.ID]; ok {
		return err
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("db unavailable")
	}
	s.written = append(s.written, interaction.ID)
	return nil
}

func TestForwarderRetriesFailedWrites(t *testing.T) {
	queue := &chanQueue{ch: make(chan domain.Interaction, 4)}
	sink := &flakySink{failures: 1}
	fw := NewForwarder(queue, sink, zerolog.Nop())
	fw.retry = time.Millisecond

	require.NoError(t, queue.AppendInteraction(context.Background(), domain.Interaction{ID: "a"}))
	require.NoError(t, queue.AppendInteraction(context.Background(), domain.Interaction{ID: "b"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	require.Eventually(t, func() bool { return len(queue.acks()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	require.Equal(t, []bool{false, true, true}, queue.acked)
	require.ElementsMatch(t, []string{"a", "b"}, sink.written)
}

func (q *chanQueue) acks() []bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]bool(nil), q.acked...)
}

func runForwarder(t *testing.T, fw *Forwarder, until func() bool) {
	t.Helper()
	fw.retry = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()
	require.Eventually(t, until, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestForwarderDropsRejectedRecord(t *testing.T) {
	queue := &chanQueue{ch: make(chan domain.Interaction, 4)}
	sink := &flakySink{broken: map[string]error{"bad": fmt.Errorf("fk post_id: %w", domain.ErrRejectedInteraction)}}
	fw := NewForwarder(queue, sink, zerolog.Nop())

	require.NoError(t, queue.AppendInteraction(context.Background(), domain.Interaction{ID: "bad"}))
	require.NoError(t, queue.AppendInteraction(context.Background(), domain.Interaction{ID: "good"}))

	runForwarder(t, fw, func() bool { return len(queue.acks()) == 2 })

	require.Equal(t, []bool{true, true}, queue.acks())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Equal(t, 1, sink.calls["bad"])
	require.Empty(t, fw.attempts)
}

func TestForwarderGivesUpAfterMaxDeliveries(t *testing.T) {
	queue := &chanQueue{ch: make(chan domain.Interaction, 4)}
	sink := &flakySink{broken: map[string]error{"stuck": errors.New("deadlock detected")}}
	fw := NewForwarder(queue, sink, zerolog.Nop())

	require.NoError(t, queue.AppendInteraction(context.Background(), domain.Interaction{ID: "stuck"}))

	runForwarder(t, fw, func() bool { return len(queue.acks()) == MaxDeliveries })

	want := make([]bool, MaxDeliveries)
	want[MaxDeliveries-1] = true
	require.Equal(t, want, queue.acks())
	require.Empty(t, fw.attempts)
}
