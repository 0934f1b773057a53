package queue

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"peaks-bot/internal/domain"
)

// Запуск: GO_TEST_INTEGRATION=1 go test ./internal/infra/queue -run Rabbit -v -count=1

func startRabbit(t *testing.T, queueName string) (*RabbitInteractionQueue, string) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "rabbitmq:3-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(120 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)
	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	var q *RabbitInteractionQueue
	require.Eventually(t, func() bool {
		q, err = NewRabbitInteractionQueue(url, queueName)
		return err == nil
	}, 60*time.Second, time.Second)
	t.Cleanup(func() { _ = q.Close() })
	return q, url
}

func readyMessages(t *testing.T, url, queueName string) int {
	t.Helper()
	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	info, err := ch.QueueDeclarePassive(queueName, true, false, false, false, nil)
	require.NoError(t, err)
	return info.Messages
}

func TestRabbitInteractionQueueAckNack(t *testing.T) {
	q, url := startRabbit(t, "test_interactions")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	event := domain.Interaction{ID: uuid.NewString(), UserID: 42, Type: domain.InteractionPostView, Ref: "p0001", OccurredAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, q.AppendInteraction(ctx, event))

	got, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, event.ID, got.ID)
	require.Equal(t, event.Ref, got.Ref)

	require.NoError(t, ack(false))
	again, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, event.ID, again.ID)
	require.NoError(t, ack(true))

	require.Eventually(t, func() bool { return readyMessages(t, url, "test_interactions") == 0 }, 5*time.Second, 100*time.Millisecond)
}

func TestRabbitInteractionQueueDropsUndecodable(t *testing.T) {
	q, url := startRabbit(t, "test_broken")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(ctx, "", "test_broken", false, false, amqp.Publishing{Body: []byte("{broken")}))

	event := domain.Interaction{ID: uuid.NewString(), UserID: 7, Type: domain.InteractionSearch}
	require.NoError(t, q.AppendInteraction(ctx, event))

	_, _, err = q.Receive(ctx)
	require.Error(t, err)

	got, ack, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, event.ID, got.ID)
	require.NoError(t, ack(true))
}

func TestRabbitInteractionQueueCancel(t *testing.T) {
	q, _ := startRabbit(t, "test_empty")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, _, err := q.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
