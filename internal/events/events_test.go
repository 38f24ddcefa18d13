package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"matjar/backoffice/internal/domain"
)

func sampleResult() domain.ActionResult {
	return domain.ActionResult{
		ActionID:  "act-1",
		Entity:    domain.EntityOrder,
		EntityID:  42,
		Action:    string(domain.ActionConfirm),
		From:      "new",
		To:        "confirmed",
		AppliedAt: time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncode(t *testing.T) {
	msg, err := Encode(sampleResult())
	require.NoError(t, err)
	require.Equal(t, "order.confirm", msg.Type)
	require.Equal(t, "act-1", msg.MessageId)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, "application/json", msg.ContentType)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	require.Equal(t, "confirmed", decoded["to"])
	require.EqualValues(t, 42, decoded["entity_id"])
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.Publish(context.Background(), sampleResult()))
}

func TestAMQPPublisherIntegration(t *testing.T) {
	url := os.Getenv("BACKOFFICE_TEST_AMQP_URL")
	if url == "" {
		t.Skip("BACKOFFICE_TEST_AMQP_URL is not set")
	}
	pub, err := DialAMQP(url, "backoffice.actions.test")
	require.NoError(t, err)
	defer pub.Close()

	q, err := pub.channel.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, pub.channel.QueueBind(q.Name, "order.*", "backoffice.actions.test", false, nil))
	deliveries, err := pub.channel.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), sampleResult()))

	select {
	case d := <-deliveries:
		require.Equal(t, "order.confirm", d.RoutingKey)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery received")
	}
}
