package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/homeswift/internal/model"
)

func TestFromRequest(t *testing.T) {
	pid := int64(7)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	r := &model.ServiceRequest{RequestID: 300, Status: model.StatusAssigned, AssignedProviderID: &pid, UpdatedAt: at, Version: 3}

	ev := FromRequest(model.ActionProviderAssigned, "admin@x", r)
	assert.Equal(t, "booking.provider_assigned", ev.RoutingKey())
	assert.Equal(t, int64(300), ev.RequestID)
	assert.Equal(t, model.StatusAssigned, ev.Status)
	require.NotNil(t, ev.ProviderID)
	assert.Equal(t, int64(7), *ev.ProviderID)
	assert.Equal(t, int64(3), ev.Version)
	assert.Equal(t, at, ev.At)

	// the event must not alias the request
	*r.AssignedProviderID = 9
	assert.Equal(t, int64(7), *ev.ProviderID)
}

func TestEncode(t *testing.T) {
	ev := Event{Type: model.ActionProviderAccepted, RequestID: 100, Status: model.StatusConfirmed}
	msg, err := encode(ev)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "provider_accepted", msg.Type)

	var back Event
	require.NoError(t, json.Unmarshal(msg.Body, &back))
	assert.Equal(t, ev.RequestID, back.RequestID)
	assert.Nil(t, back.ProviderID)
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewAMQPPublisher(url, "homeswift_test_topic", logger)
	require.NoError(t, err)
	defer p.Close()

	conn, err := amqp091.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "booking.#", "homeswift_test_topic", false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), Event{Type: model.ActionRequestBroadcasted, RequestID: 42}))

	select {
	case d := <-deliveries:
		assert.Equal(t, "booking.request_broadcasted", d.RoutingKey)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
	}
}
