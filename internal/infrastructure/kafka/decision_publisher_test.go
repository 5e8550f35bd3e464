package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain/entity"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestDecisionPublisher_MensajeConKeyYHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &DecisionPublisher{writer: w}
	decided := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.PublishDecision(context.Background(), routing.DecisionEvent{
		OrderID:    "ord-1",
		TenantID:   "t1",
		LocationID: "loc-a",
		Reason:     entity.ReasonCloserToCustomer,
		TotalScore: 81.5,
		DecidedAt:  decided,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ord-1", string(msg.Key))
	assert.Equal(t, decided, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte(EventType)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "tenant_id", Value: []byte("t1")})

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "loc-a", body["location_id"])
	assert.Equal(t, "closer_to_customer", body["reason"])
}

func TestDecisionPublisher_PropagaErrorDelWriter(t *testing.T) {
	p := &DecisionPublisher{writer: &fakeWriter{err: errors.New("broker caído")}}

	err := p.PublishDecision(context.Background(), routing.DecisionEvent{OrderID: "ord-1"})
	assert.ErrorContains(t, err, "broker caído")
}

func TestDecisionPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &DecisionPublisher{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
