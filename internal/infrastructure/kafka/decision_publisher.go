// Package kafka publica las decisiones de routing confirmadas para consumidores de auditoría.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jhoicas/oms-router/internal/application/routing"
)

var _ routing.DecisionPublisher = (*DecisionPublisher)(nil)

// EventType valor del header "event_type" de cada mensaje.
const EventType = "routing.decision"

// messageWriter subconjunto de *kafka.Writer usado por el publicador.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DecisionPublisher escribe un mensaje JSON por decisión, con la orden como key para
// conservar el orden de las decisiones de una misma orden dentro de la partición.
type DecisionPublisher struct {
	writer messageWriter
}

// NewDecisionPublisher crea el writer para el topic.
func NewDecisionPublisher(brokers []string, topic string) *DecisionPublisher {
	return &DecisionPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}}
}

// PublishDecision implementa routing.DecisionPublisher.
func (p *DecisionPublisher) PublishDecision(ctx context.Context, e routing.DecisionEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("serializar decisión: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderID),
		Value: payload,
		Time:  e.DecidedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventType)},
			{Key: "tenant_id", Value: []byte(e.TenantID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publicar decisión %s: %w", e.OrderID, err)
	}
	return nil
}

// Close vacía el buffer y cierra el writer.
func (p *DecisionPublisher) Close() error {
	return p.writer.Close()
}
