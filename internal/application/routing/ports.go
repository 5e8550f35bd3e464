// Package routing orquesta el ruteo de órdenes de fulfillment: snapshot de capacidades,
// filtro de candidatos, motor de scoring y registro atómico de la decisión.
package routing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/pkg/keylock"
)

// OrderLocker lock de ruteo por orden. Acquire no espera: si otro proceso está ruteando
// la misma orden devuelve domain.ErrRoutingBusy.
type OrderLocker interface {
	Acquire(ctx context.Context, orderID string, ttl time.Duration) (release func(), err error)
}

// DecisionEvent evento publicado tras confirmar una decisión (auditoría, reporting).
type DecisionEvent struct {
	OrderID          string                 `json:"order_id"`
	TenantID         string                 `json:"tenant_id"`
	OrderNumber      string                 `json:"order_number"`
	LocationID       string                 `json:"location_id"`
	LocationName     string                 `json:"location_name"`
	Reason           entity.SelectionReason `json:"reason"`
	TotalScore       float64                `json:"total_score"`
	Candidates       int                    `json:"candidates"`
	AlgorithmVersion string                 `json:"algorithm_version"`
	Rerouted         bool                   `json:"rerouted"`
	DecidedAt        time.Time              `json:"decided_at"`
}

// DecisionPublisher publica decisiones confirmadas. Un fallo nunca revierte la decisión.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event DecisionEvent) error
}

// LocalOrderLocker lock en proceso; se usa cuando no hay Redis configurado.
type LocalOrderLocker struct {
	locks *keylock.Table
}

// NewLocalOrderLocker crea el locker en memoria.
func NewLocalOrderLocker() *LocalOrderLocker {
	return &LocalOrderLocker{locks: keylock.New()}
}

// Acquire implementa OrderLocker. El ttl no aplica: el lock vive hasta release.
func (l *LocalOrderLocker) Acquire(_ context.Context, orderID string, _ time.Duration) (func(), error) {
	release, ok := l.locks.TryLock(orderID)
	if !ok {
		return nil, domain.ErrRoutingBusy
	}
	return release, nil
}

// LogPublisher solo registra la decisión en el log estructurado.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher construye el publicador de log.
func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

// PublishDecision implementa DecisionPublisher.
func (p *LogPublisher) PublishDecision(_ context.Context, e DecisionEvent) error {
	p.log.Info().
		Str("order_id", e.OrderID).
		Str("tenant_id", e.TenantID).
		Str("location_id", e.LocationID).
		Str("reason", string(e.Reason)).
		Float64("total_score", e.TotalScore).
		Bool("rerouted", e.Rerouted).
		Msg("decisión de routing")
	return nil
}
