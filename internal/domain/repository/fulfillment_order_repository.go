package repository

import (
	"context"
	"time"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// FulfillmentOrderRepository puerto de persistencia de órdenes de fulfillment.
// GetByID y GetForUpdate devuelven nil, nil si la orden no existe.
type FulfillmentOrderRepository interface {
	Create(ctx context.Context, order *entity.FulfillmentOrder) error
	GetByID(ctx context.Context, id string) (*entity.FulfillmentOrder, error)
	// GetForUpdate obtiene la orden y la bloquea hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.FulfillmentOrder, error)
	// Update persiste la orden si su Version coincide con la almacenada e incrementa Version.
	// Devuelve domain.ErrConflict si otra escritura ganó la carrera.
	Update(ctx context.Context, order *entity.FulfillmentOrder) error
	ListByStatus(ctx context.Context, tenantID string, status entity.FulfillmentStatus, limit, offset int) ([]*entity.FulfillmentOrder, error)
	ListCreatedSince(ctx context.Context, tenantID string, since time.Time) ([]*entity.FulfillmentOrder, error)
	// NextOrderNumber devuelve el siguiente correlativo del tenant para el año.
	NextOrderNumber(ctx context.Context, tenantID string, year int) (int, error)
}
