package inventory

import (
	"context"

	"github.com/jhoicas/oms-router/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción, pasando repositorios atados a esa tx.
// Si fn devuelve error no se aplica ninguna escritura: movimientos, saldos y órdenes
// se confirman juntos o no se confirman.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		orderRepo repository.FulfillmentOrderRepository,
	) error) error
}
