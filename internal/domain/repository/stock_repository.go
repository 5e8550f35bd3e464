package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain/entity"
)

// StockRepository puerto del saldo materializado por (variante, ubicación).
// Usado dentro de transacciones para garantizar consistencia con el ledger.
type StockRepository interface {
	// Get devuelve el saldo confirmado; una clave sin movimientos tiene saldo cero.
	Get(ctx context.Context, key entity.StockKey) (*entity.StockBalance, error)
	// GetForUpdate obtiene el saldo y bloquea la clave hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockBalance, error)
	// LockKeys bloquea varias claves en orden (variante, ubicación) hasta el fin de la
	// transacción. Bloquear una clave ya tomada por la misma transacción no hace nada.
	LockKeys(ctx context.Context, keys []entity.StockKey) error
	// AddDelta suma delta al saldo de forma atómica y devuelve el saldo resultante.
	// Falla con domain.ErrInsufficientStock si el saldo quedaría negativo.
	AddDelta(ctx context.Context, key entity.StockKey, delta decimal.Decimal, seq int64) (decimal.Decimal, error)
	// ListByVariants saldos de las variantes indicadas en todas las ubicaciones.
	ListByVariants(ctx context.Context, variantIDs []string) ([]*entity.StockBalance, error)
}
