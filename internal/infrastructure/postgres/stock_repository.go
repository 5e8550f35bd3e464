package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo saldos materializados sobre PostgreSQL (usable con pool o tx).
// La tabla tiene CHECK (quantity >= 0): un saldo negativo nunca llega a confirmarse.
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el saldo de la clave; sin fila el saldo es cero.
func (r *StockRepo) Get(ctx context.Context, key entity.StockKey) (*entity.StockBalance, error) {
	query := `
		SELECT variant_id, location_id, quantity, last_seq, updated_at
		FROM stock_balances WHERE variant_id = $1 AND location_id = $2`
	return r.get(ctx, "get stock", query, key)
}

// GetForUpdate crea la fila si falta y la bloquea (SELECT FOR UPDATE) hasta el fin de la tx.
func (r *StockRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockBalance, error) {
	insert := `
		INSERT INTO stock_balances (variant_id, location_id, quantity, last_seq, updated_at)
		VALUES ($1, $2, 0, 0, now())
		ON CONFLICT (variant_id, location_id) DO NOTHING`
	if _, err := r.q.Exec(ctx, insert, key.VariantID, key.LocationID); err != nil {
		return nil, mapError("ensure stock row", err)
	}
	query := `
		SELECT variant_id, location_id, quantity, last_seq, updated_at
		FROM stock_balances WHERE variant_id = $1 AND location_id = $2
		FOR UPDATE`
	return r.get(ctx, "get stock for update", query, key)
}

// LockKeys toma FOR UPDATE sobre cada clave en orden (variante, ubicación).
func (r *StockRepo) LockKeys(ctx context.Context, keys []entity.StockKey) error {
	sorted := append([]entity.StockKey(nil), keys...)
	entity.SortKeys(sorted)
	for i, k := range sorted {
		if i > 0 && sorted[i-1] == k {
			continue
		}
		if _, err := r.GetForUpdate(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// AddDelta suma el delta en un solo statement y devuelve el saldo resultante.
func (r *StockRepo) AddDelta(ctx context.Context, key entity.StockKey, delta decimal.Decimal, seq int64) (decimal.Decimal, error) {
	query := `
		INSERT INTO stock_balances (variant_id, location_id, quantity, last_seq, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (variant_id, location_id)
		DO UPDATE SET quantity = stock_balances.quantity + EXCLUDED.quantity,
		              last_seq = GREATEST(stock_balances.last_seq, EXCLUDED.last_seq),
		              updated_at = now()
		RETURNING quantity`
	var next decimal.Decimal
	if err := r.q.QueryRow(ctx, query, key.VariantID, key.LocationID, delta, seq).Scan(&next); err != nil {
		return decimal.Zero, mapError(fmt.Sprintf("add delta %s", key), err)
	}
	return next, nil
}

// ListByVariants saldos de las variantes en todas las ubicaciones, ordenados por clave.
func (r *StockRepo) ListByVariants(ctx context.Context, variantIDs []string) ([]*entity.StockBalance, error) {
	query := `
		SELECT variant_id, location_id, quantity, last_seq, updated_at
		FROM stock_balances WHERE variant_id = ANY($1)
		ORDER BY variant_id, location_id`
	rows, err := r.q.Query(ctx, query, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	list := []*entity.StockBalance{}
	for rows.Next() {
		var b entity.StockBalance
		if err := rows.Scan(&b.VariantID, &b.LocationID, &b.Quantity, &b.LastSeq, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}

func (r *StockRepo) get(ctx context.Context, op, query string, key entity.StockKey) (*entity.StockBalance, error) {
	var b entity.StockBalance
	err := r.q.QueryRow(ctx, query, key.VariantID, key.LocationID).Scan(
		&b.VariantID, &b.LocationID, &b.Quantity, &b.LastSeq, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.StockBalance{VariantID: key.VariantID, LocationID: key.LocationID, Quantity: decimal.Zero}, nil
		}
		return nil, mapError(op, err)
	}
	return &b, nil
}
