package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `id, seq, variant_id, location_id, delta, kind, reference, occurred_at, recorded_by`

// StockMovementRepo ledger de stock sobre PostgreSQL (usable con pool o tx).
// La tabla solo admite INSERT; seq es bigserial y define el orden de commit.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Append persiste el movimiento y completa ID y Seq.
func (r *StockMovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	query := `
		INSERT INTO stock_movements (id, variant_id, location_id, delta, kind, reference, occurred_at, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		m.ID, m.VariantID, m.LocationID, m.Delta, string(m.Kind),
		m.Reference, m.OccurredAt, m.RecordedBy,
	).Scan(&m.Seq)
	if err != nil {
		return mapError("append stock movement", err)
	}
	return nil
}

// ListByKey movimientos de la clave, del más reciente al más antiguo. limit 0 = sin límite.
func (r *StockMovementRepo) ListByKey(ctx context.Context, key entity.StockKey, limit, offset int) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE variant_id = $1 AND location_id = $2
		ORDER BY seq DESC
		LIMIT NULLIF($3::int, 0) OFFSET $4`
	return r.list(ctx, "list movements by key", query, key.VariantID, key.LocationID, limit, offset)
}

// ListByReference movimientos de la referencia en orden de commit.
func (r *StockMovementRepo) ListByReference(ctx context.Context, reference string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + `
		FROM stock_movements WHERE reference = $1 ORDER BY seq`
	return r.list(ctx, "list movements by reference", query, reference)
}

// SumByKey suma de todos los deltas de la clave.
func (r *StockMovementRepo) SumByKey(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM stock_movements WHERE variant_id = $1 AND location_id = $2`
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, key.VariantID, key.LocationID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum movements: %w", err)
	}
	return sum, nil
}

func (r *StockMovementRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	list := []*entity.StockMovement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row rowScanner) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var kind string
	if err := row.Scan(&m.ID, &m.Seq, &m.VariantID, &m.LocationID, &m.Delta,
		&kind, &m.Reference, &m.OccurredAt, &m.RecordedBy); err != nil {
		return nil, err
	}
	m.Kind = entity.MovementKind(kind)
	return &m, nil
}
