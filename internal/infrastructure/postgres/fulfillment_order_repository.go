package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var _ repository.FulfillmentOrderRepository = (*FulfillmentOrderRepo)(nil)

const orderColumns = `id, tenant_id, number, channel, items, shipping_address, shipping_method,
	subtotal, total, status, backordered, assigned_location_id, routing_decision, reservation_ref,
	version, created_at, analyzing_at, assigned_at, preparing_at, shipped_at, delivered_at, cancelled_at`

// FulfillmentOrderRepo órdenes de fulfillment sobre PostgreSQL (usable con pool o tx).
// Líneas, dirección y decisión de routing se guardan como JSONB.
type FulfillmentOrderRepo struct {
	q Querier
}

// NewFulfillmentOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFulfillmentOrderRepository(q Querier) *FulfillmentOrderRepo {
	return &FulfillmentOrderRepo{q: q}
}

// Create inserta la orden con Version 1.
func (r *FulfillmentOrderRepo) Create(ctx context.Context, o *entity.FulfillmentOrder) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	items, address, decision, err := encodeOrder(o)
	if err != nil {
		return err
	}
	query := `INSERT INTO fulfillment_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16, $17, $18, $19, $20, $21)`
	_, err = r.q.Exec(ctx, query,
		o.ID, o.TenantID, o.Number, o.Channel, items, address, string(o.ShippingMethod),
		o.Subtotal, o.Total, string(o.Status), o.Backordered, o.AssignedLocationID, decision, o.ReservationRef,
		o.CreatedAt, o.AnalyzingAt, o.AssignedAt, o.PreparingAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return mapError("insert fulfillment order", err)
	}
	o.Version = 1
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (r *FulfillmentOrderRepo) GetByID(ctx context.Context, id string) (*entity.FulfillmentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM fulfillment_orders WHERE id = $1`
	return r.getOne(ctx, "get fulfillment order", query, id)
}

// GetForUpdate obtiene la orden con SELECT FOR UPDATE.
func (r *FulfillmentOrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.FulfillmentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM fulfillment_orders WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "get fulfillment order for update", query, id)
}

// Update escribe la orden solo si la versión almacenada coincide; luego incrementa Version.
func (r *FulfillmentOrderRepo) Update(ctx context.Context, o *entity.FulfillmentOrder) error {
	items, address, decision, err := encodeOrder(o)
	if err != nil {
		return err
	}
	query := `
		UPDATE fulfillment_orders SET
			items = $3, shipping_address = $4, shipping_method = $5, subtotal = $6, total = $7,
			status = $8, backordered = $9, assigned_location_id = $10, routing_decision = $11,
			reservation_ref = $12, analyzing_at = $13, assigned_at = $14, preparing_at = $15,
			shipped_at = $16, delivered_at = $17, cancelled_at = $18, version = version + 1
		WHERE id = $1 AND version = $2`
	cmd, err := r.q.Exec(ctx, query,
		o.ID, o.Version, items, address, string(o.ShippingMethod), o.Subtotal, o.Total,
		string(o.Status), o.Backordered, o.AssignedLocationID, decision, o.ReservationRef,
		o.AnalyzingAt, o.AssignedAt, o.PreparingAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return mapError("update fulfillment order", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: orden %s versión %d", domain.ErrConflict, o.ID, o.Version)
	}
	o.Version++
	return nil
}

// ListByStatus órdenes del tenant (status vacío = todas), de la más antigua a la más nueva.
func (r *FulfillmentOrderRepo) ListByStatus(ctx context.Context, tenantID string, status entity.FulfillmentStatus, limit, offset int) ([]*entity.FulfillmentOrder, error) {
	query := `SELECT ` + orderColumns + `
		FROM fulfillment_orders
		WHERE tenant_id = $1 AND ($2::text = '' OR status = $2::text)
		ORDER BY created_at, id
		LIMIT NULLIF($3::int, 0) OFFSET $4`
	return r.list(ctx, "list orders by status", query, tenantID, string(status), limit, offset)
}

// ListCreatedSince órdenes del tenant creadas desde since.
func (r *FulfillmentOrderRepo) ListCreatedSince(ctx context.Context, tenantID string, since time.Time) ([]*entity.FulfillmentOrder, error) {
	query := `SELECT ` + orderColumns + `
		FROM fulfillment_orders
		WHERE tenant_id = $1 AND created_at >= $2
		ORDER BY created_at, id`
	return r.list(ctx, "list orders created since", query, tenantID, since)
}

// NextOrderNumber incrementa el correlativo (tenant, año) con un upsert atómico.
func (r *FulfillmentOrderRepo) NextOrderNumber(ctx context.Context, tenantID string, year int) (int, error) {
	query := `
		INSERT INTO order_counters (tenant_id, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, year)
		DO UPDATE SET last_number = order_counters.last_number + 1
		RETURNING last_number`
	var n int
	if err := r.q.QueryRow(ctx, query, tenantID, year).Scan(&n); err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return n, nil
}

func (r *FulfillmentOrderRepo) getOne(ctx context.Context, op, query string, id string) (*entity.FulfillmentOrder, error) {
	o, err := scanOrder(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

func (r *FulfillmentOrderRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.FulfillmentOrder, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	list := []*entity.FulfillmentOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func scanOrder(row rowScanner) (*entity.FulfillmentOrder, error) {
	var o entity.FulfillmentOrder
	var items, address, decision []byte
	var method, status string
	err := row.Scan(
		&o.ID, &o.TenantID, &o.Number, &o.Channel, &items, &address, &method,
		&o.Subtotal, &o.Total, &status, &o.Backordered, &o.AssignedLocationID, &decision, &o.ReservationRef,
		&o.Version, &o.CreatedAt, &o.AnalyzingAt, &o.AssignedAt, &o.PreparingAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	o.ShippingMethod = entity.ShippingMethod(method)
	o.Status = entity.FulfillmentStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if len(decision) > 0 {
		o.RoutingDecision = &entity.RoutingDecision{}
		if err := json.Unmarshal(decision, o.RoutingDecision); err != nil {
			return nil, fmt.Errorf("decode routing decision: %w", err)
		}
	}
	return &o, nil
}

// encodeOrder serializa las columnas JSONB. decision es nil (NULL) sin decisión.
func encodeOrder(o *entity.FulfillmentOrder) (items, address []byte, decision any, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("encode items: %w", err)
	}
	if address, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, nil, nil, fmt.Errorf("encode shipping address: %w", err)
	}
	if o.RoutingDecision != nil {
		b, err := json.Marshal(o.RoutingDecision)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode routing decision: %w", err)
		}
		decision = b
	}
	return items, address, decision, nil
}
