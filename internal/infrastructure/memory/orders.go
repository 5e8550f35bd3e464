package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var _ repository.FulfillmentOrderRepository = (*OrderRepo)(nil)

// OrderRepo órdenes en memoria; se guardan y devuelven copias.
type OrderRepo struct {
	s  *Store
	tx *tx
}

// Create registra una orden nueva con Version 1.
func (r *OrderRepo) Create(_ context.Context, o *entity.FulfillmentOrder) error {
	return r.s.autocommit(r.tx, func(t *tx) error {
		if o.ID == "" {
			o.ID = newID()
		}
		if _, exists := r.lookup(t, o.ID); exists {
			return fmt.Errorf("%w: la orden %s ya existe", domain.ErrConflict, o.ID)
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = r.s.now().UTC()
		}
		o.Version = 1
		t.orders[o.ID] = &stagedOrder{order: cloneOrder(o), isNew: true}
		return nil
	})
}

// GetByID devuelve nil, nil si no existe.
func (r *OrderRepo) GetByID(_ context.Context, id string) (*entity.FulfillmentOrder, error) {
	o, ok := r.lookup(r.tx, id)
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

// GetForUpdate bloquea la orden hasta el fin de la transacción.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.FulfillmentOrder, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("GetForUpdate requiere una transacción")
	}
	if err := r.tx.lock(ctx, orderLockName(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Update aplica control optimista: la Version debe coincidir con la visible.
func (r *OrderRepo) Update(_ context.Context, o *entity.FulfillmentOrder) error {
	return r.s.autocommit(r.tx, func(t *tx) error {
		current, ok := r.lookup(t, o.ID)
		if !ok {
			return fmt.Errorf("orden %s: %w", o.ID, domain.ErrNotFound)
		}
		if current.Version != o.Version {
			return fmt.Errorf("%w: versión %d, actual %d", domain.ErrConflict, o.Version, current.Version)
		}
		st, staged := t.orders[o.ID]
		if !staged {
			st = &stagedOrder{baseVersion: current.Version}
			t.orders[o.ID] = st
		}
		o.Version++
		st.order = cloneOrder(o)
		return nil
	})
}

// ListByStatus órdenes del tenant en el estado, de la más antigua a la más nueva.
func (r *OrderRepo) ListByStatus(_ context.Context, tenantID string, status entity.FulfillmentStatus, limit, offset int) ([]*entity.FulfillmentOrder, error) {
	all := r.filter(func(o *entity.FulfillmentOrder) bool {
		return o.TenantID == tenantID && (status == "" || o.Status == status)
	})
	if offset >= len(all) {
		return []*entity.FulfillmentOrder{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ListCreatedSince órdenes del tenant creadas desde since.
func (r *OrderRepo) ListCreatedSince(_ context.Context, tenantID string, since time.Time) ([]*entity.FulfillmentOrder, error) {
	return r.filter(func(o *entity.FulfillmentOrder) bool {
		return o.TenantID == tenantID && !o.CreatedAt.Before(since)
	}), nil
}

// NextOrderNumber incrementa el correlativo (tenant, año). Como una secuencia, no vuelve atrás.
func (r *OrderRepo) NextOrderNumber(_ context.Context, tenantID string, year int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := fmt.Sprintf("%s/%d", tenantID, year)
	r.s.counters[k]++
	return r.s.counters[k], nil
}

// lookup orden visible para la tx (pendiente o confirmada), sin copiar.
func (r *OrderRepo) lookup(t *tx, id string) (*entity.FulfillmentOrder, bool) {
	if t != nil {
		if st, ok := t.orders[id]; ok {
			return st.order, true
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	return o, ok
}

func (r *OrderRepo) filter(match func(*entity.FulfillmentOrder) bool) []*entity.FulfillmentOrder {
	seen := make(map[string]struct{})
	var out []*entity.FulfillmentOrder
	if r.tx != nil {
		for id, st := range r.tx.orders {
			seen[id] = struct{}{}
			if match(st.order) {
				out = append(out, cloneOrder(st.order))
			}
		}
	}
	r.s.mu.RLock()
	for id, o := range r.s.orders {
		if _, ok := seen[id]; ok {
			continue
		}
		if match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneOrder(o *entity.FulfillmentOrder) *entity.FulfillmentOrder {
	c := *o
	c.Items = append([]entity.OrderItem(nil), o.Items...)
	if o.ShippingAddress.Coordinates != nil {
		coords := *o.ShippingAddress.Coordinates
		c.ShippingAddress.Coordinates = &coords
	}
	if o.AssignedLocationID != nil {
		id := *o.AssignedLocationID
		c.AssignedLocationID = &id
	}
	if o.RoutingDecision != nil {
		d := *o.RoutingDecision
		d.Candidates = append([]entity.CandidateScore(nil), o.RoutingDecision.Candidates...)
		c.RoutingDecision = &d
	}
	c.AnalyzingAt = cloneTime(o.AnalyzingAt)
	c.AssignedAt = cloneTime(o.AssignedAt)
	c.PreparingAt = cloneTime(o.PreparingAt)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
