package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
)

var (
	_ repository.StockMovementRepository = (*MovementRepo)(nil)
	_ repository.StockRepository         = (*StockRepo)(nil)
)

// MovementRepo ledger en memoria. tx nil = fuera de transacción.
type MovementRepo struct {
	s  *Store
	tx *tx
}

// Append registra el movimiento. No mira el saldo resultante.
func (r *MovementRepo) Append(_ context.Context, m *entity.StockMovement) error {
	return r.s.autocommit(r.tx, func(t *tx) error {
		if m.ID == "" {
			m.ID = newID()
		}
		if m.OccurredAt.IsZero() {
			m.OccurredAt = r.s.now().UTC()
		}
		m.Seq = r.s.seq.Add(1)
		t.movements = append(t.movements, *m)
		return nil
	})
}

// ListByKey movimientos de la clave, del más reciente al más antiguo.
func (r *MovementRepo) ListByKey(_ context.Context, key entity.StockKey, limit, offset int) ([]*entity.StockMovement, error) {
	all := r.collect(matchKey(key), func() []int { return r.s.byKey[key] })
	sort.SliceStable(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })
	return paginate(all, limit, offset), nil
}

// ListByReference movimientos de una referencia en orden de registro.
func (r *MovementRepo) ListByReference(_ context.Context, reference string) ([]*entity.StockMovement, error) {
	all := r.collect(
		func(m *entity.StockMovement) bool { return m.Reference == reference },
		func() []int { return r.s.byRef[reference] },
	)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all, nil
}

// SumByKey recorre el ledger completo de la clave.
func (r *MovementRepo) SumByKey(_ context.Context, key entity.StockKey) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, m := range r.collect(matchKey(key), func() []int { return r.s.byKey[key] }) {
		sum = sum.Add(m.Delta)
	}
	return sum, nil
}

// collect copia los movimientos confirmados del índice más los pendientes de la tx propia.
func (r *MovementRepo) collect(match func(*entity.StockMovement) bool, index func() []int) []*entity.StockMovement {
	r.s.mu.RLock()
	idx := index()
	out := make([]*entity.StockMovement, 0, len(idx))
	for _, i := range idx {
		c := r.s.movements[i]
		out = append(out, &c)
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for i := range r.tx.movements {
			if match(&r.tx.movements[i]) {
				c := r.tx.movements[i]
				out = append(out, &c)
			}
		}
	}
	return out
}

func matchKey(key entity.StockKey) func(*entity.StockMovement) bool {
	return func(m *entity.StockMovement) bool { return m.Key() == key }
}

func paginate(in []*entity.StockMovement, limit, offset int) []*entity.StockMovement {
	if offset >= len(in) {
		return []*entity.StockMovement{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// StockRepo saldos materializados en memoria.
type StockRepo struct {
	s  *Store
	tx *tx
}

// Get saldo confirmado más los deltas pendientes de la tx propia.
func (r *StockRepo) Get(_ context.Context, key entity.StockKey) (*entity.StockBalance, error) {
	return r.visible(key), nil
}

// GetForUpdate bloquea la clave hasta el fin de la transacción.
func (r *StockRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockBalance, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("GetForUpdate requiere una transacción")
	}
	if err := r.tx.lock(ctx, stockLockName(key)); err != nil {
		return nil, err
	}
	return r.visible(key), nil
}

// LockKeys bloquea las claves que la transacción aún no tiene, todas en orden
// (variante, ubicación) y en una sola pasada.
func (r *StockRepo) LockKeys(ctx context.Context, keys []entity.StockKey) error {
	if r.tx == nil {
		return fmt.Errorf("LockKeys requiere una transacción")
	}
	sorted := append([]entity.StockKey(nil), keys...)
	entity.SortKeys(sorted)
	names := make([]string, 0, len(sorted))
	for _, k := range sorted {
		names = append(names, stockLockName(k))
	}
	return r.tx.lockAll(ctx, names)
}

// AddDelta bloquea la clave y acumula el delta; rechaza un saldo resultante negativo.
func (r *StockRepo) AddDelta(ctx context.Context, key entity.StockKey, delta decimal.Decimal, seq int64) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := r.s.autocommit(r.tx, func(t *tx) error {
		if err := t.lock(ctx, stockLockName(key)); err != nil {
			return err
		}
		bound := &StockRepo{s: r.s, tx: t}
		next := bound.visible(key).Quantity.Add(delta)
		if next.IsNegative() {
			return fmt.Errorf("%w: %s quedaría en %s", domain.ErrInsufficientStock, key, next)
		}
		t.deltas[key] = t.deltas[key].Add(delta)
		if seq > t.lastSeq[key] {
			t.lastSeq[key] = seq
		}
		result = next
		return nil
	})
	return result, err
}

// ListByVariants saldos de las variantes en todas las ubicaciones, ordenados por clave.
func (r *StockRepo) ListByVariants(_ context.Context, variantIDs []string) ([]*entity.StockBalance, error) {
	wanted := make(map[string]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		wanted[id] = struct{}{}
	}
	keys := make(map[entity.StockKey]struct{})
	r.s.mu.RLock()
	for k := range r.s.balances {
		if _, ok := wanted[k.VariantID]; ok {
			keys[k] = struct{}{}
		}
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for k := range r.tx.deltas {
			if _, ok := wanted[k.VariantID]; ok {
				keys[k] = struct{}{}
			}
		}
	}
	sorted := make([]entity.StockKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	entity.SortKeys(sorted)
	out := make([]*entity.StockBalance, 0, len(sorted))
	for _, k := range sorted {
		out = append(out, r.visible(k))
	}
	return out, nil
}

func (r *StockRepo) visible(key entity.StockKey) *entity.StockBalance {
	r.s.mu.RLock()
	b := entity.StockBalance{VariantID: key.VariantID, LocationID: key.LocationID, Quantity: decimal.Zero}
	if cur, ok := r.s.balances[key]; ok {
		b = *cur
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		if d, ok := r.tx.deltas[key]; ok {
			b.Quantity = b.Quantity.Add(d)
		}
	}
	return &b
}
