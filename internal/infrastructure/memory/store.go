// Package memory implementa los puertos de persistencia en memoria: ledger como arena de
// movimientos con índices por clave y por referencia, saldos materializados y órdenes.
// Las transacciones acumulan escrituras y las aplican juntas en el commit; los locks por
// clave se toman con keylock y se mantienen hasta el fin de la transacción.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
	"github.com/jhoicas/oms-router/pkg/keylock"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store estado compartido. mu protege solo la estructura de los mapas y la arena;
// la exclusión de negocio (check-and-decrement) la dan los locks por clave.
type Store struct {
	mu sync.RWMutex

	movements []entity.StockMovement
	byKey     map[entity.StockKey][]int
	byRef     map[string][]int
	balances  map[entity.StockKey]*entity.StockBalance

	orders   map[string]*entity.FulfillmentOrder
	counters map[string]int

	seq   atomic.Int64
	locks *keylock.Table
	now   func() time.Time
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{
		byKey:    make(map[entity.StockKey][]int),
		byRef:    make(map[string][]int),
		balances: make(map[entity.StockKey]*entity.StockBalance),
		orders:   make(map[string]*entity.FulfillmentOrder),
		counters: make(map[string]int),
		locks:    keylock.New(),
		now:      time.Now,
	}
}

// Run implementa inventory.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	stockRepo repository.StockRepository,
	orderRepo repository.FulfillmentOrderRepository,
) error) error {
	t := s.begin()
	defer t.release()

	if err := fn(&MovementRepo{s: s, tx: t}, &StockRepo{s: s, tx: t}, &OrderRepo{s: s, tx: t}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

// Movements repositorio del ledger fuera de transacción (cada escritura se confirma sola).
func (s *Store) Movements() *MovementRepo { return &MovementRepo{s: s} }

// Stock repositorio de saldos fuera de transacción.
func (s *Store) Stock() *StockRepo { return &StockRepo{s: s} }

// Orders repositorio de órdenes fuera de transacción.
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

// autocommit ejecuta op en una transacción propia cuando el repositorio no está atado a una.
func (s *Store) autocommit(t *tx, op func(t *tx) error) error {
	if t != nil {
		return op(t)
	}
	t = s.begin()
	defer t.release()
	if err := op(t); err != nil {
		return err
	}
	return t.commit()
}

type stagedOrder struct {
	order       *entity.FulfillmentOrder
	isNew       bool
	baseVersion int64
}

type tx struct {
	s *Store

	unlocks []func()
	held    map[string]struct{}

	movements []entity.StockMovement
	deltas    map[entity.StockKey]decimal.Decimal
	lastSeq   map[entity.StockKey]int64
	orders    map[string]*stagedOrder
	done      bool
}

func (s *Store) begin() *tx {
	return &tx{
		s:       s,
		held:    make(map[string]struct{}),
		deltas:  make(map[entity.StockKey]decimal.Decimal),
		lastSeq: make(map[entity.StockKey]int64),
		orders:  make(map[string]*stagedOrder),
	}
}

// lock toma el lock de la clave una sola vez por transacción.
func (t *tx) lock(ctx context.Context, name string) error {
	if _, ok := t.held[name]; ok {
		return nil
	}
	unlock, err := t.s.locks.Lock(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: esperando lock %s: %v", domain.ErrConflict, name, err)
	}
	t.held[name] = struct{}{}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

// lockAll toma en el orden recibido las claves que la transacción todavía no tiene.
func (t *tx) lockAll(ctx context.Context, names []string) error {
	pending := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := t.held[n]; !ok {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	unlock, err := t.s.locks.LockAll(ctx, pending)
	if err != nil {
		return fmt.Errorf("%w: esperando locks de stock: %v", domain.ErrConflict, err)
	}
	for _, n := range pending {
		t.held[n] = struct{}{}
	}
	t.unlocks = append(t.unlocks, unlock)
	return nil
}

func (t *tx) release() {
	for i := len(t.unlocks) - 1; i >= 0; i-- {
		t.unlocks[i]()
	}
	t.unlocks = nil
}

func stockLockName(key entity.StockKey) string { return "stock:" + key.String() }
func orderLockName(id string) string           { return "order:" + id }

// commit valida y aplica todas las escrituras bajo el lock estructural.
func (t *tx) commit() error {
	if t.done {
		return fmt.Errorf("transacción ya finalizada")
	}
	t.done = true
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, st := range t.orders {
		current, exists := s.orders[id]
		if st.isNew && exists {
			return fmt.Errorf("%w: la orden %s ya existe", domain.ErrConflict, id)
		}
		if !st.isNew && (!exists || current.Version != st.baseVersion) {
			return fmt.Errorf("%w: la orden %s fue modificada por otra operación", domain.ErrConflict, id)
		}
	}
	for key, delta := range t.deltas {
		if committedQuantity(s, key).Add(delta).IsNegative() {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, key)
		}
	}

	now := s.now().UTC()
	for _, m := range t.movements {
		idx := len(s.movements)
		s.movements = append(s.movements, m)
		key := m.Key()
		s.byKey[key] = append(s.byKey[key], idx)
		if m.Reference != "" {
			s.byRef[m.Reference] = append(s.byRef[m.Reference], idx)
		}
	}
	for key, delta := range t.deltas {
		b, ok := s.balances[key]
		if !ok {
			b = &entity.StockBalance{VariantID: key.VariantID, LocationID: key.LocationID}
			s.balances[key] = b
		}
		b.Quantity = b.Quantity.Add(delta)
		if seq := t.lastSeq[key]; seq > b.LastSeq {
			b.LastSeq = seq
		}
		b.UpdatedAt = now
	}
	for id, st := range t.orders {
		s.orders[id] = cloneOrder(st.order)
	}
	return nil
}

func committedQuantity(s *Store, key entity.StockKey) decimal.Decimal {
	if b, ok := s.balances[key]; ok {
		return b.Quantity
	}
	return decimal.Zero
}

func newID() string { return uuid.New().String() }
