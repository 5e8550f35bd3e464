package inventory_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
	"github.com/jhoicas/oms-router/internal/infrastructure/memory"
)

func newLedger() *inventory.LedgerUseCase {
	s := memory.NewStore()
	return inventory.NewLedgerUseCase(s, s.Movements(), s.Stock())
}

func seed(t *testing.T, uc *inventory.LedgerUseCase, variant, location string, qty int64) {
	t.Helper()
	_, err := uc.Append(context.Background(), inventory.AppendInput{
		VariantID: variant, LocationID: location,
		Delta: decimal.NewFromInt(qty), Kind: entity.MovementInitial, RecordedBy: "test",
	})
	require.NoError(t, err)
}

func qty(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestLedger_AppendValidaSignoYTipo(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()

	_, err := uc.Append(ctx, inventory.AppendInput{VariantID: "v", LocationID: "l", Delta: qty(-1), Kind: entity.MovementInitial})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.Append(ctx, inventory.AppendInput{VariantID: "v", LocationID: "l", Delta: qty(1), Kind: entity.MovementSale})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.Append(ctx, inventory.AppendInput{VariantID: "v", LocationID: "l", Delta: qty(1), Kind: "regalo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = uc.Append(ctx, inventory.AppendInput{LocationID: "l", Delta: qty(1), Kind: entity.MovementInitial})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_SaldoIgualASumaDelLedger(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()
	key := entity.StockKey{VariantID: "v1", LocationID: "l1"}

	seed(t, uc, "v1", "l1", 10)
	_, err := uc.Append(ctx, inventory.AppendInput{VariantID: "v1", LocationID: "l1", Delta: qty(-3), Kind: entity.MovementAdjustmentOut})
	require.NoError(t, err)
	_, err = uc.Reserve(ctx, entity.StockLine{VariantID: "v1", LocationID: "l1", Quantity: qty(2)}, "venta-1", "pos")
	require.NoError(t, err)

	current, err := uc.CurrentQuantity(ctx, key)
	require.NoError(t, err)
	assert.True(t, current.Equal(qty(5)), "saldo %s", current)

	rec, err := uc.Reconcile(ctx, key)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.True(t, rec.LedgerSum.Equal(qty(5)))

	hist, err := uc.History(ctx, key, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, entity.MovementSale, hist[0].Kind)
}

func TestLedger_AjusteNegativoNoDejaSaldoNegativo(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()
	seed(t, uc, "v1", "l1", 2)

	_, err := uc.Append(ctx, inventory.AppendInput{VariantID: "v1", LocationID: "l1", Delta: qty(-3), Kind: entity.MovementAdjustmentOut})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	current, _ := uc.CurrentQuantity(ctx, entity.StockKey{VariantID: "v1", LocationID: "l1"})
	assert.True(t, current.Equal(qty(2)))
}

func TestLedger_ReservaInsuficienteNoEscribe(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()
	seed(t, uc, "v1", "l1", 1)

	_, err := uc.Reserve(ctx, entity.StockLine{VariantID: "v1", LocationID: "l1", Quantity: qty(2)}, "venta-1", "pos")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	movs, err := uc.ByReference(ctx, "venta-1")
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestLedger_ReservaMultilineaTodoONada(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()
	seed(t, uc, "v1", "l1", 5)
	seed(t, uc, "v2", "l1", 1)

	_, err := uc.ReserveLines(ctx, []entity.StockLine{
		{VariantID: "v1", LocationID: "l1", Quantity: qty(3)},
		{VariantID: "v2", LocationID: "l1", Quantity: qty(2)},
	}, "venta-1", "pos")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	v1, _ := uc.CurrentQuantity(ctx, entity.StockKey{VariantID: "v1", LocationID: "l1"})
	assert.True(t, v1.Equal(qty(5)), "la primera línea no debe quedar descontada")

	movs, err := uc.ReserveLines(ctx, []entity.StockLine{
		{VariantID: "v1", LocationID: "l1", Quantity: qty(2)},
		{VariantID: "v1", LocationID: "l1", Quantity: qty(2)},
		{VariantID: "v2", LocationID: "l1", Quantity: qty(1)},
	}, "venta-2", "pos")
	require.NoError(t, err)
	assert.Len(t, movs, 2, "las líneas repetidas se suman")
	v1, _ = uc.CurrentQuantity(ctx, entity.StockKey{VariantID: "v1", LocationID: "l1"})
	assert.True(t, v1.Equal(qty(1)))
}

func TestLedger_DosCompradoresUnaUnidad(t *testing.T) {
	uc := newLedger()
	seed(t, uc, "v1", "l1", 1)

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := uc.Reserve(context.Background(),
				entity.StockLine{VariantID: "v1", LocationID: "l1", Quantity: qty(1)},
				fmt.Sprintf("venta-%d", i), "pos")
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), insufficient.Load())
	current, _ := uc.CurrentQuantity(context.Background(), entity.StockKey{VariantID: "v1", LocationID: "l1"})
	assert.True(t, current.IsZero())
}

func TestLedger_NuncaSobrevende(t *testing.T) {
	cases := []struct {
		stock, buyers, each int64
	}{
		{5, 10, 1},
		{100, 200, 1},
		{10, 8, 3},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("stock_%d_compradores_%d", tc.stock, tc.buyers), func(t *testing.T) {
			uc := newLedger()
			seed(t, uc, "v1", "l1", tc.stock)

			var wg sync.WaitGroup
			var sold atomic.Int64
			for i := int64(0); i < tc.buyers; i++ {
				wg.Add(1)
				go func(i int64) {
					defer wg.Done()
					_, err := uc.Reserve(context.Background(),
						entity.StockLine{VariantID: "v1", LocationID: "l1", Quantity: qty(tc.each)},
						fmt.Sprintf("venta-%d", i), "pos")
					if err == nil {
						sold.Add(tc.each)
					} else {
						assert.ErrorIs(t, err, domain.ErrInsufficientStock)
					}
				}(i)
			}
			wg.Wait()

			assert.LessOrEqual(t, sold.Load(), tc.stock)
			assert.Greater(t, sold.Load(), tc.stock-tc.each, "se vende todo lo que alcanza")
			rec, err := uc.Reconcile(context.Background(), entity.StockKey{VariantID: "v1", LocationID: "l1"})
			require.NoError(t, err)
			assert.True(t, rec.Consistent)
			assert.True(t, rec.Balance.Equal(qty(tc.stock-sold.Load())))
		})
	}
}

func TestLedger_Traslado(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()
	seed(t, uc, "v1", "l1", 4)

	_, err := uc.Transfer(ctx, inventory.TransferInput{VariantID: "v1", FromLocationID: "l1", ToLocationID: "l2", Quantity: qty(5)})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	movs, err := uc.Transfer(ctx, inventory.TransferInput{VariantID: "v1", FromLocationID: "l1", ToLocationID: "l2", Quantity: qty(3)})
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, movs[0].Reference, movs[1].Reference)

	from, _ := uc.CurrentQuantity(ctx, entity.StockKey{VariantID: "v1", LocationID: "l1"})
	to, _ := uc.CurrentQuantity(ctx, entity.StockKey{VariantID: "v1", LocationID: "l2"})
	assert.True(t, from.Equal(qty(1)))
	assert.True(t, to.Equal(qty(3)))

	_, err = uc.Transfer(ctx, inventory.TransferInput{VariantID: "v1", FromLocationID: "l1", ToLocationID: "l1", Quantity: qty(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLedger_ReleaseCompensaUnaSolaVez(t *testing.T) {
	uc := newLedger()
	ctx := context.Background()
	seed(t, uc, "v1", "l1", 5)
	_, err := uc.Reserve(ctx, entity.StockLine{VariantID: "v1", LocationID: "l1", Quantity: qty(3)}, "order:1", "oms")
	require.NoError(t, err)

	movs, err := uc.Release(ctx, "order:1", "oms")
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementAdjustmentIn, movs[0].Kind)
	assert.Equal(t, inventory.CompensationReference("order:1"), movs[0].Reference)

	again, err := uc.Release(ctx, "order:1", "oms")
	require.NoError(t, err)
	assert.Empty(t, again)

	current, _ := uc.CurrentQuantity(ctx, entity.StockKey{VariantID: "v1", LocationID: "l1"})
	assert.True(t, current.Equal(qty(5)))

	hist, _ := uc.History(ctx, entity.StockKey{VariantID: "v1", LocationID: "l1"}, 0, 0)
	assert.Len(t, hist, 3, "la reserva original sigue en el ledger")
}

// tracingRunner registra el orden de bloqueos y sumas hechos dentro de la transacción.
type tracingRunner struct {
	inner  inventory.TxRunner
	mu     sync.Mutex
	events []string
}

func (r *tracingRunner) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *tracingRunner) Run(ctx context.Context, fn func(
	repository.StockMovementRepository,
	repository.StockRepository,
	repository.FulfillmentOrderRepository,
) error) error {
	return r.inner.Run(ctx, func(
		movRepo repository.StockMovementRepository,
		stockRepo repository.StockRepository,
		orderRepo repository.FulfillmentOrderRepository,
	) error {
		return fn(tracingMovements{movRepo, r}, tracingStock{stockRepo, r}, orderRepo)
	})
}

type tracingStock struct {
	repository.StockRepository
	r *tracingRunner
}

func (s tracingStock) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockBalance, error) {
	s.r.record("lock " + key.String())
	return s.StockRepository.GetForUpdate(ctx, key)
}

type tracingMovements struct {
	repository.StockMovementRepository
	r *tracingRunner
}

func (m tracingMovements) SumByKey(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	m.r.record("sum " + key.String())
	return m.StockMovementRepository.SumByKey(ctx, key)
}

func TestLedger_ConciliacionLeeConLaClaveBloqueada(t *testing.T) {
	s := memory.NewStore()
	runner := &tracingRunner{inner: s}
	uc := inventory.NewLedgerUseCase(runner, s.Movements(), s.Stock())
	key := entity.StockKey{VariantID: "v1", LocationID: "l1"}
	seed(t, uc, "v1", "l1", 5)
	runner.events = nil

	rec, err := uc.Reconcile(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, []string{"lock " + key.String(), "sum " + key.String()}, runner.events)
}

func TestLedger_ConciliacionConsistenteConEscriturasConcurrentes(t *testing.T) {
	uc := newLedger()
	key := entity.StockKey{VariantID: "v1", LocationID: "l1"}
	seed(t, uc, "v1", "l1", 1)

	var wg sync.WaitGroup
	var inconsistent atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := uc.Append(context.Background(), inventory.AppendInput{
				VariantID: "v1", LocationID: "l1", Delta: qty(1), Kind: entity.MovementAdjustmentIn,
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			rec, err := uc.Reconcile(context.Background(), key)
			if assert.NoError(t, err) && !rec.Consistent {
				inconsistent.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, inconsistent.Load())
}
