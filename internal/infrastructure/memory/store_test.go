package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/domain"
	"github.com/jhoicas/oms-router/internal/domain/entity"
	"github.com/jhoicas/oms-router/internal/domain/repository"
	"github.com/jhoicas/oms-router/internal/infrastructure/memory"
)

var key = entity.StockKey{VariantID: "var-1", LocationID: "loc-1"}

func appendAndApply(ctx context.Context, mov repository.StockMovementRepository, stock repository.StockRepository, kind entity.MovementKind, qty int64, ref string) error {
	m := &entity.StockMovement{
		VariantID: key.VariantID, LocationID: key.LocationID,
		Delta: decimal.NewFromInt(qty), Kind: kind, Reference: ref,
	}
	if err := mov.Append(ctx, m); err != nil {
		return err
	}
	_, err := stock.AddDelta(ctx, key, m.Delta, m.Seq)
	return err
}

func TestStore_CommitAplicaMovimientoYSaldo(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	err := s.Run(ctx, func(mov repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
		return appendAndApply(ctx, mov, stock, entity.MovementInitial, 10, "carga")
	})
	require.NoError(t, err)

	b, err := s.Stock().Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, b.Quantity.Equal(decimal.NewFromInt(10)))
	assert.NotZero(t, b.LastSeq)

	sum, err := s.Movements().SumByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, sum.Equal(b.Quantity))

	byRef, err := s.Movements().ListByReference(ctx, "carga")
	require.NoError(t, err)
	assert.Len(t, byRef, 1)
}

func TestStore_RollbackNoDejaRastro(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	boom := errors.New("falla de negocio")

	err := s.Run(ctx, func(mov repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
		require.NoError(t, appendAndApply(ctx, mov, stock, entity.MovementInitial, 10, ""))
		inside, _ := stock.Get(ctx, key)
		assert.True(t, inside.Quantity.Equal(decimal.NewFromInt(10)), "la tx ve sus propias escrituras")
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, _ := s.Stock().Get(ctx, key)
	assert.True(t, b.Quantity.IsZero())
	hist, _ := s.Movements().ListByKey(ctx, key, 0, 0)
	assert.Empty(t, hist)
}

func TestStore_RechazaSaldoNegativo(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()

	err := s.Run(ctx, func(mov repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
		return appendAndApply(ctx, mov, stock, entity.MovementSale, -1, "")
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	hist, _ := s.Movements().ListByKey(ctx, key, 0, 0)
	assert.Empty(t, hist)
}

func TestStore_HistorialPaginadoDelMasReciente(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, s.Run(ctx, func(mov repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
			return appendAndApply(ctx, mov, stock, entity.MovementAdjustmentIn, i, "")
		}))
	}
	page, err := s.Movements().ListByKey(ctx, key, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Delta.Equal(decimal.NewFromInt(4)))
	assert.True(t, page[1].Delta.Equal(decimal.NewFromInt(3)))
}

func TestOrderRepo_ControlOptimista(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	orders := s.Orders()

	o := &entity.FulfillmentOrder{TenantID: "t1", Status: entity.StatusPending}
	require.NoError(t, orders.Create(ctx, o))
	assert.Equal(t, int64(1), o.Version)

	a, _ := orders.GetByID(ctx, o.ID)
	b, _ := orders.GetByID(ctx, o.ID)

	a.Status = entity.StatusAnalyzing
	require.NoError(t, orders.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.Status = entity.StatusCancelled
	assert.ErrorIs(t, orders.Update(ctx, b), domain.ErrConflict)

	got, _ := orders.GetByID(ctx, o.ID)
	assert.Equal(t, entity.StatusAnalyzing, got.Status)

	missing, err := orders.GetByID(ctx, "no-existe")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_CorrelativoPorTenantYAnio(t *testing.T) {
	ctx := context.Background()
	orders := memory.NewStore().Orders()

	n1, _ := orders.NextOrderNumber(ctx, "t1", 2026)
	n2, _ := orders.NextOrderNumber(ctx, "t1", 2026)
	other, _ := orders.NextOrderNumber(ctx, "t2", 2026)
	assert.Equal(t, 1, n1)
	assert.Equal(t, 2, n2)
	assert.Equal(t, 1, other)
}

func TestStockRepo_LockKeysRetieneHastaElFinDeLaTransaccion(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	other := entity.StockKey{VariantID: "var-1", LocationID: "loc-2"}
	locked := make(chan struct{})
	finish := make(chan struct{})

	go func() {
		_ = s.Run(ctx, func(_ repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
			if err := stock.LockKeys(ctx, []entity.StockKey{other, key, key}); err != nil {
				return err
			}
			// Volver a pedir una clave ya tomada no bloquea.
			if _, err := stock.GetForUpdate(ctx, key); err != nil {
				return err
			}
			close(locked)
			<-finish
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := s.Run(waitCtx, func(_ repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
		_, err := stock.GetForUpdate(waitCtx, other)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	close(finish)
	require.Eventually(t, func() bool {
		return s.Run(ctx, func(_ repository.StockMovementRepository, stock repository.StockRepository, _ repository.FulfillmentOrderRepository) error {
			return stock.LockKeys(ctx, []entity.StockKey{key, other})
		}) == nil
	}, time.Second, 10*time.Millisecond)
}
