package main

import (
	"context"

	"github.com/jhoicas/oms-router/internal/application/inventory"
	"github.com/jhoicas/oms-router/internal/domain/repository"
	"github.com/jhoicas/oms-router/internal/infrastructure/memory"
	"github.com/jhoicas/oms-router/internal/infrastructure/postgres"
	"github.com/jhoicas/oms-router/pkg/config"
)

// storage repositorios del driver elegido por STORAGE_DRIVER.
type storage struct {
	txRunner  inventory.TxRunner
	movements repository.StockMovementRepository
	stock     repository.StockRepository
	orders    repository.FulfillmentOrderRepository
	locations repository.LocationCapabilityRepository
	settings  repository.RoutingSettingsRepository
	ping      func(ctx context.Context) error
	close     func()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		store := memory.NewStore()
		return &storage{
			txRunner:  store,
			movements: store.Movements(),
			stock:     store.Stock(),
			orders:    store.Orders(),
			locations: memory.NewCapabilityRepo(),
			settings:  memory.NewSettingsRepo(),
			ping:      func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &storage{
		txRunner:  postgres.NewTxRunner(pool),
		movements: postgres.NewStockMovementRepository(pool),
		stock:     postgres.NewStockRepository(pool),
		orders:    postgres.NewFulfillmentOrderRepository(pool),
		locations: postgres.NewLocationCapabilityRepository(pool),
		settings:  postgres.NewRoutingSettingsRepository(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}
