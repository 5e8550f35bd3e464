// Package redis implementa el lock de ruteo por orden compartido entre réplicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/oms-router/internal/application/routing"
	"github.com/jhoicas/oms-router/internal/domain"
)

var _ routing.OrderLocker = (*OrderLocker)(nil)

const keyPrefix = "oms:route:"

// releaseTimeout tiempo máximo para liberar el lock aunque el contexto del request ya haya terminado.
const releaseTimeout = 2 * time.Second

// Options conexión a Redis.
type Options struct {
	Address  string
	Password string
	DB       int
}

// NewClient crea el cliente y verifica la conexión con PING.
func NewClient(ctx context.Context, opts Options) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: 50,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Address, err)
	}
	return rdb, nil
}

// OrderLocker lock de ruteo con redislock. Si el proceso muere el lock expira con su TTL.
type OrderLocker struct {
	locker *redislock.Client
	log    zerolog.Logger
}

// NewOrderLocker construye el locker sobre un cliente ya conectado.
func NewOrderLocker(rdb *goredis.Client, log zerolog.Logger) *OrderLocker {
	return &OrderLocker{locker: redislock.New(rdb), log: log}
}

// Acquire intenta tomar el lock sin esperar. Lock tomado por otro o Redis caído -> domain.ErrRoutingBusy.
func (l *OrderLocker) Acquire(ctx context.Context, orderID string, ttl time.Duration) (func(), error) {
	lock, err := l.locker.Obtain(ctx, lockKey(orderID), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrRoutingBusy
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %v", domain.ErrRoutingBusy, err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn().Err(err).Str("order_id", orderID).Msg("no se pudo liberar el lock de ruteo")
		}
	}, nil
}

func lockKey(orderID string) string {
	return keyPrefix + orderID
}
