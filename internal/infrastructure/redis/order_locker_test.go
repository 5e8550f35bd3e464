package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/internal/domain"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "oms:route:ord-1", lockKey("ord-1"))
}

// Requiere un Redis real: REDIS_TEST_ADDRESS=localhost:6379 go test ./internal/infrastructure/redis/...
func TestOrderLocker_SegundoAcquireFallaHastaRelease(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDRESS no definido")
	}
	ctx := context.Background()
	rdb, err := NewClient(ctx, Options{Address: addr})
	require.NoError(t, err)
	defer rdb.Close()

	l := NewOrderLocker(rdb, zerolog.Nop())
	orderID := "test-" + time.Now().Format("150405.000000")

	release, err := l.Acquire(ctx, orderID, 5*time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, orderID, 5*time.Second)
	assert.ErrorIs(t, err, domain.ErrRoutingBusy)

	release()
	release2, err := l.Acquire(ctx, orderID, 5*time.Second)
	require.NoError(t, err)
	release2()
}
