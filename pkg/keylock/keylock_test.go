package keylock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/oms-router/pkg/keylock"
)

func TestTable_ExclusionPorClave(t *testing.T) {
	table := keylock.New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := table.Lock(context.Background(), "var-1@loc-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, table.Len(), "las entradas se liberan al terminar")
}

func TestTable_ClavesDistintasNoCompiten(t *testing.T) {
	table := keylock.New()
	unlockA, err := table.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := table.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestTable_RespetaCancelacion(t *testing.T) {
	table := keylock.New()
	unlock, err := table.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = table.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // idempotente
	assert.Equal(t, 0, table.Len())
}

func TestTable_LockAllLiberaSiFalla(t *testing.T) {
	table := keylock.New()
	unlockB, err := table.Lock(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = table.LockAll(ctx, []string{"a", "b", "a"})
	require.Error(t, err)
	unlockB()

	unlock, err := table.LockAll(context.Background(), []string{"a", "b", "a"})
	require.NoError(t, err)
	unlock()
	assert.Equal(t, 0, table.Len())
}

func TestTable_TryLock(t *testing.T) {
	table := keylock.New()
	unlock, ok := table.TryLock("orden-1")
	require.True(t, ok)

	_, ok = table.TryLock("orden-1")
	assert.False(t, ok)

	unlock()
	again, ok := table.TryLock("orden-1")
	require.True(t, ok)
	again()
	assert.Equal(t, 0, table.Len())
}
