// Package keylock provee exclusión mutua por clave con soporte de context.Context.
// Claves distintas nunca compiten entre sí; las entradas se liberan cuando nadie las usa.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Table tabla de locks por clave. El valor cero no es utilizable; usar New.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New crea una tabla vacía.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Lock bloquea la clave hasta obtenerla o hasta que ctx termine.
// Devuelve la función que libera el lock; debe llamarse exactamente una vez.
func (t *Table) Lock(ctx context.Context, key string) (func(), error) {
	e := t.acquireRef(key)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		t.releaseRef(key, e)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			t.releaseRef(key, e)
		})
	}, nil
}

// TryLock intenta tomar la clave sin esperar.
func (t *Table) TryLock(key string) (func(), bool) {
	e := t.acquireRef(key)
	select {
	case e.sem <- struct{}{}:
	default:
		t.releaseRef(key, e)
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			t.releaseRef(key, e)
		})
	}, true
}

// LockAll adquiere varias claves en el orden recibido; el llamador debe pasarlas ordenadas
// para evitar deadlocks. Si falla alguna, libera las ya tomadas.
func (t *Table) LockAll(ctx context.Context, keys []string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unlock, err := t.Lock(ctx, k)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return unlockAll, nil
}

// Len cantidad de claves con lock tomado o en espera.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) acquireRef(key string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		t.entries[key] = e
	}
	e.refs++
	return e
}

func (t *Table) releaseRef(key string, e *entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
}
