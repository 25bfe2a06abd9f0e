// Package keylock exclusión mutua por clave dentro del proceso (un documento,
// una sucursal). Las entradas se liberan cuando nadie las usa.
package keylock

import (
	"context"
	"sync"
)

// KeyLock mutex por clave.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // buffer 1: lleno = tomado
	refs int
}

// New construye un KeyLock vacío.
func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock bloquea hasta tomar la clave o hasta que ctx termine. Devuelve la
// función de liberación; llamarla exactamente una vez.
func (k *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { k.release(key, e, true) }, nil
	case <-ctx.Done():
		k.release(key, e, false)
		return nil, ctx.Err()
	}
}

func (k *KeyLock) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// Len cantidad de claves con al menos un interesado.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
