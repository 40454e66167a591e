package keylock

import (
	"sync"
)

// Registry grants mutual exclusion on a per-key basis. Lock entries are
// created on demand and removed as soon as the last holder or waiter
// releases, so the map never grows beyond the number of in-flight keys.
//
// Locks are cooperative and non-reentrant: a goroutine acquiring a key it
// already holds will deadlock.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Registry {
	return &Registry{locks: make(map[string]*entry)}
}

// Acquire blocks until the caller holds the lock for key.
func (r *Registry) Acquire(key string) {
	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		e = &entry{}
		r.locks[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
}

// Release unlocks key. The entry is dropped from the registry once no other
// goroutine holds or waits on it.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	e, ok := r.locks[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.locks, key)
	}
	r.mu.Unlock()

	e.mu.Unlock()
}

// Len reports how many keys currently have live lock entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
