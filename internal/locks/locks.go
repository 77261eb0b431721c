// Package locks provides the in-process serialization boundary for
// balance-affecting operations. Capital operations mutate a single investor's
// ledger and take that investor's mutex; operations that read or change the
// shared stock pool (purchases, sale confirmation and void, layaway
// reservations) take the store-wide exclusive lock instead. Per-investor
// holders also hold the store lock in shared mode, so a store-wide operation
// never interleaves with any per-investor mutation.
package locks

import "sync"

// Registry hands out serialization locks keyed by investor ID.
// The zero value is not usable; construct with NewRegistry.
type Registry struct {
	store sync.RWMutex

	mu        sync.Mutex
	investors map[string]*sync.Mutex
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{investors: make(map[string]*sync.Mutex)}
}

func (r *Registry) investor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.investors[id]
	if !ok {
		m = &sync.Mutex{}
		r.investors[id] = m
	}
	return m
}

// LockInvestor serializes against all other operations on the same investor
// and against any in-flight store-wide operation. The returned function
// releases the lock and must be called exactly once, after the surrounding
// database transaction has committed or rolled back.
func (r *Registry) LockInvestor(id string) func() {
	r.store.RLock()
	m := r.investor(id)
	m.Lock()
	return func() {
		m.Unlock()
		r.store.RUnlock()
	}
}

// LockStore serializes against every per-investor and store-wide operation.
// Used by sale confirmation and void, whose lot consumption spans investors.
func (r *Registry) LockStore() func() {
	r.store.Lock()
	return r.store.Unlock
}
