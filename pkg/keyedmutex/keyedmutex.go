// Package keyedmutex provides striped per-key locking. Operations on
// the same key serialize; operations on different keys only contend
// when their keys hash to the same stripe.
package keyedmutex

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// KeyedMutex serializes work per key across a fixed set of stripes.
// The zero value is not usable; use New.
type KeyedMutex struct {
	stripes []sync.Mutex
}

// New creates a keyed mutex with the given stripe count. Counts below
// one fall back to the default.
func New(stripes int) *KeyedMutex {
	if stripes < 1 {
		stripes = defaultStripes
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, stripes)}
}

// Lock acquires the stripe for the key and returns its unlock func.
func (m *KeyedMutex) Lock(key string) func() {
	stripe := &m.stripes[m.stripeFor(key)]
	stripe.Lock()
	return stripe.Unlock
}

// WithLock runs fn while holding the key's stripe.
func (m *KeyedMutex) WithLock(key string, fn func() error) error {
	unlock := m.Lock(key)
	defer unlock()
	return fn()
}

func (m *KeyedMutex) stripeFor(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % uint32(len(m.stripes))
}
