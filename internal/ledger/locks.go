package ledger

import (
	"strconv"
	"sync"
)

// keyedMutex serializes work per key. Entries are dropped once nobody holds
// or waits for them, so the map stays as small as the set of busy keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires keys in the order given and returns a func releasing them.
// Callers must always pass keys in the same relative order (family before person).
func (k *keyedMutex) Lock(keys ...string) func() {
	for _, key := range keys {
		k.lockOne(key)
	}
	return func() {
		for i := len(keys) - 1; i >= 0; i-- {
			k.unlockOne(keys[i])
		}
	}
}

func (k *keyedMutex) lockOne(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
}

func (k *keyedMutex) unlockOne(key string) {
	k.mu.Lock()
	l := k.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	l.Unlock()
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func familyKey(id int64) string { return "family:" + strconv.FormatInt(id, 10) }
func personKey(id int64) string { return "person:" + strconv.FormatInt(id, 10) }
