package reprice

import "sync"

// keyLock is a single-flight guard keyed on (itemID, sku). A second
// acquisition for a held key fails immediately instead of queueing, so
// concurrent triggers for the same listing are rejected rather than
// serialized.
type keyLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyLock() *keyLock {
	return &keyLock{held: make(map[string]struct{})}
}

func lockKey(itemID, sku string) string {
	return itemID + "|" + sku
}

// tryAcquire takes the key if free, returning false when it is already
// held.
func (l *keyLock) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *keyLock) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
