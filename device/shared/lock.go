package shared

import "sync"

// LockMasker serialises critical sections with a mutex. It stands in for
// interrupt masking on hosts, where the "interrupt" is another goroutine.
type LockMasker struct {
	mu sync.Mutex
}

// Disable acquires the lock.
func (m *LockMasker) Disable() State {
	m.mu.Lock()
	return 0
}

// Restore releases the lock.
func (m *LockMasker) Restore(State) {
	m.mu.Unlock()
}
