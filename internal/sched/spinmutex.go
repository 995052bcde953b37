package sched

import (
	"runtime"
	"sync"
	"time"
)

// spinBudget bounds how long HybridSpinMutex busy-spins before parking on
// the underlying mutex, matching the ~500us budget called out for strand
// critical sections.
const spinBudget = 500 * time.Microsecond

// HybridSpinMutex spins briefly, yielding the processor between attempts,
// then falls back to a blocking Lock. It is meant for the short critical
// sections around a Strand's pending-queue bookkeeping, not general purpose
// locking.
type HybridSpinMutex struct {
	mu sync.Mutex
}

// TryLock attempts to acquire the mutex without blocking.
func (m *HybridSpinMutex) TryLock() bool {
	return m.mu.TryLock()
}

// Lock spins for up to spinBudget before blocking.
func (m *HybridSpinMutex) Lock() {
	deadline := time.Now().Add(spinBudget)
	for time.Now().Before(deadline) {
		if m.mu.TryLock() {
			return
		}
		runtime.Gosched()
	}
	m.mu.Lock()
}

func (m *HybridSpinMutex) Unlock() {
	m.mu.Unlock()
}
