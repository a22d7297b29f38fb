// Package refmanager provides a concrete, in-process implementation of
// memconsumer.MemoryManager, since spec.md §1 treats the memory manager
// as an external collaborator and specifies only its contract. This
// repo must still be runnable/testable standalone, so this reference
// manager enforces a shared byte budget across registered consumers
// and retries a blocked grant with jittered backoff via
// github.com/cenkalti/backoff/v4 until it is granted, the context is
// canceled, or the backoff policy gives up.
package refmanager

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/rowbatch/colexec/colerr"
)

// Manager enforces a fixed total byte budget shared by all registered
// consumers.
type Manager struct {
	mu       sync.Mutex
	limit    uint64
	granted  uint64
	balances map[uuid.UUID]uint64

	// MaxWait bounds how long TryGrow will retry a blocked request
	// before surfacing ResourcesExhausted. Zero means 5s.
	MaxWait time.Duration
}

// New creates a Manager with the given total byte budget.
func New(limit uint64) *Manager {
	return &Manager{limit: limit, balances: make(map[uuid.UUID]uint64)}
}

// RegisterRequester implements memconsumer.MemoryManager.
func (m *Manager) RegisterRequester(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] = 0
}

// TryGrow implements memconsumer.MemoryManager, blocking with jittered
// backoff while the budget is exhausted.
func (m *Manager) TryGrow(ctx context.Context, id uuid.UUID, n uint64) error {
	maxWait := m.MaxWait
	if maxWait == 0 {
		maxWait = 5 * time.Second
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(time.Millisecond),
			backoff.WithMaxInterval(50*time.Millisecond),
			backoff.WithMaxElapsedTime(maxWait),
		), ^uint64(0)), ctx)

	op := func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.granted+n > m.limit {
			return colerr.ResourcesExhaustedf("refmanager: budget exhausted: granted=%d requested=%d limit=%d", m.granted, n, m.limit)
		}
		m.granted += n
		m.balances[id] += n
		return nil
	}

	err := backoff.Retry(op, bo)
	if err != nil {
		return colerr.ResourcesExhaustedf("refmanager: try_grow(%d) for %s: %v", n, id, err)
	}
	return nil
}

// Shrink implements memconsumer.MemoryManager.
func (m *Manager) Shrink(id uuid.UUID, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > m.granted {
		n = m.granted
	}
	m.granted -= n
	if bal := m.balances[id]; bal >= n {
		m.balances[id] = bal - n
	} else {
		m.balances[id] = 0
	}
}

// DropConsumer implements memconsumer.MemoryManager.
func (m *Manager) DropConsumer(id uuid.UUID, used uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal := m.balances[id]; bal > 0 {
		if bal > m.granted {
			bal = m.granted
		}
		m.granted -= bal
	}
	delete(m.balances, id)
}

// Outstanding returns the manager's total currently-granted bytes,
// used by tests asserting the memory-accounting invariant from
// spec.md §8 (MemoryConsumer.used == 0 after stream termination).
func (m *Manager) Outstanding() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.granted
}
