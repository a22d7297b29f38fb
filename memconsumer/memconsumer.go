// Package memconsumer implements the MemoryConsumer accounting surface
// and the amortizing MemoryPool described in spec.md §4.3, plus the
// MemoryManager interface external callers must implement.
//
// Grounded on the teacher's general resource-registration idiom
// (erigon-lib components register with a shared quota and deregister
// on close); concrete sizing helpers reuse internal/mathutil, itself
// adapted from erigon-lib/common/math/integer.go.
package memconsumer

import (
	"context"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"

	"github.com/rowbatch/colexec/colerr"
	"github.com/rowbatch/colexec/internal/mathutil"
)

// MemoryManager is the external collaborator that grants and revokes
// byte budget across registered consumers.
type MemoryManager interface {
	// RegisterRequester assigns id an entry in the manager's books.
	RegisterRequester(id uuid.UUID)
	// TryGrow requests n additional bytes for id. It may block until
	// granted or return a ResourcesExhausted error.
	TryGrow(ctx context.Context, id uuid.UUID, n uint64) error
	// Shrink releases n bytes for id unconditionally.
	Shrink(id uuid.UUID, n uint64)
	// DropConsumer deregisters id, reporting its final used balance.
	DropConsumer(id uuid.UUID, used uint64)
}

// SpillFunc is invoked by the manager under memory pressure. The core
// aggregation consumer always rejects spill (spec.md §4.3/§9).
type SpillFunc func(ctx context.Context) error

// RejectSpill is the SpillFunc every core consumer installs.
func RejectSpill(ctx context.Context) error {
	return colerr.ResourcesExhaustedf("memconsumer: spill requested but unsupported")
}

// MemoryConsumer is one registered participant in a MemoryManager's
// shared budget. It is not safe for concurrent use from multiple
// goroutines without external synchronization — matching the single-
// threaded-per-operator-stream model of spec.md §5.
type MemoryConsumer struct {
	id      uuid.UUID
	name    string
	manager MemoryManager
	spill   SpillFunc
	used    uint64

	reentrant bool
}

// New registers a new MemoryConsumer named name against manager.
func New(manager MemoryManager, name string, spill SpillFunc) *MemoryConsumer {
	id := uuid.New()
	manager.RegisterRequester(id)
	if spill == nil {
		spill = RejectSpill
	}
	return &MemoryConsumer{id: id, name: name, manager: manager, spill: spill}
}

// ID returns the consumer's registered identity.
func (c *MemoryConsumer) ID() uuid.UUID { return c.id }

// Used returns the bytes currently attributed to this consumer.
func (c *MemoryConsumer) Used() uint64 { return c.used }

// TryGrow requests n additional bytes, blocking per the manager's
// policy until granted or denied. Must not be called re-entrantly from
// within a Spill callback.
func (c *MemoryConsumer) TryGrow(ctx context.Context, n uint64) error {
	if c.reentrant {
		return colerr.Internalf("memconsumer %s: try_grow re-entered from spill callback", c.name)
	}
	if err := c.manager.TryGrow(ctx, c.id, n); err != nil {
		return err
	}
	sum, overflow := mathutil.SafeAdd(c.used, n)
	if overflow {
		return colerr.Internalf("memconsumer %s: used-byte counter overflow", c.name)
	}
	c.used = sum
	return nil
}

// Shrink releases n bytes unconditionally.
func (c *MemoryConsumer) Shrink(n uint64) {
	if n > c.used {
		n = c.used
	}
	c.used -= n
	c.manager.Shrink(c.id, n)
}

// Spill invokes the installed spill callback. The core's own
// consumers install RejectSpill.
func (c *MemoryConsumer) Spill(ctx context.Context) error {
	c.reentrant = true
	defer func() { c.reentrant = false }()
	return c.spill(ctx)
}

// Close reports the consumer's final balance and deregisters it. Safe
// to call multiple times.
func (c *MemoryConsumer) Close() {
	c.manager.DropConsumer(c.id, c.used)
	c.used = 0
}

// Pool amortizes many small allocation requests against a consumer's
// try_grow calls, trading precision for fewer round trips and less
// contention on the shared manager. A Pool is a stack-scoped object:
// its Close returns unused slack with Shrink.
type Pool struct {
	mu        sync.Mutex
	consumer  *MemoryConsumer
	blockSize uint64
	remaining uint64
}

// DefaultBlockSize is the reference 1 MiB block size.
const DefaultBlockSize = uint64(datasize.MB)

// NewPool creates a Pool over consumer with the given block size.
func NewPool(consumer *MemoryConsumer, blockSize uint64) *Pool {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &Pool{consumer: consumer, blockSize: blockSize}
}

// Alloc grants n bytes from the pool's slack, requesting a new block
// from the consumer if insufficient slack remains.
func (p *Pool) Alloc(ctx context.Context, n uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= p.remaining {
		p.remaining -= n
		return nil
	}
	deficit := n - p.remaining
	grant := mathutil.Max(deficit, p.blockSize)
	if err := p.consumer.TryGrow(ctx, grant); err != nil {
		return err
	}
	p.remaining = grant - deficit
	return nil
}

// Close returns unused slack to the consumer.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining > 0 {
		p.consumer.Shrink(p.remaining)
		p.remaining = 0
	}
}
