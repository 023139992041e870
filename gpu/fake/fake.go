// Package fake implements an in-memory gpu.Backend suitable for
// unit tests, where no real device is available. It performs no actual rendering; it only tracks
// enough bookkeeping (fence signal state, recorded transitions) to
// let scheduler-level tests assert on submission order.
package fake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/internal/bitvec"
)

// Name is the factory name this package registers itself under.
const Name = "fake"

func init() {
	gpu.Register(factory{})
}

type factory struct{}

var (
	openOnce sync.Once
	opened   *Backend
)

func (factory) Name() string { return Name }
func (factory) Close()       {}
func (factory) Open() (gpu.Backend, error) {
	openOnce.Do(func() { opened = New(2) })
	return opened, nil
}

// Backend is a fake, in-process implementation of gpu.Backend.
type Backend struct {
	mu         sync.Mutex
	queueCount int
	nextFence  uint64

	// Submitted records every batch passed to Submit, in the
	// order Submit was called, for assertions in tests.
	Submitted []gpu.Batch

	// Unsupported, if non-nil, reports whether a transition from
	// before to after is disallowed on q; nil means everything is
	// allowed everywhere except transitions into
	// gpu.StateRenderTarget or gpu.StateDepthWrite, which only the
	// graphics queue (0) may perform.
	Unsupported func(q gpu.Queue, before, after gpu.State) bool

	// slots assigns each allocated resource a stable integer
	// identity, drawn from a free-list bit vector rather than a
	// monotonic counter so that a future Free hook can return
	// slots to the pool.
	slots bitvec.V[uint64]
}

func (b *Backend) allocSlot() int {
	if b.slots.Rem() == 0 {
		b.slots.Grow(1)
	}
	idx, ok := b.slots.Search()
	if !ok {
		// Grow guarantees at least one free bit immediately after.
		panic("fake: no free slot after Grow")
	}
	b.slots.Set(idx)
	return idx
}

// New creates a fake backend exposing queueCount independent
// queues.
func New(queueCount int) *Backend {
	return &Backend{queueCount: queueCount}
}

func (b *Backend) QueueCount() int { return b.queueCount }

func (b *Backend) AllocateGraphicsCommandList() (gpu.CommandList, error) {
	return &cmdList{queue: 0}, nil
}

func (b *Backend) AllocateComputeCommandList() (gpu.CommandList, error) {
	return &cmdList{queue: 1}, nil
}

func (b *Backend) CreateFence() (gpu.Fence, error) {
	id := atomic.AddUint64(&b.nextFence, 1)
	return &fence{id: id}, nil
}

func (b *Backend) QueryFence(f gpu.Fence) (bool, error) {
	ff, ok := f.(*fence)
	if !ok {
		return false, errors.New("fake: foreign fence")
	}
	return atomic.LoadUint32(&ff.signaled) != 0, nil
}

func (b *Backend) WaitFence(ctx context.Context, f gpu.Fence) error {
	ff, ok := f.(*fence)
	if !ok {
		return errors.New("fake: foreign fence")
	}
	for atomic.LoadUint32(&ff.signaled) == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

func (b *Backend) Submit(ctx context.Context, batch gpu.Batch) error {
	for _, f := range batch.WaitFences {
		if err := b.WaitFence(ctx, f); err != nil {
			return errors.Wrap(err, "fake: submit wait")
		}
	}
	for _, cl := range batch.CommandLists {
		fcl, ok := cl.(*cmdList)
		if !ok {
			return errors.New("fake: foreign command list")
		}
		if !fcl.ended {
			return errors.Errorf("fake: command list for queue %d submitted without End", batch.Queue)
		}
	}
	b.mu.Lock()
	b.Submitted = append(b.Submitted, batch)
	b.mu.Unlock()
	if batch.SignalFence != nil {
		ff, ok := batch.SignalFence.(*fence)
		if !ok {
			return errors.New("fake: foreign fence")
		}
		atomic.StoreUint32(&ff.signaled, 1)
	}
	return nil
}

// AllocateTexture returns a handle backed by nothing but a copy
// of desc; the fake backend does no real GPU allocation.
func (b *Backend) AllocateTexture(desc gpu.TextureDesc) (gpu.ResourceHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &fakeResource{slot: b.allocSlot(), texture: &desc}, nil
}

// AllocateBuffer returns a handle backed by a copy of desc.
func (b *Backend) AllocateBuffer(desc gpu.BufferDesc) (gpu.ResourceHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &fakeResource{slot: b.allocSlot(), buffer: &desc}, nil
}

type fakeResource struct {
	slot    int
	texture *gpu.TextureDesc
	buffer  *gpu.BufferDesc
}

func (b *Backend) IsTransitionSupportedOnQueue(q gpu.Queue, before, after gpu.State) bool {
	if b.Unsupported != nil {
		return !b.Unsupported(q, before, after)
	}
	if after == gpu.StateRenderTarget || after == gpu.StateDepthWrite {
		return q == 0
	}
	return true
}

type fence struct {
	id       uint64
	signaled uint32
}

func (f *fence) ID() uint64 { return f.id }

type cmdList struct {
	queue       gpu.Queue
	transitions []gpu.Transition
	ended       bool
	destroyed   bool
}

func (c *cmdList) Begin() error {
	c.ended = false
	c.transitions = c.transitions[:0]
	return nil
}

func (c *cmdList) Transition(t []gpu.Transition) {
	c.transitions = append(c.transitions, t...)
}

func (c *cmdList) End() error {
	c.ended = true
	return nil
}

func (c *cmdList) Destroy() { c.destroyed = true }
