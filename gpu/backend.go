// Copyright 2026 The rendergraph Authors. All rights reserved.

// Package gpu defines the abstract GPU capability surface the
// scheduler submits plans against. It deliberately stops short of
// a concrete device, command-list or descriptor binding model —
// those concerns belong to a real backend implementation (see the
// gpu/fake subpackage for one built for tests).
package gpu

import "context"

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may hold external memory
// that is not managed by the garbage collector, so Destroy must
// be called explicitly to release it.
type Destroyer interface {
	Destroy()
}

// State is a mask describing how a subresource is being used at
// a given point in the plan. It folds together the synchronization
// scope, the memory access scope and (for images) the layout that
// the teacher's driver package kept as three separate types, since
// the scheduler only ever needs to know "what state is this in"
// and "is that state read-only", never construct a concrete barrier
// mask for a real API.
type State uint32

// Resource states.
const (
	StateCommon State = 1 << iota
	StateRenderTarget
	StateDepthWrite
	StateDepthRead
	StateShaderRead
	StateShaderWrite
	StateUnorderedAccess
	StateCopySrc
	StateCopyDst
	StateResolveSrc
	StateResolveDst
	StatePresent
	StateIndirectArg
	StateRayTracingAS
	StateNone State = 0
)

// IsReadOnly reports whether every state bit set in s only reads
// the subresource.
func IsReadOnly(s State) bool {
	const writeMask = StateRenderTarget | StateDepthWrite | StateShaderWrite |
		StateUnorderedAccess | StateCopyDst | StateResolveDst
	return s != StateNone && s&writeMask == 0
}

// Or combines states, as a named function so planner code that is
// generic over State does not need to special-case the bitwise
// operator.
func Or(a, b State) State { return a | b }

// And intersects states.
func And(a, b State) State { return a & b }

// Queue identifies one of the backend's command queues by index.
// Queue 0 is conventionally the graphics queue.
type Queue int

// CommandList is a recorded sequence of GPU commands targeting a
// single queue. The scheduler only ever records transition
// barriers and delegates pass work recording to the Pass callback
// (see the schedgraph package), so this interface exposes just
// enough to do that.
type CommandList interface {
	Destroyer

	// Begin prepares the command list for recording.
	Begin() error

	// Transition records a batch of subresource state transitions.
	Transition(t []Transition)

	// End ends recording and prepares the command list for
	// submission. Upon failure the command list is reset.
	End() error
}

// Transition describes a single subresource state change.
type Transition struct {
	Resource   ResourceHandle
	Subresource int
	Before      State
	After       State
	// Begin marks the first half of a split barrier; End marks the
	// second. A non-split transition sets both.
	Begin, End bool
}

// ResourceHandle is an opaque backend-owned resource identity.
// The scheduler never dereferences it; it is threaded through
// Transition and Batch purely for the backend's own bookkeeping.
type ResourceHandle interface{}

// Fence is a GPU-side synchronization object. A Fence signaled by
// one queue's batch can be waited on by another queue's batch to
// establish a happens-before relation without the CPU blocking.
type Fence interface {
	// ID returns a value unique among fences created by the same
	// Backend, for use in log messages and tests.
	ID() uint64
}

// Batch is a unit of submission to a single queue: a set of
// command lists to execute in order, fences to wait on before
// starting, and an optional fence to signal on completion.
type Batch struct {
	Queue        Queue
	CommandLists []CommandList
	WaitFences   []Fence
	SignalFence  Fence // nil if no other queue depends on this batch
}

// Backend is the abstract GraphicsBackend capability set the
// scheduler consumes. A concrete implementation wraps a real
// device API (or, for the fake backend, an in-memory model).
type Backend interface {
	// AllocateGraphicsCommandList returns a new, unrecorded command
	// list bound to the graphics queue.
	AllocateGraphicsCommandList() (CommandList, error)

	// AllocateComputeCommandList returns a new, unrecorded command
	// list bound to an async compute queue.
	AllocateComputeCommandList() (CommandList, error)

	// QueueCount returns the number of independently schedulable
	// queues this backend exposes. Queue indices in submitted
	// batches must be in [0, QueueCount).
	QueueCount() int

	// CreateFence creates a new, unsignaled Fence.
	CreateFence() (Fence, error)

	// QueryFence reports whether f has been signaled.
	QueryFence(f Fence) (done bool, err error)

	// WaitFence blocks until f is signaled or ctx is done.
	WaitFence(ctx context.Context, f Fence) error

	// Submit submits b to its queue. If b.SignalFence is set, the
	// backend signals it once every command list in the batch has
	// completed execution.
	Submit(ctx context.Context, b Batch) error

	// IsTransitionSupportedOnQueue reports whether q can legally
	// perform a transition from before to after. Some transitions
	// (e.g. into StateRenderTarget) are only legal on the graphics
	// queue; the planner reroutes those it cannot perform locally.
	IsTransitionSupportedOnQueue(q Queue, before, after State) bool

	// AllocateTexture creates backend storage for a texture
	// resource honoring desc. The ResourceStore calls this once
	// per frame for every resource a pass declared via NewTexture
	// / NewRenderTarget / NewDepthStencil, after every pass has
	// finished scheduling, so that the requested format and the
	// OR of every requested state are both known.
	AllocateTexture(desc TextureDesc) (ResourceHandle, error)

	// AllocateBuffer creates backend storage for a buffer
	// resource honoring desc.
	AllocateBuffer(desc BufferDesc) (ResourceHandle, error)
}

// TextureDesc describes the backend-facing shape of a texture
// allocation request.
type TextureDesc struct {
	Width, Height, Depth int
	Layers, Mips         int
	Format               int
	Typeless             bool
	ExpectedStates       State
	HeapOffset           int64
	Aliased              bool
}

// BufferDesc describes the backend-facing shape of a buffer
// allocation request.
type BufferDesc struct {
	Size           int64
	ExpectedStates State
	HeapOffset     int64
	Aliased        bool
}
