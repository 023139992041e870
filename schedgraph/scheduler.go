package schedgraph

import (
	"github.com/pkg/errors"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
)

// AllocStrategy enumerates the shapes of mutation a
// ResourceScheduler call can request of the ResourceStore,
// replacing the teacher's ad hoc per-call configurator closures
// (§9) with a value that is itself inspectable and testable.
type AllocStrategy int

// Allocation strategies.
const (
	StrategyNewTexture AllocStrategy = iota
	StrategyUseAsRenderTarget
	StrategyUseAsDepthStencil
	StrategyUseAsShaderResource
	StrategyUseAsUnorderedAccess
	StrategyNewBuffer
	StrategyUseAsConstantBuffer
)

// AllocRequest is queued against the ResourceStore by the
// ResourceScheduler for later resolution, once every pass has
// declared its usage for the frame.
type AllocRequest struct {
	Strategy AllocStrategy
	Resource name.Name
	Format   ResourceFormat
}

// Store is the subset of the ResourceStore capability set the
// ResourceScheduler needs. The resstore package's Store type
// implements it.
type Store interface {
	QueueAllocation(req AllocRequest)
	SchedulingInfoFor(n name.Name) *SchedulingInfo
}

// ResourceScheduler is the per-pass declarative front end:
// NewTexture / UseRenderTarget / ReadTexture / WriteTexture /
// ExecuteOnQueue / UseRayTracing, per component design §4.1.
type ResourceScheduler struct {
	graph   *Graph
	names   *name.Table
	store   Store
	node    *Node
	touched map[name.Name]struct{}
}

// NewResourceScheduler creates a scheduler bound to the given
// pass node for the duration of that pass's ScheduleResources
// callback.
func NewResourceScheduler(graph *Graph, names *name.Table, store Store, node *Node) *ResourceScheduler {
	return &ResourceScheduler{
		graph:   graph,
		names:   names,
		store:   store,
		node:    node,
		touched: make(map[name.Name]struct{}),
	}
}

func (s *ResourceScheduler) guardOnce(n name.Name) error {
	if _, ok := s.touched[n]; ok {
		return errors.Wrapf(ErrResourceAlreadyUsed, "pass %q, resource %q", s.node.Name(), n.String())
	}
	s.touched[n] = struct{}{}
	return nil
}

func fullMips(mips []int, count int) []int {
	if len(mips) > 0 {
		return mips
	}
	out := make([]int, count)
	for i := range out {
		out[i] = i
	}
	return out
}

// NewRenderTarget allocates a new color render target and
// registers the write dependency for the current pass.
func (s *ResourceScheduler) NewRenderTarget(resourceName string, format ResourceFormat) (name.Name, error) {
	n := s.names.Intern(resourceName)
	if err := s.guardOnce(n); err != nil {
		return n, err
	}
	s.store.QueueAllocation(AllocRequest{Strategy: StrategyNewTexture, Resource: n, Format: format})
	mips := fullMips(nil, max(format.Mips, 1))
	return n, s.writeSubresources(n, mips, gpu.StateRenderTarget, AccessRenderTarget, 0, false)
}

// NewDepthStencil allocates a new depth/stencil target.
func (s *ResourceScheduler) NewDepthStencil(resourceName string, format ResourceFormat) (name.Name, error) {
	n := s.names.Intern(resourceName)
	if err := s.guardOnce(n); err != nil {
		return n, err
	}
	s.store.QueueAllocation(AllocRequest{Strategy: StrategyNewTexture, Resource: n, Format: format})
	if si := s.store.SchedulingInfoFor(n); si != nil {
		si.DepthStencil = true
	}
	mips := fullMips(nil, max(format.Mips, 1))
	return n, s.writeSubresources(n, mips, gpu.StateDepthWrite, AccessDepthStencil, 0, false)
}

// NewTexture allocates a new texture that is neither a render
// target nor a depth/stencil target at creation time (e.g. a UAV
// target populated by a compute pass).
func (s *ResourceScheduler) NewTexture(resourceName string, format ResourceFormat) (name.Name, error) {
	n := s.names.Intern(resourceName)
	if err := s.guardOnce(n); err != nil {
		return n, err
	}
	s.store.QueueAllocation(AllocRequest{Strategy: StrategyNewTexture, Resource: n, Format: format})
	mips := fullMips(nil, max(format.Mips, 1))
	return n, s.writeSubresources(n, mips, gpu.StateUnorderedAccess, AccessUnorderedAccess, 0, false)
}

// UseRenderTarget declares a write dependency on an existing
// color render target.
func (s *ResourceScheduler) UseRenderTarget(n name.Name, mips []int) error {
	if err := s.guardOnce(n); err != nil {
		return err
	}
	return s.writeSubresourcesMips(n, mips, gpu.StateRenderTarget, AccessRenderTarget)
}

// UseDepthStencil declares a write dependency on an existing
// depth/stencil target.
func (s *ResourceScheduler) UseDepthStencil(n name.Name) error {
	if err := s.guardOnce(n); err != nil {
		return err
	}
	return s.writeSubresourcesMips(n, nil, gpu.StateDepthWrite, AccessDepthStencil)
}

// ReadTexture declares a read dependency. If n was created via
// NewDepthStencil, the request additionally carries StateDepthRead
// (for sampling a depth target as SRV while it is also read for
// depth testing elsewhere in the same level).
func (s *ResourceScheduler) ReadTexture(n name.Name, mips []int, concreteFormat *int) error {
	if err := s.guardOnce(n); err != nil {
		return err
	}
	state := gpu.StateShaderRead
	if si := s.store.SchedulingInfoFor(n); si != nil && si.DepthStencil {
		state |= gpu.StateDepthRead
	}
	return s.readSubresources(n, mips, state, AccessShaderResource, concreteFormat)
}

// WriteTexture declares a write dependency via unordered access
// (e.g. a compute pass writing a storage image).
func (s *ResourceScheduler) WriteTexture(n name.Name, mips []int, concreteFormat *int) error {
	if err := s.guardOnce(n); err != nil {
		return err
	}
	format := 0
	has := false
	if concreteFormat != nil {
		format, has = *concreteFormat, true
	}
	return s.writeSubresourcesFmt(n, mips, gpu.StateUnorderedAccess, AccessUnorderedAccess, format, has, false)
}

// ReadBuffer declares a read dependency on a buffer (subresource
// index is always 0 for buffers).
func (s *ResourceScheduler) ReadBuffer(n name.Name, asConstant bool) error {
	if err := s.guardOnce(n); err != nil {
		return err
	}
	state := gpu.StateShaderRead
	access := AccessShaderResource
	if asConstant {
		access = AccessConstantBuffer
	}
	return s.readSubresources(n, []int{0}, state, access, nil)
}

// WriteBuffer declares a write dependency on a buffer via
// unordered access.
func (s *ResourceScheduler) WriteBuffer(n name.Name) error {
	if err := s.guardOnce(n); err != nil {
		return err
	}
	return s.writeSubresourcesMips(n, []int{0}, gpu.StateUnorderedAccess, AccessUnorderedAccess)
}

// ExecuteOnQueue assigns the current pass to a non-default
// queue.
func (s *ResourceScheduler) ExecuteOnQueue(q gpu.Queue) { s.node.queue = q }

// UseRayTracing flags the current pass as a ray-tracing consumer.
func (s *ResourceScheduler) UseRayTracing() { s.node.usesRayTrace = true }

// writeSubresources is the creation path used by the New*
// constructors; it does not require a concrete format for a
// typeless resource.
func (s *ResourceScheduler) writeSubresources(n name.Name, mips []int, state gpu.State, access AccessMode, fmt int, hasFmt bool) error {
	return s.writeSubresourcesFmt(n, mips, state, access, fmt, hasFmt, true)
}

func (s *ResourceScheduler) writeSubresourcesMips(n name.Name, mips []int, state gpu.State, access AccessMode) error {
	return s.writeSubresourcesFmt(n, mips, state, access, 0, false, false)
}

func (s *ResourceScheduler) writeSubresourcesFmt(n name.Name, mips []int, state gpu.State, access AccessMode, fmt int, hasFmt bool, creating bool) error {
	si := s.store.SchedulingInfoFor(n)
	if si == nil {
		return errors.Wrapf(ErrUnscheduledSubresrc, "resource %q", n.String())
	}
	if si.Format.Data.Typeless && !hasFmt && !creating {
		return errors.Wrapf(ErrMissingFormat, "pass %q, resource %q", s.node.Name(), n.String())
	}
	resolved := fullMips(mips, max(si.Format.Mips, 1))
	for _, m := range resolved {
		key := name.PackSubresource(n, m)
		if err := s.graph.RegisterWrite(s.node, key, state); err != nil {
			return err
		}
		si.RecordWrite(s.node.Name(), m, SubresourceInfo{
			RequestedState:    state,
			ConcreteFormat:    fmt,
			HasConcreteFormat: hasFmt,
			Access:            access,
		})
	}
	return nil
}

func (s *ResourceScheduler) readSubresources(n name.Name, mips []int, state gpu.State, access AccessMode, concreteFormat *int) error {
	si := s.store.SchedulingInfoFor(n)
	if si == nil {
		return errors.Wrapf(ErrUnscheduledSubresrc, "resource %q", n.String())
	}
	hasFmt := concreteFormat != nil
	fmtVal := 0
	if hasFmt {
		fmtVal = *concreteFormat
	}
	if si.Format.Data.Typeless && !hasFmt {
		return errors.Wrapf(ErrMissingFormat, "pass %q, resource %q", s.node.Name(), n.String())
	}
	resolved := fullMips(mips, max(si.Format.Mips, 1))
	for _, m := range resolved {
		key := name.PackSubresource(n, m)
		s.graph.RegisterRead(s.node, key, state)
		si.RecordRead(s.node.Name(), m, SubresourceInfo{
			RequestedState:    state,
			ConcreteFormat:    fmtVal,
			HasConcreteFormat: hasFmt,
			Access:            access,
		})
	}
	return nil
}
