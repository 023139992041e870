package schedgraph

import (
	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
)

// Kind discriminates the shape of a resource.
type Kind int

// Resource kinds.
const (
	KindTexture2D Kind = iota
	KindTexture2DArray
	KindTextureCube
	KindBuffer
)

// DataType distinguishes a resource backed by a concrete pixel
// format from one created typeless, which requires every use site
// to supply a concrete shader-visible format (§4.1).
type DataType struct {
	Typeless bool
	Format   int // backend-defined pixel format id; meaningless if Typeless
}

// Dim3D mirrors the three-dimensional extent a resource is
// created with.
type Dim3D struct{ Width, Height, Depth int }

// ResourceFormat carries the shape information SchedulingInfo
// needs regardless of the concrete backend resource type.
type ResourceFormat struct {
	Kind       Kind
	Dimensions Dim3D
	Layers     int
	Mips       int
	Samples    int
	Data       DataType
	// CrossFrameRead disables aliasing for this resource: its
	// contents must survive beyond the frame that produced them.
	CrossFrameRead bool
}

// AccessMode is a bitmask recording how a subresource is bound at
// a particular use, informing the ResourceStore which kind of
// view to create.
type AccessMode uint8

// Access modes.
const (
	AccessRenderTarget AccessMode = 1 << iota
	AccessDepthStencil
	AccessShaderResource
	AccessUnorderedAccess
	AccessConstantBuffer
)

// SubresourceInfo records a single pass's requested usage of a
// subresource.
type SubresourceInfo struct {
	RequestedState    gpu.State
	ConcreteFormat    int
	HasConcreteFormat bool
	Access            AccessMode
}

// PassInfo aggregates everything a single pass requested of a
// single resource.
type PassInfo struct {
	Subresources        map[int]SubresourceInfo
	NeedsUAVBarrier      bool
	NeedsAliasingBarrier bool
}

// SchedulingInfo is the per-resource record built up as passes
// declare their usage. It is the hand-off point between the
// ResourceScheduler front end and the ResourceStore collaborator.
type SchedulingInfo struct {
	Name   name.Name
	Format ResourceFormat

	ExpectedStates gpu.State

	PassInfo map[string]*PassInfo

	// CombinedReadStates and WriteState are keyed by subresource
	// index. A subresource absent from WriteState was never
	// written this frame (its incoming state is gpu.StateCommon).
	CombinedReadStates map[int]gpu.State
	WriteState         map[int]gpu.State

	HeapOffset   int64
	CanBeAliased bool

	// DepthStencil marks a resource created via NewDepthStencil, so
	// a later ReadTexture of it can infer the DepthRead state
	// augmentation without the caller having to restate it.
	DepthStencil bool
}

// NewSchedulingInfo creates an empty record for the given
// resource.
func NewSchedulingInfo(n name.Name, format ResourceFormat) *SchedulingInfo {
	return &SchedulingInfo{
		Name:               n,
		Format:             format,
		PassInfo:           make(map[string]*PassInfo),
		CombinedReadStates: make(map[int]gpu.State),
		WriteState:         make(map[int]gpu.State),
		CanBeAliased:       !format.CrossFrameRead,
	}
}

func (si *SchedulingInfo) passInfo(pass string) *PassInfo {
	pi, ok := si.PassInfo[pass]
	if !ok {
		pi = &PassInfo{Subresources: make(map[int]SubresourceInfo)}
		si.PassInfo[pass] = pi
	}
	return pi
}

// RecordRead merges a read request for subresource into the
// record.
func (si *SchedulingInfo) RecordRead(pass string, subresource int, info SubresourceInfo) {
	si.ExpectedStates |= info.RequestedState
	si.CombinedReadStates[subresource] = si.CombinedReadStates[subresource] | info.RequestedState
	pi := si.passInfo(pass)
	pi.Subresources[subresource] = info
	if info.Access == AccessUnorderedAccess {
		pi.NeedsUAVBarrier = true
	}
}

// RecordWrite merges a write request for subresource into the
// record.
func (si *SchedulingInfo) RecordWrite(pass string, subresource int, info SubresourceInfo) {
	si.ExpectedStates |= info.RequestedState
	si.WriteState[subresource] = info.RequestedState
	pi := si.passInfo(pass)
	pi.Subresources[subresource] = info
	if info.Access == AccessUnorderedAccess {
		pi.NeedsUAVBarrier = true
	}
}

// ResourceUsageTimeline is the [First, Last] global execution
// index range, both ends inclusive, over which a resource is touched, used by the
// aliasing allocator to decide which resources may share memory.
type ResourceUsageTimeline struct {
	First, Last int
}

// Overlaps reports whether two timelines share any execution
// index.
func (t ResourceUsageTimeline) Overlaps(o ResourceUsageTimeline) bool {
	return t.First <= o.Last && o.First <= t.Last
}
