// Package resstore implements the ResourceStore capability set
// (component design §4.7): it resolves the allocation requests a
// ResourceScheduler queues during a frame's ScheduleResources
// pass into concrete backend resources, performs first-fit
// aliasing of resources whose usage timelines do not overlap, and
// owns the frame-versioned upload ring for CPU-sourced data.
//
// It is adapted from the teacher's global mesh/texture storage
// pools (storage.go, texture.go) and the staging-buffer FIFO
// discipline (staging.go), scoped down to the single-threaded,
// rebuild-from-scratch-per-frame allocation model this scheduler
// assumes.
package resstore

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
	"github.com/kestrelgfx/rendergraph/schedgraph"
)

// resourceRecord is the store's bookkeeping for one resource
// across a frame: its scheduling info, its eventual backend
// handle, and (if it receives CPU writes) its upload ring.
type resourceRecord struct {
	name   name.Name
	info   *schedgraph.SchedulingInfo
	handle gpu.ResourceHandle
	ring   *UploadRing
}

// Store implements schedgraph.Store and schedgraph.HandleResolver
// against a gpu.Backend.
type Store struct {
	backend gpu.Backend

	mu       sync.Mutex
	pending  []schedgraph.AllocRequest
	byName   map[name.Name]*resourceRecord
	byID     map[uint32]*resourceRecord
	resolved bool
}

// New creates an empty Store bound to backend.
func New(backend gpu.Backend) *Store {
	return &Store{
		backend: backend,
		byName:  make(map[name.Name]*resourceRecord),
		byID:    make(map[uint32]*resourceRecord),
	}
}

// QueueAllocation implements schedgraph.Store: it records the
// request and creates the resource's SchedulingInfo immediately,
// since ResourceScheduler needs to read it back (for mip counts
// and typeless-format checks) in the same call that queues it.
func (s *Store) QueueAllocation(req schedgraph.AllocRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, req)
	rec := &resourceRecord{name: req.Resource, info: schedgraph.NewSchedulingInfo(req.Resource, req.Format)}
	if old, ok := s.byID[resourceID(req.Resource)]; ok {
		rec.ring = old.ring
	}
	s.byName[req.Resource] = rec
	s.byID[resourceID(req.Resource)] = rec
}

// SchedulingInfoFor implements schedgraph.Store.
func (s *Store) SchedulingInfoFor(n name.Name) *schedgraph.SchedulingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[n]
	if !ok {
		return nil
	}
	return rec.info
}

// Handle implements schedgraph.HandleResolver. It returns nil
// until Resolve has run for the resource.
func (s *Store) Handle(id uint32) gpu.ResourceHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil
	}
	return rec.handle
}

// GetPerResourceData returns a resource's scheduling info and
// backend handle, plus whether it has been scheduled at all this
// frame.
func (s *Store) GetPerResourceData(n name.Name) (*schedgraph.SchedulingInfo, gpu.ResourceHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byName[n]
	if !ok {
		return nil, nil, false
	}
	return rec.info, rec.handle, true
}

// Resolve allocates backend storage for every resource queued
// this frame, aliasing resources whose ResourceTimelines (from
// the built PassGraph) do not overlap and whose format allows it.
// It must be called once per frame, after Graph.Build.
func (s *Store) Resolve(timelines map[uint32]schedgraph.ResourceUsageTimeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type aliasCandidate struct {
		id       uint32
		rec      *resourceRecord
		timeline schedgraph.ResourceUsageTimeline
		size     int64
	}
	var aliasable []aliasCandidate
	var exclusive []*resourceRecord

	for _, req := range s.pending {
		id := resourceID(req.Resource)
		rec := s.byID[id]
		tl := timelines[id]
		size := estimateSize(req.Format)
		if rec.info.CanBeAliased {
			aliasable = append(aliasable, aliasCandidate{id: id, rec: rec, timeline: tl, size: size})
		} else {
			exclusive = append(exclusive, rec)
		}
	}

	sort.Slice(aliasable, func(i, j int) bool { return aliasable[i].timeline.First < aliasable[j].timeline.First })

	type heapBlock struct {
		offset, size int64
		busyUntil    int
	}
	var blocks []heapBlock
	var heapTop int64

	for _, c := range aliasable {
		placed := false
		for bi := range blocks {
			b := &blocks[bi]
			if b.size >= c.size && c.timeline.First > b.busyUntil {
				c.rec.info.HeapOffset = b.offset
				b.busyUntil = c.timeline.Last
				placed = true
				break
			}
		}
		if !placed {
			c.rec.info.HeapOffset = heapTop
			blocks = append(blocks, heapBlock{offset: heapTop, size: c.size, busyUntil: c.timeline.Last})
			heapTop += c.size
		}
		if err := s.allocate(c.rec); err != nil {
			return errors.Wrapf(err, "resource %q", c.rec.name.String())
		}
	}
	for _, rec := range exclusive {
		if err := s.allocate(rec); err != nil {
			return errors.Wrapf(err, "resource %q", rec.name.String())
		}
	}

	s.resolved = true
	return nil
}

func (s *Store) allocate(rec *resourceRecord) error {
	f := rec.info.Format
	if f.Kind == schedgraph.KindBuffer {
		h, err := s.backend.AllocateBuffer(gpu.BufferDesc{
			Size:           int64(f.Dimensions.Width),
			ExpectedStates: rec.info.ExpectedStates,
			HeapOffset:     rec.info.HeapOffset,
			Aliased:        rec.info.CanBeAliased,
		})
		if err != nil {
			return err
		}
		rec.handle = h
		return nil
	}
	h, err := s.backend.AllocateTexture(gpu.TextureDesc{
		Width: f.Dimensions.Width, Height: f.Dimensions.Height, Depth: f.Dimensions.Depth,
		Layers: max1(f.Layers), Mips: max1(f.Mips),
		Format: f.Data.Format, Typeless: f.Data.Typeless,
		ExpectedStates: rec.info.ExpectedStates,
		HeapOffset:     rec.info.HeapOffset,
		Aliased:        rec.info.CanBeAliased,
	})
	if err != nil {
		return err
	}
	rec.handle = h
	return nil
}

// Clear drops every resource record, preparing the store for the
// next frame's allocations. Resources are rebuilt from scratch
// each frame per the scheduler's no-cross-frame-reuse model (§1);
// upload rings, which intentionally do span frames, are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	rings := make(map[uint32]*UploadRing, len(s.byID))
	for id, rec := range s.byID {
		if rec.ring != nil {
			rings[id] = rec.ring
		}
	}
	s.pending = nil
	s.byName = make(map[name.Name]*resourceRecord)
	s.byID = make(map[uint32]*resourceRecord)
	s.resolved = false
	for id, ring := range rings {
		s.byID[id] = &resourceRecord{ring: ring}
	}
}

// UploadRingFor returns the upload ring for n, creating one on
// first use.
func (s *Store) UploadRingFor(n name.Name) *UploadRing {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := resourceID(n)
	rec, ok := s.byID[id]
	if !ok {
		rec = &resourceRecord{name: n}
		s.byID[id] = rec
	}
	if rec.ring == nil {
		rec.ring = NewUploadRing()
	}
	return rec.ring
}

func resourceID(n name.Name) uint32 {
	return name.PackSubresource(n, 0).ResolveID()
}

func estimateSize(f schedgraph.ResourceFormat) int64 {
	if f.Kind == schedgraph.KindBuffer {
		return int64(f.Dimensions.Width)
	}
	bpp := int64(4)
	return int64(f.Dimensions.Width) * int64(f.Dimensions.Height) * max1_64(int64(f.Dimensions.Depth)) * bpp * int64(max1(f.Layers))
}

func max1(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}

func max1_64(v int64) int64 {
	if v <= 0 {
		return 1
	}
	return v
}
