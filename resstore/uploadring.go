package resstore

import (
	"sync"

	"github.com/kestrelgfx/rendergraph/gpu"
)

// uploadEntry pairs a CPU-writable buffer with the frame number
// it was requested for.
type uploadEntry struct {
	buf   gpu.ResourceHandle
	frame uint64
	valid bool
}

// UploadRing implements the double-buffered CPU->GPU upload
// discipline of §3.1/§5, adapted from the teacher's
// stagingBuffer/commitStaging FIFO (engine/staging.go). Unlike
// the teacher's pool, which multiplexes many resources over a
// shared channel of staging buffers, each ring here belongs to a
// single resource: the scheduler rebuilds its resource set from
// scratch every frame, so there is no cross-resource pool to
// multiplex.
//
// A ring is seeded with one sentinel zero-value entry at
// construction (design note 4) so that the very first
// RequestRead, before any RequestWrite has ever been issued,
// never indexes an empty FIFO.
//
// Usage follows BeginFrame / RequestWrite / RequestRead /
// EndFrame, in that order, once per frame.
type UploadRing struct {
	mu      sync.Mutex
	fifo    []uploadEntry
	current uint64
	began   bool
}

// NewUploadRing creates a ring with its sentinel entry already in
// place.
func NewUploadRing() *UploadRing {
	return &UploadRing{fifo: []uploadEntry{{}}}
}

// BeginFrame marks f as the frame now being recorded. It must be
// called before RequestWrite or CurrentFrameUploadBuffer for that
// frame.
func (r *UploadRing) BeginFrame(f uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = f
	r.began = true
}

// RequestWrite records that the caller is about to write fresh
// data for the current frame. If the most recent entry already
// belongs to that frame, this is a no-op and alloc is not called:
// a resource may be written multiple times within a single frame
// without growing the FIFO, since all of those writes land in the
// same frame's buffer.
func (r *UploadRing) RequestWrite(alloc func() gpu.ResourceHandle) gpu.ResourceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := &r.fifo[len(r.fifo)-1]
	if last.valid && r.began && last.frame == r.current {
		return last.buf
	}
	buf := alloc()
	r.fifo = append(r.fifo, uploadEntry{buf: buf, frame: r.current, valid: true})
	return buf
}

// CurrentFrameUploadBuffer returns the entry tagged with the
// current frame, or nil if RequestWrite has not been called yet
// this frame.
func (r *UploadRing) CurrentFrameUploadBuffer() gpu.ResourceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := &r.fifo[len(r.fifo)-1]
	if last.valid && last.frame == r.current {
		return last.buf
	}
	return nil
}

// RequestRead returns the most recently retired, fully written
// buffer a reader should observe: the freshest entry older than
// the current frame, or the sentinel (nil) if none has retired
// yet.
func (r *UploadRing) RequestRead() gpu.ResourceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.fifo) - 1; i >= 0; i-- {
		if r.fifo[i].valid && r.fifo[i].frame < r.current {
			return r.fifo[i].buf
		}
	}
	return nil
}

// EndFrame retires every entry tagged with a frame number <= f,
// keeping only the most recently retired one (the one readers
// should now see as "completed") plus any entries for frames
// still in flight.
func (r *UploadRing) EndFrame(f uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keepFrom := 0
	for i, e := range r.fifo {
		if e.valid && e.frame <= f {
			keepFrom = i
		}
	}
	if keepFrom > 0 {
		r.fifo = r.fifo[keepFrom:]
	}
}
