package resstore

import (
	"testing"

	"github.com/kestrelgfx/rendergraph/gpu"
)

// TestUploadRingFrameVersioning covers Scenario S6: a second
// RequestWrite within the same frame is a no-op against the
// FIFO, EndFrame retires the completed buffer, and a later frame
// with no write yet reports no current upload buffer.
func TestUploadRingFrameVersioning(t *testing.T) {
	ring := NewUploadRing()

	allocCount := 0
	alloc := func() gpu.ResourceHandle {
		allocCount++
		return allocCount
	}

	ring.BeginFrame(5)
	first := ring.RequestWrite(alloc)
	second := ring.RequestWrite(alloc)
	if first != second {
		t.Fatalf("second RequestWrite in the same frame should reuse the first buffer")
	}
	if allocCount != 1 {
		t.Fatalf("have %d allocations, want 1", allocCount)
	}
	ring.EndFrame(5)

	ring.BeginFrame(6)
	if got := ring.CurrentFrameUploadBuffer(); got != nil {
		t.Fatalf("frame 6 should have no current upload buffer yet, got %v", got)
	}

	ring.RequestWrite(alloc)
	if ring.CurrentFrameUploadBuffer() == nil {
		t.Fatalf("frame 6 should now have a current upload buffer")
	}
}

// TestUploadRingFirstReadIsSentinel ensures the sentinel entry
// seeded at construction means an early read never indexes an
// empty FIFO (design note 4).
func TestUploadRingFirstReadIsSentinel(t *testing.T) {
	ring := NewUploadRing()
	if got := ring.RequestRead(); got != nil {
		t.Fatalf("have %v, want nil before any write", got)
	}
}
