package resstore

import (
	"testing"

	"github.com/kestrelgfx/rendergraph/gpu/fake"
	"github.com/kestrelgfx/rendergraph/name"
	"github.com/kestrelgfx/rendergraph/schedgraph"
)

func TestResolveAllocatesEveryPendingResource(t *testing.T) {
	names := name.NewTable()
	backend := fake.New(1)
	store := New(backend)

	a := names.Intern("A")
	b := names.Intern("B")

	store.QueueAllocation(schedgraph.AllocRequest{
		Strategy: schedgraph.StrategyNewTexture,
		Resource: a,
		Format:   schedgraph.ResourceFormat{Kind: schedgraph.KindTexture2D, Dimensions: schedgraph.Dim3D{Width: 64, Height: 64, Depth: 1}, Mips: 1},
	})
	store.QueueAllocation(schedgraph.AllocRequest{
		Strategy: schedgraph.StrategyNewBuffer,
		Resource: b,
		Format:   schedgraph.ResourceFormat{Kind: schedgraph.KindBuffer, Dimensions: schedgraph.Dim3D{Width: 1024}},
	})

	timelines := map[uint32]schedgraph.ResourceUsageTimeline{}
	if err := store.Resolve(timelines); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if h := store.Handle(name.PackSubresource(a, 0).ResolveID()); h == nil {
		t.Fatalf("expected a non-nil handle for A")
	}
	if h := store.Handle(name.PackSubresource(b, 0).ResolveID()); h == nil {
		t.Fatalf("expected a non-nil handle for B")
	}
}
