package schedgraph

import (
	"testing"

	"github.com/kestrelgfx/rendergraph/name"
)

type fakeStore struct {
	infos map[name.Name]*SchedulingInfo
	reqs  []AllocRequest
}

func newFakeStore() *fakeStore { return &fakeStore{infos: map[name.Name]*SchedulingInfo{}} }

func (s *fakeStore) QueueAllocation(req AllocRequest) {
	s.reqs = append(s.reqs, req)
	s.infos[req.Resource] = NewSchedulingInfo(req.Resource, req.Format)
}

func (s *fakeStore) SchedulingInfoFor(n name.Name) *SchedulingInfo { return s.infos[n] }

// TestTypelessRequiresFormat covers Scenario S3.
func TestTypelessRequiresFormat(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(1)
	store := newFakeStore()

	a, _ := g.AddPass(Metadata{Name: "A"})
	schedA := NewResourceScheduler(g, names, store, a)
	_, err := schedA.NewTexture("X", ResourceFormat{Kind: KindTexture2D, Mips: 1, Data: DataType{Typeless: true}})
	mustNil(t, err)

	b, _ := g.AddPass(Metadata{Name: "B"})
	schedB := NewResourceScheduler(g, names, store, b)
	xName := names.Intern("X")
	if err := schedB.ReadTexture(xName, nil, nil); err == nil {
		t.Fatalf("expected missing-format error, got nil")
	}

	// A pass may schedule a resource only once, so the read with a
	// concrete format is declared by a separate pass.
	c, _ := g.AddPass(Metadata{Name: "C"})
	schedC := NewResourceScheduler(g, names, store, c)
	concrete := 7
	if err := schedC.ReadTexture(xName, nil, &concrete); err != nil {
		t.Fatalf("unexpected error with concrete format: %v", err)
	}
}

// TestResourceScheduledTwiceInSamePass rejects a pass that
// declares the same resource more than once.
func TestResourceScheduledTwiceInSamePass(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(1)
	store := newFakeStore()
	a, _ := g.AddPass(Metadata{Name: "A"})
	sched := NewResourceScheduler(g, names, store, a)

	if _, err := sched.NewRenderTarget("RT", ResourceFormat{Mips: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sched.NewRenderTarget("RT", ResourceFormat{Mips: 1}); err == nil {
		t.Fatalf("expected already-used error, got nil")
	}
}
