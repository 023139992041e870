package schedgraph

import (
	"testing"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/gpu/fake"
	"github.com/kestrelgfx/rendergraph/name"
)

type idResolver struct{}

func (idResolver) Handle(id uint32) gpu.ResourceHandle { return id }

func mkLevel(index int, nodes ...*Node) *DependencyLevel {
	for _, n := range nodes {
		n.dependencyLevelIndex = index
	}
	return &DependencyLevel{
		index:                            index,
		nodes:                            nodes,
		subresourcesReadByMultipleQueues: map[name.Subresource]struct{}{},
		queuesInvolvedInCrossQueueReads:  map[int]struct{}{},
	}
}

// TestTransitionRerouting covers Scenario S4: a transition needed
// on a queue that cannot perform it is rerouted to a competent
// queue in the same level.
func TestTransitionRerouting(t *testing.T) {
	names := name.NewTable()
	r := names.Intern("R")
	key := name.PackSubresource(r, 0)

	w := newNode(Metadata{Name: "W"})
	w.queue = 0
	w.addWrite(key, gpu.StateRenderTarget)

	a := newNode(Metadata{Name: "A"})
	a.queue = 1
	a.addRead(key, gpu.StateShaderRead)

	levels := []*DependencyLevel{mkLevel(0, w), mkLevel(1, a)}

	backend := fake.New(2)
	backend.Unsupported = func(q gpu.Queue, before, after gpu.State) bool {
		return q == 1 && before == gpu.StateRenderTarget
	}

	planner := NewTransitionPlanner(backend)
	plan := planner.Plan(levels, idResolver{})

	lp := plan.Levels[1]
	if competent, ok := lp.Rerouted[1]; !ok || competent != 0 {
		t.Fatalf("expected queue 1 rerouted to queue 0, got %v", lp.Rerouted)
	}
	if len(lp.Transitions[1]) != 0 {
		t.Fatalf("queue 1 should carry no transitions after rerouting, got %d", len(lp.Transitions[1]))
	}
	if len(lp.Transitions[0]) != 1 {
		t.Fatalf("queue 0 should carry the rerouted transition, got %d", len(lp.Transitions[0]))
	}
}

// TestSplitBarrier covers Scenario S5: a transition whose
// previous state was settled more than one level back is split
// into a begin half at the earlier level and an end half at the
// level that needs it.
func TestSplitBarrier(t *testing.T) {
	names := name.NewTable()
	r := names.Intern("R")
	key := name.PackSubresource(r, 0)

	a := newNode(Metadata{Name: "A"})
	a.addWrite(key, gpu.StateRenderTarget)
	b := newNode(Metadata{Name: "B"})
	c := newNode(Metadata{Name: "C"})
	d := newNode(Metadata{Name: "D"})
	d.addRead(key, gpu.StateShaderRead)

	levels := []*DependencyLevel{mkLevel(0, a), mkLevel(1, b), mkLevel(2, c), mkLevel(3, d)}

	planner := NewTransitionPlanner(fake.New(1))
	plan := planner.Plan(levels, idResolver{})

	if len(plan.Levels[1].Transitions) != 0 || len(plan.Levels[2].Transitions) != 0 {
		t.Fatalf("levels 1 and 2 should carry no transitions for R")
	}
	// Level 0 carries the initial Common->RenderTarget transition
	// for A's write, plus the begin half of the later
	// RenderTarget->ShaderRead transition D needs.
	atLevel0 := plan.Levels[0].Transitions[0]
	if len(atLevel0) != 2 {
		t.Fatalf("level 0 should carry 2 transitions, got %d: %+v", len(atLevel0), atLevel0)
	}
	beginHalf := atLevel0[1]
	if !beginHalf.Begin || beginHalf.End {
		t.Fatalf("level 0's second transition should be a begin-only half, got %+v", beginHalf)
	}
	end := plan.Levels[3].Transitions[0]
	if len(end) != 1 || end[0].Begin || !end[0].End {
		t.Fatalf("level 3 should carry the end half, got %+v", end)
	}
}
