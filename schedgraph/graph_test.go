package schedgraph

import (
	"testing"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
)

func subres(t *name.Table, resource string, index int) name.Subresource {
	return name.PackSubresource(t.Intern(resource), index)
}

// TestLevelingDiamond reproduces Scenario S1: A writes R on queue
// 0; B (queue 1) reads R and writes S; C (queue 0) reads R and
// writes T; D (queue 0) reads S and T and writes U.
func TestLevelingDiamond(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(2)

	a, err := g.AddPass(Metadata{Name: "A"})
	mustNil(t, err)
	b, err := g.AddPass(Metadata{Name: "B"})
	mustNil(t, err)
	c, err := g.AddPass(Metadata{Name: "C"})
	mustNil(t, err)
	d, err := g.AddPass(Metadata{Name: "D"})
	mustNil(t, err)

	b.queue = 1

	r := subres(names, "R", 0)
	s := subres(names, "S", 0)
	tt := subres(names, "T", 0)
	u := subres(names, "U", 0)

	mustNil(t, g.RegisterWrite(a, r, gpu.StateRenderTarget))
	g.RegisterRead(b, r, gpu.StateShaderRead)
	mustNil(t, g.RegisterWrite(b, s, gpu.StateUnorderedAccess))
	g.RegisterRead(c, r, gpu.StateShaderRead)
	mustNil(t, g.RegisterWrite(c, tt, gpu.StateUnorderedAccess))
	g.RegisterRead(d, s, gpu.StateShaderRead)
	g.RegisterRead(d, tt, gpu.StateShaderRead)
	mustNil(t, g.RegisterWrite(d, u, gpu.StateUnorderedAccess))

	if err := g.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	levels := g.Levels()
	if len(levels) != 3 {
		t.Fatalf("have %d levels, want 3", len(levels))
	}
	wantLevel := map[*Node]int{a: 0, b: 1, c: 1, d: 2}
	for n, want := range wantLevel {
		if n.DependencyLevelIndex() != want {
			t.Fatalf("pass %q: have level %d, want %d", n.Name(), n.DependencyLevelIndex(), want)
		}
	}

	// D depends on both B and C, but C is on the same queue as D,
	// so after culling only the cross-queue dependency on B
	// should remain as a fence wait.
	var names2 []string
	for _, dep := range d.NodesToSyncWith() {
		names2 = append(names2, dep.Name())
	}
	if len(names2) != 1 || names2[0] != "B" {
		t.Fatalf("D.NodesToSyncWith = %v, want [B]", names2)
	}
}

// TestDuplicateWriter covers Scenario S2.
func TestDuplicateWriter(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(1)
	a, _ := g.AddPass(Metadata{Name: "A"})
	b, _ := g.AddPass(Metadata{Name: "B"})
	r := subres(names, "R", 0)

	mustNil(t, g.RegisterWrite(a, r, gpu.StateRenderTarget))
	if err := g.RegisterWrite(b, r, gpu.StateRenderTarget); err == nil {
		t.Fatalf("expected duplicate-writer error, got nil")
	}
}

// TestCircularDependency asserts that two passes mutually
// depending on each other's output within what would be the same
// level is reported as a schema error rather than silently
// accepted.
func TestCircularDependency(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(1)
	a, _ := g.AddPass(Metadata{Name: "A"})
	b, _ := g.AddPass(Metadata{Name: "B"})

	x := subres(names, "X", 0)
	y := subres(names, "Y", 0)

	mustNil(t, g.RegisterWrite(a, x, gpu.StateRenderTarget))
	g.RegisterRead(a, y, gpu.StateShaderRead)
	mustNil(t, g.RegisterWrite(b, y, gpu.StateRenderTarget))
	g.RegisterRead(b, x, gpu.StateShaderRead)

	if err := g.Build(); err == nil {
		t.Fatalf("expected circular dependency error, got nil")
	}
}

// TestSameQueueNoFence covers invariant/boundary behavior (10):
// two same-queue passes in a read-after-write relationship incur
// no fence.
func TestSameQueueNoFence(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(1)
	a, _ := g.AddPass(Metadata{Name: "A"})
	b, _ := g.AddPass(Metadata{Name: "B"})
	r := subres(names, "R", 0)

	mustNil(t, g.RegisterWrite(a, r, gpu.StateRenderTarget))
	g.RegisterRead(b, r, gpu.StateShaderRead)
	mustNil(t, g.Build())

	if len(b.NodesToSyncWith()) != 0 {
		t.Fatalf("have %d fence deps, want 0", len(b.NodesToSyncWith()))
	}
}

// TestCrossQueueSingleFence covers boundary behavior (11).
func TestCrossQueueSingleFence(t *testing.T) {
	names := name.NewTable()
	g := NewGraph(2)
	a, _ := g.AddPass(Metadata{Name: "A"})
	b, _ := g.AddPass(Metadata{Name: "B"})
	b.queue = 1
	r := subres(names, "R", 0)

	mustNil(t, g.RegisterWrite(a, r, gpu.StateRenderTarget))
	g.RegisterRead(b, r, gpu.StateShaderRead)
	mustNil(t, g.Build())

	if !a.syncSignalRequired {
		t.Fatalf("A should be required to signal a fence")
	}
	if len(b.NodesToSyncWith()) != 1 || b.NodesToSyncWith()[0] != a {
		t.Fatalf("B should wait on exactly A")
	}
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
