// Package frame wires the scheduler's phases together into the
// single per-frame entry point a host application calls: declare
// passes, schedule their resources, then run the frame.
package frame

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
	"github.com/kestrelgfx/rendergraph/resstore"
	"github.com/kestrelgfx/rendergraph/schedgraph"
)

// Pass is the three-callback contract external interfaces §6
// describes. A host application implements it once per render
// pass.
type Pass interface {
	// Name identifies the pass; it must be unique within a Frame.
	Name() string

	// ScheduleResources declares the pass's reads and writes.
	ScheduleResources(s *schedgraph.ResourceScheduler) error

	// Render records the pass's own GPU work. frameNumber is the
	// value passed to Frame.Run.
	Render(cl gpu.CommandList, frameNumber uint64) error
}

// Frame drives one iteration of the 8-phase pipeline described in
// system overview §2 against a concrete backend.
type Frame struct {
	Names   *name.Table
	Backend gpu.Backend
	Store   *resstore.Store

	graph     *schedgraph.Graph
	planner   *schedgraph.TransitionPlanner
	builder   *schedgraph.BatchBuilder
	executor  *schedgraph.Executor

	passes []Pass
	nodes  map[string]*schedgraph.Node
}

// New creates a Frame against backend, sharing names across
// frames so resource identifiers remain stable.
func New(backend gpu.Backend, names *name.Table) *Frame {
	return &Frame{
		Names:    names,
		Backend:  backend,
		Store:    resstore.New(backend),
		graph:    schedgraph.NewGraph(backend.QueueCount()),
		planner:  schedgraph.NewTransitionPlanner(backend),
		builder:  schedgraph.NewBatchBuilder(backend),
		executor: schedgraph.NewExecutor(backend),
		nodes:    make(map[string]*schedgraph.Node),
	}
}

// AddPass registers a pass for this and every subsequent frame;
// Frame has no way to remove a registered pass. Passes are
// declared once; Run reschedules all of them every frame.
func (f *Frame) AddPass(p Pass) {
	f.passes = append(f.passes, p)
}

// Run executes one full frame: it clears prior per-frame state,
// lets every pass declare its resource usage, builds the
// dependency graph, resolves resource allocations, plans
// transitions, builds batches, and submits them in level order.
func (f *Frame) Run(ctx context.Context, frameNumber uint64) error {
	f.graph.Clear()
	f.Store.Clear()
	f.planner.Reset()
	f.builder.Reset()
	f.nodes = make(map[string]*schedgraph.Node)

	for _, p := range f.passes {
		node, err := f.graph.AddPass(schedgraph.Metadata{Name: p.Name()})
		if err != nil {
			return errors.Wrapf(err, "pass %q", p.Name())
		}
		f.nodes[p.Name()] = node
		sched := schedgraph.NewResourceScheduler(f.graph, f.Names, f.Store, node)
		if err := p.ScheduleResources(sched); err != nil {
			return errors.Wrapf(err, "pass %q: schedule resources", p.Name())
		}
	}

	if err := f.graph.Build(); err != nil {
		return errors.Wrap(err, "build dependency graph")
	}

	if err := f.Store.Resolve(f.graph.ResourceTimelines()); err != nil {
		return errors.Wrap(err, "resolve resource allocations")
	}

	plan := f.planner.Plan(f.graph.Levels(), f.Store)

	byName := make(map[string]Pass, len(f.passes))
	for _, p := range f.passes {
		byName[p.Name()] = p
	}
	record := func(n *schedgraph.Node, cl gpu.CommandList) error {
		p, ok := byName[n.Name()]
		if !ok {
			return nil
		}
		return p.Render(cl, frameNumber)
	}

	levelBatches := make([][]gpu.Batch, len(plan.Levels))
	for i, lp := range plan.Levels {
		batches, err := f.builder.BuildLevel(i, lp, record)
		if err != nil {
			return errors.Wrapf(err, "level %d: build batches", i)
		}
		levelBatches[i] = batches
	}

	return f.executor.Submit(ctx, levelBatches)
}
