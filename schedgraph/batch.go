package schedgraph

import (
	"github.com/pkg/errors"

	"github.com/kestrelgfx/rendergraph/gpu"
)

// RecordFunc records a single pass's own work (draw/dispatch/copy
// commands) into cl. It is supplied by the caller — the scheduler
// package never interprets pass bodies, per the Pass callback
// contract in external interfaces §6.
type RecordFunc func(n *Node, cl gpu.CommandList) error

// BatchBuilder assembles per-queue gpu.Batch values for each
// dependency level from a TransitionPlanner Plan, per component
// design §4.5.
type BatchBuilder struct {
	backend gpu.Backend

	// fenceOf remembers the fence signaled by a given level/queue
	// batch, so that later levels whose nodes depend on it (via
	// Node.NodesToSyncWith, which only ever points at nodes in an
	// equal-or-earlier level) can add it to their own WaitFences.
	fenceOf map[levelQueue]gpu.Fence
}

type levelQueue struct {
	level int
	queue gpu.Queue
}

// NewBatchBuilder creates a builder that allocates command lists
// and fences from backend.
func NewBatchBuilder(backend gpu.Backend) *BatchBuilder {
	return &BatchBuilder{backend: backend, fenceOf: make(map[levelQueue]gpu.Fence)}
}

// Reset clears cross-frame fence bookkeeping.
func (b *BatchBuilder) Reset() { b.fenceOf = make(map[levelQueue]gpu.Fence) }

// BuildLevel assembles the batches for a single dependency level.
// It must be called once per level, in increasing level order,
// since dependency fences are looked up from earlier calls.
func (b *BatchBuilder) BuildLevel(levelIndex int, lp *LevelPlan, record RecordFunc) ([]gpu.Batch, error) {
	queues := map[gpu.Queue]struct{}{}
	for _, n := range lp.Level.nodes {
		queues[n.queue] = struct{}{}
	}
	for q := range lp.Transitions {
		queues[q] = struct{}{}
	}

	needsSignal := map[gpu.Queue]bool{}
	for _, n := range lp.Level.nodes {
		if n.syncSignalRequired {
			needsSignal[n.queue] = true
		}
	}
	for affected := range lp.Rerouted {
		needsSignal[lp.Rerouted[affected]] = true
	}

	batches := make([]gpu.Batch, 0, len(queues))
	clByQueue := map[gpu.Queue]gpu.CommandList{}

	for q := range queues {
		cl, err := b.allocateCmdList(q)
		if err != nil {
			return nil, errors.Wrapf(err, "level %d queue %d: allocate command list", levelIndex, q)
		}
		if err := cl.Begin(); err != nil {
			return nil, errors.Wrapf(err, "level %d queue %d: begin command list", levelIndex, q)
		}
		if ts := lp.Transitions[q]; len(ts) > 0 {
			gt := make([]gpu.Transition, len(ts))
			for i, t := range ts {
				gt[i] = t.Transition
			}
			cl.Transition(gt)
		}
		clByQueue[q] = cl
	}

	for _, n := range lp.Level.nodes {
		if record == nil {
			continue
		}
		if err := record(n, clByQueue[n.queue]); err != nil {
			return nil, errors.Wrapf(err, "pass %q: record work", n.Name())
		}
	}

	// Create every signal fence of the level first, so that a
	// rerouted queue finds its competent queue's fence regardless of
	// the order in which the batches below are built.
	for q := range clByQueue {
		if needsSignal[q] {
			f, err := b.backend.CreateFence()
			if err != nil {
				return nil, errors.Wrap(err, "create fence")
			}
			b.fenceOf[levelQueue{levelIndex, q}] = f
		}
	}

	for q, cl := range clByQueue {
		if err := cl.End(); err != nil {
			return nil, errors.Wrapf(err, "level %d queue %d: end command list", levelIndex, q)
		}

		batch := gpu.Batch{Queue: q, CommandLists: []gpu.CommandList{cl}}

		if needsSignal[q] {
			batch.SignalFence = b.fenceOf[levelQueue{levelIndex, q}]
		}

		waits := map[gpu.Fence]struct{}{}
		for affected, competent := range lp.Rerouted {
			if affected != q {
				continue
			}
			if f, ok := b.fenceOf[levelQueue{levelIndex, competent}]; ok {
				waits[f] = struct{}{}
			}
		}
		for _, n := range lp.Level.nodes {
			if n.queue != q {
				continue
			}
			for _, d := range n.nodesToSyncWith {
				if f, ok := b.fenceOf[levelQueue{d.dependencyLevelIndex, d.queue}]; ok {
					waits[f] = struct{}{}
				}
			}
		}
		for f := range waits {
			batch.WaitFences = append(batch.WaitFences, f)
		}

		batches = append(batches, batch)
	}
	return batches, nil
}

func (b *BatchBuilder) allocateCmdList(q gpu.Queue) (gpu.CommandList, error) {
	if q == 0 {
		return b.backend.AllocateGraphicsCommandList()
	}
	return b.backend.AllocateComputeCommandList()
}
