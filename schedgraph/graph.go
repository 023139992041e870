package schedgraph

import (
	"github.com/pkg/errors"

	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
)

// DependencyLevel is a maximal set of passes known to be mutually
// independent: no pass in the level reads a subresource written
// by another pass in the same level. Passes within a level may
// execute in parallel, including across queues.
type DependencyLevel struct {
	index int
	nodes []*Node

	// subresourcesReadByMultipleQueues is the set of subresources
	// read, within this level, by passes on more than one queue —
	// the transition planner must pick one queue to own each such
	// transition and route the rest through fences.
	subresourcesReadByMultipleQueues map[name.Subresource]struct{}
	queuesInvolvedInCrossQueueReads  map[int]struct{}
}

// Index returns the level's position in the frame's execution
// order.
func (l *DependencyLevel) Index() int { return l.index }

// Nodes returns the passes placed in this level, in declaration
// order.
func (l *DependencyLevel) Nodes() []*Node { return l.nodes }

// Graph owns the arena of pass nodes for a single frame and
// builds the dependency-level plan from their declared read/write
// sets.
type Graph struct {
	queueCount int

	nodes    []*Node
	byName   map[string]*Node
	writeReg map[name.Subresource]*Node

	levels []*DependencyLevel

	firstRayTracingUser *Node
}

// NewGraph creates an empty Graph for a backend exposing
// queueCount independent queues.
func NewGraph(queueCount int) *Graph {
	return &Graph{
		queueCount: queueCount,
		byName:     make(map[string]*Node),
		writeReg:   make(map[name.Subresource]*Node),
	}
}

// AddPass creates a new pass node. It fails if a pass with the
// same name was already added this frame.
func (g *Graph) AddPass(meta Metadata) (*Node, error) {
	if _, ok := g.byName[meta.Name]; ok {
		return nil, errors.Wrapf(ErrDuplicatePass, "pass %q", meta.Name)
	}
	n := newNode(meta)
	g.byName[meta.Name] = n
	g.nodes = append(g.nodes, n)
	return n, nil
}

// RegisterWrite declares that n writes key, enforcing the
// single-writer-per-subresource invariant.
func (g *Graph) RegisterWrite(n *Node, key name.Subresource, state gpu.State) error {
	if existing, ok := g.writeReg[key]; ok && existing != n {
		return errors.Wrapf(ErrDuplicateWriter, "subresource %d already written by pass %q (new writer %q)",
			key, existing.Name(), n.Name())
	}
	g.writeReg[key] = n
	n.addWrite(key, state)
	return nil
}

// RegisterRead declares that n reads key.
func (g *Graph) RegisterRead(n *Node, key name.Subresource, state gpu.State) {
	n.addRead(key, state)
}

// Levels returns the built dependency levels. Valid only after
// Build.
func (g *Graph) Levels() []*DependencyLevel { return g.levels }

// FirstRayTracingUser returns the first pass, in execution order,
// that called UseRayTracing, or nil if none did. Valid only after
// Build.
func (g *Graph) FirstRayTracingUser() *Node { return g.firstRayTracingUser }

// ResourceTimelines returns, for every resource touched this
// frame, the [first, last] global execution index range over
// which it is used. Valid only after Build; the ResourceStore's
// aliasing allocator uses this to decide which resources' memory
// may overlap.
func (g *Graph) ResourceTimelines() map[uint32]ResourceUsageTimeline {
	out := make(map[uint32]ResourceUsageTimeline)
	for _, n := range g.nodes {
		for id := range n.resources {
			t, ok := out[id]
			if !ok {
				out[id] = ResourceUsageTimeline{First: n.globalExecutionIndex, Last: n.globalExecutionIndex}
				continue
			}
			if n.globalExecutionIndex < t.First {
				t.First = n.globalExecutionIndex
			}
			if n.globalExecutionIndex > t.Last {
				t.Last = n.globalExecutionIndex
			}
			out[id] = t
		}
	}
	return out
}

// Build partitions the declared passes into dependency levels,
// assigns execution indices, and culls redundant cross-queue
// synchronizations down to a minimal sufficient set.
func (g *Graph) Build() error {
	if err := g.buildLevels(); err != nil {
		return err
	}
	g.finalize()
	g.cullSynchronizations()
	return nil
}

// Clear resets the graph so it can be reused for the next frame.
func (g *Graph) Clear() {
	g.nodes = g.nodes[:0]
	g.byName = make(map[string]*Node)
	g.writeReg = make(map[name.Subresource]*Node)
	g.levels = nil
	g.firstRayTracingUser = nil
}

// predecessors returns, for every node, the set of other nodes it
// must execute after. RegisterWrite enforces a single writer per
// subresource, so the only dependency a node can have is on the
// writer of each subresource it reads: n.predecessors contains
// g.writeReg[k] for every k in n.read, deduplicated.
func (g *Graph) predecessors() map[*Node][]*Node {
	preds := make(map[*Node][]*Node, len(g.nodes))
	for _, n := range g.nodes {
		for k := range n.read {
			w, ok := g.writeReg[k]
			if !ok || w == n {
				continue
			}
			preds[n] = addPred(preds[n], w)
		}
	}
	return preds
}

func addPred(preds []*Node, m *Node) []*Node {
	for _, x := range preds {
		if x == m {
			return preds
		}
	}
	return append(preds, m)
}

// buildLevels implements the leveling pass described in component
// design §4.2: passes are assigned to levels in Kahn's-algorithm
// order over the predecessor relation, so a pass lands in a level
// only once every pass it depends on has already landed in an
// earlier one. A round that places nothing while passes remain
// means two or more of them mutually depend on each other.
func (g *Graph) buildLevels() error {
	preds := g.predecessors()

	remaining := make([]*Node, len(g.nodes))
	copy(remaining, g.nodes)
	done := make(map[*Node]bool, len(remaining))

	level := 0
	for len(remaining) > 0 {
		var placed, deferred []*Node
		for _, n := range remaining {
			ready := true
			for _, m := range preds[n] {
				if !done[m] {
					ready = false
					break
				}
			}
			if ready {
				placed = append(placed, n)
			} else {
				deferred = append(deferred, n)
			}
		}
		if len(placed) == 0 {
			return errors.Wrapf(ErrCircularDependency, "among passes %s", namesOf(deferred))
		}
		for _, n := range placed {
			for _, m := range preds[n] {
				if n.queue != m.queue {
					n.nodesToSyncWith = append(n.nodesToSyncWith, m)
					m.syncSignalRequired = true
				}
			}
		}
		g.levels = append(g.levels, &DependencyLevel{
			index: level,
			nodes: placed,
			subresourcesReadByMultipleQueues: make(map[name.Subresource]struct{}),
			queuesInvolvedInCrossQueueReads:  make(map[int]struct{}),
		})
		for _, n := range placed {
			n.dependencyLevelIndex = level
			done[n] = true
		}
		remaining = deferred
		level++
	}
	return nil
}

func namesOf(nodes []*Node) string {
	s := ""
	for i, n := range nodes {
		if i > 0 {
			s += ", "
		}
		s += n.Name()
	}
	return s
}

// finalize assigns global/per-level/per-queue execution indices
// in level order, and records cross-queue read sets per level.
func (g *Graph) finalize() {
	global := 0
	perQueue := make(map[int]int)
	for _, lvl := range g.levels {
		readerQueues := make(map[name.Subresource]map[int]struct{})
		for local, n := range lvl.nodes {
			n.globalExecutionIndex = global
			n.localToDependencyLevelIndex = local
			n.localToQueueExecutionIndex = perQueue[int(n.queue)]
			perQueue[int(n.queue)]++
			global++

			if n.usesRayTrace && g.firstRayTracingUser == nil {
				g.firstRayTracingUser = n
			}
			for k := range n.read {
				set, ok := readerQueues[k]
				if !ok {
					set = make(map[int]struct{})
					readerQueues[k] = set
				}
				set[int(n.queue)] = struct{}{}
			}
		}
		for k, queues := range readerQueues {
			if len(queues) > 1 {
				lvl.subresourcesReadByMultipleQueues[k] = struct{}{}
				for q := range queues {
					lvl.queuesInvolvedInCrossQueueReads[q] = struct{}{}
				}
			}
		}
	}
}
