package schedgraph

import (
	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
)

// Purpose tags the role a pass plays. Leveling and batching do
// not read it; a pass's queue is set only by
// ResourceScheduler.ExecuteOnQueue.
type Purpose int

// Pass purposes.
const (
	PurposeDefault Purpose = iota
	PurposeAsyncCompute
)

// Metadata identifies a pass.
type Metadata struct {
	Name    string
	Purpose Purpose
}

// Node is a single pass vertex in the graph. Nodes are owned by a
// Graph's arena; code outside this package should treat *Node as
// an opaque handle obtained from Graph.AddPass.
type Node struct {
	meta Metadata

	queue         gpu.Queue
	usesRayTrace  bool

	read      map[name.Subresource]struct{}
	written   map[name.Subresource]struct{}
	resources map[uint32]struct{}

	// subresourceState records, for each subresource this node
	// touches, the State it requests. Reads accumulate via OR;
	// a subresource may have at most one write request.
	subresourceState map[name.Subresource]gpu.State

	nodesToSyncWith       []*Node
	syncSignalRequired    bool
	synchronizationIndexSet []int

	globalExecutionIndex            int
	localToDependencyLevelIndex     int
	localToQueueExecutionIndex      int
	dependencyLevelIndex            int
}

func newNode(meta Metadata) *Node {
	return &Node{
		meta:              meta,
		read:              make(map[name.Subresource]struct{}),
		written:           make(map[name.Subresource]struct{}),
		resources:         make(map[uint32]struct{}),
		subresourceState:  make(map[name.Subresource]gpu.State),
		dependencyLevelIndex: -1,
	}
}

// Name returns the pass name.
func (n *Node) Name() string { return n.meta.Name }

// Queue returns the queue this pass was assigned to via
// ExecuteOnQueue (0 by default).
func (n *Node) Queue() gpu.Queue { return n.queue }

// UsesRayTracing reports whether UseRayTracing was called for
// this pass.
func (n *Node) UsesRayTracing() bool { return n.usesRayTrace }

// GlobalExecutionIndex returns the pass's position in the fully
// ordered, cross-level, cross-queue execution order. Valid only
// after Graph.Build.
func (n *Node) GlobalExecutionIndex() int { return n.globalExecutionIndex }

// DependencyLevelIndex returns the index of the DependencyLevel
// this pass was placed in. Valid only after Graph.Build.
func (n *Node) DependencyLevelIndex() int { return n.dependencyLevelIndex }

// NodesToSyncWith returns the (post-culling) set of other-queue
// passes this pass must wait on. Valid only after Graph.Build.
func (n *Node) NodesToSyncWith() []*Node { return n.nodesToSyncWith }

func (n *Node) addRead(key name.Subresource, state gpu.State) {
	n.read[key] = struct{}{}
	n.resources[key.ResolveID()] = struct{}{}
	n.subresourceState[key] = n.subresourceState[key] | state
}

func (n *Node) addWrite(key name.Subresource, state gpu.State) {
	n.written[key] = struct{}{}
	n.resources[key.ResolveID()] = struct{}{}
	n.subresourceState[key] = n.subresourceState[key] | state
}
