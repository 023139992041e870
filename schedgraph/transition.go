package schedgraph

import (
	"github.com/kestrelgfx/rendergraph/gpu"
	"github.com/kestrelgfx/rendergraph/name"
)

// HandleResolver maps an interned resource Name to the backend
// handle the ResourceStore allocated for it. The TransitionPlanner
// never interprets the handle itself; it only threads it through
// to gpu.Transition for the backend's benefit.
type HandleResolver interface {
	Handle(resourceID uint32) gpu.ResourceHandle
}

// PlannedTransition is a single subresource state change, placed
// at the level where it must be recorded. Begin/End mirror
// gpu.Transition's split-barrier halves.
type PlannedTransition struct {
	gpu.Transition
	Subresource name.Subresource
}

// LevelPlan is the TransitionPlanner's output for one dependency
// level: the transitions each queue must record before the
// level's passes run, plus bookkeeping for queues that cannot
// legally perform a transition they need (§4.4, "transition
// rerouting").
type LevelPlan struct {
	Level *DependencyLevel

	// Transitions, keyed by the queue that must record them.
	Transitions map[gpu.Queue][]PlannedTransition

	// Rerouted maps an affected queue (one that needed a
	// transition it cannot perform) to the competent queue the
	// planner chose to perform it on instead; BatchBuilder adds
	// the corresponding cross-queue fence.
	Rerouted map[gpu.Queue]gpu.Queue
}

// Plan is the full-frame output of TransitionPlanner.Plan.
type Plan struct {
	Levels []*LevelPlan
}

// TransitionPlanner computes, for every dependency level, the
// subresource state transitions required to satisfy that level's
// passes, per component design §4.4.
type TransitionPlanner struct {
	backend gpu.Backend

	currentState map[name.Subresource]gpu.State
	lastLevel    map[name.Subresource]int
}

// NewTransitionPlanner creates a planner that queries backend to
// decide transition legality and rerouting.
func NewTransitionPlanner(backend gpu.Backend) *TransitionPlanner {
	return &TransitionPlanner{
		backend:      backend,
		currentState: make(map[name.Subresource]gpu.State),
		lastLevel:    make(map[name.Subresource]int),
	}
}

// Reset clears the planner's cross-frame state tracking. Resource
// state is not guaranteed to persist across frames in this model
// (§1: each frame's plan is built from scratch), so callers
// invoke this once per frame before Plan.
func (p *TransitionPlanner) Reset() {
	p.currentState = make(map[name.Subresource]gpu.State)
	p.lastLevel = make(map[name.Subresource]int)
}

// Plan computes the full-frame transition schedule.
func (p *TransitionPlanner) Plan(levels []*DependencyLevel, resolver HandleResolver) *Plan {
	plan := &Plan{Levels: make([]*LevelPlan, len(levels))}
	for i, lvl := range levels {
		plan.Levels[i] = &LevelPlan{
			Level:       lvl,
			Transitions: make(map[gpu.Queue][]PlannedTransition),
			Rerouted:    make(map[gpu.Queue]gpu.Queue),
		}
	}

	for i, lvl := range levels {
		lp := plan.Levels[i]
		touched := touchedSubresources(lvl)
		for key, target := range touched {
			current, seen := p.currentState[key]
			if !seen {
				current = gpu.StateCommon
			}
			if current == target && seen {
				p.lastLevel[key] = i
				continue
			}

			owner := lvl.ownerQueue(key)
			t := PlannedTransition{
				Transition: gpu.Transition{
					Resource:    resolver.Handle(key.ResolveID()),
					Subresource: key.Index(),
					Before:      current,
					After:       target,
				},
				Subresource: key,
			}

			last, hadLast := p.lastLevel[key]
			gapped := hadLast && i-last > 1
			if gapped {
				// Split barrier: begin half goes into the level
				// where the subresource was last settled; end
				// half goes here.
				begin := t
				begin.Begin, begin.End = true, false
				end := t
				end.Begin, end.End = false, true
				p.append(plan.Levels[last], owner, begin)
				p.appendRerouted(lp, owner, end)
			} else {
				t.Begin, t.End = true, true
				p.appendRerouted(lp, owner, t)
			}

			p.currentState[key] = target
			p.lastLevel[key] = i
		}
	}
	return plan
}

// appendRerouted records t on owner's queue if owner can perform
// the transition; otherwise it picks the lowest-indexed queue
// present in the level that can, records the transition there,
// and notes the reroute so BatchBuilder can add the fence.
func (p *TransitionPlanner) appendRerouted(lp *LevelPlan, owner gpu.Queue, t PlannedTransition) {
	if p.backend == nil || p.backend.IsTransitionSupportedOnQueue(owner, t.Before, t.After) {
		p.append(lp, owner, t)
		return
	}
	for q := gpu.Queue(0); q < gpu.Queue(p.queueCount(lp)); q++ {
		if _, present := lp.Transitions[q]; !present || q == owner {
			continue
		}
		if p.backend.IsTransitionSupportedOnQueue(q, t.Before, t.After) {
			lp.Rerouted[owner] = q
			p.append(lp, q, t)
			return
		}
	}
	for q := gpu.Queue(0); q < gpu.Queue(p.queueCount(lp)); q++ {
		if q == owner {
			continue
		}
		if p.backend.IsTransitionSupportedOnQueue(q, t.Before, t.After) {
			lp.Rerouted[owner] = q
			p.append(lp, q, t)
			return
		}
	}
	// No competent queue exists anywhere in the level: fall back
	// to recording it on the owning queue and let the backend
	// reject it at submission time, surfacing as a backend error
	// rather than silently dropping the transition.
	p.append(lp, owner, t)
}

func (p *TransitionPlanner) queueCount(lp *LevelPlan) int {
	if p.backend != nil {
		return p.backend.QueueCount()
	}
	n := 0
	for q := range lp.Level.queuesInvolvedInCrossQueueReads {
		if q+1 > n {
			n = q + 1
		}
	}
	return n
}

func (p *TransitionPlanner) append(lp *LevelPlan, q gpu.Queue, t PlannedTransition) {
	lp.Transitions[q] = append(lp.Transitions[q], t)
}

// touchedSubresources returns, for every subresource touched in
// lvl, the single target state that level requires of it: the OR
// of every state the level's passes request of it.
func touchedSubresources(lvl *DependencyLevel) map[name.Subresource]gpu.State {
	out := make(map[name.Subresource]gpu.State)
	for _, n := range lvl.nodes {
		for k, st := range n.subresourceState {
			out[k] = out[k] | st
		}
	}
	return out
}

// ownerQueue picks the queue responsible for recording a
// subresource's transition within the level: the queue of the
// (first, in declaration order) node that writes it, or else the
// first node that reads it.
func (lvl *DependencyLevel) ownerQueue(key name.Subresource) gpu.Queue {
	for _, n := range lvl.nodes {
		if _, ok := n.written[key]; ok {
			return n.queue
		}
	}
	for _, n := range lvl.nodes {
		if _, ok := n.read[key]; ok {
			return n.queue
		}
	}
	return 0
}
