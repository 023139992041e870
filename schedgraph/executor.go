package schedgraph

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelgfx/rendergraph/gpu"
)

// Executor submits a frame's batches to the backend in dependency
// level order, per component design §4.6. Batches on distinct
// queues within a single level are independent by construction
// (the TransitionPlanner and BatchBuilder only ever add a
// cross-queue WaitFences edge when one is required), so the
// executor submits them concurrently; ordering across levels is
// carried entirely by fence wait/signal, not by any additional
// barrier the executor itself inserts.
type Executor struct {
	backend gpu.Backend
}

// NewExecutor creates an Executor submitting to backend.
func NewExecutor(backend gpu.Backend) *Executor {
	return &Executor{backend: backend}
}

// Submit submits every level's batches in order, waiting for all
// batches of a level to be accepted by the backend before moving
// on to the next (acceptance, not completion — fences carry
// completion ordering, per §5).
func (e *Executor) Submit(ctx context.Context, levels [][]gpu.Batch) error {
	for i, batches := range levels {
		g, gctx := errgroup.WithContext(ctx)
		for _, batch := range batches {
			batch := batch
			g.Go(func() error {
				return e.backend.Submit(gctx, batch)
			})
		}
		if err := g.Wait(); err != nil {
			return errors.Wrapf(err, "level %d: submit", i)
		}
	}
	return nil
}
