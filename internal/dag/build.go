package dag

import (
	"context"
	"fmt"

	"github.com/vk/pakego/internal/ctxlog"
)

// Build links every registered task, validates the result and caches the
// topological order. Once it succeeds the graph is sealed. A failed Build
// leaves the graph open; links are recomputed from scratch on the next call.
func (g *Graph) Build(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		return ErrGraphSealed
	}
	logger.Debug("Build: Starting graph construction.", "task_count", len(g.registered))
	g.resetLinks()

	// First pass: explicit dependencies.
	if err := g.linkExplicit(ctx); err != nil {
		return err
	}
	logger.Debug("Build: Explicit linking complete.")

	// Second pass: dependencies inferred from shared artifacts.
	g.linkImplicit(ctx)
	logger.Debug("Build: Implicit linking complete.")

	// Third pass: cycle detection, which also yields the order.
	order, err := g.sort()
	if err != nil {
		return fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Cycle detection passed.")

	g.order = order
	g.built = true
	logger.Debug("Build: Graph construction successful.", "order", order)
	return nil
}

func (g *Graph) resetLinks() {
	for _, n := range g.registered {
		clear(n.Deps)
		clear(n.Dependents)
	}
	g.order = nil
}
