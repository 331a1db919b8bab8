package dag

import (
	"context"

	"github.com/vk/pakego/internal/ctxlog"
)

// link records that dependent depends on dep.
func link(dependent, dep *Node) {
	dependent.Deps[dep.ID()] = dep
	dep.Dependents[dependent.ID()] = dependent
}

// linkExplicit wires DependsOn names. The first unknown name, in
// registration and then declaration order, is reported.
func (g *Graph) linkExplicit(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, n := range g.registered {
		for _, depName := range n.Def.DependsOn {
			dep, ok := g.nodes[depName]
			if !ok {
				return &UnknownDependencyError{Task: n.ID(), Dependency: depName}
			}
			logger.Debug("Linking explicit dependency.", "from", n.ID(), "to", depName)
			link(n, dep)
		}
	}
	return nil
}

// linkImplicit makes a task depend on every other task that produces one of
// its inputs. Artifacts are compared by absolute path.
func (g *Graph) linkImplicit(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	producers := make(map[string][]*Node)
	for _, n := range g.registered {
		for _, out := range n.Def.Outputs {
			producers[out.Abs] = append(producers[out.Abs], n)
		}
	}

	for _, n := range g.registered {
		for _, in := range n.Def.Inputs {
			for _, producer := range producers[in.Abs] {
				if producer == n {
					continue
				}
				if _, exists := n.Deps[producer.ID()]; exists {
					continue
				}
				logger.Debug("Linking implicit dependency.", "from", n.ID(), "to", producer.ID(), "artifact", in.Path)
				link(n, producer)
			}
		}
	}
}
