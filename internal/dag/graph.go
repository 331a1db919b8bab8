package dag

import (
	"slices"
	"sync"

	"github.com/vk/pakego/internal/task"
)

// Graph is a collection of task nodes and their dependencies.
type Graph struct {
	mu sync.RWMutex
	// nodes stores all nodes keyed by task name.
	nodes map[string]*Node
	// registered keeps registration order, which breaks every tie.
	registered []*Node
	built      bool
	order      []string
}

// Node is a vertex of the graph.
type Node struct {
	Def *task.Definition
	// index is the registration position of the node.
	index int
	// Deps holds the nodes this node depends on.
	Deps map[string]*Node
	// Dependents holds the nodes that depend on this node.
	Dependents map[string]*Node
}

// ID returns the task name of the node.
func (n *Node) ID() string {
	return n.Def.Name
}

// New creates an empty, unsealed graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Register adds a task definition. Names must be unique.
func (g *Graph) Register(def *task.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.built {
		return ErrGraphSealed
	}
	if _, ok := g.nodes[def.Name]; ok {
		return &DuplicateTaskError{Name: def.Name}
	}
	n := &Node{
		Def:        def,
		index:      len(g.registered),
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
	g.nodes[def.Name] = n
	g.registered = append(g.registered, n)
	return nil
}

// Built reports whether Build completed successfully.
func (g *Graph) Built() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.built
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.registered)
}

// Task looks up a definition by name.
func (g *Graph) Task(name string) (*task.Definition, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.Def, true
}

// Tasks returns every definition in registration order.
func (g *Graph) Tasks() []*task.Definition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*task.Definition, len(g.registered))
	for i, n := range g.registered {
		out[i] = n.Def
	}
	return out
}

// TopologicalOrder returns every task name ordered so that each task comes
// after all of its dependencies.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.built {
		return nil, ErrGraphNotBuilt
	}
	return slices.Clone(g.order), nil
}

// Dependencies returns the direct dependencies of name, explicit and
// implicit, in registration order.
func (g *Graph) Dependencies(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil, &UnknownTaskError{Name: name}
	}
	return sortedIDs(n.Deps), nil
}

// Dependents returns the tasks that directly depend on name, in
// registration order.
func (g *Graph) Dependents(name string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil, &UnknownTaskError{Name: name}
	}
	return sortedIDs(n.Dependents), nil
}

func sortedIDs(set map[string]*Node) []string {
	nodes := make([]*Node, 0, len(set))
	for _, n := range set {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return a.index - b.index })
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	return ids
}

func sortedNodes(set map[string]*Node) []*Node {
	nodes := make([]*Node, 0, len(set))
	for _, n := range set {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return a.index - b.index })
	return nodes
}
