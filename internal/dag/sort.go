package dag

import "slices"

// sort runs a depth-first traversal over dependencies. A node seen again
// while it is still on the stack closes a cycle; otherwise nodes are emitted
// in post-order, which places every task after its dependencies.
func (g *Graph) sort() ([]string, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[*Node]int, len(g.registered))
	order := make([]string, 0, len(g.registered))
	var stack []*Node

	var visit func(n *Node) error
	visit = func(n *Node) error {
		switch state[n] {
		case visited:
			return nil
		case visiting:
			start := slices.Index(stack, n)
			path := make([]string, 0, len(stack)-start+1)
			for _, s := range stack[start:] {
				path = append(path, s.ID())
			}
			return &CycleError{Path: append(path, n.ID())}
		}

		state[n] = visiting
		stack = append(stack, n)
		for _, dep := range sortedNodes(n.Deps) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[n] = visited
		order = append(order, n.ID())
		return nil
	}

	for _, n := range g.registered {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}
