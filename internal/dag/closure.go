package dag

// DefaultTargets returns the tasks nothing depends on, in topological order.
func (g *Graph) DefaultTargets() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.built {
		return nil, ErrGraphNotBuilt
	}
	var sinks []string
	for _, name := range g.order {
		if len(g.nodes[name].Dependents) == 0 {
			sinks = append(sinks, name)
		}
	}
	return sinks, nil
}

// Closure returns the targets together with everything they transitively
// depend on, in topological order. Empty targets select DefaultTargets.
func (g *Graph) Closure(targets []string) ([]string, error) {
	if len(targets) == 0 {
		sinks, err := g.DefaultTargets()
		if err != nil {
			return nil, err
		}
		targets = sinks
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.built {
		return nil, ErrGraphNotBuilt
	}

	needed := make(map[string]bool)
	var mark func(n *Node)
	mark = func(n *Node) {
		if needed[n.ID()] {
			return
		}
		needed[n.ID()] = true
		for _, dep := range n.Deps {
			mark(dep)
		}
	}
	for _, name := range targets {
		n, ok := g.nodes[name]
		if !ok {
			return nil, &UnknownTaskError{Name: name}
		}
		mark(n)
	}

	out := make([]string, 0, len(needed))
	for _, name := range g.order {
		if needed[name] {
			out = append(out, name)
		}
	}
	return out, nil
}
