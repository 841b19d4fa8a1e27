package schedule

// graph is the dependency graph of one event group, over node indices
// local to the group. succ[i] lists the dependents of i (edges run from a
// dependency to the systems that run after it), in registration order.
type graph struct {
	names []string
	succ  [][]int
}

func (g *graph) hasSelfLoop(v int) bool {
	for _, w := range g.succ[v] {
		if w == v {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes and successors are visited in index order, so the result is
// deterministic. Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(g *graph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make([]int, len(g.names))
		lowlink = make([]int, len(g.names))
		onStack = make([]bool, len(g.names))
		sccs    [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succ[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root node: pop the stack and emit an SCC.
		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := range g.names {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

// findCycle returns a witness cycle as a list of names, or nil for a DAG.
//
// Among all cyclic SCCs the one containing the earliest registered system is
// chosen, and the witness is the shortest cycle through that system, so the
// same input always reports the same path.
func findCycle(g *graph) []string {
	best := -1
	var bestSCC []int
	for _, scc := range tarjanSCC(g) {
		if len(scc) == 1 && !g.hasSelfLoop(scc[0]) {
			continue
		}
		low := scc[0]
		for _, v := range scc[1:] {
			low = min(low, v)
		}
		if best < 0 || low < best {
			best = low
			bestSCC = scc
		}
	}
	if best < 0 {
		return nil
	}
	return g.cyclePath(best, bestSCC)
}

// cyclePath finds the shortest path from start back to start that stays
// inside the SCC, using breadth-first search.
func (g *graph) cyclePath(start int, scc []int) []string {
	member := make(map[int]bool, len(scc))
	for _, v := range scc {
		member[v] = true
	}

	parent := make(map[int]int, len(scc))
	queue := []int{start}
	visited := map[int]bool{start: true}
	end := -1

	for len(queue) > 0 && end < 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range g.succ[v] {
			if !member[w] {
				continue
			}
			if w == start {
				end = v
				break
			}
			if !visited[w] {
				visited[w] = true
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}

	// Walk back from the node that closes the cycle.
	var rev []int
	for v := end; v != start; v = parent[v] {
		rev = append(rev, v)
	}

	path := []string{g.names[start]}
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, g.names[rev[i]])
	}
	return append(path, g.names[start])
}
