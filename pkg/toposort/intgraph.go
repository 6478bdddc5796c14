package toposort

import "slices"

// IntGraph is the dense adjacency form behind Graph. Node ids are slice
// indices, so ids are expected to be contiguous from zero.
type IntGraph struct {
	adj      [][]int
	inDegree []int
}

// NewIntGraph returns an empty graph.
func NewIntGraph() *IntGraph {
	return &IntGraph{}
}

func (g *IntGraph) grow(n int) {
	for len(g.adj) < n {
		g.adj = append(g.adj, nil)
		g.inDegree = append(g.inDegree, 0)
	}
}

// AddNode makes id addressable and reports whether it was new.
func (g *IntGraph) AddNode(id int) bool {
	if id < len(g.adj) {
		return false
	}

	g.grow(id + 1)

	return true
}

// AddEdge records u -> v, growing the id space as needed. Parallel
// edges collapse; the return reports whether the edge was new.
func (g *IntGraph) AddEdge(u, v int) bool {
	g.grow(max(u, v) + 1)

	if slices.Contains(g.adj[u], v) {
		return false
	}

	g.adj[u] = append(g.adj[u], v)
	g.inDegree[v]++

	return true
}

// Len returns the size of the id space.
func (g *IntGraph) Len() int {
	return len(g.adj)
}

// Children returns the direct successors of id. The returned slice is
// backed by the graph and must not be mutated.
func (g *IntGraph) Children(id int) []int {
	if id < 0 || id >= len(g.adj) {
		return nil
	}

	return g.adj[id]
}

// TopoSort orders the nodes with Kahn's algorithm. The ready queue is
// kept sorted by id so equal graphs always order the same way. The
// second result is false when a cycle prevents a complete ordering.
func (g *IntGraph) TopoSort() ([]int, bool) {
	n := len(g.adj)
	if n == 0 {
		return nil, true
	}

	inDegree := slices.Clone(g.inDegree)

	var queue []int

	for id := range n {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]int, 0, n)

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)

		for _, v := range g.adj[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				at, _ := slices.BinarySearch(queue, v)
				queue = slices.Insert(queue, at, v)
			}
		}
	}

	return order, len(order) == n
}

// FindCycle returns a cycle through start as start, ..., start, or nil
// when start is not on one. The search is breadth first, so the
// reported cycle is among the shortest.
func (g *IntGraph) FindCycle(start int) []int {
	if start < 0 || start >= len(g.adj) {
		return nil
	}

	parent := map[int]int{start: -1}
	queue := []int{start}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for _, v := range g.adj[u] {
			if v == start {
				cycle := []int{start}
				for at := u; at != start; at = parent[at] {
					cycle = append(cycle, at)
				}

				cycle = append(cycle, start)
				slices.Reverse(cycle)

				return cycle
			}

			if _, seen := parent[v]; !seen {
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}

	return nil
}

// Reaches reports whether to is reachable from from over one or more
// edges. A node reaches itself only when it sits on a cycle.
func (g *IntGraph) Reaches(from, to int) bool {
	if from < 0 || from >= len(g.adj) || to < 0 || to >= len(g.adj) {
		return false
	}

	seen := make(map[int]bool)
	queue := []int{from}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for _, v := range g.adj[u] {
			if v == to {
				return true
			}

			if !seen[v] {
				seen[v] = true
				queue = append(queue, v)
			}
		}
	}

	return false
}
