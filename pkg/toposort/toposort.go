// Package toposort orders directed node graphs and classifies their
// cycles. Names are interned into dense ids so the traversals run on
// slices rather than string maps.
package toposort

import (
	"fmt"
	"slices"
	"strings"
)

// Graph is a directed graph over string-named nodes.
type Graph struct {
	symbols *SymbolTable
	edges   *IntGraph
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{symbols: NewSymbolTable(), edges: NewIntGraph()}
}

// AddNode inserts name and reports whether it was new.
func (g *Graph) AddNode(name string) bool {
	if _, ok := g.symbols.Lookup(name); ok {
		return false
	}

	return g.edges.AddNode(g.symbols.Intern(name))
}

// AddEdge records from -> to, interning both ends as needed. Parallel
// edges collapse; the return reports whether the edge was new.
func (g *Graph) AddEdge(from, to string) bool {
	u := g.symbols.Intern(from)
	v := g.symbols.Intern(to)

	g.edges.AddNode(u)
	g.edges.AddNode(v)

	return g.edges.AddEdge(u, v)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return g.symbols.Len()
}

// Toposort returns the nodes in dependency order. Ties break by
// insertion order, so equal graphs built the same way sort the same
// way. The second result is false when a cycle prevents a complete
// ordering; the acyclic prefix is still returned.
func (g *Graph) Toposort() ([]string, bool) {
	ids, ok := g.edges.TopoSort()

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.symbols.Resolve(id)
	}

	return names, ok
}

// FindCycle returns a cycle through seed as seed, ..., seed, or nil
// when seed is not on one.
func (g *Graph) FindCycle(seed string) []string {
	id, ok := g.symbols.Lookup(seed)
	if !ok {
		return nil
	}

	ids := g.edges.FindCycle(id)
	if len(ids) == 0 {
		return nil
	}

	names := make([]string, len(ids))
	for i, cid := range ids {
		names[i] = g.symbols.Resolve(cid)
	}

	return names
}

// Reaches reports whether to is reachable from from over one or more
// edges. A node reaches itself only when it sits on a cycle.
func (g *Graph) Reaches(from, to string) bool {
	u, ok := g.symbols.Lookup(from)
	if !ok {
		return false
	}

	v, ok := g.symbols.Lookup(to)
	if !ok {
		return false
	}

	return g.edges.Reaches(u, v)
}

// FindParents returns the sorted tails of edges into to.
func (g *Graph) FindParents(to string) []string {
	target, ok := g.symbols.Lookup(to)
	if !ok {
		return nil
	}

	// No reverse index; scan the forward lists.
	var parents []string

	for u := range g.edges.Len() {
		if slices.Contains(g.edges.Children(u), target) {
			parents = append(parents, g.symbols.Resolve(u))
		}
	}

	slices.Sort(parents)

	return parents
}

// FindChildren returns the sorted heads of edges out of from.
func (g *Graph) FindChildren(from string) []string {
	u, ok := g.symbols.Lookup(from)
	if !ok {
		return nil
	}

	ids := g.edges.Children(u)
	if len(ids) == 0 {
		return nil
	}

	children := make([]string, len(ids))
	for i, v := range ids {
		children[i] = g.symbols.Resolve(v)
	}

	slices.Sort(children)

	return children
}

// Serialize renders the graph in Graphviz format. Each node label is
// prefixed with its position in sorted so renderings line up with a
// prior Toposort.
func (g *Graph) Serialize(sorted []string) string {
	position := make(map[string]int, len(sorted))
	for i, name := range sorted {
		position[name] = i
	}

	names := make([]string, 0, g.symbols.Len())
	for id := range g.symbols.Len() {
		names = append(names, g.symbols.Resolve(id))
	}

	slices.Sort(names)

	var b strings.Builder

	b.WriteString("digraph workflow {\n")

	for _, from := range names {
		for _, to := range g.FindChildren(from) {
			fmt.Fprintf(&b, "  \"%d %s\" -> \"%d %s\"\n",
				position[from], from, position[to], to)
		}
	}

	b.WriteString("}")

	return b.String()
}
