package workflow

import (
	"slices"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/toposort"
)

// Trigger is a node's firing predicate over incoming signal names.
type Trigger struct {
	// Names holds the distinct incoming signal names in edge order.
	Names []string

	// Mode selects whether one name suffices or all must be seen.
	Mode TriggerMode
}

// Route is one compiled edge. Cyclic routes are depth-bounded at
// dispatch time.
type Route struct {
	Edge

	// Cyclic is set when the edge closes a loop: its target reaches
	// back to its source.
	Cyclic bool
}

// Graph is a compiled workflow ready for dispatch.
type Graph struct {
	// Definition is the parsed source of the graph.
	Definition *Definition

	// Nodes indexes the definition's nodes by id.
	Nodes map[string]Node

	// Contracts maps node id to the registered atom contract.
	Contracts map[string]atom.Contract

	// Emitters routes a signal name to the edges it travels. Routes are
	// merged per distinct (signal, target) pair so one emission fires a
	// node at most once; Cyclic is set when any contributing edge
	// closes a loop.
	Emitters map[string][]Route

	// Triggers holds the firing predicate for every node with at least
	// one routed incoming edge.
	Triggers map[string]Trigger

	// Entry lists the nodes fired once at run start: non-taps with no
	// incoming edges, in definition order.
	Entry []string

	// Taps lists the wildcard readers. They are fed every emission
	// straight from the sink and never appear in Emitters or Triggers.
	Taps []string

	// HasCycles is set when the edge set contains at least one loop.
	HasCycles bool

	dag *toposort.Graph
}

// Compile validates def against the registry and builds the dispatch
// structures: the signal routing index, per-node trigger predicates,
// entry nodes, and cycle annotations.
func Compile(def *Definition, reg *atom.Registry, opts ValidateOptions) (*Graph, error) {
	if err := Validate(def, reg, opts); err != nil {
		return nil, err
	}

	g := &Graph{
		Definition: def,
		Nodes:      make(map[string]Node, len(def.Nodes)),
		Contracts:  make(map[string]atom.Contract, len(def.Nodes)),
		Emitters:   make(map[string][]Route),
		Triggers:   make(map[string]Trigger),
		dag:        toposort.NewGraph(),
	}

	modes := make(map[string]TriggerMode, len(def.Nodes))

	for _, n := range def.Nodes {
		desc, err := reg.Get(n.AtomName)
		if err != nil {
			return nil, err
		}

		g.Nodes[n.ID] = n
		g.Contracts[n.ID] = desc.Contract
		g.dag.AddNode(n.ID)

		mode, _ := ParseTriggerMode(n.Config.String(triggerModeKey, ""))
		modes[n.ID] = mode
	}

	for _, e := range def.Edges {
		g.dag.AddEdge(e.Source, e.Target)
	}

	_, acyclic := g.dag.Toposort()
	g.HasCycles = !acyclic

	hasIncoming := make(map[string]bool)
	routeAt := make(map[[2]string]int)

	for _, e := range def.Edges {
		hasIncoming[e.Target] = true

		// Edges into a tap stay out of the routing index; the tap
		// already sees every emission through its sink subscription.
		if g.Contracts[e.Target].ReadsAll() {
			continue
		}

		cyclic := g.dag.Reaches(e.Target, e.Source)

		if at, ok := routeAt[[2]string{e.Signal, e.Target}]; ok {
			if cyclic {
				g.Emitters[e.Signal][at].Cyclic = true
			}

			continue
		}

		routeAt[[2]string{e.Signal, e.Target}] = len(g.Emitters[e.Signal])
		g.Emitters[e.Signal] = append(g.Emitters[e.Signal], Route{Edge: e, Cyclic: cyclic})

		trig, ok := g.Triggers[e.Target]
		if !ok {
			trig = Trigger{Mode: modes[e.Target]}
		}

		if !slices.Contains(trig.Names, e.Signal) {
			trig.Names = append(trig.Names, e.Signal)
		}

		g.Triggers[e.Target] = trig
	}

	for _, n := range def.Nodes {
		if g.Contracts[n.ID].ReadsAll() {
			g.Taps = append(g.Taps, n.ID)

			continue
		}

		if !hasIncoming[n.ID] {
			g.Entry = append(g.Entry, n.ID)
		}
	}

	return g, nil
}

// Order returns the nodes in dependency order. The second result is
// false when cycles prevent a complete ordering.
func (g *Graph) Order() ([]string, bool) {
	return g.dag.Toposort()
}

// DOT renders the node graph in Graphviz format.
func (g *Graph) DOT() string {
	order, _ := g.dag.Toposort()

	return g.dag.Serialize(order)
}
