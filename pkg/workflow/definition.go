// Package workflow parses, validates, and compiles declarative workflow
// definitions: nodes naming atoms, edges naming the signals that connect
// them. Compilation produces the trigger index the scheduler dispatches
// from.
package workflow

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/axonworks/axon/pkg/atom"
)

//go:embed workflow-schema.json
var schemaJSON []byte

// ErrInvalidDefinition is returned when the JSON fails schema validation.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

// ErrInvalidWorkflow is returned when graph-level validation fails:
// dangling edges, incompatible signal surfaces, forbidden self-edges.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Definition is the declarative workflow: a directed graph of atom
// instances connected by named signals.
type Definition struct {
	ID    string `json:"id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges,omitempty"`
}

// Node is one atom instance in the graph.
type Node struct {
	ID       string      `json:"id"`
	AtomName string      `json:"atomName"`
	Config   atom.Config `json:"config,omitempty"`
}

// Edge routes one signal name from a source node to a target node.
type Edge struct {
	Source string `json:"source"`
	Signal string `json:"signal"`
	Target string `json:"target"`
}

// UnmarshalJSON accepts the backward-compatible manifestName alias for
// atomName.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           string      `json:"id"`
		AtomName     string      `json:"atomName"`
		ManifestName string      `json:"manifestName"`
		Config       atom.Config `json:"config"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.ID = raw.ID
	n.Config = raw.Config

	n.AtomName = raw.AtomName
	if n.AtomName == "" {
		n.AtomName = raw.ManifestName
	}

	return nil
}

// UnmarshalJSON accepts the backward-compatible sourceNodeId,
// targetNodeId, and signalKey aliases.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source       string `json:"source"`
		SourceNodeID string `json:"sourceNodeId"`
		Signal       string `json:"signal"`
		SignalKey    string `json:"signalKey"`
		Target       string `json:"target"`
		TargetNodeID string `json:"targetNodeId"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Source = raw.Source
	if e.Source == "" {
		e.Source = raw.SourceNodeID
	}

	e.Signal = raw.Signal
	if e.Signal == "" {
		e.Signal = raw.SignalKey
	}

	e.Target = raw.Target
	if e.Target == "" {
		e.Target = raw.TargetNodeID
	}

	return nil
}

// Parse validates data against the embedded schema and decodes it.
// Duplicate edges on the same (source, signal, target) triple are dropped.
func Parse(data []byte) (*Definition, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			details = append(details, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(details, "; "))
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	def.Normalize()

	return &def, nil
}

// Normalize drops duplicate edge triples, preserving first-seen order.
// Idempotent.
func (d *Definition) Normalize() {
	if len(d.Edges) < 2 {
		return
	}

	seen := make(map[Edge]bool, len(d.Edges))
	kept := d.Edges[:0]

	for _, e := range d.Edges {
		if seen[e] {
			continue
		}

		seen[e] = true
		kept = append(kept, e)
	}

	d.Edges = kept
}

// NodeByID returns the node with the given id.
func (d *Definition) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return Node{}, false
}
