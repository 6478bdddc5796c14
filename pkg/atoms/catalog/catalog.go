// Package catalog assembles the built-in atom set. Binaries register
// these descriptors at startup; nothing here runs on import.
package catalog

import (
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/accumulator"
	"github.com/axonworks/axon/pkg/atoms/bm25"
	"github.com/axonworks/axon/pkg/atoms/burst"
	"github.com/axonworks/axon/pkg/atoms/dedup"
	"github.com/axonworks/axon/pkg/atoms/generate"
	"github.com/axonworks/axon/pkg/atoms/mmr"
	"github.com/axonworks/axon/pkg/atoms/periodic"
	"github.com/axonworks/axon/pkg/atoms/reduce"
	"github.com/axonworks/axon/pkg/atoms/report"
	"github.com/axonworks/axon/pkg/atoms/rrf"
	"github.com/axonworks/axon/pkg/atoms/sentiment"
	"github.com/axonworks/axon/pkg/atoms/source"
	"github.com/axonworks/axon/pkg/atoms/tap"
	"github.com/axonworks/axon/pkg/atoms/tfidf"
	"github.com/axonworks/axon/pkg/atoms/topk"
)

// BuiltIn returns the descriptors of every built-in atom, in a stable
// order: feeders, shapers, scorers, constrainers, detectors, proposers,
// observers, renderers.
func BuiltIn() []atom.Descriptor {
	return []atom.Descriptor{
		source.Descriptor(),
		accumulator.Descriptor(),
		reduce.Descriptor(),
		bm25.Descriptor(),
		tfidf.Descriptor(),
		rrf.Descriptor(),
		mmr.Descriptor(),
		topk.Descriptor(),
		dedup.Descriptor(),
		burst.Descriptor(),
		periodic.Descriptor(),
		sentiment.Descriptor(),
		generate.Descriptor(),
		tap.Descriptor(),
		report.Descriptor(),
	}
}

// NewRegistry builds a registry holding the built-in catalog.
func NewRegistry() (*atom.Registry, error) {
	return atom.Discover(BuiltIn())
}
