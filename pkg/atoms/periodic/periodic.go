// Package periodic implements the periodicity detector.
//
// The detector mean-centers the numeric series of a window and scans
// the autocorrelation function for its dominant positive-lag peak. A
// peak below the confidence floor stays silent; anything else is
// emitted with the ACF value as the signal confidence.
package periodic

import (
	"context"

	"github.com/axonworks/axon/pkg/alg/stats"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "periodic"

// DefaultMinConfidence is the ACF floor below which no signal is emitted.
const DefaultMinConfidence = 0.2

// minSeries is the shortest series worth scanning.
const minSeries = 4

// Descriptor returns the contract and executor of the analyzer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "finds the dominant autocorrelation peak of a numeric window series",
			Kind:        atom.KindAnalyzer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.WindowReady, common.AccumulatorCount, common.EntriesBatch},
			Writes:      []string{common.PeriodicDetected},
			BaseCost:    2,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	name := common.ResolveWindow(rc)

	entries := common.WindowEntries(rc)
	if entries == nil {
		entries = common.GatherEntries(rc)
	}

	if len(entries) < minSeries {
		rc.Logger.Debug("series too short for periodicity", "node", rc.NodeID, "len", len(entries))

		return nil
	}

	series := make([]float64, len(entries))
	for i, e := range entries {
		series[i] = e.Value
	}

	lagCap := len(series) / 2

	maxLag := rc.Config.Int("maxLag", lagCap)
	if maxLag <= 0 || maxLag > lagCap {
		maxLag = lagCap
	}

	minConfidence := rc.Config.Float("minConfidence", DefaultMinConfidence)

	lag, acf := stats.ACFPeak(series, maxLag)
	if lag == 0 || acf < minConfidence {
		rc.Logger.Debug("no dominant period", "node", rc.NodeID, "lag", lag, "acf", acf)

		return nil
	}

	rc.EmitScored(common.PeriodicDetected, map[string]any{
		"lag":    lag,
		"acf":    acf,
		"window": name,
	}, stats.Clamp(acf, 0, 1))

	return nil
}
