// Package reduce implements the numeric fold analyzer over window entries.
package reduce

import (
	"context"
	"fmt"

	"github.com/axonworks/axon/pkg/alg/stats"
	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "reduce"

// Ops supported by the reducer.
const (
	OpSum    = "sum"
	OpAvg    = "avg"
	OpMin    = "min"
	OpMax    = "max"
	OpMedian = "median"
	OpStdDev = "stddev"
)

// AllOps returns every supported op in stable order.
func AllOps() []string {
	return []string{OpSum, OpAvg, OpMin, OpMax, OpMedian, OpStdDev}
}

// Descriptor returns the contract and executor of the analyzer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "folds the numeric values of a window into sum/avg/min/max/median/stddev",
			Kind:        atom.KindAnalyzer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.WindowReady, common.AccumulatorCount, common.EntriesBatch},
			Writes:      []string{common.ReduceResult},
			BaseCost:    2,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	entries := common.WindowEntries(rc)
	if entries == nil {
		entries = common.GatherEntries(rc)
	}

	values := make([]float64, 0, len(entries))

	for _, e := range entries {
		if v, ok := e.NumericValue(); ok {
			values = append(values, v)
		}
	}

	ops := rc.Config.StringSlice("ops", AllOps())

	result := map[string]any{"count": len(values)}

	for _, op := range ops {
		v, err := apply(op, values)
		if err != nil {
			return err
		}

		result[op] = v
	}

	rc.Emit(common.ReduceResult, result)

	return nil
}

// apply folds values under one op. Every op yields 0 for an empty series.
func apply(op string, values []float64) (float64, error) {
	switch op {
	case OpSum:
		return stats.Sum(values), nil
	case OpAvg:
		return stats.Mean(values), nil
	case OpMin:
		return stats.Min(values), nil
	case OpMax:
		return stats.Max(values), nil
	case OpMedian:
		return stats.Median(values), nil
	case OpStdDev:
		return stats.StdDev(values), nil
	default:
		return 0, fmt.Errorf("reduce: unknown op %q", op)
	}
}
