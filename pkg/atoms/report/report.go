// Package report implements the JSON report renderer. The coalesced
// inputs of the firing become the report body; the artifact goes through
// the storage adapter, which decides placement and compression.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
)

// Name is the atom name workflows reference.
const Name = "report"

// ErrNoStorage is returned when the run has no storage adapter wired.
var ErrNoStorage = errors.New("report: no storage adapter configured")

// Descriptor returns the contract and executor of the renderer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "persists the coalesced results of a run as a json artifact",
			Kind:        atom.KindRenderer,
			Lane:        atom.LaneIO,
			Persistence: atom.Durable,
			Reads: []string{
				common.ReduceResult, common.BM25Results, common.TFIDFResults,
				common.RRFResults, common.MMRResults, common.TopKResults,
				common.DedupResults, common.SentimentScore, common.GeneratedText,
			},
			Writes:    []string{common.ReportStored},
			BaseCost:  2,
			CostPerKB: 0.5,
		},
		Executor: run,
	}
}

func run(ctx context.Context, rc *atom.RunContext) error {
	if rc.Services.Storage == nil {
		return ErrNoStorage
	}

	results := make(map[string]any, len(rc.Inputs))
	for name, sig := range rc.Inputs {
		results[name] = sig.Value
	}

	body := map[string]any{
		"runId":   rc.RunID,
		"node":    rc.NodeID,
		"results": results,
	}

	var (
		data []byte
		err  error
	)

	if rc.Config.Bool("pretty", true) {
		data, err = json.MarshalIndent(body, "", "  ")
	} else {
		data, err = json.Marshal(body)
	}

	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}

	path := rc.Config.String("path", "reports/"+rc.RunID+".json")

	obj, err := rc.Services.Storage.StoreBytes(ctx, path, "application/json", data)
	if err != nil {
		return fmt.Errorf("report: store: %w", err)
	}

	rc.Logger.Info("report stored", "path", obj.Path, "bytes", obj.Size)
	rc.Emit(common.ReportStored, obj)

	return nil
}
