// Package burst implements the per-identity burst detector.
//
// The detector counts entries per identity inside a rolling span and
// flags identities whose count reaches the threshold. Without a
// configured window it keeps its own tracking window and feeds it from
// the triggering entries; with one it counts whatever the window
// already holds, so an accumulator can feed several detectors.
package burst

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/sink"
)

// Name is the atom name workflows reference.
const Name = "burst"

// Default detection parameters.
const (
	DefaultThreshold = 10
	DefaultSpan      = 30 * time.Second
)

// trackCap bounds the self-owned tracking window.
const trackCap = 1024

// Descriptor returns the contract and executor of the analyzer.
func Descriptor() atom.Descriptor {
	return atom.Descriptor{
		Contract: atom.Contract{
			Name:        Name,
			Description: "flags identities whose event count inside a rolling span reaches a threshold",
			Kind:        atom.KindAnalyzer,
			Lane:        atom.LaneFast,
			Reads:       []string{common.EntriesBatch, common.EntryAdd, common.WindowReady},
			Writes:      []string{common.BurstDetected, common.BurstCount, common.BurstRate, common.BurstDescription},
			BaseCost:    2,
		},
		Executor: run,
	}
}

func run(_ context.Context, rc *atom.RunContext) error {
	threshold := rc.Config.Int("threshold", DefaultThreshold)
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	span := rc.Config.Duration("span", DefaultSpan)
	if span <= 0 {
		span = DefaultSpan
	}

	name := rc.Config.String(common.ConfigWindow, "")
	if name == "" {
		name = "burst." + rc.NodeID
		rc.Sink.ConfigureWindow(name, sink.WindowConfig{MaxItems: trackCap, MaxAge: span})

		for _, e := range common.GatherEntries(rc) {
			key := e.Identity()
			if key == "" {
				key = "default"
			}

			rc.Sink.WindowAdd(name, key, e)
		}
	}

	snapshot := rc.Sink.WindowQuery(name)
	if len(snapshot) == 0 {
		return nil
	}

	// Stream time: the newest entry anchors the counting span, so a
	// replayed feed detects its own bursts.
	now := snapshot[len(snapshot)-1].CollectedAt

	counts := make(map[string]int)

	for _, we := range snapshot {
		if now.Sub(we.CollectedAt) <= span {
			counts[we.Key]++
		}
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		count := counts[key]
		if count < threshold {
			continue
		}

		rc.EmitKeyed(common.BurstDetected, key, true)
		rc.EmitKeyed(common.BurstCount, key, count)
		rc.EmitKeyed(common.BurstRate, key, float64(count)/span.Seconds())
		rc.EmitKeyed(common.BurstDescription, key,
			fmt.Sprintf("%d events for %s in %s (threshold %d)", count, key, span, threshold))
	}

	return nil
}
