// Package render turns run reports into terminal, JSON, and HTML output.
// The text form is what the CLI prints after a run; the HTML form is a
// self-contained page with charts for sharing.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/axonworks/axon/pkg/scheduler"
)

// Format selects an output renderer.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ErrUnknownFormat reports an unrecognized format name.
var ErrUnknownFormat = errors.New("render: unknown format")

// ParseFormat maps a user-supplied format name onto a Format. The empty
// string selects text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatText):
		return FormatText, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatHTML):
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
	}
}

// WindowStat is one window's population at report time.
type WindowStat struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Timespan time.Duration `json:"timespan"`
}

// Meta carries runtime context the report itself does not know: the
// license tier, the budget the run was admitted against, and the window
// populations left behind. The zero value renders nothing extra.
type Meta struct {
	Tier        string       `json:"tier,omitempty"`
	WorkUnitMax int          `json:"workUnitMax,omitempty"`
	Utilization float64      `json:"utilization,omitempty"`
	Windows     []WindowStat `json:"windows,omitempty"`
}

// Write renders the report in the requested format.
func Write(w io.Writer, format Format, rep *scheduler.RunReport, meta Meta) error {
	switch format {
	case FormatText:
		return Text(w, rep, meta)
	case FormatJSON:
		return JSON(w, rep)
	case FormatHTML:
		return HTML(w, rep, meta)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// JSON writes the report as indented JSON.
func JSON(w io.Writer, rep *scheduler.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

type nameCount struct {
	name  string
	count int
}

// signalCounts aggregates the emission log per signal name, most frequent
// first, name order among equals.
func signalCounts(rep *scheduler.RunReport) []nameCount {
	counts := make(map[string]int)
	for _, sig := range rep.Signals {
		counts[sig.Name]++
	}

	out := make([]nameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, nameCount{name: name, count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}

		return out[i].name < out[j].name
	})

	return out
}
