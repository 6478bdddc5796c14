package render_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/atoms/dedup"
	"github.com/axonworks/axon/pkg/render"
	"github.com/axonworks/axon/pkg/scheduler"
	"github.com/axonworks/axon/pkg/signal"
)

//nolint:gochecknoinits // color output must be stable regardless of the test terminal
func init() {
	color.NoColor = true
}

func sampleReport() *scheduler.RunReport {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	clusters := []dedup.Cluster{
		{
			Representative: common.Scored{Entry: common.Entry{Key: "err-1", Text: "database timeout on replica"}},
			Duplicates: []common.Scored{
				{Entry: common.Entry{Key: "err-2", Text: "database timeout on primary"}},
			},
		},
	}

	return &scheduler.RunReport{
		RunID:      "run-1",
		WorkflowID: "wf-ranking",
		StartedAt:  started,
		Duration:   420 * time.Millisecond,
		Nodes: []scheduler.NodeReport{
			{NodeID: "feed", AtomName: "source.entries", Firings: 1, WorkUnits: 1},
			{NodeID: "squash", AtomName: "dedup", Firings: 1, WorkUnits: 4.5},
		},
		WorkUnits:      5.5,
		ThrottleEvents: 2,
		Signals: []signal.Signal{
			{Source: "feed", Name: common.EntriesBatch, EmittedAt: started.Add(10 * time.Millisecond)},
			{Source: "squash", Name: common.DedupResults, EmittedAt: started.Add(40 * time.Millisecond)},
			{Source: "squash", Name: common.DedupClusters, Value: clusters, EmittedAt: started.Add(41 * time.Millisecond)},
		},
	}
}

func sampleMeta() render.Meta {
	return render.Meta{
		Tier:        "professional",
		WorkUnitMax: 6000,
		Utilization: 0.12,
		Windows: []render.WindowStat{
			{Name: "docs", Count: 3, Timespan: 2 * time.Second},
		},
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want render.Format
	}{
		{in: "", want: render.FormatText},
		{in: "text", want: render.FormatText},
		{in: "JSON", want: render.FormatJSON},
		{in: " html ", want: render.FormatHTML},
	}

	for _, tt := range tests {
		got, err := render.ParseFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := render.ParseFormat("xml")
	assert.ErrorIs(t, err, render.ErrUnknownFormat)
}

func TestText_RendersSummaryTablesAndClusters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.Text(&buf, sampleReport(), sampleMeta()))

	out := buf.String()

	assert.Contains(t, out, "run run-1 completed (wf-ranking)")
	assert.Contains(t, out, "work units 5.5")
	assert.Contains(t, out, "tier professional")
	assert.Contains(t, out, "throttled 2 times")

	assert.Contains(t, out, "source.entries")
	assert.Contains(t, out, "squash")
	assert.Contains(t, out, common.DedupClusters)

	assert.Contains(t, out, "docs")

	assert.Contains(t, out, "Duplicate clusters:")
	assert.Contains(t, out, "err-1 (+1 duplicates)")
	assert.Contains(t, out, "vs err-2:")
}

func TestText_FailureShowsErrorKind(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	rep.ErrorKind = "validation"
	rep.Error = "node cut references unknown atom"

	var buf bytes.Buffer

	require.NoError(t, render.Text(&buf, rep, render.Meta{}))

	out := buf.String()
	assert.Contains(t, out, "run run-1 failed")
	assert.Contains(t, out, "validation: node cut references unknown atom")
}

func TestJSON_RoundTrips(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.JSON(&buf, sampleReport()))

	var decoded scheduler.RunReport

	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "wf-ranking", decoded.WorkflowID)
	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, "squash", decoded.Nodes[1].NodeID)
	assert.Len(t, decoded.Signals, 3)
}

func TestHTML_EmbedsChartsAndInspector(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.HTML(&buf, sampleReport(), sampleMeta()))

	out := buf.String()

	assert.Contains(t, out, "axon run run-1")
	assert.Contains(t, out, "Signal Timeline")
	assert.Contains(t, out, "Node Dispatch")
	assert.Contains(t, out, "Work Units by Node")
	assert.Contains(t, out, "Budget Utilization")
	assert.Contains(t, out, "Window Populations")

	assert.Contains(t, out, "Duplicate clusters")
	assert.Contains(t, out, "err-1")

	idx := bytes.LastIndex(buf.Bytes(), []byte("</body>"))
	assert.Positive(t, idx, "inspector lands inside the document body")
}

func TestClusterInspector_DecodesJSONPayloads(t *testing.T) {
	t.Parallel()

	rep := sampleReport()
	rep.Signals = []signal.Signal{
		{
			Source: "squash",
			Name:   common.DedupClusters,
			Value: []any{
				map[string]any{
					"representative": map[string]any{"key": "a", "text": "payment failed for order", "score": 1.0},
					"duplicates": []any{
						map[string]any{"key": "b", "text": "payment failed for orders", "score": 0.95},
					},
				},
			},
		},
	}

	var buf bytes.Buffer

	require.NoError(t, render.Text(&buf, rep, render.Meta{}))

	out := buf.String()
	assert.Contains(t, out, "a (+1 duplicates)")
	assert.Contains(t, out, "vs b:")
}

func TestWrite_DispatchesByFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.Write(&buf, render.FormatJSON, sampleReport(), render.Meta{}))
	assert.True(t, bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")))

	err := render.Write(&buf, render.Format("yaml"), sampleReport(), render.Meta{})
	assert.ErrorIs(t, err, render.ErrUnknownFormat)
}
