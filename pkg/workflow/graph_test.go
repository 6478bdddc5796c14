package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/workflow"
)

func noopExec(context.Context, *atom.RunContext) error { return nil }

func newTestRegistry(t *testing.T) *atom.Registry {
	t.Helper()

	reg, err := atom.Discover([]atom.Descriptor{
		{
			Contract: atom.Contract{
				Name:   "source",
				Kind:   atom.KindSensor,
				Writes: []string{"documents.batch"},
			},
			Executor: noopExec,
		},
		{
			Contract: atom.Contract{
				Name:   "score",
				Kind:   atom.KindAnalyzer,
				Reads:  []string{"documents.batch", "score.feedback"},
				Writes: []string{"score.results", "score.count"},
			},
			Executor: noopExec,
		},
		{
			Contract: atom.Contract{
				Name:   "render",
				Kind:   atom.KindRenderer,
				Reads:  []string{"score.results"},
				Writes: []string{"report.ready", "score.feedback"},
			},
			Executor: noopExec,
		},
		{
			Contract: atom.Contract{
				Name:  "audit",
				Kind:  atom.KindCoordinator,
				Reads: []string{"*"},
			},
			Executor: noopExec,
		},
		{
			Contract: atom.Contract{
				Name:   "relay",
				Kind:   atom.KindShaper,
				Reads:  []string{"loop.tick"},
				Writes: []string{"loop.tick"},
			},
			Executor: noopExec,
		},
		{
			Contract: atom.Contract{
				Name:   "emitall",
				Kind:   atom.KindSensor,
				Writes: []string{"*"},
			},
			Executor: noopExec,
		},
	})
	require.NoError(t, err)

	return reg
}

func linearDefinition() *workflow.Definition {
	return &workflow.Definition{
		ID: "wf-linear",
		Nodes: []workflow.Node{
			{ID: "collect", AtomName: "source"},
			{ID: "rank", AtomName: "score"},
			{ID: "out", AtomName: "render"},
		},
		Edges: []workflow.Edge{
			{Source: "collect", Signal: "documents.batch", Target: "rank"},
			{Source: "rank", Signal: "score.results", Target: "out"},
		},
	}
}

func TestValidate_AcceptsWellFormedGraph(t *testing.T) {
	t.Parallel()

	err := workflow.Validate(linearDefinition(), newTestRegistry(t), workflow.ValidateOptions{})
	assert.NoError(t, err)
}

func TestValidate_Issues(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	tests := []struct {
		name    string
		def     *workflow.Definition
		opts    workflow.ValidateOptions
		wantErr error
		wantMsg string
	}{
		{
			name: "unknown_atom",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "n", AtomName: "nope"}},
			},
			wantErr: atom.ErrUnknownAtom,
			wantMsg: `node "n"`,
		},
		{
			name: "duplicate_node_id",
			def: &workflow.Definition{
				ID: "wf",
				Nodes: []workflow.Node{
					{ID: "n", AtomName: "source"},
					{ID: "n", AtomName: "score"},
				},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: "duplicate node id",
		},
		{
			name: "empty_node_id",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{AtomName: "source"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: "empty id",
		},
		{
			name: "dangling_source",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "rank", AtomName: "score"}},
				Edges: []workflow.Edge{{Source: "ghost", Signal: "documents.batch", Target: "rank"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: `unknown source node "ghost"`,
		},
		{
			name: "dangling_target",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "collect", AtomName: "source"}},
				Edges: []workflow.Edge{{Source: "collect", Signal: "documents.batch", Target: "ghost"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: `unknown target node "ghost"`,
		},
		{
			name: "empty_signal",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "collect", AtomName: "source"}, {ID: "rank", AtomName: "score"}},
				Edges: []workflow.Edge{{Source: "collect", Target: "rank"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: "empty signal",
		},
		{
			name: "source_does_not_write_signal",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "collect", AtomName: "source"}, {ID: "rank", AtomName: "score"}},
				Edges: []workflow.Edge{{Source: "collect", Signal: "documents.meta", Target: "rank"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: `does not write signal "documents.meta"`,
		},
		{
			name: "target_does_not_read_signal",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "collect", AtomName: "source"}, {ID: "out", AtomName: "render"}},
				Edges: []workflow.Edge{{Source: "collect", Signal: "documents.batch", Target: "out"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: `does not read signal "documents.batch"`,
		},
		{
			name: "self_edge_rejected_by_default",
			def: &workflow.Definition{
				ID:    "wf",
				Nodes: []workflow.Node{{ID: "echo", AtomName: "relay"}},
				Edges: []workflow.Edge{{Source: "echo", Signal: "loop.tick", Target: "echo"}},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: "self-edge",
		},
		{
			name: "bad_trigger_mode",
			def: &workflow.Definition{
				ID: "wf",
				Nodes: []workflow.Node{
					{ID: "rank", AtomName: "score", Config: atom.Config{"triggerMode": "sometimes"}},
				},
			},
			wantErr: workflow.ErrInvalidWorkflow,
			wantMsg: `unknown trigger mode "sometimes"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := workflow.Validate(tc.def, reg, tc.opts)
			require.ErrorIs(t, err, tc.wantErr)
			assert.ErrorContains(t, err, tc.wantMsg)
		})
	}
}

func TestValidate_ReportsEveryIssue(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "collect", AtomName: "nope"},
			{ID: "rank", AtomName: "score"},
		},
		Edges: []workflow.Edge{
			{Source: "collect", Signal: "documents.batch", Target: "ghost"},
			{Source: "rank", Signal: "score.results", Target: "rank"},
		},
	}

	err := workflow.Validate(def, newTestRegistry(t), workflow.ValidateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, atom.ErrUnknownAtom)
	assert.ErrorIs(t, err, workflow.ErrInvalidWorkflow)
	assert.ErrorContains(t, err, "ghost")
	assert.ErrorContains(t, err, "self-edge")
}

func TestValidate_SelfEdgeAllowedByOption(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID:    "wf",
		Nodes: []workflow.Node{{ID: "echo", AtomName: "relay"}},
		Edges: []workflow.Edge{{Source: "echo", Signal: "loop.tick", Target: "echo"}},
	}

	err := workflow.Validate(def, newTestRegistry(t), workflow.ValidateOptions{AllowSelfEdges: true})
	assert.NoError(t, err)
}

func TestValidate_WildcardWriterMaySourceAnySignal(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "any", AtomName: "emitall"},
			{ID: "rank", AtomName: "score"},
		},
		Edges: []workflow.Edge{{Source: "any", Signal: "documents.batch", Target: "rank"}},
	}

	err := workflow.Validate(def, newTestRegistry(t), workflow.ValidateOptions{})
	assert.NoError(t, err)
}

func TestCompile_BuildsDispatchIndex(t *testing.T) {
	t.Parallel()

	g, err := workflow.Compile(linearDefinition(), newTestRegistry(t), workflow.ValidateOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"collect"}, g.Entry)
	assert.Empty(t, g.Taps)
	assert.False(t, g.HasCycles)

	require.Len(t, g.Emitters["documents.batch"], 1)
	route := g.Emitters["documents.batch"][0]
	assert.Equal(t, "collect", route.Source)
	assert.Equal(t, "rank", route.Target)
	assert.False(t, route.Cyclic)

	assert.Equal(t, workflow.Trigger{Names: []string{"documents.batch"}, Mode: workflow.TriggerAny}, g.Triggers["rank"])
	assert.Equal(t, workflow.Trigger{Names: []string{"score.results"}, Mode: workflow.TriggerAny}, g.Triggers["out"])

	assert.Equal(t, "score", g.Contracts["rank"].Name)
	assert.Equal(t, "rank", g.Nodes["rank"].ID)
}

func TestCompile_RejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID:    "wf",
		Nodes: []workflow.Node{{ID: "n", AtomName: "nope"}},
	}

	g, err := workflow.Compile(def, newTestRegistry(t), workflow.ValidateOptions{})
	assert.ErrorIs(t, err, atom.ErrUnknownAtom)
	assert.Nil(t, g)
}

func TestCompile_TriggerModeAll(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "collect", AtomName: "source"},
			{ID: "out", AtomName: "render"},
			{ID: "rank", AtomName: "score", Config: atom.Config{"triggerMode": "all"}},
		},
		Edges: []workflow.Edge{
			{Source: "collect", Signal: "documents.batch", Target: "rank"},
			{Source: "out", Signal: "score.feedback", Target: "rank"},
		},
	}

	g, err := workflow.Compile(def, newTestRegistry(t), workflow.ValidateOptions{})
	require.NoError(t, err)

	trig := g.Triggers["rank"]
	assert.Equal(t, workflow.TriggerAll, trig.Mode)
	assert.Equal(t, []string{"documents.batch", "score.feedback"}, trig.Names)
}

func TestCompile_CycleAnnotation(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID: "wf-loop",
		Nodes: []workflow.Node{
			{ID: "collect", AtomName: "source"},
			{ID: "rank", AtomName: "score"},
			{ID: "out", AtomName: "render"},
		},
		Edges: []workflow.Edge{
			{Source: "collect", Signal: "documents.batch", Target: "rank"},
			{Source: "rank", Signal: "score.results", Target: "out"},
			{Source: "out", Signal: "score.feedback", Target: "rank"},
		},
	}

	g, err := workflow.Compile(def, newTestRegistry(t), workflow.ValidateOptions{})
	require.NoError(t, err)

	assert.True(t, g.HasCycles)

	// The feed edge stays acyclic; the loop between rank and out is
	// marked on both participating edges.
	assert.False(t, g.Emitters["documents.batch"][0].Cyclic)
	assert.True(t, g.Emitters["score.results"][0].Cyclic)
	assert.True(t, g.Emitters["score.feedback"][0].Cyclic)

	_, ok := g.Order()
	assert.False(t, ok)
}

func TestCompile_TapsStayOutOfTheIndex(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID: "wf-tap",
		Nodes: []workflow.Node{
			{ID: "collect", AtomName: "source"},
			{ID: "rank", AtomName: "score"},
			{ID: "log", AtomName: "audit"},
		},
		Edges: []workflow.Edge{
			{Source: "collect", Signal: "documents.batch", Target: "rank"},
			// Explicit edges into a tap are legal but redundant.
			{Source: "collect", Signal: "documents.batch", Target: "log"},
		},
	}

	g, err := workflow.Compile(def, newTestRegistry(t), workflow.ValidateOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"log"}, g.Taps)
	assert.Equal(t, []string{"collect"}, g.Entry, "taps never count as entry nodes")

	require.Len(t, g.Emitters["documents.batch"], 1)
	assert.Equal(t, "rank", g.Emitters["documents.batch"][0].Target)

	_, ok := g.Triggers["log"]
	assert.False(t, ok)
}

func TestCompile_MergesRoutesPerSignalTargetPair(t *testing.T) {
	t.Parallel()

	// Two sources feeding the same signal into the same target collapse
	// into one route, so one emission fires the node once.
	def := &workflow.Definition{
		ID: "wf-merge",
		Nodes: []workflow.Node{
			{ID: "collect", AtomName: "source"},
			{ID: "any", AtomName: "emitall"},
			{ID: "rank", AtomName: "score"},
		},
		Edges: []workflow.Edge{
			{Source: "collect", Signal: "documents.batch", Target: "rank"},
			{Source: "any", Signal: "documents.batch", Target: "rank"},
		},
	}

	g, err := workflow.Compile(def, newTestRegistry(t), workflow.ValidateOptions{})
	require.NoError(t, err)

	require.Len(t, g.Emitters["documents.batch"], 1)
	assert.Equal(t, "rank", g.Emitters["documents.batch"][0].Target)
	assert.Equal(t, []string{"documents.batch"}, g.Triggers["rank"].Names)
}

func TestCompile_SelfEdgeIsCyclic(t *testing.T) {
	t.Parallel()

	def := &workflow.Definition{
		ID:    "wf-echo",
		Nodes: []workflow.Node{{ID: "echo", AtomName: "relay"}},
		Edges: []workflow.Edge{{Source: "echo", Signal: "loop.tick", Target: "echo"}},
	}

	g, err := workflow.Compile(def, newTestRegistry(t), workflow.ValidateOptions{AllowSelfEdges: true})
	require.NoError(t, err)

	assert.True(t, g.HasCycles)
	require.Len(t, g.Emitters["loop.tick"], 1)
	assert.True(t, g.Emitters["loop.tick"][0].Cyclic)
}

func TestGraph_DOT(t *testing.T) {
	t.Parallel()

	g, err := workflow.Compile(linearDefinition(), newTestRegistry(t), workflow.ValidateOptions{})
	require.NoError(t, err)

	dot := g.DOT()
	assert.Contains(t, dot, "digraph workflow {")
	assert.Contains(t, dot, `"0 collect" -> "1 rank"`)
}
