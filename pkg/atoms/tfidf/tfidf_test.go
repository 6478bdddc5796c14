package tfidf_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/atom"
	"github.com/axonworks/axon/pkg/atoms/common"
	"github.com/axonworks/axon/pkg/atoms/tfidf"
)

var corpus = []string{
	"apple banana apple",
	"banana cherry",
	"apple cherry date",
}

func TestModel_DefaultVariantsFavorFrequency(t *testing.T) {
	t.Parallel()

	model := tfidf.NewModel(corpus, true)

	scores, err := model.Score("apple", tfidf.DefaultTF, tfidf.DefaultIDF)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Greater(t, scores[0], scores[2], "two occurrences outweigh one")
	assert.Greater(t, scores[2], scores[1])
	assert.Zero(t, scores[1])
}

func TestModel_BooleanFlattensFrequency(t *testing.T) {
	t.Parallel()

	model := tfidf.NewModel(corpus, true)

	scores, err := model.Score("apple", "boolean", "standard")
	require.NoError(t, err)

	assert.InDelta(t, scores[0], scores[2], 1e-12)
	assert.Zero(t, scores[1])
}

func TestModel_ProbabilisticZeroesCommonTerms(t *testing.T) {
	t.Parallel()

	model := tfidf.NewModel(corpus, true)

	// apple appears in 2 of 3 documents, date in 1 of 3.
	frequent, err := model.Score("apple", "raw", "probabilistic")
	require.NoError(t, err)
	rare, err := model.Score("date", "raw", "probabilistic")
	require.NoError(t, err)

	for _, s := range frequent {
		assert.Zero(t, s)
	}
	assert.Positive(t, rare[2])
}

func TestModel_UnknownVariantsFail(t *testing.T) {
	t.Parallel()

	model := tfidf.NewModel(corpus, true)

	_, err := model.Score("apple", "quadratic", tfidf.DefaultIDF)
	assert.ErrorContains(t, err, "unknown tf variant")

	_, err = model.Score("apple", tfidf.DefaultTF, "bayesian")
	assert.ErrorContains(t, err, "unknown idf variant")
}

func TestModel_TopTermsPicksDistinctive(t *testing.T) {
	t.Parallel()

	model := tfidf.NewModel(corpus, true)

	perDoc, err := model.TopTerms(1, tfidf.DefaultTF, tfidf.DefaultIDF)
	require.NoError(t, err)
	require.Len(t, perDoc, 3)

	// date is the only term unique to its document.
	require.Len(t, perDoc[2], 1)
	assert.Equal(t, "date", perDoc[2][0].Term)
}

func newRunContext(t *testing.T, cfg atom.Config) *atom.RunContext {
	t.Helper()

	return &atom.RunContext{
		RunID:  "run-1",
		NodeID: "weigh",
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRun_EmitsRankingAndTerms(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, atom.Config{"query": "apple", "terms": 2})
	rc.Trigger.Name = common.EntriesBatch
	rc.Trigger.Value = []common.Entry{
		{Key: "d0", Text: corpus[0]},
		{Key: "d1", Text: corpus[1]},
		{Key: "d2", Text: corpus[2]},
	}

	require.NoError(t, tfidf.Descriptor().Executor(context.Background(), rc))

	emitted := rc.Emitted()
	require.Len(t, emitted, 2)

	require.Equal(t, common.TFIDFResults, emitted[0].Name)
	ranked := emitted[0].Value.([]common.Scored)
	require.Len(t, ranked, 3)
	assert.Equal(t, "d0", ranked[0].Key)

	require.Equal(t, common.TFIDFTerms, emitted[1].Name)
	terms := emitted[1].Value.(map[string][]tfidf.TermWeight)
	require.Contains(t, terms, "d2")
	assert.LessOrEqual(t, len(terms["d2"]), 2)
}

func TestRun_RequiresQueryOrTerms(t *testing.T) {
	t.Parallel()

	rc := newRunContext(t, atom.Config{})

	err := tfidf.Descriptor().Executor(context.Background(), rc)
	assert.ErrorIs(t, err, tfidf.ErrMissingQuery)
}
