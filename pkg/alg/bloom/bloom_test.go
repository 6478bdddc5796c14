package bloom_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonworks/axon/pkg/alg/bloom"
)

func TestNewWithEstimates(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(1000, 0.01)
	require.NoError(t, err)

	assert.Greater(t, f.BitCount(), uint(0))
	assert.GreaterOrEqual(t, f.HashCount(), uint(1))
}

func TestNewWithEstimates_Rejects(t *testing.T) {
	t.Parallel()

	_, err := bloom.NewWithEstimates(0, 0.01)
	assert.ErrorIs(t, err, bloom.ErrZeroN)

	_, err = bloom.NewWithEstimates(100, 0)
	assert.ErrorIs(t, err, bloom.ErrInvalidFP)

	_, err = bloom.NewWithEstimates(100, 1)
	assert.ErrorIs(t, err, bloom.ErrInvalidFP)
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(100, 0.01)
	require.NoError(t, err)

	for i := range 100 {
		f.Add(fmt.Appendf(nil, "member-%d", i))
	}

	for i := range 100 {
		assert.True(t, f.Test(fmt.Appendf(nil, "member-%d", i)))
	}

	assert.Equal(t, uint(100), f.EstimatedCount())
}

func TestFilter_FalsePositiveRate(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(100, 0.01)
	require.NoError(t, err)

	for i := range 100 {
		f.Add(fmt.Appendf(nil, "member-%d", i))
	}

	positives := 0

	for i := range 1000 {
		if f.Test(fmt.Appendf(nil, "stranger-%d", i)) {
			positives++
		}
	}

	// Sized for 1%; anything near that is healthy, an order of
	// magnitude off means the sizing math broke.
	assert.Less(t, positives, 100)
}

func TestFilter_EmptyNeverMatches(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(10, 0.01)
	require.NoError(t, err)

	assert.False(t, f.Test([]byte("anything")))
	assert.Zero(t, f.FillRatio())
}

func TestFilter_Reset(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(10, 0.01)
	require.NoError(t, err)

	f.Add([]byte("gone"))
	require.True(t, f.Test([]byte("gone")))

	f.Reset()

	assert.False(t, f.Test([]byte("gone")))
	assert.Zero(t, f.EstimatedCount())
}
