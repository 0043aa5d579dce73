package dualnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLiteEngineProducesWellFormedOutput(t *testing.T) {
	engine, err := newLiteEngine(Config{BatchSize: 3}, nil)
	require.NoError(t, err)
	defer engine.Close()

	require.Equal(t, 3, engine.BatchSize())

	features := make([]BoardFeatures, 3)
	for i := range features {
		features[i] = NewBoardFeatures()
	}

	result := engine.Run(features)
	require.Len(t, result.Policies, 3)
	require.Len(t, result.Values, 3)

	for _, p := range result.Policies {
		var sum float32
		for _, v := range p {
			sum += v
		}
		require.InDelta(t, 1.0, sum, 1e-3, "policy should be a probability distribution")
	}
	for _, v := range result.Values {
		require.GreaterOrEqual(t, v, float32(-1))
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	logits := []float32{1, 2, 3, -1}
	softmax(logits)
	var sum float32
	for _, v := range logits {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}
