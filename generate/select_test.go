package generate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 {
	return math.NaN()
}

func TestSelect(t *testing.T) {
	inf := float32(math.Inf(1))
	tests := []struct {
		name         string
		distribution []float32
		expected     int
	}{
		{"unique max", []float32{0.1, 2.5, -1, 0.3}, 1},
		{"unique max last", []float32{-5, -4, -3}, 2},
		{"tie picks lowest", []float32{1, 3, 3, 2}, 1},
		{"all equal", []float32{7, 7, 7}, 0},
		{"single", []float32{-100}, 0},
		{"huge scores", []float32{3e38, 3.4e38, -3.4e38}, 1},
		{"positive infinity", []float32{1, inf, inf}, 1},
		{"all negative infinity", []float32{-inf, -inf}, 0},
		{"negative infinity ignored", []float32{-inf, 0.5, 0.25}, 1},
		{"close scores", []float32{1e-10, 1.0000001e-10}, 1},
		{"denormal max", []float32{0, 1e-45}, 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Select(test.distribution)
			require.NoError(t, err)
			assert.Equal(t, test.expected, got)
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	_, err := Select(nil)
	assert.ErrorIs(t, err, ErrBadDistribution)
	_, err = Select([]float32{1, float32(nan())})
	assert.ErrorIs(t, err, ErrBadDistribution)
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	require.Len(t, probs, 3)
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Less(t, probs[0], probs[1])
	assert.Less(t, probs[1], probs[2])
	assert.InDelta(t, math.Exp(1)/(math.Exp(1)+math.Exp(2)+math.Exp(3)),
		probs[0], 1e-12)

	// Stable for scores that would overflow a naive exp.
	probs = Softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, probs[0], 1e-12)
	assert.InDelta(t, 0.5, probs[1], 1e-12)

	assert.Empty(t, Softmax(nil))
}
