package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/gpt2_bpe"
	"github.com/wbrown/gpt2_bpe/types"
)

func newTokenizer(t *testing.T) *gpt2_bpe.GPTEncoder {
	t.Helper()
	encoder, err := gpt2_bpe.Load(
		strings.NewReader(`{"a": 0, "b": 1, "ab": 2}`),
		strings.NewReader("#version: 0.2\na b\n"))
	require.NoError(t, err)
	return encoder
}

// constant always favors one id and records the sequence lengths it sees.
type constant struct {
	id      int
	lengths []int
}

func (c *constant) Predict(_ context.Context, tokens types.Tokens,
	vocabSize int) ([]float32, error) {
	c.lengths = append(c.lengths, len(tokens))
	distribution := make([]float32, vocabSize)
	distribution[c.id] = 10
	return distribution, nil
}

func TestGenerate_Length(t *testing.T) {
	tokenizer := newTokenizer(t)
	for _, n := range []int{0, 1, 5} {
		predictor := &constant{id: 1}
		gen := New(tokenizer, predictor, Options{})
		result, err := gen.Generate(context.Background(), "ab", n)
		require.NoError(t, err)
		assert.Len(t, result.Tokens, 1+n)
		assert.Equal(t, 1, result.PromptLength)
		assert.Equal(t, "ab"+strings.Repeat("b", n), result.Text)
		assert.Len(t, result.Generated(), n)
		assert.Len(t, predictor.lengths, n)
	}
}

func TestGenerate_SeesFullSequence(t *testing.T) {
	predictor := &constant{id: 0}
	gen := New(newTokenizer(t), predictor, Options{})
	result, err := gen.Generate(context.Background(), "abab", 3)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens{2, 2, 0, 0, 0}, result.Tokens)
	if diff := cmp.Diff([]int{2, 3, 4}, predictor.lengths); diff != "" {
		t.Errorf("predictor saw (-want +got):\n%s", diff)
	}
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	gen := New(newTokenizer(t), &constant{}, Options{})
	result, err := gen.Generate(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, result.Tokens)
	assert.Equal(t, "", result.Text)

	_, err = gen.Generate(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = gen.Generate(context.Background(), "ab", -1)
	assert.ErrorIs(t, err, ErrNegativeNumToken)
}

func TestGenerateTokens_PromptUntouched(t *testing.T) {
	gen := New(newTokenizer(t), &constant{id: 1}, Options{})
	prompt := make(types.Tokens, 2, 8)
	prompt[0], prompt[1] = 2, 0
	tokens, err := gen.GenerateTokens(context.Background(), prompt, 2)
	require.NoError(t, err)
	assert.Equal(t, types.Tokens{2, 0, 1, 1}, tokens)
	assert.Equal(t, types.Tokens{2, 0}, prompt)
	assert.Equal(t, types.Tokens{0, 0}, prompt[2:4])
}

func TestGenerate_PredictionError(t *testing.T) {
	errModel := errors.New("model exploded")
	calls := 0
	predictor := PredictorFunc(func(_ context.Context, _ types.Tokens,
		vocabSize int) ([]float32, error) {
		calls++
		if calls == 3 {
			return nil, errModel
		}
		return make([]float32, vocabSize), nil
	})
	gen := New(newTokenizer(t), predictor, Options{})
	result, err := gen.Generate(context.Background(), "ab", 5)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrPrediction)
	assert.ErrorIs(t, err, errModel)
	var predictionErr *PredictionError
	require.ErrorAs(t, err, &predictionErr)
	assert.Equal(t, 2, predictionErr.Step)
	assert.Equal(t, 3, calls)
}

func TestGenerate_BadDistribution(t *testing.T) {
	tests := map[string][]float32{
		"short": {1, 2},
		"long":  {1, 2, 3, 4},
		"nan":   {1, float32(nan()), 2},
	}
	for name, distribution := range tests {
		t.Run(name, func(t *testing.T) {
			predictor := PredictorFunc(func(context.Context, types.Tokens,
				int) ([]float32, error) {
				return distribution, nil
			})
			gen := New(newTokenizer(t), predictor, Options{})
			_, err := gen.Generate(context.Background(), "ab", 1)
			assert.ErrorIs(t, err, ErrBadDistribution)
			assert.ErrorIs(t, err, ErrPrediction)
		})
	}
}

func TestGenerate_DecodesMergedIds(t *testing.T) {
	gen := New(newTokenizer(t), &constant{id: 2}, Options{})
	result, err := gen.Generate(context.Background(), "a", 2)
	require.NoError(t, err)
	assert.Equal(t, "aabab", result.Text)
}

func TestGenerate_ContextSize(t *testing.T) {
	gen := New(newTokenizer(t), &constant{id: 1}, Options{ContextSize: 3})
	_, err := gen.Generate(context.Background(), "ab", 3)
	assert.ErrorIs(t, err, ErrContextOverflow)
	result, err := gen.Generate(context.Background(), "ab", 2)
	require.NoError(t, err)
	assert.Len(t, result.Tokens, 3)
}

func TestGenerate_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	predictor := PredictorFunc(func(_ context.Context, _ types.Tokens,
		vocabSize int) ([]float32, error) {
		calls++
		cancel()
		return make([]float32, vocabSize), nil
	})
	gen := New(newTokenizer(t), predictor, Options{})
	_, err := gen.Generate(ctx, "ab", 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
