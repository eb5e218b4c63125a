//go:build cgo

package onnx

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/gpt2_bpe/generate"
	"github.com/wbrown/gpt2_bpe/types"
)

const gpt2VocabSize = 50257

// Needs a real runtime and the GPT-2 graph, e.g.
// GPT2_ORT_LIBRARY=/usr/lib/libonnxruntime.so GPT2_MODEL=gpt2-lm-head-10.onnx
func TestPredictor_Predict(t *testing.T) {
	library, model := os.Getenv("GPT2_ORT_LIBRARY"), os.Getenv("GPT2_MODEL")
	if library == "" || model == "" {
		t.Skip("GPT2_ORT_LIBRARY and GPT2_MODEL not set")
	}
	if _, err := os.Stat(model); err != nil {
		t.Skipf("model not available: %v", err)
	}
	opts := DefaultOptions()
	opts.LibraryPath = library
	predictor, err := NewPredictor(model, opts)
	require.NoError(t, err)
	defer predictor.Close()

	// "Hello world"
	tokens := types.Tokens{15496, 995}
	scores, err := predictor.Predict(context.Background(), tokens,
		gpt2VocabSize)
	require.NoError(t, err)
	assert.Len(t, scores, gpt2VocabSize)

	next, err := generate.Select(scores)
	require.NoError(t, err)
	assert.Less(t, next, gpt2VocabSize)

	again, err := predictor.Predict(context.Background(), tokens,
		gpt2VocabSize)
	require.NoError(t, err)
	assert.Equal(t, scores, again)

	_, err = predictor.Predict(context.Background(), nil, gpt2VocabSize)
	assert.Error(t, err)
}

func TestPredictor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	predictor := &Predictor{}
	_, err := predictor.Predict(ctx, types.Tokens{1}, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictor_Closed(t *testing.T) {
	predictor := &Predictor{}
	require.NoError(t, predictor.Close())
	require.NoError(t, predictor.Close())
	_, err := predictor.Predict(context.Background(), types.Tokens{1}, 4)
	assert.ErrorIs(t, err, ErrClosed)
}
