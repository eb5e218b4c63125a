// Package onnx runs a GPT-2 language model graph through ONNX Runtime and
// exposes it as a generate.Predictor.
package onnx

import (
	"errors"
	"fmt"

	"github.com/wbrown/gpt2_bpe/types"
)

const (
	DefaultInputName  = "input1"
	DefaultOutputName = "output1"
)

var ErrUnavailable = errors.New("onnx runtime unavailable")

// ErrClosed is returned by Predict after Close.
var ErrClosed = errors.New("predictor closed")

type Options struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default search.
	LibraryPath string
	InputName   string
	OutputName  string
	// NumThreads for intra-op parallelism, 0 lets the runtime decide.
	NumThreads int
}

func DefaultOptions() Options {
	return Options{
		InputName:  DefaultInputName,
		OutputName: DefaultOutputName,
	}
}

// inputIds widens tokens to the int64 ids the graph takes.
func inputIds(tokens types.Tokens) []int64 {
	ids := make([]int64, len(tokens))
	for idx, token := range tokens {
		ids[idx] = int64(token)
	}
	return ids
}

// lastPosition copies the scores of the final position out of a
// (1, 1, n, vocab) output.
func lastPosition(scores []float32, n int, vocabSize int) ([]float32,
	error) {
	if n <= 0 || vocabSize <= 0 || len(scores) != n*vocabSize {
		return nil, fmt.Errorf("output holds %d scores, expected %d x %d",
			len(scores), n, vocabSize)
	}
	last := make([]float32, vocabSize)
	copy(last, scores[(n-1)*vocabSize:])
	return last, nil
}
