package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/wbrown/gpt2_bpe/types"
)

// Predictor is the model. Predict returns one score per vocabulary entry
// for the position after the last token. Calls block until the model
// returns; there is no mid-call abort.
type Predictor interface {
	Predict(ctx context.Context, tokens types.Tokens, vocabSize int) (
		[]float32, error)
}

// PredictorFunc adapts a function to Predictor.
type PredictorFunc func(ctx context.Context, tokens types.Tokens,
	vocabSize int) ([]float32, error)

func (f PredictorFunc) Predict(ctx context.Context, tokens types.Tokens,
	vocabSize int) ([]float32, error) {
	return f(ctx, tokens, vocabSize)
}

var (
	ErrPrediction       = errors.New("prediction failed")
	ErrBadDistribution  = errors.New("bad distribution")
	ErrEmptyPrompt      = errors.New("cannot generate from an empty prompt")
	ErrContextOverflow  = errors.New("context size exceeded")
	ErrNegativeNumToken = errors.New("token count must not be negative")
)

// PredictionError wraps a failure of the predictor at a given step. It
// matches ErrPrediction.
type PredictionError struct {
	Step int
	Err  error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%v at step %d: %v", ErrPrediction, e.Step, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

func (e *PredictionError) Is(target error) bool {
	return target == ErrPrediction
}
