//go:build !cgo

package onnx

import (
	"context"
	"fmt"

	"github.com/wbrown/gpt2_bpe/types"
)

func InitRuntime(string) error {
	return fmt.Errorf("%w: built without cgo", ErrUnavailable)
}

func DestroyRuntime() error {
	return nil
}

type Predictor struct{}

func NewPredictor(string, Options) (*Predictor, error) {
	return nil, InitRuntime("")
}

func (p *Predictor) Predict(context.Context, types.Tokens, int) ([]float32,
	error) {
	return nil, InitRuntime("")
}

func (p *Predictor) Close() error {
	return nil
}
