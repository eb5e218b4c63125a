//go:build cgo

package onnx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/wbrown/gpt2_bpe/types"
)

var (
	runtimeInitOnce sync.Once
	runtimeInitErr  error
)

// InitRuntime loads the runtime library once per process. Later calls
// return the first result regardless of libraryPath.
func InitRuntime(libraryPath string) error {
	runtimeInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		runtimeInitErr = ort.InitializeEnvironment()
		if runtimeInitErr != nil {
			runtimeInitErr = fmt.Errorf("%w: %w", ErrUnavailable,
				runtimeInitErr)
		}
	})
	return runtimeInitErr
}

func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

// Predictor runs one forward pass per call over the whole sequence.
type Predictor struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	path    string
}

func NewPredictor(modelPath string, opts Options) (*Predictor, error) {
	if err := InitRuntime(opts.LibraryPath); err != nil {
		return nil, err
	}
	if opts.InputName == "" {
		opts.InputName = DefaultInputName
	}
	if opts.OutputName == "" {
		opts.OutputName = DefaultOutputName
	}
	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer sessOpts.Destroy()
	if opts.NumThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.NumThreads); err != nil {
			return nil, fmt.Errorf("setting threads: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.OutputName}, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", modelPath,
			err)
	}
	slog.Info("loaded model", "path", modelPath, "input", opts.InputName,
		"output", opts.OutputName)
	return &Predictor{session: session, path: modelPath}, nil
}

// Predict returns the scores for the token following tokens.
func (p *Predictor) Predict(ctx context.Context, tokens types.Tokens,
	vocabSize int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, ErrClosed
	}
	n := len(tokens)
	if n == 0 {
		return nil, fmt.Errorf("%s: empty input", p.path)
	}
	input, err := ort.NewTensor(ort.NewShape(1, 1, int64(n)),
		inputIds(tokens))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(n),
		int64(vocabSize)))
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer output.Destroy()

	if err = p.session.Run([]ort.Value{input},
		[]ort.Value{output}); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return lastPosition(output.GetData(), n, vocabSize)
}

func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Destroy()
	p.session = nil
	return err
}
