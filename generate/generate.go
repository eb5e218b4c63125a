package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/gpt2_bpe/types"
)

// Tokenizer is the part of the encoder the loop needs.
type Tokenizer interface {
	Encode(text string) (types.Tokens, error)
	Decode(tokens types.Tokens) (string, error)
	VocabSize() int
}

type Options struct {
	// ContextSize bounds prompt plus generated tokens. Zero is unlimited.
	ContextSize int
}

type Result struct {
	Tokens       types.Tokens
	PromptLength int
	Text         string
}

// Generated returns only the tokens appended by the loop.
func (r Result) Generated() types.Tokens {
	return r.Tokens[r.PromptLength:]
}

// Generator runs greedy decoding. It holds no per-request state, so one
// Generator may serve concurrent requests if its Predictor allows it.
type Generator struct {
	tokenizer Tokenizer
	predictor Predictor
	opts      Options
}

func New(tokenizer Tokenizer, predictor Predictor, opts Options) *Generator {
	return &Generator{tokenizer: tokenizer, predictor: predictor, opts: opts}
}

// Generate encodes prompt, appends n greedily selected tokens and decodes
// the whole sequence.
func (g *Generator) Generate(ctx context.Context, prompt string, n int) (
	*Result, error) {
	promptTokens, err := g.tokenizer.Encode(prompt)
	if err != nil {
		return nil, fmt.Errorf("encoding prompt: %w", err)
	}
	tokens, err := g.GenerateTokens(ctx, promptTokens, n)
	if err != nil {
		return nil, err
	}
	text, err := g.tokenizer.Decode(tokens)
	if err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &Result{
		Tokens:       tokens,
		PromptLength: len(promptTokens),
		Text:         text,
	}, nil
}

// GenerateTokens appends exactly n tokens to prompt. The prompt slice is
// not modified. ctx is checked between steps.
func (g *Generator) GenerateTokens(ctx context.Context, prompt types.Tokens,
	n int) (types.Tokens, error) {
	if n < 0 {
		return nil, ErrNegativeNumToken
	}
	if n > 0 && len(prompt) == 0 {
		return nil, ErrEmptyPrompt
	}
	if g.opts.ContextSize > 0 && len(prompt)+n > g.opts.ContextSize {
		return nil, fmt.Errorf("%w: %d prompt + %d new > %d",
			ErrContextOverflow, len(prompt), n, g.opts.ContextSize)
	}
	vocabSize := g.tokenizer.VocabSize()
	tokens := make(types.Tokens, len(prompt), len(prompt)+n)
	copy(tokens, prompt)

	requestId := uuid.New().String()
	logger := slog.With("request", requestId)
	logger.Debug("generating", "prompt_tokens", len(prompt), "n", n)
	start := time.Now()

	for step := 0; step < n; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		distribution, err := g.predictor.Predict(ctx, tokens, vocabSize)
		if err != nil {
			return nil, &PredictionError{Step: step, Err: err}
		}
		if len(distribution) != vocabSize {
			return nil, &PredictionError{Step: step,
				Err: fmt.Errorf("%w: %d scores for vocabulary of %d",
					ErrBadDistribution, len(distribution), vocabSize)}
		}
		next, err := Select(distribution)
		if err != nil {
			return nil, &PredictionError{Step: step, Err: err}
		}
		tokens = append(tokens, types.Token(next))
		logger.Debug("selected", "step", step, "token", next)
	}

	elapsed := time.Since(start)
	logger.Info("generated", "prompt_tokens", len(prompt), "new_tokens", n,
		"duration", elapsed)
	return tokens, nil
}
