package gpt2_bpe

import (
	"errors"
	"fmt"
)

// Error kinds. LoadError, EncodeError and DecodeError match these with
// errors.Is.
var (
	ErrMissingFile     = errors.New("missing file")
	ErrMalformedVocab  = errors.New("malformed vocabulary")
	ErrMalformedMerges = errors.New("malformed merges")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrUnknownId       = errors.New("unknown token id")
)

// LoadError reports a vocabulary or merge resource that could not be used.
// Line is 1-based and zero when the problem is not tied to a line.
type LoadError struct {
	Kind error
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func vocabError(path string, line int, format string,
	args ...interface{}) *LoadError {
	return &LoadError{Kind: ErrMalformedVocab, Path: path, Line: line,
		Err: fmt.Errorf(format, args...)}
}

func mergesError(path string, line int, format string,
	args ...interface{}) *LoadError {
	return &LoadError{Kind: ErrMalformedMerges, Path: path, Line: line,
		Err: fmt.Errorf(format, args...)}
}

// EncodeError is returned when a merged symbol has no vocabulary entry,
// which means the vocabulary does not cover the byte-level alphabet or a
// merge result.
type EncodeError struct {
	Symbol string
	Chunk  string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%v %q in chunk %q", ErrUnknownSymbol, e.Symbol,
		e.Chunk)
}

func (e *EncodeError) Is(target error) bool {
	return target == ErrUnknownSymbol
}

// DecodeError is returned for an id outside [0, vocab_size).
type DecodeError struct {
	Id int64
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v %d", ErrUnknownId, e.Id)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrUnknownId
}
