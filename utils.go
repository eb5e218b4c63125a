package gpt2_bpe

import (
	"strings"
	"unicode/utf8"

	"github.com/wbrown/gpt2_bpe/types"
)

type TrimDirection uint

const (
	TrimTop    TrimDirection = iota
	TrimBottom TrimDirection = iota
	TrimNone   TrimDirection = iota
)

// DecodeBuffer decodes a little endian binary token buffer, as written by
// Tokens.ToBin.
func (encoder *GPTEncoder) DecodeBuffer(encoded []byte, useUint32 bool) (
	string, error) {
	var tokens Tokens
	var err error
	if useUint32 {
		tokens, err = types.TokensFromBin32(encoded)
	} else {
		tokens, err = types.TokensFromBin(encoded)
	}
	if err != nil {
		return "", err
	}
	return encoder.Decode(tokens)
}

// TokensReady reports whether tokens decode to complete UTF-8, i.e. no
// character is split across the end of the sequence.
func (encoder *GPTEncoder) TokensReady(tokens Tokens) bool {
	text, err := encoder.Decode(tokens)
	if err != nil {
		return false
	}
	return utf8.ValidString(text)
}

// TrimNewlines keeps whole lines of tokens, counting from the top or the
// bottom, until adding another line would exceed limit tokens.
func (encoder *GPTEncoder) TrimNewlines(tokens Tokens,
	direction TrimDirection, limit uint) (Tokens, error) {
	if uint(len(tokens)) <= limit {
		return tokens, nil
	} else if direction == TrimNone {
		return Tokens{}, nil
	}
	text, err := encoder.Decode(tokens)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(text, "\n")
	var start, end, step int
	switch direction {
	case TrimTop:
		start, end, step = len(lines)-1, -1, -1
	case TrimBottom:
		start, end, step = 0, len(lines), 1
	}
	accTokens := make(Tokens, 0, limit)
	for idx := start; idx != end; idx += step {
		line := lines[idx]
		switch direction {
		case TrimTop:
			if idx > 0 {
				line = "\n" + line
			}
		case TrimBottom:
			if idx < len(lines)-1 {
				line = line + "\n"
			}
		}
		newTokens, err := encoder.Encode(line)
		if err != nil {
			return nil, err
		}
		if len(newTokens)+len(accTokens) > int(limit) {
			break
		}
		switch direction {
		case TrimTop:
			accTokens = append(newTokens, accTokens...)
		case TrimBottom:
			accTokens = append(accTokens, newTokens...)
		}
	}
	return accTokens, nil
}
