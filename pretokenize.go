package gpt2_bpe

import (
	"unicode/utf8"
)

// SplitWords splits text into the chunks the encoder merges independently.
// Special tokens are cut out first and returned whole. Every byte of text
// lands in exactly one chunk, in order.
func (encoder *GPTEncoder) SplitWords(text string) []string {
	words := make([]string, 0, len(text)/4+1)
	if len(encoder.Specials) == 0 {
		return encoder.splitSegment(text, words)
	}
	segmentStart := 0
	for idx := 0; idx < len(text); {
		if matched := encoder.specialsTree.longestMatch(
			text[idx:]); matched > 0 {
			words = encoder.splitSegment(text[segmentStart:idx], words)
			words = append(words, text[idx:idx+matched])
			idx += matched
			segmentStart = idx
			continue
		}
		_, size := utf8.DecodeRuneInString(text[idx:])
		idx += size
	}
	return encoder.splitSegment(text[segmentStart:], words)
}

// splitSegment appends the chunks of a special-free segment. Bytes that are
// not valid UTF-8 become single-byte chunks, since the pattern only sees
// runes.
func (encoder *GPTEncoder) splitSegment(segment string,
	words []string) []string {
	validStart := 0
	for idx := 0; idx < len(segment); {
		r, size := utf8.DecodeRuneInString(segment[idx:])
		if r == utf8.RuneError && size == 1 {
			words = encoder.splitValid(segment[validStart:idx], words)
			words = append(words, segment[idx:idx+1])
			validStart = idx + 1
		}
		idx += size
	}
	return encoder.splitValid(segment[validStart:], words)
}

// splitValid runs the split pattern over valid UTF-8 text. regexp2 reports
// positions in runes, so anything the pattern skips is recovered from the
// rune slice rather than dropped.
func (encoder *GPTEncoder) splitValid(text string,
	words []string) []string {
	if len(text) == 0 {
		return words
	}
	runes := []rune(text)
	next := 0
	m, err := encoder.pattern.FindStringMatch(text)
	for err == nil && m != nil {
		if m.Index > next {
			words = append(words, string(runes[next:m.Index]))
		}
		if m.Length > 0 {
			words = append(words, m.String())
		}
		next = m.Index + m.Length
		m, err = encoder.pattern.FindNextMatch(m)
	}
	if next < len(runes) {
		words = append(words, string(runes[next:]))
	}
	return words
}
