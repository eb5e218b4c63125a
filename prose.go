package gpt2_bpe

import (
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

func newSentenceDoc(text string) (*prose.Document, error) {
	return prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
}

// TrimIncompleteSentence drops a trailing sentence that does not end in
// punctuation. If that would cut away more than a fifth of the text, the
// tokens are returned unchanged.
func (encoder *GPTEncoder) TrimIncompleteSentence(tokens Tokens) (Tokens,
	error) {
	if len(tokens) == 0 {
		return tokens, nil
	}
	decoded, err := encoder.Decode(tokens)
	if err != nil {
		return nil, err
	}
	doc, err := newSentenceDoc(decoded)
	if err != nil {
		return nil, err
	}
	sentences := make([]string, 0)
	for _, sentence := range doc.Sentences() {
		// prose misses boundaries with no space after the punctuation.
		// The split consumes the letter on each side, so "end.Start"
		// gives "en" and "tart".
		sentences = append(sentences,
			encoder.puncPat.Split(sentence.Text, -1)...)
	}
	if len(sentences) == 0 {
		return tokens, nil
	}
	lastSentence := sentences[len(sentences)-1]
	var last rune
	for _, r := range lastSentence {
		if !unicode.IsSpace(r) {
			last = r
		}
	}
	text := doc.Text
	if !unicode.IsPunct(last) {
		trimPos := strings.LastIndex(text, lastSentence)
		// After a split the byte before trimPos is the consumed first
		// letter, and dropping it keeps the punctuation.
		if trimPos >= 1 {
			text = text[:trimPos-1]
		}
	}
	text = strings.TrimSpace(text)
	if float32(len(text)) < float32(len(doc.Text))*0.8 {
		return tokens, nil
	}
	return encoder.Encode(text)
}

// TrimSentences keeps whole sentences, counting from the top or the
// bottom, while the kept text stays under limit tokens.
func (encoder *GPTEncoder) TrimSentences(tokens Tokens,
	direction TrimDirection, limit uint) (Tokens, error) {
	if uint(len(tokens)) <= limit {
		return tokens, nil
	} else if direction == TrimNone {
		return Tokens{}, nil
	}
	decoded, err := encoder.Decode(tokens)
	if err != nil {
		return nil, err
	}
	doc, err := newSentenceDoc(decoded)
	if err != nil {
		return nil, err
	}
	sentences := doc.Sentences()
	text := doc.Text
	switch direction {
	case TrimTop:
		// kept is the start of the suffix that currently fits.
		kept := len(text)
		searchEnd := len(text)
		for idx := len(sentences) - 1; idx >= 0; idx-- {
			sentenceIdx := strings.LastIndex(text[:searchEnd],
				sentences[idx].Text)
			if sentenceIdx < 0 {
				break
			}
			tokCt, err := encoder.countTokens(text[sentenceIdx:])
			if err != nil {
				return nil, err
			}
			if tokCt > limit {
				break
			}
			kept = sentenceIdx
			searchEnd = sentenceIdx
		}
		return encoder.Encode(strings.TrimLeftFunc(text[kept:],
			unicode.IsSpace))
	case TrimBottom:
		kept := 0
		searchStart := 0
		for idx := 0; idx < len(sentences); idx++ {
			sentenceIdx := strings.Index(text[searchStart:],
				sentences[idx].Text)
			if sentenceIdx < 0 {
				break
			}
			sentenceEnd := searchStart + sentenceIdx +
				len(sentences[idx].Text)
			tokCt, err := encoder.countTokens(text[:sentenceEnd])
			if err != nil {
				return nil, err
			}
			if tokCt > limit {
				break
			}
			kept = sentenceEnd
			searchStart = sentenceEnd
		}
		return encoder.Encode(text[:kept])
	}
	return Tokens{}, nil
}

func (encoder *GPTEncoder) countTokens(text string) (uint, error) {
	encoded, err := encoder.Encode(text)
	if err != nil {
		return 0, err
	}
	return uint(len(encoded)), nil
}
