package gpt2_bpe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/wbrown/gpt2_bpe/resources"
	"github.com/wbrown/gpt2_bpe/types"
)

const BPE_LRU_SZ = 65536

// Inputs shorter than this are always encoded on the calling goroutine.
const PARALLEL_THRESHOLD = 4096

type Token = types.Token
type Tokens = types.Tokens
type GPTPair = types.GPTPair

// GPTEncoder is a byte-level BPE tokenizer. Everything but the cache and
// its counters is immutable after load, so one encoder can be shared by
// concurrent requests.
type GPTEncoder struct {
	Encoder         map[string]Token
	Decoder         [][]byte
	BpeRanks        map[GPTPair]int
	Specials        map[string]Token
	symbols         []string
	specialsTree    *RuneNode
	pattern         *regexp2.Regexp
	puncPat         *regexp.Regexp
	Cache           *lru.ARCCache
	LruHits         atomic.Int64
	LruMisses       atomic.Int64
	SplitterThreads int
}

const SPLIT_REGEX = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+` +
	`| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`
const PUNC_REGEX = "\\p{L}[.!?;]\\p{L}"

var splitPattern = regexp2.MustCompile(SPLIT_REGEX, regexp2.None)
var puncPattern = regexp.MustCompile(PUNC_REGEX)

// NewEncoder
// Returns a GPTEncoder loaded from the vocabulary, merges and optional
// specials files found in dir.
func NewEncoder(dir string) (*GPTEncoder, error) {
	rsrcs, err := resources.ResolveResources(dir)
	if err != nil {
		return nil, &LoadError{Kind: ErrMissingFile, Path: dir, Err: err}
	}
	defer rsrcs.Cleanup()
	return NewEncoderFromResources(rsrcs)
}

// NewEncoderFromFiles
// Returns a GPTEncoder loaded from explicit paths. specialsPath may be
// empty.
func NewEncoderFromFiles(vocabPath, mergesPath, specialsPath string) (
	*GPTEncoder, error) {
	rsrcs, err := resources.ResolveFiles(vocabPath, mergesPath, specialsPath)
	if err != nil {
		return nil, &LoadError{Kind: ErrMissingFile, Err: err}
	}
	defer rsrcs.Cleanup()
	return NewEncoderFromResources(rsrcs)
}

// NewEncoderFromResources builds an encoder from resolved resources. The
// resources may be cleaned up once this returns.
func NewEncoderFromResources(rsrcs resources.Resources) (*GPTEncoder, error) {
	vocab, ok := rsrcs[resources.VocabResource]
	if !ok {
		return nil, &LoadError{Kind: ErrMissingFile,
			Path: resources.VocabResource}
	}
	merges, ok := rsrcs[resources.MergesResource]
	if !ok {
		return nil, &LoadError{Kind: ErrMissingFile,
			Path: resources.MergesResource}
	}
	var specials []string
	if specialsEntry, ok := rsrcs[resources.SpecialsResource]; ok {
		specials = parseSpecials(specialsEntry.Data)
	}
	encoder, err := newEncoder(vocab.Data, vocab.Path, merges.Data,
		merges.Path, specials)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded tokenizer", "vocab", vocab.Path, "merges", merges.Path,
		"vocab_size", encoder.VocabSize(), "merges_count",
		len(encoder.BpeRanks), "specials", len(encoder.Specials))
	return encoder, nil
}

// Load reads a vocabulary and a merge list and returns a GPTEncoder.
// Either source may be JSON or line records; the format is sniffed.
func Load(vocabSource io.Reader, mergesSource io.Reader) (*GPTEncoder,
	error) {
	if vocabSource == nil {
		return nil, &LoadError{Kind: ErrMissingFile,
			Path: resources.VocabResource}
	}
	if mergesSource == nil {
		return nil, &LoadError{Kind: ErrMissingFile,
			Path: resources.MergesResource}
	}
	vocabData, err := io.ReadAll(vocabSource)
	if err != nil {
		return nil, &LoadError{Kind: ErrMissingFile,
			Path: resources.VocabResource, Err: err}
	}
	mergesData, err := io.ReadAll(mergesSource)
	if err != nil {
		return nil, &LoadError{Kind: ErrMissingFile,
			Path: resources.MergesResource, Err: err}
	}
	return newEncoder(vocabData, "", mergesData, "", nil)
}

// LoadWithSpecials is Load with a list of special token strings that are
// matched atomically before pre-tokenization.
func LoadWithSpecials(vocabSource io.Reader, mergesSource io.Reader,
	specials []string) (*GPTEncoder, error) {
	encoder, err := Load(vocabSource, mergesSource)
	if err != nil {
		return nil, err
	}
	if err = encoder.setSpecials(specials, ""); err != nil {
		return nil, err
	}
	return encoder, nil
}

func newEncoder(vocabData []byte, vocabPath string, mergesData []byte,
	mergesPath string, specials []string) (*GPTEncoder, error) {
	var encoderTokens map[string]Token
	var err error
	if firstByte(vocabData) == '{' {
		encoderTokens, err = parseVocabJSON(vocabData, vocabPath)
	} else {
		encoderTokens, err = parseVocabLines(vocabData, vocabPath)
	}
	if err != nil {
		return nil, err
	}
	symbols, err := invertVocab(encoderTokens, vocabPath)
	if err != nil {
		return nil, err
	}

	var bpeRanks map[GPTPair]int
	if firstByte(mergesData) == '[' {
		bpeRanks, err = parseMergesJSON(mergesData, mergesPath)
	} else {
		bpeRanks, err = parseMergesLines(mergesData, mergesPath)
	}
	if err != nil {
		return nil, err
	}

	cache, err := lru.NewARC(BPE_LRU_SZ)
	if err != nil {
		return nil, err
	}

	encoder := &GPTEncoder{
		Encoder:         encoderTokens,
		BpeRanks:        bpeRanks,
		Specials:        make(map[string]Token),
		symbols:         symbols,
		specialsTree:    createRuneTree(nil),
		pattern:         splitPattern,
		puncPat:         puncPattern,
		Cache:           cache,
		SplitterThreads: runtime.GOMAXPROCS(0),
	}
	if err = encoder.setSpecials(specials, vocabPath); err != nil {
		return nil, err
	}
	return encoder, nil
}

// setSpecials registers special tokens and rebuilds the id -> bytes table,
// since specials are exempt from the byte-level alphabet.
func (encoder *GPTEncoder) setSpecials(specials []string,
	path string) error {
	for _, special := range specials {
		token, ok := encoder.Encoder[special]
		if !ok {
			return vocabError(path, 0,
				"special token %q is not in the vocabulary", special)
		}
		encoder.Specials[special] = token
	}
	specialsArr := make([]string, 0, len(encoder.Specials))
	for special := range encoder.Specials {
		specialsArr = append(specialsArr, special)
	}
	encoder.specialsTree = createRuneTree(specialsArr)

	decoder := make([][]byte, len(encoder.symbols))
	for token, symbol := range encoder.symbols {
		if _, isSpecial := encoder.Specials[symbol]; isSpecial {
			decoder[token] = []byte(symbol)
			continue
		}
		raw, ok := FromSymbols(symbol)
		if !ok {
			return vocabError(path, 0, "symbol %q for id %d is outside "+
				"the byte-level alphabet", symbol, token)
		}
		decoder[token] = raw
	}
	encoder.Decoder = decoder
	encoder.Cache.Purge()
	return nil
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// parseVocabJSON reads a `{symbol: id}` object, streaming so that
// duplicate symbols are caught rather than silently overwritten.
func parseVocabJSON(data []byte, path string) (map[string]Token, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if _, err := decoder.Token(); err != nil {
		return nil, vocabError(path, 0, "%w", err)
	}
	encoderTokens := make(map[string]Token)
	for decoder.More() {
		key, err := decoder.Token()
		if err != nil {
			return nil, vocabError(path, 0, "%w", err)
		}
		symbol, ok := key.(string)
		if !ok {
			return nil, vocabError(path, 0, "unexpected key %v", key)
		}
		var token Token
		if err = decoder.Decode(&token); err != nil {
			return nil, vocabError(path, 0, "id for %q: %w", symbol, err)
		}
		if _, dupe := encoderTokens[symbol]; dupe {
			return nil, vocabError(path, 0, "duplicate symbol %q", symbol)
		}
		encoderTokens[symbol] = token
	}
	if _, err := decoder.Token(); err != nil {
		return nil, vocabError(path, 0, "%w", err)
	}
	return encoderTokens, nil
}

// parseVocabLines reads `symbol id` records, one per line. The last space
// separates the fields.
func parseVocabLines(data []byte, path string) (map[string]Token, error) {
	encoderTokens := make(map[string]Token)
	for idx, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		sep := strings.LastIndexByte(line, ' ')
		if sep <= 0 || sep == len(line)-1 {
			return nil, vocabError(path, idx+1,
				"expected `symbol id`, got %q", line)
		}
		symbol, idField := line[:sep], line[sep+1:]
		id, err := strconv.ParseUint(idField, 10, 32)
		if err != nil {
			return nil, vocabError(path, idx+1, "non-numeric id %q",
				idField)
		}
		if _, dupe := encoderTokens[symbol]; dupe {
			return nil, vocabError(path, idx+1, "duplicate symbol %q",
				symbol)
		}
		encoderTokens[symbol] = Token(id)
	}
	return encoderTokens, nil
}

// invertVocab builds the id -> symbol table, checking that ids cover
// [0, n) exactly once.
func invertVocab(encoderTokens map[string]Token, path string) ([]string,
	error) {
	if len(encoderTokens) == 0 {
		return nil, vocabError(path, 0, "zero entries")
	}
	symbols := make([]string, len(encoderTokens))
	seen := make([]bool, len(encoderTokens))
	for symbol, token := range encoderTokens {
		if symbol == "" {
			return nil, vocabError(path, 0, "empty symbol for id %d", token)
		}
		if int(token) >= len(symbols) {
			return nil, vocabError(path, 0, "id %d leaves a gap in "+
				"[0, %d)", token, len(symbols))
		}
		if seen[token] {
			return nil, vocabError(path, 0, "duplicate id %d (%q and %q)",
				token, symbols[token], symbol)
		}
		seen[token] = true
		symbols[token] = symbol
	}
	return symbols, nil
}

// parseMergesLines reads `left right` pairs in priority order. A leading
// `#version` header is skipped. Duplicate pairs keep their first rank.
func parseMergesLines(data []byte, path string) (map[GPTPair]int, error) {
	bpeRanks := make(map[GPTPair]int)
	rank := 0
	for idx, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if idx == 0 && strings.HasPrefix(line, "#version") {
			continue
		}
		if line == "" {
			continue
		}
		left_right := strings.Split(line, " ")
		if len(left_right) != 2 || left_right[0] == "" ||
			left_right[1] == "" {
			return nil, mergesError(path, idx+1,
				"expected 2 fields, got %d", len(left_right))
		}
		pair := GPTPair{Left: left_right[0], Right: left_right[1]}
		if _, dupe := bpeRanks[pair]; !dupe {
			bpeRanks[pair] = rank
		}
		rank++
	}
	return bpeRanks, nil
}

// parseMergesJSON reads `[["left", "right"], ...]`.
func parseMergesJSON(data []byte, path string) (map[GPTPair]int, error) {
	var mergesTable [][]string
	if err := json.Unmarshal(data, &mergesTable); err != nil {
		return nil, mergesError(path, 0, "%w", err)
	}
	bpeRanks := make(map[GPTPair]int, len(mergesTable))
	for rank, merge := range mergesTable {
		if len(merge) != 2 || merge[0] == "" || merge[1] == "" {
			return nil, mergesError(path, 0, "entry %d: expected 2 "+
				"fields, got %d", rank, len(merge))
		}
		pair := GPTPair{Left: merge[0], Right: merge[1]}
		if _, dupe := bpeRanks[pair]; !dupe {
			bpeRanks[pair] = rank
		}
	}
	return bpeRanks, nil
}

func parseSpecials(data []byte) []string {
	specials := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			specials = append(specials, line)
		}
	}
	return specials
}

// VocabSize is the number of ids, all of which lie in [0, VocabSize()).
func (encoder *GPTEncoder) VocabSize() int {
	return len(encoder.symbols)
}

// Get
// Looks up a symbol in the Encoder. ok is false if it is not present.
func (encoder *GPTEncoder) Get(symbol string) (token Token, ok bool) {
	token, ok = encoder.Encoder[symbol]
	return token, ok
}

// Symbol returns the vocabulary symbol for token.
func (encoder *GPTEncoder) Symbol(token Token) (string, bool) {
	if int(token) >= len(encoder.symbols) {
		return "", false
	}
	return encoder.symbols[token], true
}

// Merges runs the merge loop over one raw chunk and returns the final
// symbol sequence. Each pass merges every occurrence of the best ranked
// adjacent pair, scanning left to right.
func (encoder *GPTEncoder) Merges(chunk string) []string {
	if len(chunk) == 0 {
		return nil
	}
	word := make([]string, len(chunk))
	for idx := 0; idx < len(chunk); idx++ {
		word[idx] = string(byteToRune[chunk[idx]])
	}
	for len(word) > 1 {
		bestRank := -1
		var bigram GPTPair
		for idx := 0; idx < len(word)-1; idx++ {
			pair := GPTPair{Left: word[idx], Right: word[idx+1]}
			if rank, ok := encoder.BpeRanks[pair]; ok &&
				(bestRank < 0 || rank < bestRank) {
				bestRank = rank
				bigram = pair
			}
		}
		if bestRank < 0 {
			break
		}
		newWord := make([]string, 0, len(word))
		for idx := 0; idx < len(word); {
			if idx < len(word)-1 && word[idx] == bigram.Left &&
				word[idx+1] == bigram.Right {
				newWord = append(newWord, bigram.Left+bigram.Right)
				idx += 2
			} else {
				newWord = append(newWord, word[idx])
				idx += 1
			}
		}
		word = newWord
	}
	return word
}

// ToBPE
// Given one pre-split chunk, perform the merges and return its Tokens.
func (encoder *GPTEncoder) ToBPE(chunk string) (Tokens, error) {
	if lookup, ok := encoder.Cache.Get(chunk); ok {
		encoder.LruHits.Add(1)
		return append(Tokens(nil), lookup.(Tokens)...), nil
	}
	encoder.LruMisses.Add(1)
	word := encoder.Merges(chunk)
	tokens := make(Tokens, 0, len(word))
	for _, symbol := range word {
		token, ok := encoder.Encoder[symbol]
		if !ok {
			return nil, &EncodeError{Symbol: symbol, Chunk: chunk}
		}
		tokens = append(tokens, token)
	}
	encoder.Cache.Add(chunk, tokens)
	return append(Tokens(nil), tokens...), nil
}

// EncodeChunk encodes a single chunk without running the pretokenizer.
func (encoder *GPTEncoder) EncodeChunk(chunk string) (Tokens, error) {
	return encoder.ToBPE(chunk)
}

func (encoder *GPTEncoder) encodeWords(words []string,
	encoded Tokens) (Tokens, error) {
	for _, word := range words {
		if special, isSpecial := encoder.Specials[word]; isSpecial {
			encoded = append(encoded, special)
			continue
		}
		tokens, err := encoder.ToBPE(word)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, tokens...)
	}
	return encoded, nil
}

// Encode encodes text into a sequence of tokens. Chunks never merge across
// boundaries, so large inputs are split into chunk ranges encoded
// concurrently and joined in order.
func (encoder *GPTEncoder) Encode(text string) (Tokens, error) {
	words := encoder.SplitWords(text)
	workers := encoder.SplitterThreads
	if workers > len(words) {
		workers = len(words)
	}
	if len(text) < PARALLEL_THRESHOLD || workers < 2 {
		return encoder.encodeWords(words, make(Tokens, 0, len(words)))
	}

	perWorker := (len(words) + workers - 1) / workers
	results := make([]Tokens, workers)
	var group errgroup.Group
	for worker := 0; worker < workers; worker++ {
		start := worker * perWorker
		end := min(start+perWorker, len(words))
		if start >= end {
			continue
		}
		group.Go(func() error {
			encoded, err := encoder.encodeWords(words[start:end], nil)
			results[worker] = encoded
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	encoded := make(Tokens, 0, len(words))
	for _, result := range results {
		encoded = append(encoded, result...)
	}
	return encoded, nil
}

// Decode Tokens back into a string, byte for byte. The result is not
// guaranteed to be valid UTF-8 when the tokens end inside a multi-byte
// character.
func (encoder *GPTEncoder) Decode(encoded Tokens) (string, error) {
	bs := make([]byte, 0, len(encoded)*4)
	for _, token := range encoded {
		if int(token) >= len(encoder.Decoder) {
			return "", &DecodeError{Id: int64(token)}
		}
		bs = append(bs, encoder.Decoder[token]...)
	}
	return string(bs), nil
}

// TokensFromInts validates plain integer ids, such as ones received over
// the wire, against the vocabulary.
func (encoder *GPTEncoder) TokensFromInts(ids []int64) (Tokens, error) {
	tokens := make(Tokens, len(ids))
	for idx, id := range ids {
		if id < 0 || id >= int64(encoder.VocabSize()) {
			return nil, &DecodeError{Id: id}
		}
		tokens[idx] = Token(id)
	}
	return tokens, nil
}

// IsMissingFile reports whether err is a LoadError for an absent resource.
func IsMissingFile(err error) bool {
	return errors.Is(err, ErrMissingFile) || errors.Is(err, fs.ErrNotExist)
}

func (encoder *GPTEncoder) String() string {
	return fmt.Sprintf("GPTEncoder{vocab: %d, merges: %d, specials: %d}",
		encoder.VocabSize(), len(encoder.BpeRanks), len(encoder.Specials))
}
