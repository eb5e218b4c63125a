package types

// Token is a vocabulary id in [0, vocab_size).
type Token uint32
type Tokens []Token
type TokenMap map[string]Token

const (
	TokenSize   = 2
	TokenSize32 = 4
)

// GPTPair is an adjacent symbol pair, the key of the merge rank table.
type GPTPair struct {
	Left  string
	Right string
}
