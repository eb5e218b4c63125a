package gpt2_bpe

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuneTree_LongestMatch(t *testing.T) {
	tree := createRuneTree([]string{"<|end|>", "<|endoftext|>", "<|e"})
	assert.Equal(t, len("<|endoftext|>"), tree.longestMatch("<|endoftext|> hi"))
	assert.Equal(t, len("<|end|>"), tree.longestMatch("<|end|>oftext"))
	assert.Equal(t, len("<|e"), tree.longestMatch("<|endless"))
	assert.Equal(t, 0, tree.longestMatch("<|"))
	assert.Equal(t, 0, tree.longestMatch("plain"))
	assert.Equal(t, 0, tree.longestMatch(""))
}

func TestRuneTree_ManyChildren(t *testing.T) {
	specials := make([]string, 0, 20)
	for idx := 0; idx < 20; idx++ {
		specials = append(specials, fmt.Sprintf("%c!", 'a'+rune(idx)))
	}
	tree := createRuneTree(specials)
	assert.Nil(t, tree.childsArr)
	for _, special := range specials {
		assert.Equal(t, 2, tree.longestMatch(special+"tail"))
	}
	assert.Equal(t, 0, tree.longestMatch("z!"))
}

func TestRuneNode_String(t *testing.T) {
	tree := createRuneTree([]string{"ab", "ac"})
	assert.Contains(t, tree.String(), "└─")
}
