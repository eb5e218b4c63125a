package resources

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestResolveResources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "encoder.json", `{"a": 0}`)
	writeFile(t, dir, "vocab.bpe", "#version: 0.2\n")

	rsrcs, err := ResolveResources(dir)
	require.NoError(t, err)
	defer rsrcs.Cleanup()

	assert.Equal(t, `{"a": 0}`, string(rsrcs[VocabResource].Data))
	assert.Equal(t, ".bpe", rsrcs[MergesResource].Ext())
	_, hasSpecials := rsrcs[SpecialsResource]
	assert.False(t, hasSpecials)
}

func TestResolveResources_PrefersFirstAlias(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocab.json", `{"b": 0}`)
	writeFile(t, dir, "encoder.json", `{"a": 0}`)
	writeFile(t, dir, "merges.txt", "")
	writeFile(t, dir, "specials.txt", "<|endoftext|>\n")

	rsrcs, err := ResolveResources(dir)
	require.NoError(t, err)
	defer rsrcs.Cleanup()

	assert.Equal(t, `{"b": 0}`, string(rsrcs[VocabResource].Data))
	assert.Empty(t, rsrcs[MergesResource].Data)
	assert.Equal(t, "<|endoftext|>\n",
		string(rsrcs[SpecialsResource].Data))
}

func TestResolveResources_MissingRequired(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "vocab.json", `{}`)

	_, err := ResolveResources(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveFiles(t *testing.T) {
	dir := t.TempDir()
	vocab := writeFile(t, dir, "v.json", `{"a": 0}`)
	merges := writeFile(t, dir, "m.txt", "a a\n")

	rsrcs, err := ResolveFiles(vocab, merges, "")
	require.NoError(t, err)
	assert.Len(t, rsrcs, 2)
	rsrcs.Cleanup()
	assert.Empty(t, rsrcs)

	_, err = ResolveFiles(vocab, filepath.Join(dir, "nope.txt"), "")
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = ResolveFiles("", merges, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}
