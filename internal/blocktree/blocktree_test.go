package blocktree

import (
	"testing"

	"github.com/asynkron/dupsentry/internal/tokenize"
	"github.com/stretchr/testify/require"
)

func TestBuildNestsBlocksAndAttachesChildren(t *testing.T) {
	toks := tokenize.Tokenize([]byte("a{b{c}d}e"))
	blocks := Build(toks)
	require.Len(t, blocks, 2)

	outer, inner := blocks[0], blocks[1]
	if outer.Depth != 1 {
		outer, inner = blocks[1], blocks[0]
	}
	require.Equal(t, 1, outer.Depth)
	require.Equal(t, 2, inner.Depth)
	require.Len(t, outer.Children, 1)
}

func TestBuildDropsUnmatchedClose(t *testing.T) {
	toks := tokenize.Tokenize([]byte("a}b{c}"))
	blocks := Build(toks)
	require.Len(t, blocks, 1)
}

func TestBuildClosesUnmatchedOpenAtEOF(t *testing.T) {
	toks := tokenize.Tokenize([]byte("a{b{c"))
	blocks := Build(toks)
	require.Len(t, blocks, 2)
	for _, b := range blocks {
		require.Equal(t, len(toks), b.TokenEnd)
	}
}

func TestFullSliceHashDetectsIdenticalBlocks(t *testing.T) {
	t1 := tokenize.Tokenize([]byte("f(){x=1;}"))
	t2 := tokenize.Tokenize([]byte("g(){x=1;}"))
	b1 := Build(t1)
	b2 := Build(t2)
	require.Equal(t, FullSliceHash(t1, b1[0]), FullSliceHash(t2, b2[0]))
}

func TestSubtreeHasherMemoizesAndDistinguishesChildren(t *testing.T) {
	toks := tokenize.Tokenize([]byte("a{b{c}d{e}}"))
	blocks := Build(toks)
	hasher := NewSubtreeHasher(toks, blocks)

	var rootID int
	for i, b := range blocks {
		if b.Depth == 1 {
			rootID = i
		}
	}
	h1 := hasher.Hash(rootID)
	h2 := hasher.Hash(rootID)
	require.Equal(t, h1, h2, "memoized hash must be stable across repeated calls")

	for i, b := range blocks {
		if b.Depth == 2 {
			require.NotEqual(t, h1, hasher.Hash(i))
		}
	}
}

func TestShinglesRequireMinimumSpan(t *testing.T) {
	toks := tokenize.Tokenize([]byte("{a}"))
	blocks := Build(toks)
	require.Nil(t, Shingles(toks, blocks[0], 5))
}

func TestShinglesCountMatchesSpan(t *testing.T) {
	toks := tokenize.Tokenize([]byte("{a b c d e f g h}"))
	blocks := Build(toks)
	span := blocks[0].TokenEnd - blocks[0].TokenStart
	got := Shingles(toks, blocks[0], 5)
	require.Len(t, got, span-5+1)
}
