// Package blocktree turns a token stream into a tree of brace-nested
// blocks. Children are owned by their parent and referenced by arena
// index rather than by pointer, so the tree can be built, hashed, and
// dropped without any reference-counting concern.
package blocktree

import (
	"github.com/asynkron/dupsentry/internal/fingerprint"
	"github.com/asynkron/dupsentry/internal/tokenize"
)

// Block is one brace-delimited region, nested to form a tree via Children
// (indices back into the same arena slice returned by Build).
type Block struct {
	TokenStart int // inclusive
	TokenEnd   int // exclusive
	StartLine  uint32
	EndLine    uint32
	Depth      int
	Children   []int
}

// Build walks tokens left to right with a stack, matching '{'/'}' pairs
// into a Block arena. An unmatched '}' is dropped silently; a '{' still
// open at end-of-file closes implicitly at the last token, spanning to the
// end of the stream rather than being left permanently unclosed.
func Build(tokens []tokenize.Token) []Block {
	var blocks []Block
	var stack []int

	for idx, tok := range tokens {
		if tok.Kind != tokenize.Punct {
			continue
		}
		switch tok.Text {
		case "{":
			depth := len(stack) + 1
			id := len(blocks)
			blocks = append(blocks, Block{
				TokenStart: idx,
				TokenEnd:   idx + 1,
				StartLine:  tok.StartLine,
				EndLine:    tok.StartLine,
				Depth:      depth,
			})
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				blocks[parent].Children = append(blocks[parent].Children, id)
			}
			stack = append(stack, id)
		case "}":
			if len(stack) == 0 {
				continue
			}
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			blocks[id].TokenEnd = idx + 1
			blocks[id].EndLine = tok.StartLine
		}
	}

	if len(stack) > 0 {
		lastLine := uint32(1)
		if len(tokens) > 0 {
			lastLine = tokens[len(tokens)-1].EndLine
		}
		for _, id := range stack {
			blocks[id].TokenEnd = len(tokens)
			blocks[id].EndLine = lastLine
		}
	}

	return blocks
}

// FullSliceHash hashes a block's full token slice [TokenStart, TokenEnd)
// verbatim, used by the block-duplicate detector.
func FullSliceHash(tokens []tokenize.Token, b Block) uint64 {
	span := b.TokenEnd - b.TokenStart
	keys := make([]uint64, span)
	for i := 0; i < span; i++ {
		keys[i] = tokens[b.TokenStart+i].Key().Hash()
	}
	return fingerprint.FNV1a64Uint64s(keys)
}

// childMarkerSalt distinguishes a CHILD(hash) synthetic token from a
// literal token key hash of the same numeric value, so the subtree
// representation can never accidentally alias a real token.
const childMarkerSalt uint64 = 0xc417d000c417d000

// SubtreeHasher computes the subtree-representation hash of every block in
// an arena, memoizing each block's hash so it is computed exactly once
// regardless of how many ancestors ask for it.
type SubtreeHasher struct {
	tokens []tokenize.Token
	blocks []Block
	memo   map[int]uint64
}

// NewSubtreeHasher builds a hasher over an already-constructed block arena.
func NewSubtreeHasher(tokens []tokenize.Token, blocks []Block) *SubtreeHasher {
	return &SubtreeHasher{tokens: tokens, blocks: blocks, memo: make(map[int]uint64, len(blocks))}
}

// Hash returns the subtree-representation fingerprint of blocks[id]: its
// full token slice with each immediate child block replaced by a single
// synthetic CHILD(hash_of_child_subtree) token, surrounding tokens intact.
func (h *SubtreeHasher) Hash(id int) uint64 {
	if v, ok := h.memo[id]; ok {
		return v
	}
	v := fingerprint.FNV1a64Uint64s(h.Representation(id))
	h.memo[id] = v
	return v
}

// Representation returns the literal subtree-representation token sequence
// for blocks[id] (each immediate child replaced by its mixed hash marker).
// A subtree-duplicate group is re-verified by comparing two blocks'
// representations directly rather than trusting Hash's 64-bit output alone.
func (h *SubtreeHasher) Representation(id int) []uint64 {
	b := h.blocks[id]
	seq := make([]uint64, 0, b.TokenEnd-b.TokenStart)

	childIdx := 0
	i := b.TokenStart
	for i < b.TokenEnd {
		if childIdx < len(b.Children) && i == h.blocks[b.Children[childIdx]].TokenStart {
			child := b.Children[childIdx]
			childHash := h.Hash(child)
			seq = append(seq, fingerprint.SplitMix64(childHash^childMarkerSalt))
			i = h.blocks[child].TokenEnd
			childIdx++
			continue
		}
		seq = append(seq, h.tokens[i].Key().Hash())
		i++
	}
	return seq
}

// Shingles produces contiguous n-gram shingles over a block's full token
// slice, each hashed to a 64-bit integer, for the similarity engine.
func Shingles(tokens []tokenize.Token, b Block, n int) []uint64 {
	span := b.TokenEnd - b.TokenStart
	if span < n {
		return nil
	}
	keys := make([]uint64, span)
	for i := 0; i < span; i++ {
		keys[i] = tokens[b.TokenStart+i].Key().Hash()
	}
	shingles := make([]uint64, 0, span-n+1)
	for i := 0; i+n <= span; i++ {
		shingles = append(shingles, fingerprint.FNV1a64Uint64s(keys[i:i+n]))
	}
	return shingles
}

// MinShingleCount is the minimum shingle count a block must have to
// participate in the similarity engine; anything below disqualifies it.
const MinShingleCount = 3
