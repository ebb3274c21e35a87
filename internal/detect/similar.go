package detect

import (
	"github.com/asynkron/dupsentry/internal/blocktree"
	"github.com/asynkron/dupsentry/internal/similarity"
)

// blockRef is one shallow, shingle-eligible block gathered across every
// document for the similarity engine.
type blockRef struct {
	docID, blockID int
	shingles       []uint64
}

// eligibleBlocks collects every block whose depth is within the shallow
// bound, whose token span is at least minTokenLen, and whose shingle count
// clears the minimum; a block failing any of these is disqualified from the
// similarity engine entirely.
func eligibleBlocks(docs []doc, minTokenLen int) []blockRef {
	var refs []blockRef
	for docID, d := range docs {
		for blockID, b := range d.blocks {
			if b.Depth > similarity.DefaultShallowDepthBound {
				continue
			}
			if b.TokenEnd-b.TokenStart < minTokenLen {
				continue
			}
			shingles := blocktree.Shingles(d.tokens, b, similarity.DefaultShingleSize)
			if len(shingles) < blocktree.MinShingleCount {
				continue
			}
			refs = append(refs, blockRef{docID: docID, blockID: blockID, shingles: shingles})
		}
	}
	return refs
}

// detectSimilarBlocks produces MinHash-LSH candidate pairs scored by
// Jaccard estimate, and SimHash-banded candidate pairs scored by Hamming
// distance.
func detectSimilarBlocks(docs []doc, opts Options) (minhashPairs, simhashPairs []Pair) {
	refs := eligibleBlocks(docs, opts.MinTokenLen)
	if len(refs) == 0 {
		return nil, nil
	}

	hasher := similarity.NewMinHasher(similarity.DefaultSeed, similarity.DefaultMinHashSize)
	lsh := similarity.NewLSHIndex(similarity.DefaultBands, similarity.DefaultRowsPerBand)
	simIndex := similarity.NewSimHashIndex(similarity.DefaultSimHashBands, similarity.DefaultSimHashBitsPerBand)

	signatures := make([]similarity.MinHashSignature, len(refs))
	simhashes := make([]similarity.SimHash, len(refs))
	for i, ref := range refs {
		sig := hasher.Signature(ref.shingles)
		signatures[i] = sig
		lsh.Add(i, sig)

		sh := similarity.Compute(ref.shingles)
		simhashes[i] = sh
		simIndex.Add(i, sh)
	}

	occOf := func(ref blockRef) Occurrence {
		d := docs[ref.docID]
		b := d.blocks[ref.blockID]
		return d.occurrence(int(b.StartLine), int(b.EndLine))
	}
	crossRepoOK := func(a, b blockRef) bool {
		return !opts.CrossRepoOnly || docs[a.docID].ref.RootID != docs[b.docID].ref.RootID
	}

	for _, pair := range lsh.Candidates() {
		a, b := refs[pair[0]], refs[pair[1]]
		if !crossRepoOK(a, b) {
			continue
		}
		estimate := similarity.JaccardEstimate(signatures[pair[0]], signatures[pair[1]])
		if estimate < opts.SimilarityThreshold {
			continue
		}
		minhashPairs = append(minhashPairs, Pair{A: occOf(a), B: occOf(b), Score: estimate})
	}

	for _, pair := range simIndex.Candidates() {
		a, b := refs[pair[0]], refs[pair[1]]
		if !crossRepoOK(a, b) {
			continue
		}
		dist := similarity.HammingDistance(simhashes[pair[0]], simhashes[pair[1]])
		if dist > opts.SimHashMaxDistance {
			continue
		}
		d := dist
		simhashPairs = append(simhashPairs, Pair{A: occOf(a), B: occOf(b), Score: similarity.Score(dist), Distance: &d})
	}

	return minhashPairs, simhashPairs
}
