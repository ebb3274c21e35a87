package detect

import (
	"github.com/asynkron/dupsentry/internal/fingerprint"
	"github.com/asynkron/dupsentry/internal/tokenize"
	"github.com/asynkron/dupsentry/internal/winnow"
)

// matchRange is one maximal match extended out of a winnowing bucket,
// already verified element-for-element by winnow.MaximalMatch.
type matchRange struct {
	docID, start, length int
}

// runWinnowing realizes the winnowing engine over one element-type
// projection: it fingerprints every document's sequence, buckets colliding
// hashes across documents, enforces the bucket guardrail, and extends every
// surviving candidate pair into a maximal match. It is the single
// implementation shared by the code-span, line-span, and token-span
// detectors.
func runWinnowing[T comparable](seqs [][]T, hashOf func(T) uint64, k, w, minLen, bucketCap int, repoOf func(int) int) (ranges []matchRange, bucketDropped int64) {
	buckets := make(map[uint64][]winnow.Occurrence)
	for docID, seq := range seqs {
		for _, fp := range winnow.Fingerprints(seq, k, w, hashOf) {
			buckets[fp.Hash] = append(buckets[fp.Hash], winnow.Occurrence{DocID: docID, Pos: fp.Pos})
		}
	}

	type rangeKey struct{ docID, start, length int }
	seen := make(map[rangeKey]struct{})

	for _, occs := range buckets {
		kept, dropped := winnow.TruncateBucket(occs, repoOf, bucketCap)
		bucketDropped += int64(dropped)

		for i := 0; i < len(kept); i++ {
			for j := i + 1; j < len(kept); j++ {
				a, b := kept[i], kept[j]
				if a.DocID == b.DocID && a.Pos == b.Pos {
					continue
				}
				startA, startB, length, ok := winnow.MaximalMatch(seqs[a.DocID], seqs[b.DocID], a.Pos, b.Pos, k)
				if !ok || length < minLen {
					continue
				}
				for _, r := range [2]matchRange{{a.DocID, startA, length}, {b.DocID, startB, length}} {
					key := rangeKey{r.docID, r.start, r.length}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					ranges = append(ranges, r)
				}
			}
		}
	}
	return ranges, bucketDropped
}

// groupSpec bundles the per-detector projections runWinnowing's caller
// needs to turn raw matchRanges into finished Groups: the re-hash used for
// content-keyed grouping (never the winnowing fingerprint itself, per spec
// section 4.4's "Grouping"), the exact element sequence backing that hash
// (used to re-verify a bucket's members actually agree, not just collide),
// the reported normalized length, the source line span, an optional
// preview, and an optional post-hoc length filter for detectors whose
// normalized_len isn't simply the match length.
type groupSpec struct {
	contentHash   func(r matchRange) uint64
	sequence      func(r matchRange) []uint64
	normalizedLen func(r matchRange) int
	lineSpan      func(r matchRange) (int, int)
	preview       func(r matchRange) string
	include       func(r matchRange) bool
}

func sameSequence(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// buildSpanGroups hash-buckets ranges by spec.contentHash, then, like
// detectFileDuplicates and detectBlocks/detectSubtrees in this package,
// re-verifies every bucket member's exact sequence against the bucket's
// first member before finalizing: a bare hash match never finalizes a
// group on its own, since a 64-bit hash collision between two genuinely
// different spans would otherwise report a false-positive duplicate.
func buildSpanGroups(files []doc, ranges []matchRange, spec groupSpec, crossRepoOnly bool, maxReportItems int) []Group {
	type bucketEntry struct {
		representative []uint64
		normalizedLen  int
		preview        string
		members        []matchRange
	}
	buckets := make(map[uint64]*bucketEntry)

	for _, r := range ranges {
		if spec.include != nil && !spec.include(r) {
			continue
		}
		h := spec.contentHash(r)
		be, ok := buckets[h]
		if !ok {
			preview := ""
			if spec.preview != nil {
				preview = spec.preview(r)
			}
			be = &bucketEntry{representative: spec.sequence(r), normalizedLen: spec.normalizedLen(r), preview: preview}
			buckets[h] = be
		}
		be.members = append(be.members, r)
	}

	var groups []Group
	for h, be := range buckets {
		occs := make([]Occurrence, 0, len(be.members))
		for _, r := range be.members {
			if !sameSequence(spec.sequence(r), be.representative) {
				continue
			}
			startLine, endLine := spec.lineSpan(r)
			occs = append(occs, files[r.docID].occurrence(startLine, endLine))
		}
		if g, ok := finalizeGroup(h, be.normalizedLen, be.preview, occs, crossRepoOnly); ok {
			groups = append(groups, g)
		}
	}
	return truncateGroups(sortGroups(groups), maxReportItems)
}

// detectCodeSpans winnows over the word-char stream, matching spans of at
// least minMatchLen word-chars, with a preview of the first 80 word-chars.
func detectCodeSpans(docs []doc, opts Options) ([]Group, int64) {
	seqs := make([][]byte, len(docs))
	for i, d := range docs {
		seqs[i] = d.wordChars.Chars
	}
	hashOf := func(b byte) uint64 { return uint64(b) }
	repoOf := func(docID int) int { return docs[docID].ref.RootID }

	ranges, dropped := runWinnowing(seqs, hashOf, codeSpanK, codeSpanW, opts.MinMatchLen, opts.BucketCap, repoOf)

	spec := groupSpec{
		contentHash: func(r matchRange) uint64 {
			return fingerprint.FNV1a64(docs[r.docID].wordChars.Chars[r.start : r.start+r.length])
		},
		sequence: func(r matchRange) []uint64 {
			chars := docs[r.docID].wordChars.Chars[r.start : r.start+r.length]
			seq := make([]uint64, len(chars))
			for i, c := range chars {
				seq[i] = uint64(c)
			}
			return seq
		},
		normalizedLen: func(r matchRange) int { return r.length },
		lineSpan: func(r matchRange) (int, int) {
			lines := docs[r.docID].wordChars.Lines
			return int(lines[r.start]), int(lines[r.start+r.length-1])
		},
		preview: func(r matchRange) string {
			n := r.length
			if n > codeSpanPreviewLen {
				n = codeSpanPreviewLen
			}
			return string(docs[r.docID].wordChars.Chars[r.start : r.start+n])
		},
	}
	return buildSpanGroups(docs, ranges, spec, opts.CrossRepoOnly, opts.MaxReportItems), dropped
}

// detectLineSpans winnows over line-token sequences; normalizedLen is the
// sum of member lines' word-char counts, and matches whose resulting
// normalizedLen falls below minMatchLen are dropped after the fact rather
// than during winnowing itself.
func detectLineSpans(docs []doc, opts Options) ([]Group, int64) {
	seqs := make([][]uint64, len(docs))
	for i, d := range docs {
		seq := make([]uint64, len(d.lineToks))
		for j, lt := range d.lineToks {
			seq[j] = lt.Hash
		}
		seqs[i] = seq
	}
	hashOf := func(h uint64) uint64 { return h }
	repoOf := func(docID int) int { return docs[docID].ref.RootID }

	ranges, dropped := runWinnowing(seqs, hashOf, lineSpanK, lineSpanW, 1, opts.BucketCap, repoOf)

	normalizedLen := func(r matchRange) int {
		total := 0
		for _, lt := range docs[r.docID].lineToks[r.start : r.start+r.length] {
			total += lt.WordCharLen
		}
		return total
	}
	lineHashes := func(r matchRange) []uint64 {
		lines := docs[r.docID].lineToks[r.start : r.start+r.length]
		hashes := make([]uint64, len(lines))
		for i, lt := range lines {
			hashes[i] = lt.Hash
		}
		return hashes
	}
	spec := groupSpec{
		contentHash: func(r matchRange) uint64 {
			return fingerprint.FNV1a64Uint64s(lineHashes(r))
		},
		sequence:      lineHashes,
		normalizedLen: normalizedLen,
		lineSpan: func(r matchRange) (int, int) {
			toks := docs[r.docID].lineToks
			return int(toks[r.start].StartLine), int(toks[r.start+r.length-1].StartLine)
		},
		include: func(r matchRange) bool { return normalizedLen(r) >= opts.MinMatchLen },
	}
	return buildSpanGroups(docs, ranges, spec, opts.CrossRepoOnly, opts.MaxReportItems), dropped
}

// detectTokenSpans winnows over the token stream keyed by tokenize.Key
// (tag plus payload for KEYWORD/PUNCT), matching spans of at least
// minTokenLen tokens.
func detectTokenSpans(docs []doc, opts Options) ([]Group, int64) {
	seqs := make([][]tokenize.Key, len(docs))
	for i, d := range docs {
		seqs[i] = d.keys
	}
	hashOf := func(k tokenize.Key) uint64 { return k.Hash() }
	repoOf := func(docID int) int { return docs[docID].ref.RootID }

	ranges, dropped := runWinnowing(seqs, hashOf, tokenSpanK, tokenSpanW, opts.MinTokenLen, opts.BucketCap, repoOf)

	keyHashes := func(r matchRange) []uint64 {
		keys := docs[r.docID].keys[r.start : r.start+r.length]
		hashes := make([]uint64, len(keys))
		for i, k := range keys {
			hashes[i] = k.Hash()
		}
		return hashes
	}
	spec := groupSpec{
		contentHash: func(r matchRange) uint64 {
			return fingerprint.FNV1a64Uint64s(keyHashes(r))
		},
		sequence:      keyHashes,
		normalizedLen: func(r matchRange) int { return r.length },
		lineSpan: func(r matchRange) (int, int) {
			toks := docs[r.docID].tokens
			return int(toks[r.start].StartLine), int(toks[r.start+r.length-1].EndLine)
		},
	}
	return buildSpanGroups(docs, ranges, spec, opts.CrossRepoOnly, opts.MaxReportItems), dropped
}
