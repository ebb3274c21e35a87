// Package detect assembles the normalization, winnowing, block-tree, and
// similarity engines into the seven duplicate/similarity detectors. Every
// detector is a thin composition; the shared grouping, ordering, and
// re-verification logic lives once in this package rather than being
// repeated per detector.
package detect

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/iter"

	"github.com/asynkron/dupsentry/internal/blocktree"
	"github.com/asynkron/dupsentry/internal/fingerprint"
	"github.com/asynkron/dupsentry/internal/normalize"
	"github.com/asynkron/dupsentry/internal/tokenize"
)

// FileRef is one scanned file, already read and localized to a root. This
// package never imports the public dupscan types directly (that would
// create an import cycle); the caller translates in both directions.
type FileRef struct {
	RootID       int
	RootLabel    string
	RelativePath string
	Bytes        []byte
}

// Occurrence localizes one member of a Group or Pair.
type Occurrence struct {
	RootID       int
	RootLabel    string
	RelativePath string
	StartLine    int
	EndLine      int
}

// Group is an equivalence class of two or more verified occurrences.
type Group struct {
	Hash          string
	NormalizedLen int
	Preview       string
	Occurrences   []Occurrence
}

// Pair is a similarity judgment between two blocks.
type Pair struct {
	A, B     Occurrence
	Score    float64
	Distance *int
}

// Options configures every detector's thresholds.
type Options struct {
	MinMatchLen         int
	MinTokenLen         int
	SimilarityThreshold float64
	SimHashMaxDistance  int
	MaxReportItems      int
	CrossRepoOnly       bool
	BucketCap           int
}

// Report is the seven detectors' combined output plus a bucket-truncation
// count the caller folds into ScanStats.skippedBucketTruncated.
type Report struct {
	FileDuplicates       []Group
	CodeSpanDuplicates   []Group
	LineSpanDuplicates   []Group
	TokenSpanDuplicates  []Group
	BlockDuplicates      []Group
	ASTSubtreeDuplicates []Group
	SimilarBlocksMinhash []Pair
	SimilarBlocksSimhash []Pair
	BucketTruncated      int64
}

// Winnowing k/w pairs, tuned per detector. The line-span detector uses a
// shorter k because its elements are whole lines, not characters or
// tokens, so a 5-line window is already a very large match unit relative
// to minMatchLen's word-char currency.
const (
	codeSpanK, codeSpanW   = 5, 4
	lineSpanK, lineSpanW   = 3, 2
	tokenSpanK, tokenSpanW = 5, 4
)

// codeSpanPreviewLen bounds a code-span group's stored preview to the
// first 80 word-chars.
const codeSpanPreviewLen = 80

// buildDoc computes one file's normalized views. It touches nothing but f,
// which makes it safe to fan out across files with iter.Map.
func buildDoc(f *FileRef) doc {
	toks := tokenize.Tokenize(f.Bytes)
	keys := make([]tokenize.Key, len(toks))
	for j, t := range toks {
		keys[j] = t.Key()
	}
	return doc{
		ref:       *f,
		wordChars: normalize.WordChars(f.Bytes),
		lineToks:  normalize.LineTokens(f.Bytes),
		tokens:    toks,
		keys:      keys,
		blocks:    blocktree.Build(toks),
	}
}

// Run executes all seven detectors over files and returns the assembled
// report. files is indexed by an implicit 0-based docID used internally
// to correlate normalized views back to their source file. Per-file
// normalization and the seven detector passes are independent of one
// another, so both stages fan out across goroutines: iter.Map for the
// former, a conc.WaitGroup for the latter, each detector writing only to
// its own captured result variable.
func Run(files []FileRef, opts Options) Report {
	docs := iter.Map(files, buildDoc)

	var (
		fileDups                         []Group
		codeSpans, lineSpans, tokenSpans []Group
		codeDrops, lineDrops, tokenDrops int64
		blocks, subtrees                 []Group
		minhashPairs, simhashPairs       []Pair
	)

	var wg conc.WaitGroup
	wg.Go(func() { fileDups = detectFileDuplicates(docs, opts) })
	wg.Go(func() { codeSpans, codeDrops = detectCodeSpans(docs, opts) })
	wg.Go(func() { lineSpans, lineDrops = detectLineSpans(docs, opts) })
	wg.Go(func() { tokenSpans, tokenDrops = detectTokenSpans(docs, opts) })
	wg.Go(func() { blocks = detectBlocks(docs, opts) })
	wg.Go(func() { subtrees = detectSubtrees(docs, opts) })
	wg.Go(func() { minhashPairs, simhashPairs = detectSimilarBlocks(docs, opts) })
	wg.Wait()

	return Report{
		FileDuplicates:       fileDups,
		CodeSpanDuplicates:   codeSpans,
		LineSpanDuplicates:   lineSpans,
		TokenSpanDuplicates:  tokenSpans,
		BlockDuplicates:      blocks,
		ASTSubtreeDuplicates: subtrees,
		SimilarBlocksMinhash: truncatePairs(minhashPairs, opts.MaxReportItems),
		SimilarBlocksSimhash: truncatePairs(simhashPairs, opts.MaxReportItems),
		BucketTruncated:      codeDrops + lineDrops + tokenDrops,
	}
}

// doc bundles one file's four normalized views plus its block arena, so
// every detector can share the work of computing them exactly once.
type doc struct {
	ref       FileRef
	wordChars normalize.WordCharStream
	lineToks  []normalize.LineToken
	tokens    []tokenize.Token
	keys      []tokenize.Key
	blocks    []blocktree.Block
}

func (d doc) occurrence(startLine, endLine int) Occurrence {
	return Occurrence{
		RootID:       d.ref.RootID,
		RootLabel:    d.ref.RootLabel,
		RelativePath: d.ref.RelativePath,
		StartLine:    startLine,
		EndLine:      endLine,
	}
}

func countLines(data []byte) int {
	lines := 1
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	return lines
}

// dedupOccurrences drops occurrences sharing a (root, path, start line)
// identity, so a group never lists the same span twice.
func dedupOccurrences(occs []Occurrence) []Occurrence {
	type key struct {
		root  int
		path  string
		start int
	}
	seen := make(map[key]struct{}, len(occs))
	out := make([]Occurrence, 0, len(occs))
	for _, o := range occs {
		k := key{o.RootID, o.RelativePath, o.StartLine}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}

func sortOccurrences(occs []Occurrence) []Occurrence {
	sort.Slice(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if a.RootID != b.RootID {
			return a.RootID < b.RootID
		}
		if a.RelativePath != b.RelativePath {
			return a.RelativePath < b.RelativePath
		}
		return a.StartLine < b.StartLine
	})
	return occs
}

// distinctRootCount counts the distinct root IDs represented among occs. A
// roaring bitmap is a natural fit here rather than a map: root IDs are a
// dense small-integer domain, and this same membership set is checked once
// per candidate group across every one of the seven detectors.
func distinctRootCount(occs []Occurrence) int {
	seen := roaring.New()
	for _, o := range occs {
		seen.Add(uint32(o.RootID))
	}
	return int(seen.GetCardinality())
}

// sortGroups orders groups by descending occurrence count, then
// descending normalized length, then ascending representative hash.
func sortGroups(groups []Group) []Group {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if len(a.Occurrences) != len(b.Occurrences) {
			return len(a.Occurrences) > len(b.Occurrences)
		}
		if a.NormalizedLen != b.NormalizedLen {
			return a.NormalizedLen > b.NormalizedLen
		}
		return a.Hash < b.Hash
	})
	return groups
}

func truncateGroups(groups []Group, max int) []Group {
	if max <= 0 {
		return nil
	}
	if len(groups) <= max {
		return groups
	}
	return groups[:max]
}

func truncatePairs(pairs []Pair, max int) []Pair {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].A.RelativePath != pairs[j].A.RelativePath {
			return pairs[i].A.RelativePath < pairs[j].A.RelativePath
		}
		return pairs[i].A.StartLine < pairs[j].A.StartLine
	})
	if max <= 0 {
		return nil
	}
	if len(pairs) <= max {
		return pairs
	}
	return pairs[:max]
}

// finalizeGroup drops under-populated or non-cross-repo groups, dedupes
// and sorts occurrences, and formats the representative hash.
func finalizeGroup(hash uint64, normalizedLen int, preview string, occs []Occurrence, crossRepoOnly bool) (Group, bool) {
	occs = dedupOccurrences(occs)
	if len(occs) < 2 {
		return Group{}, false
	}
	if crossRepoOnly && distinctRootCount(occs) < 2 {
		return Group{}, false
	}
	return Group{
		Hash:          fingerprint.Fingerprint(hash).String(),
		NormalizedLen: normalizedLen,
		Preview:       preview,
		Occurrences:   sortOccurrences(occs),
	}, true
}
