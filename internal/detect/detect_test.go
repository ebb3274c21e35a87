package detect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseOptions() Options {
	return Options{
		MinMatchLen:         50,
		MinTokenLen:         50,
		SimilarityThreshold: 0.85,
		SimHashMaxDistance:  3,
		MaxReportItems:      200,
		BucketCap:           2000,
	}
}

// TestFileDuplicatesAreWhitespaceInsensitive checks that whitespace-only
// differences between files still group them as duplicates.
func TestFileDuplicatesAreWhitespaceInsensitive(t *testing.T) {
	files := []FileRef{
		{RootID: 0, RootLabel: "A", RelativePath: "a.txt", Bytes: []byte("a b\nc")},
		{RootID: 0, RootLabel: "A", RelativePath: "b.txt", Bytes: []byte("ab\tc")},
		{RootID: 1, RootLabel: "B", RelativePath: "c.txt", Bytes: []byte("ab c")},
		{RootID: 1, RootLabel: "B", RelativePath: "d.txt", Bytes: []byte("different")},
	}
	opts := baseOptions()
	opts.CrossRepoOnly = true

	rep := Run(files, opts)
	require.Len(t, rep.FileDuplicates, 1)
	g := rep.FileDuplicates[0]
	require.Equal(t, 3, len(g.Occurrences))
	require.Equal(t, 3, g.NormalizedLen)
}

// TestCodeSpanCrossRoot checks that a shared code span is detected across
// two roots.
func TestCodeSpanCrossRoot(t *testing.T) {
	snippet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" // 62 word-chars
	require.Len(t, []byte(snippet), 62)

	files := []FileRef{
		{RootID: 0, RootLabel: "A", RelativePath: "spanA.txt", Bytes: []byte("////\nP" + snippet + "Q\n")},
		{RootID: 1, RootLabel: "B", RelativePath: "spanB.txt", Bytes: []byte("####\nR" + snippet + "S\n")},
	}
	opts := baseOptions()
	opts.MinMatchLen = 50
	opts.CrossRepoOnly = true

	rep := Run(files, opts)
	require.Len(t, rep.CodeSpanDuplicates, 1)
	g := rep.CodeSpanDuplicates[0]
	require.Equal(t, 62, g.NormalizedLen)
	require.Len(t, g.Occurrences, 2)
	for _, occ := range g.Occurrences {
		require.Equal(t, 2, occ.StartLine)
		require.Equal(t, 2, occ.EndLine)
	}
}

func TestTokenSpanFoldsIdentifiersAndLiterals(t *testing.T) {
	bodyA := "function run() { let total = 0; for (let i = 0; i < 100000; i = i + 1) { total = total + i; } return total; }"
	bodyB := "function exec() { let sum = 0; for (let j = 0; j < 999999; j = j + 1) { sum = sum + j; } return sum; }"
	files := []FileRef{
		{RootID: 0, RootLabel: "A", RelativePath: "a.js", Bytes: []byte(bodyA)},
		{RootID: 1, RootLabel: "B", RelativePath: "b.js", Bytes: []byte(bodyB)},
	}
	opts := baseOptions()
	opts.MinTokenLen = 10
	opts.MinMatchLen = 10

	rep := Run(files, opts)
	require.NotEmpty(t, rep.TokenSpanDuplicates)
}

func TestBlockDuplicatesRequireMinimumSpan(t *testing.T) {
	block := "{ let x = 1; let y = 2; let z = x + y; return z; }"
	files := []FileRef{
		{RootID: 0, RootLabel: "A", RelativePath: "a.js", Bytes: []byte("function a() " + block)},
		{RootID: 0, RootLabel: "A", RelativePath: "b.js", Bytes: []byte("function b() " + block)},
	}
	opts := baseOptions()
	opts.MinTokenLen = 5

	rep := Run(files, opts)
	require.NotEmpty(t, rep.BlockDuplicates)
	require.NotEmpty(t, rep.ASTSubtreeDuplicates)

	opts.MinTokenLen = 1000
	rep = Run(files, opts)
	require.Empty(t, rep.BlockDuplicates)
	require.Empty(t, rep.ASTSubtreeDuplicates)
}

func TestCrossRepoOnlyRejectsSingleRootGroups(t *testing.T) {
	files := []FileRef{
		{RootID: 0, RootLabel: "A", RelativePath: "a.txt", Bytes: []byte("same content")},
		{RootID: 0, RootLabel: "A", RelativePath: "b.txt", Bytes: []byte("same content")},
	}
	opts := baseOptions()
	opts.CrossRepoOnly = true

	rep := Run(files, opts)
	require.Empty(t, rep.FileDuplicates)
}

// TestBuildSpanGroupsRejectsHashCollisionFalsePositives forces three
// ranges into the same contentHash bucket via a stub groupSpec, two of
// them sharing a sequence and one deliberately different, and checks that
// the differing one is rejected from the finalized group rather than
// reported as a false-positive duplicate on the strength of the hash
// collision alone.
func TestBuildSpanGroupsRejectsHashCollisionFalsePositives(t *testing.T) {
	docs := []doc{
		{ref: FileRef{RootID: 0, RootLabel: "A", RelativePath: "a.txt"}},
		{ref: FileRef{RootID: 0, RootLabel: "A", RelativePath: "b.txt"}},
		{ref: FileRef{RootID: 0, RootLabel: "A", RelativePath: "c.txt"}},
	}
	ranges := []matchRange{
		{docID: 0, start: 0, length: 3},
		{docID: 1, start: 0, length: 3},
		{docID: 2, start: 0, length: 3},
	}
	sequences := map[int][]uint64{
		0: {1, 2, 3},
		1: {1, 2, 3},
		2: {9, 9, 9},
	}
	spec := groupSpec{
		contentHash:   func(r matchRange) uint64 { return 42 }, // every range collides into one bucket
		sequence:      func(r matchRange) []uint64 { return sequences[r.docID] },
		normalizedLen: func(r matchRange) int { return r.length },
		lineSpan:      func(r matchRange) (int, int) { return 1, 1 },
	}

	groups := buildSpanGroups(docs, ranges, spec, false, 10)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Occurrences, 2)
	for _, occ := range groups[0].Occurrences {
		require.NotEqual(t, "c.txt", occ.RelativePath)
	}
}

func TestMaxReportItemsTruncatesToLargestGroupsFirst(t *testing.T) {
	var files []FileRef
	for i := 0; i < 6; i++ {
		files = append(files, FileRef{RootID: 0, RootLabel: "A", RelativePath: string(rune('a'+i)) + ".txt", Bytes: []byte("shared payload")})
	}
	// A second, independent duplicate pair (smaller group).
	files = append(files,
		FileRef{RootID: 0, RootLabel: "A", RelativePath: "x.txt", Bytes: []byte("other payload")},
		FileRef{RootID: 0, RootLabel: "A", RelativePath: "y.txt", Bytes: []byte("other payload")},
	)

	opts := baseOptions()
	opts.MaxReportItems = 1

	rep := Run(files, opts)
	require.Len(t, rep.FileDuplicates, 1)
	require.Len(t, rep.FileDuplicates[0].Occurrences, 6)
}
