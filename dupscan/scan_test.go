package dupscan

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// TestFindDuplicateFilesWhitespaceInsensitiveAcrossRoots checks that files
// differing only in whitespace are grouped together across roots.
func TestFindDuplicateFilesWhitespaceInsensitiveAcrossRoots(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, a, "a.txt", "a b\nc")
	writeFile(t, a, "b.txt", "ab\tc")
	writeFile(t, b, "c.txt", "ab c")
	writeFile(t, b, "d.txt", "different")

	opts := DefaultOptions()
	opts.CrossRepoOnly = true

	groups, snap, err := FindDuplicateFilesWithStats(context.Background(), []string{a, b}, opts)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, 3, len(groups[0].Occurrences))
	require.Equal(t, 3, groups[0].NormalizedLen)
	require.False(t, snap.Incomplete())
}

// TestFindDuplicateCodeSpansCrossRoot checks that a shared code span is
// detected across two separate roots.
func TestFindDuplicateCodeSpansCrossRoot(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	snippet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" // 62 word-chars
	writeFile(t, a, "spanA.txt", "////\nP"+snippet+"Q\n")
	writeFile(t, b, "spanB.txt", "####\nR"+snippet+"S\n")

	opts := DefaultOptions()
	opts.MinMatchLen = 50
	opts.CrossRepoOnly = true

	groups, err := FindDuplicateCodeSpans(context.Background(), []string{a, b}, opts)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, 62, groups[0].NormalizedLen)
	require.Len(t, groups[0].Occurrences, 2)
	for _, occ := range groups[0].Occurrences {
		require.Equal(t, 2, occ.StartLine)
		require.Equal(t, 2, occ.EndLine)
	}
}

// TestMaxFilesStopsScanEarly checks that hitting maxFiles halts the whole
// scan and marks every remaining candidate as skipped.
func TestMaxFilesStopsScanEarly(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, a, "a1.txt", "hello world")
	writeFile(t, a, "a2.txt", "hello world 2")
	writeFile(t, b, "b1.txt", "hello world 3")
	writeFile(t, b, "b2.txt", "hello world 4")

	opts := DefaultOptions()
	opts.MaxFiles = 1

	_, snap, err := FindDuplicateFilesWithStats(context.Background(), []string{a, b}, opts)
	require.NoError(t, err)
	require.EqualValues(t, 1, snap.ScannedFiles)
	require.EqualValues(t, 3, snap.SkippedBudgetMaxFiles)
	require.True(t, snap.Incomplete())
}

// TestMaxFilesTruncatesGitFastPathEnumeration checks that a git-tracked
// root under maxFiles marks the scan incomplete via the fast path's own
// early stop, without needing every candidate the walker would have
// found to be read first.
func TestMaxFilesTruncatesGitFastPathEnumeration(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available in this environment")
	}
	root := t.TempDir()
	runGit := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", root}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	runGit("init")
	writeFile(t, root, "a.txt", "hello world")
	writeFile(t, root, "b.txt", "hello world 2")
	writeFile(t, root, "c.txt", "hello world 3")

	opts := DefaultOptions()
	opts.MaxFiles = 1

	_, snap, err := FindDuplicateFilesWithStats(context.Background(), []string{root}, opts)
	require.NoError(t, err)
	require.EqualValues(t, 1, snap.ScannedFiles)
	require.EqualValues(t, 1, snap.CandidateFiles)
	require.True(t, snap.SkippedBudgetMaxFiles > 0)
	require.True(t, snap.Incomplete())
}

// TestGitignoreRespectedByDefault checks that gitignored files are excluded
// unless the caller disables it.
func TestGitignoreRespectedByDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "ignored.txt\n")
	writeFile(t, root, "a.txt", "same payload")
	writeFile(t, root, "ignored.txt", "same payload")

	groups, err := FindDuplicateFiles(context.Background(), []string{root}, DefaultOptions())
	require.NoError(t, err)
	require.Empty(t, groups)

	opts := DefaultOptions()
	opts.RespectGitignore = false
	groups, err = FindDuplicateFiles(context.Background(), []string{root}, opts)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Occurrences, 2)
}

// TestNonexistentRootRejectedBeforeEnumeration checks that a missing root
// fails fast with InvalidInputError before any file is read.
func TestNonexistentRootRejectedBeforeEnumeration(t *testing.T) {
	_, err := FindDuplicateFiles(context.Background(), []string{filepath.Join(t.TempDir(), "does-not-exist")}, DefaultOptions())
	require.Error(t, err)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

// TestBinaryFileCountsAgainstBudget checks the accounting asymmetry
// between a binary skip and a too-large skip.
func TestBinaryFileCountsAgainstBudget(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin.dat"), []byte{'a', 0, 'b'}, 0o644))

	_, snap, err := FindDuplicateFilesWithStats(context.Background(), []string{root}, DefaultOptions())
	require.NoError(t, err)
	require.EqualValues(t, 1, snap.SkippedBinary)
	require.EqualValues(t, 1, snap.ScannedBytes) // only the byte before the NUL
	require.EqualValues(t, 1, snap.ScannedFiles) // counts as one scanned unit for maxFiles
}

func TestGenerateReportRunsAllDetectors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "identical payload across files")
	writeFile(t, root, "b.txt", "identical payload across files")

	rep, err := GenerateReport(context.Background(), []string{root}, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rep.FileDuplicates, 1)
}

func TestCancelledContextAbortsWithoutPartialResult(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := FindDuplicateFilesWithStats(ctx, []string{root}, DefaultOptions())
	require.Error(t, err)
	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
}

func TestEnforceStrictConvertsIncompleteScanToError(t *testing.T) {
	require.NoError(t, EnforceStrict(Snapshot{}))
	err := EnforceStrict(Snapshot{SkippedBudgetMaxFiles: 1})
	require.Error(t, err)
	var incomplete *IncompleteScanError
	require.ErrorAs(t, err, &incomplete)
}
