package dupscan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipKindFatalClassification(t *testing.T) {
	require.False(t, SkipNotFound.Fatal())
	require.False(t, SkipTooLarge.Fatal())
	require.False(t, SkipBinary.Fatal())
	require.True(t, SkipPermissionDenied.Fatal())
	require.True(t, SkipOutsideRoot.Fatal())
	require.True(t, SkipRelativizeFailed.Fatal())
	require.True(t, SkipWalkError.Fatal())
	require.True(t, SkipBudgetMaxFiles.Fatal())
	require.True(t, SkipBudgetMaxTotalBytes.Fatal())
	require.True(t, SkipBudgetMaxNormalizedChars.Fatal())
	require.True(t, SkipBudgetMaxTokens.Fatal())
	require.True(t, SkipBucketTruncated.Fatal())
}

func TestIncompleteOnlyWhenFatalCounterFires(t *testing.T) {
	var s Stats
	s.RecordSkip(SkipNotFound, 5)
	s.RecordSkip(SkipTooLarge, 2)
	s.RecordSkip(SkipBinary, 1)
	require.False(t, s.Snapshot().Incomplete())

	s.RecordSkip(SkipWalkError, 1)
	require.True(t, s.Snapshot().Incomplete())
}

func TestStatsConcurrentIncrementsAreRaceFree(t *testing.T) {
	var s Stats
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddScannedFiles(1)
			s.AddScannedBytes(10)
			s.RecordSkip(SkipBinary, 1)
		}()
	}
	wg.Wait()
	snap := s.Snapshot()
	require.EqualValues(t, 100, snap.ScannedFiles)
	require.EqualValues(t, 1000, snap.ScannedBytes)
	require.EqualValues(t, 100, snap.SkippedBinary)
}

func TestSummaryListsOnlyFatalCounters(t *testing.T) {
	var s Stats
	s.RecordSkip(SkipNotFound, 5)
	require.Equal(t, "scan complete", s.Snapshot().Summary())

	s.RecordSkip(SkipBudgetMaxFiles, 3)
	summary := s.Snapshot().Summary()
	require.Contains(t, summary, "skippedBudgetMaxFiles=3")
	require.NotContains(t, summary, "skippedNotFound")
}
