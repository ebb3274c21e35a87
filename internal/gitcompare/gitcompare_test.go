package gitcompare

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asynkron/dupsentry/dupscan"
)

func report(groups ...dupscan.Group) dupscan.DuplicationReport {
	return dupscan.DuplicationReport{FileDuplicates: groups}
}

func group(hash string, n int) dupscan.Group {
	occs := make([]dupscan.Occurrence, n)
	for i := range occs {
		occs[i] = dupscan.Occurrence{RelativePath: "f.go", StartLine: i + 1}
	}
	return dupscan.Group{Hash: hash, Occurrences: occs}
}

func TestDiffDetectsRemovedGroup(t *testing.T) {
	deltas := diff(report(group("a", 3)), report())
	require.Len(t, deltas, 1)
	require.True(t, deltas[0].Removed())
}

func TestDiffDetectsIntroducedGroup(t *testing.T) {
	deltas := diff(report(), report(group("a", 2)))
	require.Len(t, deltas, 1)
	require.True(t, deltas[0].Introduced())
}

func TestDiffDetectsLingeringGroup(t *testing.T) {
	deltas := diff(report(group("a", 5)), report(group("a", 2)))
	require.Len(t, deltas, 1)
	require.True(t, deltas[0].Lingering())
	require.Equal(t, 5, deltas[0].BaseCount)
	require.Equal(t, 2, deltas[0].HeadCount)
}

func TestDiffIgnoresUnchangedGroup(t *testing.T) {
	deltas := diff(report(group("a", 2)), report(group("a", 2)))
	require.Empty(t, deltas)
}
