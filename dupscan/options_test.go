package dupscan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsMatchesSpec(t *testing.T) {
	o := DefaultOptions()
	require.True(t, o.RespectGitignore)
	require.False(t, o.FollowSymlinks)
	require.EqualValues(t, 10<<20, o.MaxFileSize)
	require.Equal(t, 50, o.MinMatchLen)
	require.Equal(t, 50, o.MinTokenLen)
	require.InDelta(t, 0.85, o.SimilarityThreshold, 1e-9)
	require.Equal(t, 3, o.SimHashMaxDistance)
	require.Equal(t, 200, o.MaxReportItems)
	require.False(t, o.CrossRepoOnly)
	require.Contains(t, o.IgnoreDirs, ".git")
	require.Contains(t, o.IgnoreDirs, "node_modules")
}

func TestApplyDefaultsOnlyAffectsReportMode(t *testing.T) {
	o := DefaultOptions()
	direct := o.ApplyDefaults(ModeDirect)
	require.Zero(t, direct.MaxTotalBytes)

	report := o.ApplyDefaults(ModeReport)
	require.EqualValues(t, 256<<20, report.MaxTotalBytes)
	require.EqualValues(t, (256<<20)*2, report.MaxNormalizedChars)
	require.EqualValues(t, (256<<20)/10, report.MaxTokens)
}

func TestApplyDefaultsRespectsExplicitZero(t *testing.T) {
	o := DefaultOptions()
	o.SetMaxTotalBytes(0)
	report := o.ApplyDefaults(ModeReport)
	require.Zero(t, report.MaxTotalBytes, "an explicit 0 means unbounded and must not be overridden")
}

func TestValidateRejectsEmptyRoots(t *testing.T) {
	o := DefaultOptions()
	err := o.Validate(0)
	require.Error(t, err)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestValidateRejectsCrossRepoOnlyWithOneRoot(t *testing.T) {
	o := DefaultOptions()
	o.CrossRepoOnly = true
	require.Error(t, o.Validate(1))
	require.NoError(t, o.Validate(2))
}

func TestValidateRejectsOutOfRangeThresholds(t *testing.T) {
	o := DefaultOptions()
	o.SimilarityThreshold = 1.5
	require.Error(t, o.Validate(1))

	o = DefaultOptions()
	o.MinMatchLen = 0
	require.Error(t, o.Validate(1))

	o = DefaultOptions()
	o.SimHashMaxDistance = 65
	require.Error(t, o.Validate(1))
}

func TestValidateRejectsNaNThreshold(t *testing.T) {
	o := DefaultOptions()
	o.SimilarityThreshold = math.NaN()
	require.Error(t, o.Validate(1))
}
