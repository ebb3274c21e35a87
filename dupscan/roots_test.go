package dupscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRootsAssignsFinalSegmentLabels(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()

	roots, err := ResolveRoots([]string{a, b})
	require.NoError(t, err)
	require.Len(t, roots, 2)
	require.Equal(t, filepath.Base(a), roots[0].Label)
	require.Equal(t, filepath.Base(b), roots[1].Label)
}

func TestResolveRootsDisambiguatesCollidingLabels(t *testing.T) {
	parent := t.TempDir()
	a := filepath.Join(parent, "sub")
	b := filepath.Join(parent, "other", "sub")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))

	roots, err := ResolveRoots([]string{a, b})
	require.NoError(t, err)
	require.Equal(t, "sub#0", roots[0].Label)
	require.Equal(t, "sub#1", roots[1].Label)
}

func TestResolveRootsRejectsMissingDirectory(t *testing.T) {
	_, err := ResolveRoots([]string{filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}
