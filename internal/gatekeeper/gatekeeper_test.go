package gatekeeper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadReturnsContentForOrdinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	res, err := Read(path, 0)
	require.NoError(t, err)
	require.Equal(t, SkipNone, res.Skip)
	require.Equal(t, []byte("package main\n"), res.Content)
}

func TestReadSkipsMissingFile(t *testing.T) {
	res, err := Read(filepath.Join(t.TempDir(), "missing.go"), 0)
	require.NoError(t, err)
	require.Equal(t, SkipNotFound, res.Skip)
}

func TestReadSkipsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.go")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 100), 0o644))

	res, err := Read(path, 10)
	require.NoError(t, err)
	require.Equal(t, SkipTooLarge, res.Skip)
	require.Nil(t, res.Content)
}

func TestReadSkipsBinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc\x00def"), 0o644))

	res, err := Read(path, 0)
	require.NoError(t, err)
	require.Equal(t, SkipBinary, res.Skip)
	require.Nil(t, res.Content)
}
