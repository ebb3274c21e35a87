// Package gatekeeper decides, for each enumerated candidate, whether it is
// readable, small enough, and textual, then returns its bytes. It never
// consults the aggregate scan budgets (maxTotalBytes, maxFiles) itself —
// those are cross-file concerns the caller tracks against the shared
// Stats — but it does apply the per-file maxFileSize cap and the binary
// sniff, keeping this stage's responsibility narrow.
package gatekeeper

import (
	"bytes"
	"io"
	"os"
)

// SkipReason mirrors the subset of dupscan.SkipKind that a single-file
// read can produce. The caller maps these onto its own SkipKind so this
// package stays free of any dependency on the public API it serves.
type SkipReason int

const (
	// SkipNone means Result.Content is valid and should be scanned.
	SkipNone SkipReason = iota
	SkipNotFound
	SkipPermissionDenied
	SkipTooLarge
	SkipBinary
)

// readChunkSize bounds how much is buffered before the binary sniff and
// size cap are re-checked, so a maxFileSize-violating or binary file is
// never fully read into memory.
const readChunkSize = 64 * 1024

// Result is the outcome of reading one candidate file. BytesRead reports
// how many bytes were actually consumed before a skip decision was made
// (0 for a pre-read stat rejection, partial for a mid-read rejection), so
// a caller that wants a binary file's bytes-up-to-the-NUL to still count
// toward scannedBytes can do so even when Content itself is discarded.
type Result struct {
	Content   []byte
	Skip      SkipReason
	BytesRead int64
}

// Read stats and reads path, applying maxFileSize (a value <= 0 means
// unbounded) and a binary sniff (any NUL byte within the read prefix
// marks the file binary). Reading stops as soon as either check trips,
// so Result.Content is only ever populated on SkipNone.
//
// path is stat'd with Lstat, not Stat: the caller is responsible for
// resolving symlinks before handing this a path, so a symlink reaching
// here is always one the caller deliberately chose not to follow, and
// must be rejected as SkipNotFound rather than silently read through.
func Read(path string, maxFileSize int64) (Result, error) {
	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return Result{Skip: SkipNotFound}, nil
	case os.IsPermission(err):
		return Result{Skip: SkipPermissionDenied}, nil
	case err != nil:
		return Result{}, err
	}

	if !info.Mode().IsRegular() {
		return Result{Skip: SkipNotFound}, nil
	}
	if maxFileSize > 0 && info.Size() > maxFileSize {
		return Result{Skip: SkipTooLarge}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Skip: SkipNotFound}, nil
		}
		if os.IsPermission(err) {
			return Result{Skip: SkipPermissionDenied}, nil
		}
		return Result{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		n, rerr := f.Read(chunk)
		if n > 0 {
			if nul := bytes.IndexByte(chunk[:n], 0); nul != -1 {
				return Result{Skip: SkipBinary, BytesRead: int64(buf.Len() + nul)}, nil
			}
			buf.Write(chunk[:n])
			if maxFileSize > 0 && int64(buf.Len()) > maxFileSize {
				return Result{Skip: SkipTooLarge, BytesRead: int64(buf.Len())}, nil
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return Result{}, rerr
		}
	}

	return Result{Content: buf.Bytes(), Skip: SkipNone, BytesRead: int64(buf.Len())}, nil
}
