package dupscan

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// SkipKind classifies why a candidate or scanned file was skipped. Every
// value maps to exactly one Stats counter and to a fixed benign/fatal
// classification.
type SkipKind int

const (
	SkipNotFound SkipKind = iota
	SkipPermissionDenied
	SkipTooLarge
	SkipBinary
	SkipOutsideRoot
	SkipRelativizeFailed
	SkipWalkError
	SkipBudgetMaxFiles
	SkipBudgetMaxTotalBytes
	SkipBudgetMaxNormalizedChars
	SkipBudgetMaxTokens
	SkipBucketTruncated
)

// Fatal reports whether kind marks a scan incomplete under strict mode:
// NotFound, TooLarge, and Binary are benign; every other kind is fatal.
func (k SkipKind) Fatal() bool {
	switch k {
	case SkipNotFound, SkipTooLarge, SkipBinary:
		return false
	default:
		return true
	}
}

func (k SkipKind) String() string {
	switch k {
	case SkipNotFound:
		return "notFound"
	case SkipPermissionDenied:
		return "permissionDenied"
	case SkipTooLarge:
		return "tooLarge"
	case SkipBinary:
		return "binary"
	case SkipOutsideRoot:
		return "outsideRoot"
	case SkipRelativizeFailed:
		return "relativizeFailed"
	case SkipWalkError:
		return "walkError"
	case SkipBudgetMaxFiles:
		return "budgetMaxFiles"
	case SkipBudgetMaxTotalBytes:
		return "budgetMaxTotalBytes"
	case SkipBudgetMaxNormalizedChars:
		return "budgetMaxNormalizedChars"
	case SkipBudgetMaxTokens:
		return "budgetMaxTokens"
	case SkipBucketTruncated:
		return "bucketTruncated"
	default:
		return "unknown"
	}
}

// Stats is the single shared mutable accumulator for a scan. Every field
// is an atomic counter so concurrent worker goroutines can post events
// directly without a reducer goroutine or a mutex.
type Stats struct {
	candidateFiles       atomic.Int64
	scannedFiles         atomic.Int64
	scannedBytes         atomic.Int64
	gitFastPathFallbacks atomic.Int64

	skippedNotFound                 atomic.Int64
	skippedPermissionDenied         atomic.Int64
	skippedTooLarge                 atomic.Int64
	skippedBinary                   atomic.Int64
	skippedOutsideRoot              atomic.Int64
	skippedRelativizeFailed         atomic.Int64
	skippedWalkErrors               atomic.Int64
	skippedBudgetMaxFiles           atomic.Int64
	skippedBudgetMaxTotalBytes      atomic.Int64
	skippedBudgetMaxNormalizedChars atomic.Int64
	skippedBudgetMaxTokens          atomic.Int64
	skippedBucketTruncated          atomic.Int64
}

// AddCandidateFiles increments candidateFiles by n.
func (s *Stats) AddCandidateFiles(n int64) { s.candidateFiles.Add(n) }

// AddScannedFiles increments scannedFiles by n.
func (s *Stats) AddScannedFiles(n int64) { s.scannedFiles.Add(n) }

// AddScannedBytes increments scannedBytes by n.
func (s *Stats) AddScannedBytes(n int64) { s.scannedBytes.Add(n) }

// AddGitFastPathFallback increments gitFastPathFallbacks by one.
func (s *Stats) AddGitFastPathFallback() { s.gitFastPathFallbacks.Add(1) }

// AddGitFastPathFallbacks increments gitFastPathFallbacks by n.
func (s *Stats) AddGitFastPathFallbacks(n int64) { s.gitFastPathFallbacks.Add(n) }

// ScannedFiles returns the current scannedFiles count.
func (s *Stats) ScannedFiles() int64 { return s.scannedFiles.Load() }

// ScannedBytes returns the current scannedBytes count.
func (s *Stats) ScannedBytes() int64 { return s.scannedBytes.Load() }

// RecordSkip increments the counter for kind by n.
func (s *Stats) RecordSkip(kind SkipKind, n int64) {
	switch kind {
	case SkipNotFound:
		s.skippedNotFound.Add(n)
	case SkipPermissionDenied:
		s.skippedPermissionDenied.Add(n)
	case SkipTooLarge:
		s.skippedTooLarge.Add(n)
	case SkipBinary:
		s.skippedBinary.Add(n)
	case SkipOutsideRoot:
		s.skippedOutsideRoot.Add(n)
	case SkipRelativizeFailed:
		s.skippedRelativizeFailed.Add(n)
	case SkipWalkError:
		s.skippedWalkErrors.Add(n)
	case SkipBudgetMaxFiles:
		s.skippedBudgetMaxFiles.Add(n)
	case SkipBudgetMaxTotalBytes:
		s.skippedBudgetMaxTotalBytes.Add(n)
	case SkipBudgetMaxNormalizedChars:
		s.skippedBudgetMaxNormalizedChars.Add(n)
	case SkipBudgetMaxTokens:
		s.skippedBudgetMaxTokens.Add(n)
	case SkipBucketTruncated:
		s.skippedBucketTruncated.Add(n)
	}
}

// Snapshot is a point-in-time, plain-value copy of Stats suitable for JSON
// serialization and structural-equality comparisons in tests.
type Snapshot struct {
	CandidateFiles       int64 `json:"candidateFiles"`
	ScannedFiles         int64 `json:"scannedFiles"`
	ScannedBytes         int64 `json:"scannedBytes"`
	GitFastPathFallbacks int64 `json:"gitFastPathFallbacks"`

	SkippedNotFound                 int64 `json:"skippedNotFound"`
	SkippedPermissionDenied         int64 `json:"skippedPermissionDenied"`
	SkippedTooLarge                 int64 `json:"skippedTooLarge"`
	SkippedBinary                   int64 `json:"skippedBinary"`
	SkippedOutsideRoot              int64 `json:"skippedOutsideRoot"`
	SkippedRelativizeFailed         int64 `json:"skippedRelativizeFailed"`
	SkippedWalkErrors               int64 `json:"skippedWalkErrors"`
	SkippedBudgetMaxFiles           int64 `json:"skippedBudgetMaxFiles"`
	SkippedBudgetMaxTotalBytes      int64 `json:"skippedBudgetMaxTotalBytes"`
	SkippedBudgetMaxNormalizedChars int64 `json:"skippedBudgetMaxNormalizedChars"`
	SkippedBudgetMaxTokens          int64 `json:"skippedBudgetMaxTokens"`
	SkippedBucketTruncated          int64 `json:"skippedBucketTruncated"`
}

// Snapshot copies every counter's current value into a plain Snapshot.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		CandidateFiles:                  s.candidateFiles.Load(),
		ScannedFiles:                    s.scannedFiles.Load(),
		ScannedBytes:                    s.scannedBytes.Load(),
		GitFastPathFallbacks:            s.gitFastPathFallbacks.Load(),
		SkippedNotFound:                 s.skippedNotFound.Load(),
		SkippedPermissionDenied:         s.skippedPermissionDenied.Load(),
		SkippedTooLarge:                 s.skippedTooLarge.Load(),
		SkippedBinary:                   s.skippedBinary.Load(),
		SkippedOutsideRoot:              s.skippedOutsideRoot.Load(),
		SkippedRelativizeFailed:         s.skippedRelativizeFailed.Load(),
		SkippedWalkErrors:               s.skippedWalkErrors.Load(),
		SkippedBudgetMaxFiles:           s.skippedBudgetMaxFiles.Load(),
		SkippedBudgetMaxTotalBytes:      s.skippedBudgetMaxTotalBytes.Load(),
		SkippedBudgetMaxNormalizedChars: s.skippedBudgetMaxNormalizedChars.Load(),
		SkippedBudgetMaxTokens:          s.skippedBudgetMaxTokens.Load(),
		SkippedBucketTruncated:          s.skippedBucketTruncated.Load(),
	}
}

// Incomplete reports whether the scan stopped short of covering every
// candidate: true iff at least one fatal counter is non-zero.
func (snap Snapshot) Incomplete() bool {
	return snap.SkippedPermissionDenied > 0 ||
		snap.SkippedOutsideRoot > 0 ||
		snap.SkippedRelativizeFailed > 0 ||
		snap.SkippedWalkErrors > 0 ||
		snap.SkippedBucketTruncated > 0 ||
		snap.SkippedBudgetMaxFiles > 0 ||
		snap.SkippedBudgetMaxTotalBytes > 0 ||
		snap.SkippedBudgetMaxNormalizedChars > 0 ||
		snap.SkippedBudgetMaxTokens > 0
}

// Summary renders a one-line reason string for strict-mode failures:
// which fatal counters fired, and by how much.
func (snap Snapshot) Summary() string {
	if !snap.Incomplete() {
		return "scan complete"
	}
	var parts []string
	add := func(name string, v int64) {
		if v > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", name, v))
		}
	}
	add("skippedPermissionDenied", snap.SkippedPermissionDenied)
	add("skippedOutsideRoot", snap.SkippedOutsideRoot)
	add("skippedRelativizeFailed", snap.SkippedRelativizeFailed)
	add("skippedWalkErrors", snap.SkippedWalkErrors)
	add("skippedBucketTruncated", snap.SkippedBucketTruncated)
	add("skippedBudgetMaxFiles", snap.SkippedBudgetMaxFiles)
	add("skippedBudgetMaxTotalBytes", snap.SkippedBudgetMaxTotalBytes)
	add("skippedBudgetMaxNormalizedChars", snap.SkippedBudgetMaxNormalizedChars)
	add("skippedBudgetMaxTokens", snap.SkippedBudgetMaxTokens)
	return "incomplete scan: " + strings.Join(parts, ", ")
}
