package dupscan

import (
	"fmt"
	"math"
)

// defaultIgnoreDirs is the common set of build/dependency directories
// skipped by default, matched per path segment, ASCII-case-insensitive on
// Windows.
var defaultIgnoreDirs = []string{
	".git", "node_modules", "target", "dist", "build", "out", ".next", ".turbo", ".cache",
}

const (
	defaultMaxFileSize  int64 = 10 << 20  // 10 MiB
	reportModeMaxTotal  int64 = 256 << 20 // 256 MiB
	defaultMinMatchLen        = 50
	defaultMinTokenLen        = 50
	defaultSimThreshold       = 0.85
	defaultSimHashMaxDist     = 3
	defaultMaxReportItems     = 200
)

// Mode selects which report-mode-only defaults apply to unset budget
// fields.
type Mode int

const (
	// ModeDirect is used by find-duplicate-files / find-duplicate-code-spans:
	// maxTotalBytes/maxNormalizedChars/maxTokens stay unbounded unless the
	// caller sets them explicitly.
	ModeDirect Mode = iota
	// ModeReport is used by generate-report: unset budgets receive
	// conservative report-mode defaults.
	ModeReport
)

// Options configures one scan: which directories to skip, which budgets to
// enforce, and every detector threshold. Zero values mean "unset" for every
// pointer-like budget field so ApplyDefaults can distinguish "caller said
// unbounded" from "caller didn't say".
type Options struct {
	IgnoreDirs          []string
	RespectGitignore    bool
	FollowSymlinks      bool
	MaxFileSize         int64
	MaxFiles            int64 // 0 = unbounded
	MaxTotalBytes       int64 // 0 = unbounded (subject to Mode's defaulting)
	MaxNormalizedChars  int64 // 0 = unbounded (subject to Mode's defaulting)
	MaxTokens           int64 // 0 = unbounded (subject to Mode's defaulting)
	MinMatchLen         int
	MinTokenLen         int
	SimilarityThreshold float64
	SimHashMaxDistance  int
	MaxReportItems      int
	CrossRepoOnly       bool

	// unbounded flags let ApplyDefaults distinguish an explicit "0 means
	// unbounded" from a caller who genuinely never touched the field.
	maxTotalBytesSet      bool
	maxNormalizedCharsSet bool
	maxTokensSet          bool
}

// SetMaxTotalBytes records an explicit (possibly zero, meaning unbounded)
// budget, distinguishing it from an untouched field for defaulting purposes.
func (o *Options) SetMaxTotalBytes(v int64) { o.MaxTotalBytes = v; o.maxTotalBytesSet = true }

// SetMaxNormalizedChars records an explicit budget; see SetMaxTotalBytes.
func (o *Options) SetMaxNormalizedChars(v int64) { o.MaxNormalizedChars = v; o.maxNormalizedCharsSet = true }

// SetMaxTokens records an explicit budget; see SetMaxTotalBytes.
func (o *Options) SetMaxTokens(v int64) { o.MaxTokens = v; o.maxTokensSet = true }

// DefaultOptions returns the baseline scan configuration used when the
// caller supplies no overrides.
func DefaultOptions() Options {
	ignore := make([]string, len(defaultIgnoreDirs))
	copy(ignore, defaultIgnoreDirs)
	return Options{
		IgnoreDirs:          ignore,
		RespectGitignore:    true,
		FollowSymlinks:      false,
		MaxFileSize:         defaultMaxFileSize,
		MaxFiles:            0,
		MinMatchLen:         defaultMinMatchLen,
		MinTokenLen:         defaultMinTokenLen,
		SimilarityThreshold: defaultSimThreshold,
		SimHashMaxDistance:  defaultSimHashMaxDist,
		MaxReportItems:      defaultMaxReportItems,
		CrossRepoOnly:       false,
	}
}

// ApplyDefaults fills in report-mode-only defaults for budgets the caller
// never set: maxTotalBytes defaults to 256 MiB, and
// maxNormalizedChars/maxTokens are derived proportionally from it (2x for
// chars, 1/10 for tokens) to bound memory without the caller having to
// reason about internal buffer sizes.
func (o Options) ApplyDefaults(mode Mode) Options {
	if mode != ModeReport {
		return o
	}
	if !o.maxTotalBytesSet && o.MaxTotalBytes == 0 {
		o.MaxTotalBytes = reportModeMaxTotal
	}
	if !o.maxNormalizedCharsSet && o.MaxNormalizedChars == 0 {
		o.MaxNormalizedChars = o.MaxTotalBytes * 2
	}
	if !o.maxTokensSet && o.MaxTokens == 0 {
		o.MaxTokens = o.MaxTotalBytes / 10
	}
	return o
}

// Validate rejects illegal options before enumeration starts.
func (o Options) Validate(numRoots int) error {
	if numRoots == 0 {
		return &InvalidInputError{Reason: "roots must not be empty"}
	}
	if o.MaxFileSize < 0 {
		return &InvalidInputError{Reason: "maxFileSize must be >= 0"}
	}
	if o.MaxFiles < 0 {
		return &InvalidInputError{Reason: "maxFiles must be >= 0"}
	}
	if o.MaxTotalBytes < 0 {
		return &InvalidInputError{Reason: "maxTotalBytes must be >= 0"}
	}
	if o.MinMatchLen < 1 {
		return &InvalidInputError{Reason: "minMatchLen must be >= 1"}
	}
	if o.MinTokenLen < 1 {
		return &InvalidInputError{Reason: "minTokenLen must be >= 1"}
	}
	if math.IsNaN(o.SimilarityThreshold) {
		return &InvalidInputError{Reason: "similarityThreshold must not be NaN"}
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		return &InvalidInputError{Reason: "similarityThreshold must be in [0,1]"}
	}
	if o.SimHashMaxDistance < 0 || o.SimHashMaxDistance > 64 {
		return &InvalidInputError{Reason: "simhashMaxDistance must be in [0,64]"}
	}
	if o.MaxReportItems < 0 {
		return &InvalidInputError{Reason: "maxReportItems must be >= 0"}
	}
	if o.CrossRepoOnly && numRoots < 2 {
		return &InvalidInputError{Reason: fmt.Sprintf("crossRepoOnly requires >= 2 roots, got %d", numRoots)}
	}
	return nil
}
