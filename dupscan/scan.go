package dupscan

import (
	"context"
	"path/filepath"

	"github.com/asynkron/dupsentry/internal/detect"
	"github.com/asynkron/dupsentry/internal/gatekeeper"
	"github.com/asynkron/dupsentry/internal/normalize"
	"github.com/asynkron/dupsentry/internal/tokenize"
	"github.com/asynkron/dupsentry/internal/walk"
	"github.com/asynkron/dupsentry/internal/winnow"
)

// toOccurrence translates a detect.Occurrence into the public Occurrence
// type. The two packages never share types (see detect.FileRef's doc
// comment), so every detector result crosses this boundary here.
func toOccurrence(o detect.Occurrence) Occurrence {
	return Occurrence{
		RootID:       o.RootID,
		RootLabel:    o.RootLabel,
		RelativePath: o.RelativePath,
		StartLine:    o.StartLine,
		EndLine:      o.EndLine,
	}
}

// toGroups translates detect.Group values into the public Group type.
func toGroups(groups []detect.Group) []Group {
	out := make([]Group, len(groups))
	for i, g := range groups {
		occs := make([]Occurrence, len(g.Occurrences))
		for j, o := range g.Occurrences {
			occs[j] = toOccurrence(o)
		}
		out[i] = Group{
			Hash:          g.Hash,
			NormalizedLen: g.NormalizedLen,
			Preview:       g.Preview,
			Occurrences:   occs,
		}
	}
	return out
}

// toPairs translates detect.Pair values into the public Pair type.
func toPairs(pairs []detect.Pair) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{
			A:        toOccurrence(p.A),
			B:        toOccurrence(p.B),
			Score:    p.Score,
			Distance: p.Distance,
		}
	}
	return out
}

// FindDuplicateFiles returns only the file-duplicate section of a scan
// (the scan itself still runs every detector). It is a thin wrapper over FindDuplicateFilesWithStats for callers uninterested in
// scan accounting.
func FindDuplicateFiles(ctx context.Context, roots []string, opts Options) ([]Group, error) {
	groups, _, err := FindDuplicateFilesWithStats(ctx, roots, opts)
	return groups, err
}

// FindDuplicateFilesWithStats returns the file-duplicate section of a
// scan together with the scan's accounting snapshot.
func FindDuplicateFilesWithStats(ctx context.Context, roots []string, opts Options) ([]Group, Snapshot, error) {
	rep, snap, err := run(ctx, roots, opts, ModeDirect)
	if err != nil {
		return nil, snap, err
	}
	return toGroups(rep.FileDuplicates), snap, nil
}

// FindDuplicateCodeSpans returns only the code-span section of a scan
// (the scan itself still runs every detector).
func FindDuplicateCodeSpans(ctx context.Context, roots []string, opts Options) ([]Group, error) {
	groups, _, err := FindDuplicateCodeSpansWithStats(ctx, roots, opts)
	return groups, err
}

// FindDuplicateCodeSpansWithStats returns the code-span section of a scan
// together with the scan's accounting snapshot.
func FindDuplicateCodeSpansWithStats(ctx context.Context, roots []string, opts Options) ([]Group, Snapshot, error) {
	rep, snap, err := run(ctx, roots, opts, ModeDirect)
	if err != nil {
		return nil, snap, err
	}
	return toGroups(rep.CodeSpanDuplicates), snap, nil
}

// GenerateReport runs all seven detectors and returns the full report.
func GenerateReport(ctx context.Context, roots []string, opts Options) (DuplicationReport, error) {
	rep, _, err := GenerateReportWithStats(ctx, roots, opts)
	return rep, err
}

// GenerateReportWithStats runs all seven detectors, applying the
// report-mode budget defaults, and returns the scan's accounting snapshot
// alongside the full report.
func GenerateReportWithStats(ctx context.Context, roots []string, opts Options) (DuplicationReport, Snapshot, error) {
	rep, snap, err := run(ctx, roots, opts, ModeReport)
	if err != nil {
		return DuplicationReport{}, snap, err
	}
	return DuplicationReport{
		FileDuplicates:       toGroups(rep.FileDuplicates),
		CodeSpanDuplicates:   toGroups(rep.CodeSpanDuplicates),
		LineSpanDuplicates:   toGroups(rep.LineSpanDuplicates),
		TokenSpanDuplicates:  toGroups(rep.TokenSpanDuplicates),
		BlockDuplicates:      toGroups(rep.BlockDuplicates),
		ASTSubtreeDuplicates: toGroups(rep.ASTSubtreeDuplicates),
		SimilarBlocksMinhash: toPairs(rep.SimilarBlocksMinhash),
		SimilarBlocksSimhash: toPairs(rep.SimilarBlocksSimhash),
	}, snap, nil
}

// EnforceStrict applies the strict-completeness caller policy: a caller
// that opts into strict mode converts a completed-but-incomplete scan into
// an error instead of silently consuming a partial result.
func EnforceStrict(snap Snapshot) error {
	if snap.Incomplete() {
		return &IncompleteScanError{Stats: snap}
	}
	return nil
}

// pendingFile is one file read successfully from a candidate, still
// carrying its root/path localization until detect.Run localizes it into
// occurrences.
type pendingFile struct {
	rootID       int
	rootLabel    string
	relativePath string
	content      []byte
}

// run wires the walker through the gatekeeper into the detector engine,
// applying every configured budget in candidate order and posting every
// skip event to Stats. It is the single implementation behind all three
// public entry points; mode only controls which report-mode defaults
// apply.
func run(ctx context.Context, rootPaths []string, opts Options, mode Mode) (detect.Report, Snapshot, error) {
	var stats Stats

	if err := opts.Validate(len(rootPaths)); err != nil {
		return detect.Report{}, stats.Snapshot(), err
	}
	opts = opts.ApplyDefaults(mode)

	roots, err := canonicalizeRoots(rootPaths)
	if err != nil {
		return detect.Report{}, stats.Snapshot(), err
	}

	type located struct {
		root walk.Candidate
		r    Root
	}
	var candidates []located

	for _, r := range roots {
		out, werr := walk.Enumerate(r.Path, walk.Options{
			IgnoreDirs:       opts.IgnoreDirs,
			RespectGitignore: opts.RespectGitignore,
			FollowSymlinks:   opts.FollowSymlinks,
			MaxFiles:         opts.MaxFiles,
		})
		if werr != nil {
			return detect.Report{}, stats.Snapshot(), &ScanFailureError{Reason: "enumerating root " + r.Path, Err: werr}
		}
		stats.AddGitFastPathFallbacks(out.GitFastPathFallbacks)
		stats.RecordSkip(SkipNotFound, out.SkippedNotFound)
		stats.RecordSkip(SkipPermissionDenied, out.SkippedPermission)
		stats.RecordSkip(SkipOutsideRoot, out.SkippedOutsideRoot)
		stats.RecordSkip(SkipRelativizeFailed, out.SkippedRelativizeFailed)
		stats.RecordSkip(SkipWalkError, out.SkippedWalkErrors)
		if out.FastPathTruncated {
			// The subprocess was killed once MaxFiles candidates had been
			// read off its stdout, so this root's true remaining count
			// beyond that point was never read (that is the entire point
			// of stopping early) and can't be reported exactly. Record a
			// floor of one so the scan is still correctly marked
			// incomplete; the exact per-candidate accounting below still
			// runs for whatever this root did enumerate.
			stats.RecordSkip(SkipBudgetMaxFiles, 1)
		}

		for _, c := range out.Candidates {
			candidates = append(candidates, located{root: c, r: r})
		}
	}
	stats.AddCandidateFiles(int64(len(candidates)))

	var files []pendingFile
	var normalizedCharsTotal, tokensTotal int64

	for i, lc := range candidates {
		select {
		case <-ctx.Done():
			return detect.Report{}, stats.Snapshot(), &CancelledError{}
		default:
		}

		if opts.MaxFiles > 0 && stats.ScannedFiles() == opts.MaxFiles {
			remaining := int64(len(candidates) - i)
			stats.RecordSkip(SkipBudgetMaxFiles, remaining)
			break
		}

		res, rerr := gatekeeper.Read(lc.root.Absolute, opts.MaxFileSize)
		if rerr != nil {
			return detect.Report{}, stats.Snapshot(), &ScanFailureError{Reason: "reading " + lc.root.Absolute, Err: rerr}
		}

		switch res.Skip {
		case gatekeeper.SkipNotFound:
			stats.RecordSkip(SkipNotFound, 1)
			continue
		case gatekeeper.SkipPermissionDenied:
			stats.RecordSkip(SkipPermissionDenied, 1)
			continue
		case gatekeeper.SkipTooLarge:
			stats.RecordSkip(SkipTooLarge, 1)
			continue
		case gatekeeper.SkipBinary:
			// A binary file still counts as one scanned unit for maxFiles,
			// and its bytes up to the NUL still count toward scannedBytes.
			stats.RecordSkip(SkipBinary, 1)
			stats.AddScannedFiles(1)
			stats.AddScannedBytes(res.BytesRead)
			continue
		}

		if opts.MaxTotalBytes > 0 && stats.ScannedBytes()+res.BytesRead > opts.MaxTotalBytes {
			stats.RecordSkip(SkipBudgetMaxTotalBytes, 1)
			continue
		}

		wordChars := int64(len(normalize.WordChars(res.Content).Chars))
		tokenCount := int64(len(tokenize.Tokenize(res.Content)))

		if opts.MaxNormalizedChars > 0 && normalizedCharsTotal+wordChars > opts.MaxNormalizedChars {
			remaining := int64(len(candidates) - i)
			stats.RecordSkip(SkipBudgetMaxNormalizedChars, remaining)
			break
		}
		if opts.MaxTokens > 0 && tokensTotal+tokenCount > opts.MaxTokens {
			remaining := int64(len(candidates) - i)
			stats.RecordSkip(SkipBudgetMaxTokens, remaining)
			break
		}

		stats.AddScannedFiles(1)
		stats.AddScannedBytes(res.BytesRead)
		normalizedCharsTotal += wordChars
		tokensTotal += tokenCount

		rel := filepath.ToSlash(lc.root.Relative)
		files = append(files, pendingFile{
			rootID:       lc.r.ID,
			rootLabel:    lc.r.Label,
			relativePath: rel,
			content:      res.Content,
		})
	}

	detectFiles := make([]detect.FileRef, len(files))
	for i, f := range files {
		detectFiles[i] = detect.FileRef{
			RootID:       f.rootID,
			RootLabel:    f.rootLabel,
			RelativePath: f.relativePath,
			Bytes:        f.content,
		}
	}

	detectOpts := detect.Options{
		MinMatchLen:         opts.MinMatchLen,
		MinTokenLen:         opts.MinTokenLen,
		SimilarityThreshold: opts.SimilarityThreshold,
		SimHashMaxDistance:  opts.SimHashMaxDistance,
		MaxReportItems:      opts.MaxReportItems,
		CrossRepoOnly:       opts.CrossRepoOnly,
		BucketCap:           winnow.DefaultBucketCap,
	}
	rep := detect.Run(detectFiles, detectOpts)
	stats.RecordSkip(SkipBucketTruncated, rep.BucketTruncated)

	return rep, stats.Snapshot(), nil
}
