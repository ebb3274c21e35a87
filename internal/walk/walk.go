// Package walk implements candidate path enumeration for a single root:
// the git fast path when available and applicable, otherwise a directory
// walker with ignoreDirs pruning and embedded gitignore matching.
package walk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/asynkron/dupsentry/internal/gitpath"
	"github.com/asynkron/dupsentry/internal/ignore"
)

// Candidate is a single enumerated file, already known to exist at
// enumeration time (existence may still change before it is read).
type Candidate struct {
	// Relative is root-relative and OS-separated.
	Relative string
	Absolute string
}

// Options configures a single root's enumeration. It intentionally
// mirrors only the subset of dupscan.Options that enumeration needs; the public
// package translates its own Options into this one.
type Options struct {
	IgnoreDirs       []string
	RespectGitignore bool
	FollowSymlinks   bool

	// MaxFiles caps how many candidates the git fast path will pull out of
	// its subprocess before killing it, 0 meaning unbounded. It has no
	// effect on the walker: the walker's own candidate list still needs to
	// be exact so a caller enumerating several roots can report precisely
	// how many candidates each one contributed once its own budget runs
	// out, which the fast path's line-by-line subprocess output does not
	// need to honor (see FastPathTruncated).
	MaxFiles int64
}

// Outcome reports both the candidates found and the counters this stage
// contributes to a scan's Stats.
type Outcome struct {
	Candidates []Candidate

	UsedFastPath            bool
	FastPathTruncated       bool
	GitFastPathFallbacks    int64
	SkippedWalkErrors       int64
	SkippedOutsideRoot      int64
	SkippedRelativizeFailed int64
	SkippedNotFound         int64
	SkippedPermission       int64
}

// Enumerate walks rootAbs (an already-resolved absolute path) and returns
// every candidate file under it. The fast path is only eligible when
// RespectGitignore is set and FollowSymlinks is not — following symlinks
// is a walker-only feature, and git's own view of the tree never follows
// them either, so combining the two would silently change semantics
// mid-scan.
//
// When MaxFiles is set and the fast path is taken, the subprocess is
// killed as soon as MaxFiles candidates have been read off its stdout
// rather than waiting for it to list the rest of a possibly enormous
// tree; FastPathTruncated reports when this happened so the caller can
// mark the scan incomplete even though this root's own candidate count
// no longer reflects everything git actually tracks.
func Enumerate(rootAbs string, opts Options) (Outcome, error) {
	if opts.RespectGitignore && !opts.FollowSymlinks {
		var buffered []Candidate
		truncated := false
		attempted, ferr := gitpath.Enumerate(rootAbs, func(rel string) bool {
			if opts.MaxFiles > 0 && int64(len(buffered)) >= opts.MaxFiles {
				truncated = true
				return false
			}
			buffered = append(buffered, Candidate{
				Relative: rel,
				Absolute: filepath.Join(rootAbs, rel),
			})
			return true
		})
		if attempted {
			if ferr == nil {
				return Outcome{Candidates: buffered, UsedFastPath: true, FastPathTruncated: truncated}, nil
			}
			// Full restart: discard everything buffered above and fall
			// through to the walker, counting exactly one fallback.
			out, err := walkDir(rootAbs, opts)
			out.GitFastPathFallbacks = 1
			return out, err
		}
	}
	return walkDir(rootAbs, opts)
}

func walkDir(rootAbs string, opts Options) (Outcome, error) {
	var out Outcome
	matcher := ignore.Load(rootAbs)
	err := walkTree(rootAbs, rootAbs, "", opts, matcher, &out, map[string]bool{rootAbs: true})
	return out, err
}

// walkTree walks physicalRoot, a real (symlink-free) directory that is
// either rootAbs itself or the resolved target of a symlinked directory
// found while walking rootAbs, and reports every candidate under
// logicalPrefix — its path relative to rootAbs. visited records every
// physical directory already descended into, so a symlink cycle back to an
// ancestor cannot recurse forever.
func walkTree(rootAbs, physicalRoot, logicalPrefix string, opts Options, matcher *ignore.Matcher, out *Outcome, visited map[string]bool) error {
	return filepath.WalkDir(physicalRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if path == physicalRoot {
			if walkErr != nil {
				return walkErr
			}
			return nil
		}

		physRel, relErr := filepath.Rel(physicalRoot, path)
		if relErr != nil {
			out.SkippedRelativizeFailed++
			if walkErr == nil && d != nil && !d.IsDir() {
				out.Candidates = append(out.Candidates, Candidate{
					Relative: fmt.Sprintf("<external:%d>/%s", out.SkippedRelativizeFailed, filepath.Base(path)),
					Absolute: path,
				})
			}
			return nil
		}
		rel := physRel
		if logicalPrefix != "" {
			rel = filepath.Join(logicalPrefix, physRel)
		}

		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				out.SkippedNotFound++
				return nil
			}
			if os.IsPermission(walkErr) {
				out.SkippedPermission++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			out.SkippedWalkErrors++
			return nil
		}

		if d.IsDir() {
			if isIgnoredDir(d.Name(), opts.IgnoreDirs) {
				return fs.SkipDir
			}
			if opts.RespectGitignore && matcher.Match(rel, true) {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			resolved, everr := filepath.EvalSymlinks(path)
			if everr != nil {
				out.SkippedNotFound++
				return nil
			}
			if !isWithinRoot(rootAbs, resolved) {
				out.SkippedOutsideRoot++
				return nil
			}
			info, staterr := os.Stat(resolved)
			if staterr != nil {
				out.SkippedNotFound++
				return nil
			}
			if info.IsDir() {
				if visited[resolved] {
					return nil
				}
				visited[resolved] = true
				if err := walkTree(rootAbs, resolved, rel, opts, matcher, out, visited); err != nil {
					out.SkippedWalkErrors++
				}
				return nil
			}
			if opts.RespectGitignore && matcher.Match(rel, false) {
				return nil
			}
			out.Candidates = append(out.Candidates, Candidate{Relative: rel, Absolute: resolved})
			return nil
		}

		if opts.RespectGitignore && matcher.Match(rel, false) {
			return nil
		}

		out.Candidates = append(out.Candidates, Candidate{Relative: rel, Absolute: path})
		return nil
	})
}

func isIgnoredDir(name string, ignoreDirs []string) bool {
	for _, ig := range ignoreDirs {
		if runtime.GOOS == "windows" {
			if strings.EqualFold(name, ig) {
				return true
			}
			continue
		}
		if name == ig {
			return true
		}
	}
	return false
}

func isWithinRoot(rootAbs, candidate string) bool {
	rel, err := filepath.Rel(rootAbs, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
