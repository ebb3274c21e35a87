package dupscan

import (
	"os"
	"path/filepath"
	"strconv"
)

// ResolveRoots canonicalizes paths into labeled roots using the same
// resolution and disambiguation rules the scan entry points apply
// internally. Callers that need to map an Occurrence.RootLabel back onto a
// filesystem path (for example, to reread source for a rendered detail
// view) use this to stay consistent with a completed scan's labeling.
func ResolveRoots(paths []string) ([]Root, error) {
	return canonicalizeRoots(paths)
}

// canonicalizeRoots resolves each caller-supplied path to an absolute,
// symlink-free directory and assigns it a short display label (the final
// path segment, or index-derived if two roots collide). Any root that does
// not exist, is not a directory, or cannot be canonicalized fails the whole
// call with InvalidInput before enumeration starts.
func canonicalizeRoots(paths []string) ([]Root, error) {
	roots := make([]Root, len(paths))
	labelCount := make(map[string]int, len(paths))

	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, &InvalidInputError{Reason: "root " + p + ": " + err.Error()}
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return nil, &InvalidInputError{Reason: "root " + p + ": " + err.Error()}
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return nil, &InvalidInputError{Reason: "root " + p + ": " + err.Error()}
		}
		if !info.IsDir() {
			return nil, &InvalidInputError{Reason: "root " + p + " is not a directory"}
		}

		label := filepath.Base(resolved)
		labelCount[label]++
		roots[i] = Root{ID: i, Path: resolved, Label: label}
	}

	// Disambiguate collisions by appending the root's index; a bare final
	// segment is only usable as a label when it is unique among roots.
	for i, r := range roots {
		if labelCount[r.Label] > 1 {
			roots[i].Label = r.Label + "#" + strconv.Itoa(i)
		}
	}
	return roots, nil
}
