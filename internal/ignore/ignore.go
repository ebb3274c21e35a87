// Package ignore provides the walker path's embedded (no-shell-out)
// .gitignore matching: rules are evaluated with an in-process matcher,
// with no shell-outs anywhere in the walker path. It is grounded on
// go-git's own gitignore implementation (see DESIGN.md for the
// version-consistent /v5 import path this package settled on).
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Matcher wraps zero or more compiled gitignore pattern sets: the scan
// root's own (recursively read) .gitignore files, plus ancestor-directory
// and user-global ignore files, giving full nested .gitignore semantics.
type Matcher struct {
	matcher gitignore.Matcher
}

// Load builds a Matcher for a scan root: global ignore files, ancestor
// .gitignore files up to (and including) the enclosing git repository's
// top level (or the filesystem root if none is found), and every
// .gitignore file at or below rootAbs.
func Load(rootAbs string) *Matcher {
	var patterns []gitignore.Pattern
	patterns = append(patterns, globalPatterns()...)
	patterns = append(patterns, ancestorPatterns(rootAbs)...)

	if fs := osfs.New(rootAbs); fs != nil {
		if rooted, err := gitignore.ReadPatterns(fs, nil); err == nil {
			patterns = append(patterns, rooted...)
		}
	}

	if len(patterns) == 0 {
		return &Matcher{}
	}
	return &Matcher{matcher: gitignore.NewMatcher(patterns)}
}

// Match reports whether relPath (root-relative, OS-separated) is ignored.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	return m.matcher.Match(parts, isDir)
}

func globalPatterns() []gitignore.Pattern {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var out []gitignore.Pattern
	for _, candidate := range []string{
		filepath.Join(home, ".config", "git", "ignore"),
		filepath.Join(home, ".gitignore"),
	} {
		out = append(out, readPatternFile(candidate, nil)...)
	}
	return out
}

// ancestorPatterns collects .gitignore files from rootAbs's parent
// directory upward, stopping once it passes the enclosing git repository's
// top level (or the filesystem root, whichever comes first).
func ancestorPatterns(rootAbs string) []gitignore.Pattern {
	var out []gitignore.Pattern
	dir := filepath.Dir(rootAbs)
	for {
		out = append(out, readPatternFile(filepath.Join(dir, ".gitignore"), nil)...)
		if isGitTop(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return out
}

func isGitTop(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info != nil
}

func readPatternFile(path string, domain []string) []gitignore.Pattern {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, gitignore.ParsePattern(line, domain))
	}
	return out
}
