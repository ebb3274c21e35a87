// Package gitpath implements the git-backed fast path for candidate path
// enumeration: when the scan root is a git worktree, `git ls-files`
// already knows the tracked-and-untracked, not-ignored file set, so the
// walker's own directory-descent and gitignore evaluation can be skipped
// entirely.
package gitpath

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"
)

// Environment variables gating a caller-supplied git binary override. The
// default resolution (a bare "git" resolved via PATH) needs no envelope;
// the override does, since a hostile or accidental PATH+env combination
// must not be able to smuggle an arbitrary executable into the fast path.
const (
	EnvAllowCustomGit = "DUP_CODE_CHECK_ALLOW_CUSTOM_GIT"
	EnvGitBin         = "DUP_CODE_CHECK_GIT_BIN"
)

// ResolveBinary returns the git executable to invoke. It honors
// EnvGitBin only when EnvAllowCustomGit is set to "1" and the override
// passes the security envelope (absolute path, regular file, not a
// symlink, executable, and not group- or world-writable). An absent
// override (or one not opted into) falls back to PATH resolution; a
// rejected override does not, and yields ok false. ok is false whenever
// no usable binary was found, in which case the fast path must not be
// attempted.
func ResolveBinary() (path string, ok bool) {
	if os.Getenv(EnvAllowCustomGit) == "1" {
		if override := os.Getenv(EnvGitBin); override != "" {
			if err := validateOverride(override); err == nil {
				return override, true
			}
			return "", false
		}
	}
	resolved, err := exec.LookPath("git")
	if err != nil {
		return "", false
	}
	return resolved, true
}

func validateOverride(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("gitpath: binary override %q is not an absolute path", path)
	}
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("gitpath: stat binary override: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("gitpath: binary override %q must not be a symlink", path)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("gitpath: binary override %q is not a regular file", path)
	}
	if runtime.GOOS == "windows" {
		return nil
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("gitpath: binary override %q is not executable", path)
	}
	if info.Mode().Perm()&0o022 != 0 {
		return fmt.Errorf("gitpath: binary override %q is group- or world-writable", path)
	}
	return nil
}

// Enumerate attempts the git fast path against rootAbs. attempted is
// false when the fast path was never launched (no usable git binary, or
// rootAbs is not inside a work tree) — in that case err is always nil and
// the caller should fall back to the walker without counting a fallback.
// attempted is true once launching the subprocess has been tried; a
// non-nil err in that case (including a failed launch) means the caller must discard anything already delivered to
// visit, count exactly one fallback, and restart enumeration with the
// walker from scratch — the fallback aborts and restarts, it never
// patches up partial output.
//
// visit is called once per root-relative, slash-free-of-".." path in
// git's reported order; returning false stops enumeration early without
// it counting as a failure.
func Enumerate(rootAbs string, visit func(relOSPath string) bool) (attempted bool, err error) {
	bin, ok := ResolveBinary()
	if !ok {
		return false, nil
	}
	if !isWorkTree(bin, rootAbs) {
		return false, nil
	}

	cmd := exec.Command(bin, "-C", rootAbs, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return true, fmt.Errorf("gitpath: creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return true, fmt.Errorf("gitpath: launching git ls-files: %w", err)
	}
	attempted = true

	reader := bufio.NewReader(stdout)
	var readErr error
	stoppedEarly := false
	for {
		token, ferr := reader.ReadString(0)
		rel := strings.TrimSuffix(token, "\x00")
		if rel != "" {
			if !validRelPath(rel) {
				readErr = fmt.Errorf("gitpath: git ls-files emitted an unsafe path %q", rel)
				break
			}
			if !visit(filepath.FromSlash(rel)) {
				stoppedEarly = true
				break
			}
		}
		if ferr != nil {
			if ferr != io.EOF {
				readErr = fmt.Errorf("gitpath: reading git ls-files output: %w", ferr)
			}
			break
		}
	}

	if readErr != nil || stoppedEarly {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return true, readErr
	}
	if err := cmd.Wait(); err != nil {
		return true, fmt.Errorf("gitpath: git ls-files exited with an error: %w", err)
	}
	return true, nil
}

func isWorkTree(bin, rootAbs string) bool {
	out, err := exec.Command(bin, "-C", rootAbs, "rev-parse", "--is-inside-work-tree").Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// validRelPath rejects anything the fast path must treat as a signal to
// abort: absolute paths, ".." segments, and non-UTF-8 output.
func validRelPath(rel string) bool {
	if rel == "" || filepath.IsAbs(rel) || !utf8.ValidString(rel) {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
