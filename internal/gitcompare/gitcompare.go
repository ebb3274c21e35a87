// Package gitcompare implements the `compare BASE..HEAD` subcommand: check out
// two refs into throwaway git worktrees, run a full report against each
// in-process, and diff the two DuplicationReports by hash to find
// resolved, lingering, and newly introduced duplicate groups.
package gitcompare

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/asynkron/dupsentry/dupscan"
)

// GroupDelta describes one hash's occurrence-count change between base and
// head. HeadOccurrences is nil when the group is absent at head.
type GroupDelta struct {
	Hash            string
	Section         string
	BaseCount       int
	HeadCount       int
	HeadOccurrences []dupscan.Occurrence
}

// Removed reports the delta as fully resolved (present at base, gone at head).
func (d GroupDelta) Removed() bool { return d.BaseCount > 0 && d.HeadCount == 0 }

// Introduced reports the delta as new (absent at base, present at head).
func (d GroupDelta) Introduced() bool { return d.BaseCount == 0 && d.HeadCount > 0 }

// Lingering reports the delta as reduced but not eliminated.
func (d GroupDelta) Lingering() bool { return d.BaseCount > 0 && d.HeadCount > 0 && d.HeadCount < d.BaseCount }

// Result is the outcome of comparing two refs.
type Result struct {
	BaseRef, HeadRef string
	Deltas           []GroupDelta
}

// worktree wraps one temporary git worktree, removed on Close.
type worktree struct {
	dir string
}

func addWorktree(ref string) (*worktree, error) {
	dir, err := os.MkdirTemp("", "dupsentry-worktree-")
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("git", "worktree", "add", "--detach", dir, ref)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("git worktree add %s: %w: %s", ref, err, out)
	}
	return &worktree{dir: dir}, nil
}

func (w *worktree) Close() {
	exec.Command("git", "worktree", "remove", "--force", w.dir).Run()
	os.RemoveAll(w.dir)
}

// Compare checks out baseRef and headRef into separate worktrees, scans
// each with opts, and returns the per-group deltas between them.
func Compare(ctx context.Context, baseRef, headRef string, opts dupscan.Options) (Result, error) {
	base, err := addWorktree(baseRef)
	if err != nil {
		return Result{}, fmt.Errorf("checking out base ref %s: %w", baseRef, err)
	}
	defer base.Close()

	head, err := addWorktree(headRef)
	if err != nil {
		return Result{}, fmt.Errorf("checking out head ref %s: %w", headRef, err)
	}
	defer head.Close()

	baseRep, err := dupscan.GenerateReport(ctx, []string{base.dir}, opts)
	if err != nil {
		return Result{}, fmt.Errorf("scanning %s: %w", baseRef, err)
	}
	headRep, err := dupscan.GenerateReport(ctx, []string{head.dir}, opts)
	if err != nil {
		return Result{}, fmt.Errorf("scanning %s: %w", headRef, err)
	}

	return Result{BaseRef: baseRef, HeadRef: headRef, Deltas: diff(baseRep, headRep)}, nil
}

type section struct {
	name   string
	groups []dupscan.Group
}

func sections(rep dupscan.DuplicationReport) []section {
	return []section{
		{"file", rep.FileDuplicates},
		{"codeSpan", rep.CodeSpanDuplicates},
		{"lineSpan", rep.LineSpanDuplicates},
		{"tokenSpan", rep.TokenSpanDuplicates},
		{"block", rep.BlockDuplicates},
		{"astSubtree", rep.ASTSubtreeDuplicates},
	}
}

// diff compares base and head section-by-section, matching groups by
// their representative hash within each section.
func diff(base, head dupscan.DuplicationReport) []GroupDelta {
	baseSections := sections(base)
	headSections := sections(head)

	var deltas []GroupDelta
	for i, bs := range baseSections {
		hs := headSections[i]

		baseCount := make(map[string]int, len(bs.groups))
		for _, g := range bs.groups {
			baseCount[g.Hash] = len(g.Occurrences)
		}
		headCount := make(map[string]int, len(hs.groups))
		headOccs := make(map[string][]dupscan.Occurrence, len(hs.groups))
		for _, g := range hs.groups {
			headCount[g.Hash] = len(g.Occurrences)
			headOccs[g.Hash] = g.Occurrences
		}

		seen := make(map[string]bool, len(baseCount)+len(headCount))
		for hash := range baseCount {
			seen[hash] = true
		}
		for hash := range headCount {
			seen[hash] = true
		}
		for hash := range seen {
			bc, hc := baseCount[hash], headCount[hash]
			if bc == hc {
				continue
			}
			deltas = append(deltas, GroupDelta{
				Hash:            hash,
				Section:         bs.name,
				BaseCount:       bc,
				HeadCount:       hc,
				HeadOccurrences: headOccs[hash],
			})
		}
	}
	return deltas
}
