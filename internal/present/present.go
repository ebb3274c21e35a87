// Package present renders a dupscan.DuplicationReport for a human or for
// CI: a colorized console summary, a hotspot table ranking the files most
// involved in duplication, GitHub Actions annotations, and an on-demand
// markdown detail view. The core package never imports this one; it is
// wired only from cmd/dupsentry.
package present

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/asynkron/dupsentry/dupscan"
)

// Theme defines the color scheme for console output.
type Theme struct {
	Score    lipgloss.Style
	Hash     lipgloss.Style
	Location lipgloss.Style
	LineNum  lipgloss.Style
	Summary  lipgloss.Style
	Dim      lipgloss.Style
}

// DefaultTheme is the default color scheme.
var DefaultTheme = Theme{
	Score:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	Hash:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Location: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	LineNum:  lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
	Summary:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
	Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

// allGroups flattens every group section of a report into one slice,
// tagged with the section name each came from.
func allGroups(rep dupscan.DuplicationReport) []struct {
	section string
	group   dupscan.Group
} {
	sections := []struct {
		name   string
		groups []dupscan.Group
	}{
		{"file", rep.FileDuplicates},
		{"codeSpan", rep.CodeSpanDuplicates},
		{"lineSpan", rep.LineSpanDuplicates},
		{"tokenSpan", rep.TokenSpanDuplicates},
		{"block", rep.BlockDuplicates},
		{"astSubtree", rep.ASTSubtreeDuplicates},
	}
	var out []struct {
		section string
		group   dupscan.Group
	}
	for _, s := range sections {
		for _, g := range s.groups {
			out = append(out, struct {
				section string
				group   dupscan.Group
			}{s.name, g})
		}
	}
	return out
}

// Summary prints a one-line count per report section.
func Summary(w io.Writer, theme Theme, rep dupscan.DuplicationReport) {
	fmt.Fprintf(w, "%s\n", theme.Summary.Render("Duplication report"))
	rows := []struct {
		label string
		n     int
	}{
		{"file duplicates", len(rep.FileDuplicates)},
		{"code-span duplicates", len(rep.CodeSpanDuplicates)},
		{"line-span duplicates", len(rep.LineSpanDuplicates)},
		{"token-span duplicates", len(rep.TokenSpanDuplicates)},
		{"block duplicates", len(rep.BlockDuplicates)},
		{"AST-subtree duplicates", len(rep.ASTSubtreeDuplicates)},
		{"similar blocks (minhash)", len(rep.SimilarBlocksMinhash)},
		{"similar blocks (simhash)", len(rep.SimilarBlocksSimhash)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %s %s\n", theme.LineNum.Render(fmt.Sprintf("%4d", r.n)), theme.Dim.Render(r.label))
	}
}

// hotspot is one file's total involvement in duplicated spans.
type hotspot struct {
	root  string
	path  string
	lines int
}

// rankHotspots sums, per (root, path), the normalized length of every
// group occurrence naming that file, and returns the top n descending.
func rankHotspots(rep dupscan.DuplicationReport, n int) []hotspot {
	totals := make(map[[2]string]int)
	for _, ag := range allGroups(rep) {
		for _, occ := range ag.group.Occurrences {
			key := [2]string{occ.RootLabel, occ.RelativePath}
			totals[key] += ag.group.NormalizedLen
		}
	}
	out := make([]hotspot, 0, len(totals))
	for k, v := range totals {
		out = append(out, hotspot{root: k[0], path: k[1], lines: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].lines != out[j].lines {
			return out[i].lines > out[j].lines
		}
		if out[i].root != out[j].root {
			return out[i].root < out[j].root
		}
		return out[i].path < out[j].path
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Hotspots renders a table of the files most involved in duplication,
// ranked by total duplicated-span length across every detector.
func Hotspots(w io.Writer, theme Theme, rep dupscan.DuplicationReport, top int) {
	hotspots := rankHotspots(rep, top)
	if len(hotspots) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", theme.Summary.Render("Duplication hotspots"))

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header([]string{"Normalized length", "Root", "Path"})
	for _, h := range hotspots {
		table.Append([]string{fmt.Sprintf("%d", h.lines), h.root, h.path})
	}
	table.Render()
}

// GitHubAnnotations writes GitHub Actions ::warning/::error annotations
// for the top-scoring groups, one per group's first occurrence, naming
// every other occurrence in the message body.
func GitHubAnnotations(w io.Writer, rep dupscan.DuplicationReport, top int, level string) {
	groups := allGroups(rep)
	sort.Slice(groups, func(i, j int) bool {
		return len(groups[i].group.Occurrences) > len(groups[j].group.Occurrences)
	})
	if top > 0 && len(groups) > top {
		groups = groups[:top]
	}
	printed := 0
	for _, ag := range groups {
		occs := ag.group.Occurrences
		if len(occs) < 2 {
			continue
		}
		first := occs[0]
		others := make([]string, 0, len(occs)-1)
		for _, o := range occs[1:] {
			others = append(others, fmt.Sprintf("%s:%s:%d", o.RootLabel, o.RelativePath, o.StartLine))
		}
		msg := fmt.Sprintf("Duplicate %s span also at: %s", ag.section, strings.Join(others, ", "))
		fmt.Fprintf(w, "::%s file=%s,line=%d,endLine=%d,title=Duplicate (%d occurrences)::%s\n",
			level, first.RelativePath, first.StartLine, first.EndLine, len(occs), msg)
		printed++
	}
	if printed > 0 {
		fmt.Fprintln(w)
	}
}

// langFromExt maps file extensions to markdown code block language hints.
var langFromExt = map[string]string{
	".go": "go", ".c": "c", ".h": "c", ".cpp": "cpp", ".hpp": "cpp",
	".java": "java", ".js": "javascript", ".ts": "typescript", ".tsx": "tsx",
	".cs": "csharp", ".rs": "rust", ".py": "python", ".rb": "ruby",
	".sh": "bash", ".sql": "sql", ".yaml": "yaml", ".yml": "yaml",
	".json": "json", ".html": "html", ".css": "css",
}

func langFor(path string) string {
	ext := filepath.Ext(path)
	if lang, ok := langFromExt[ext]; ok {
		return lang
	}
	return strings.TrimPrefix(ext, ".")
}

// DetailMarkdown renders one group's occurrences as a markdown document:
// a heading, its metadata, and a fenced code block per occurrence sourced
// from the caller-supplied reader (typically the file on disk).
func DetailMarkdown(g dupscan.Group, section string, source func(occ dupscan.Occurrence) (string, error)) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s duplicate `%s`\n\n", section, g.Hash)
	fmt.Fprintf(&sb, "**Normalized length:** %d  **Occurrences:** %d\n\n", g.NormalizedLen, len(g.Occurrences))
	for i, occ := range g.Occurrences {
		fmt.Fprintf(&sb, "### Occurrence %d: `%s:%s:%d`\n\n", i+1, occ.RootLabel, occ.RelativePath, occ.StartLine)
		snippet, err := source(occ)
		if err != nil {
			fmt.Fprintf(&sb, "_could not read source: %v_\n\n", err)
			continue
		}
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", langFor(occ.RelativePath), snippet)
	}
	return sb.String()
}

// RenderDetail writes markdown to w, preferring an external glow
// subprocess for its richer terminal rendering and falling back to
// glamour's in-process renderer (rather than raw text) when glow is not
// on PATH or fails to run.
func RenderDetail(w io.Writer, markdown string) error {
	if _, err := exec.LookPath("glow"); err == nil {
		cmd := exec.Command("glow", "-w", "0", "-")
		cmd.Stdin = strings.NewReader(markdown)
		cmd.Stdout = w
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err == nil {
			return nil
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, err := io.WriteString(w, markdown)
		return err
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		_, err := io.WriteString(w, markdown)
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}
