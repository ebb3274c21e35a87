package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/asynkron/dupsentry/dupscan"
	"github.com/asynkron/dupsentry/internal/dlog"
	"github.com/asynkron/dupsentry/internal/dupconfig"
	"github.com/asynkron/dupsentry/internal/gitcompare"
	"github.com/asynkron/dupsentry/internal/present"
	"github.com/asynkron/dupsentry/internal/progress"
)

var version = "dev"

// newApp builds the CLI application. It is split out from main so tests
// can drive app.Run directly, including the flag-parsing failures that
// never reach an Action.
func newApp() *cli.App {
	return &cli.App{
		Name:    "dupsentry",
		Usage:   "Find duplicate and near-duplicate code across one or more source trees",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
		},
		Commands: []*cli.Command{
			filesCmd(),
			spansCmd(),
			reportCmd(),
			compareCmd(),
			detailCmd(),
		},
		// Malformed flag syntax (unknown flag, bad value) is caught here
		// before any Action runs; converting it to a cli.Exit keeps it on
		// the same exit-code-2 path as the required-flags case below,
		// which urfave/cli reports as a plain, unexported error instead.
		OnUsageError: func(cCtx *cli.Context, err error, isSubcommand bool) error {
			return cli.Exit(err.Error(), 2)
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dupsentry: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// flagParseErrorPrefixes are the literal error-message prefixes
// urfave/cli/v2 and the standard flag package use for flag-stage
// failures — most notably a missing required flag, reported via cli's
// unexported errRequiredFlags, which cannot be reached with a type
// assertion from outside the package.
var flagParseErrorPrefixes = []string{
	"Required flag ",
	"Required flags ",
	"flag provided but not defined:",
	"invalid value ",
	"flag needs an argument:",
}

func isFlagParseError(err error) bool {
	msg := err.Error()
	for _, prefix := range flagParseErrorPrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// exitCodeFor maps a returned error to the process exit code. Actions
// that need code 2 (argument-parsing failures) return cli.Exit directly;
// urfave/cli's own flag-stage failures map to 2 as well, detected by
// isFlagParseError since most of them never implement cli.ExitCoder;
// everything else the entry points and strict-mode policy can return
// maps to 1.
func exitCodeFor(err error) int {
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	if isFlagParseError(err) {
		return 2
	}
	return 1
}

// rootFlag names the scan roots. compareCmd omits it: its "roots" are the
// two worktrees it checks out, not caller-supplied directories.
func rootFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "root", Aliases: []string{"r"}, Required: true, Usage: "directory to scan (repeatable)"}
}

func scanTuningFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to a config file, overriding the standard search locations"},
		&cli.StringSliceFlag{Name: "ignore-dir", Usage: "path segment to skip, in addition to the built-in defaults"},
		&cli.BoolFlag{Name: "respect-gitignore", Value: true, Usage: "apply .gitignore rules while walking"},
		&cli.BoolFlag{Name: "follow-symlinks", Usage: "descend into symlinked directories"},
		&cli.Int64Flag{Name: "max-file-size", Usage: "per-file byte cap (default 10 MiB; 0 = unbounded)"},
		&cli.Int64Flag{Name: "max-files", Usage: "scanned-file count cap (0 = unbounded)"},
		&cli.Int64Flag{Name: "max-total-bytes", Usage: "cumulative scanned-bytes cap (unset = mode default; 0 = unbounded)"},
		&cli.Int64Flag{Name: "max-normalized-chars", Usage: "cumulative normalized-chars cap (unset = mode default; 0 = unbounded)"},
		&cli.Int64Flag{Name: "max-tokens", Usage: "cumulative token cap (unset = mode default; 0 = unbounded)"},
		&cli.IntFlag{Name: "min-match-len", Usage: "minimum word-char length for char/line spans"},
		&cli.IntFlag{Name: "min-token-len", Usage: "minimum token count for token/block/subtree/similar"},
		&cli.Float64Flag{Name: "similarity-threshold", Usage: "MinHash similarity threshold in [0,1]"},
		&cli.IntFlag{Name: "simhash-max-distance", Usage: "SimHash max Hamming distance in [0,64]"},
		&cli.IntFlag{Name: "max-report-items", Usage: "cap per report section (0 yields empty)"},
		&cli.BoolFlag{Name: "cross-repo-only", Usage: "retain only cross-root groups/pairs (requires >= 2 roots)"},
		&cli.BoolFlag{Name: "stats", Usage: "print scan accounting to stderr"},
		&cli.BoolFlag{Name: "strict", Usage: "fail if the scan stopped short of covering every candidate"},
		&cli.StringFlag{Name: "format", Value: "text", Usage: "output format: text, json, or github"},
		&cli.IntFlag{Name: "top", Value: 20, Usage: "hotspot/annotation count for text and github formats"},
	}
}

// optionsFromContext builds a dupscan.Options from the config-file overlay
// plus every explicitly-set CLI flag, in that precedence order.
func optionsFromContext(c *cli.Context) dupscan.Options {
	base := dupscan.DefaultOptions()
	if path := c.String("config"); path != "" {
		if cfg, err := dupconfig.Load(path); err == nil {
			base = cfg.Overlay(base)
		}
	} else {
		base = dupconfig.LoadOrDefault(base)
	}

	if c.IsSet("ignore-dir") {
		base.IgnoreDirs = append(base.IgnoreDirs, c.StringSlice("ignore-dir")...)
	}
	if c.IsSet("respect-gitignore") {
		base.RespectGitignore = c.Bool("respect-gitignore")
	}
	if c.IsSet("follow-symlinks") {
		base.FollowSymlinks = c.Bool("follow-symlinks")
	}
	if c.IsSet("max-file-size") {
		base.MaxFileSize = c.Int64("max-file-size")
	}
	if c.IsSet("max-files") {
		base.MaxFiles = c.Int64("max-files")
	}
	if c.IsSet("max-total-bytes") {
		base.SetMaxTotalBytes(c.Int64("max-total-bytes"))
	}
	if c.IsSet("max-normalized-chars") {
		base.SetMaxNormalizedChars(c.Int64("max-normalized-chars"))
	}
	if c.IsSet("max-tokens") {
		base.SetMaxTokens(c.Int64("max-tokens"))
	}
	if c.IsSet("min-match-len") {
		base.MinMatchLen = c.Int("min-match-len")
	}
	if c.IsSet("min-token-len") {
		base.MinTokenLen = c.Int("min-token-len")
	}
	if c.IsSet("similarity-threshold") {
		base.SimilarityThreshold = c.Float64("similarity-threshold")
	}
	if c.IsSet("simhash-max-distance") {
		base.SimHashMaxDistance = c.Int("simhash-max-distance")
	}
	if c.IsSet("max-report-items") {
		base.MaxReportItems = c.Int("max-report-items")
	}
	if c.IsSet("cross-repo-only") {
		base.CrossRepoOnly = c.Bool("cross-repo-only")
	}
	return base
}

// withCancel wires SIGINT/SIGTERM into the context the entry points check
// at file boundaries, so an interactive scan can be aborted cleanly.
func withCancel() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// afterScan logs the strict-completeness summary through the process
// logger and, if strict was requested, converts an incomplete scan into
// an error rather than letting the caller consume a partial result.
func afterScan(logger *zap.Logger, scanID string, snap dupscan.Snapshot, strict bool) error {
	logger.Info("scan complete", dlog.ScanField(scanID), zap.String("summary", snap.Summary()),
		zap.Int64("scannedFiles", snap.ScannedFiles), zap.Int64("scannedBytes", snap.ScannedBytes))
	if strict {
		return dupscan.EnforceStrict(snap)
	}
	return nil
}

func printStats(snap dupscan.Snapshot) {
	fmt.Fprintf(os.Stderr, "candidates=%d scanned=%d bytes=%d gitFastPathFallbacks=%d\n",
		snap.CandidateFiles, snap.ScannedFiles, snap.ScannedBytes, snap.GitFastPathFallbacks)
	fmt.Fprintf(os.Stderr, "%s\n", snap.Summary())
}

func filesCmd() *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "detect whole-file duplicates",
		Flags: append([]cli.Flag{rootFlag()}, scanTuningFlags()...),
		Action: func(c *cli.Context) error {
			return runSingleSection(c, "file", func(ctx context.Context, roots []string, opts dupscan.Options) ([]dupscan.Group, dupscan.Snapshot, error) {
				return dupscan.FindDuplicateFilesWithStats(ctx, roots, opts)
			})
		},
	}
}

func spansCmd() *cli.Command {
	return &cli.Command{
		Name:  "spans",
		Usage: "detect duplicate code spans within and across files",
		Flags: append([]cli.Flag{rootFlag()}, scanTuningFlags()...),
		Action: func(c *cli.Context) error {
			return runSingleSection(c, "codeSpan", func(ctx context.Context, roots []string, opts dupscan.Options) ([]dupscan.Group, dupscan.Snapshot, error) {
				return dupscan.FindDuplicateCodeSpansWithStats(ctx, roots, opts)
			})
		},
	}
}

func runSingleSection(c *cli.Context, section string, run func(context.Context, []string, dupscan.Options) ([]dupscan.Group, dupscan.Snapshot, error)) error {
	logger, err := dlog.New(c.Bool("verbose"))
	if err != nil {
		return err
	}
	defer logger.Sync()
	scanID := dlog.NewScanID()

	opts := optionsFromContext(c)
	roots := c.StringSlice("root")
	ctx, cancel := withCancel()
	defer cancel()

	sp := progress.NewSpinner("scanning")
	sp.Start()
	groups, snap, err := run(ctx, roots, opts)
	sp.Stop()
	if err != nil {
		return err
	}
	if err := afterScan(logger, scanID, snap, c.Bool("strict")); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("stats") {
		printStats(snap)
	}

	rep := dupscan.DuplicationReport{}
	switch section {
	case "file":
		rep.FileDuplicates = groups
	case "codeSpan":
		rep.CodeSpanDuplicates = groups
	}

	return writeReport(c, rep)
}

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "run every detector and produce a full duplication report",
		Flags: append([]cli.Flag{rootFlag()}, scanTuningFlags()...),
		Action: func(c *cli.Context) error {
			logger, err := dlog.New(c.Bool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			scanID := dlog.NewScanID()

			opts := optionsFromContext(c)
			roots := c.StringSlice("root")
			ctx, cancel := withCancel()
			defer cancel()

			sp := progress.NewSpinner("scanning")
			sp.Start()
			rep, snap, err := dupscan.GenerateReportWithStats(ctx, roots, opts)
			sp.Stop()
			if err != nil {
				return err
			}
			if err := afterScan(logger, scanID, snap, c.Bool("strict")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if c.Bool("stats") {
				printStats(snap)
			}

			return writeReport(c, rep)
		},
	}
}

// sectionedGroups pairs each report section's name with its groups, in the
// same order present.allGroups would enumerate them.
func sectionedGroups(rep dupscan.DuplicationReport) []struct {
	name   string
	groups []dupscan.Group
} {
	return []struct {
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
}

// findGroup locates the group carrying the given hash, optionally
// restricted to one section, across a full report's sections.
func findGroup(rep dupscan.DuplicationReport, hash, section string) (dupscan.Group, string, bool) {
	for _, s := range sectionedGroups(rep) {
		if section != "" && s.name != section {
			continue
		}
		for _, g := range s.groups {
			if g.Hash == hash {
				return g, s.name, true
			}
		}
	}
	return dupscan.Group{}, "", false
}

func detailCmd() *cli.Command {
	return &cli.Command{
		Name:      "detail",
		Usage:     "render one duplicate group's occurrences as markdown",
		ArgsUsage: "GROUP_HASH",
		Flags: append([]cli.Flag{
			rootFlag(),
			&cli.StringFlag{Name: "section", Usage: "restrict the search to one report section (file, codeSpan, lineSpan, tokenSpan, block, astSubtree)"},
		}, scanTuningFlags()...),
		Action: func(c *cli.Context) error {
			hash := c.Args().First()
			if hash == "" {
				return cli.Exit("detail requires a group hash argument", 2)
			}

			logger, err := dlog.New(c.Bool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()
			scanID := dlog.NewScanID()

			roots := c.StringSlice("root")
			resolved, err := dupscan.ResolveRoots(roots)
			if err != nil {
				return err
			}
			labelToPath := make(map[string]string, len(resolved))
			for _, r := range resolved {
				labelToPath[r.Label] = r.Path
			}

			opts := optionsFromContext(c)
			ctx, cancel := withCancel()
			defer cancel()

			sp := progress.NewSpinner("scanning")
			sp.Start()
			rep, snap, err := dupscan.GenerateReportWithStats(ctx, roots, opts)
			sp.Stop()
			if err != nil {
				return err
			}
			if err := afterScan(logger, scanID, snap, c.Bool("strict")); err != nil {
				return cli.Exit(err.Error(), 1)
			}

			g, section, ok := findGroup(rep, hash, c.String("section"))
			if !ok {
				return cli.Exit(fmt.Sprintf("no group with hash %q found", hash), 1)
			}

			markdown := present.DetailMarkdown(g, section, func(occ dupscan.Occurrence) (string, error) {
				root, ok := labelToPath[occ.RootLabel]
				if !ok {
					return "", fmt.Errorf("unknown root label %q", occ.RootLabel)
				}
				return readOccurrenceLines(filepath.Join(root, filepath.FromSlash(occ.RelativePath)), occ.StartLine, occ.EndLine)
			})
			return present.RenderDetail(os.Stdout, markdown)
		},
	}
}

// readOccurrenceLines reads path and returns the 1-indexed [start, end]
// line range, inclusive, as source for a rendered occurrence snippet.
func readOccurrenceLines(path string, start, end int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(content), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", fmt.Errorf("empty line range [%d,%d] in %s", start, end, path)
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

func compareCmd() *cli.Command {
	return &cli.Command{
		Name:      "compare",
		Usage:     "diff duplication between two git refs (format: base..head)",
		ArgsUsage: "BASE..HEAD",
		Flags:     scanTuningFlags(),
		Action: func(c *cli.Context) error {
			baseRef, headRef, err := parseCompareRefs(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			logger, err := dlog.New(c.Bool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := optionsFromContext(c)
			ctx, cancel := withCancel()
			defer cancel()

			sp := progress.NewSpinner("comparing")
			sp.Start()
			result, err := gitcompare.Compare(ctx, baseRef, headRef, opts)
			sp.Stop()
			if err != nil {
				return err
			}

			if c.String("format") == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			printCompareResult(result)
			return nil
		},
	}
}

// parseCompareRefs splits a "base..head" argument into its two refs.
func parseCompareRefs(arg string) (base, head string, err error) {
	parts := strings.SplitN(arg, "..", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("compare requires an argument of the form BASE..HEAD, got %q", arg)
	}
	return parts[0], parts[1], nil
}

func printCompareResult(result gitcompare.Result) {
	fmt.Printf("Comparing duplication: %s -> %s\n\n", result.BaseRef, result.HeadRef)
	if len(result.Deltas) == 0 {
		fmt.Println("No change in duplication between the two refs.")
		return
	}

	var removed, introduced, lingering int
	for _, d := range result.Deltas {
		switch {
		case d.Removed():
			removed++
		case d.Introduced():
			introduced++
		case d.Lingering():
			lingering++
		}
	}
	fmt.Printf("%d removed, %d introduced, %d lingering\n\n", removed, introduced, lingering)

	for _, d := range result.Deltas {
		if !d.Lingering() {
			continue
		}
		fmt.Printf("[%s] %s: %d -> %d occurrences, potentially incomplete refactoring\n", d.Hash, d.Section, d.BaseCount, d.HeadCount)
		for _, occ := range d.HeadOccurrences {
			fmt.Printf("  %s:%s:%d\n", occ.RootLabel, occ.RelativePath, occ.StartLine)
		}
	}
}

func writeReport(c *cli.Context, rep dupscan.DuplicationReport) error {
	switch c.String("format") {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "github":
		present.GitHubAnnotations(os.Stdout, rep, c.Int("top"), "warning")
		return nil
	default:
		present.Summary(os.Stdout, present.DefaultTheme, rep)
		present.Hotspots(os.Stdout, present.DefaultTheme, rep, c.Int("top"))
		return nil
	}
}
