// Package dupconfig loads an optional configuration overlay for
// cmd/dupsentry and produces a populated dupscan.Options: a koanf
// parser-by-extension dispatch, a search-standard-locations LoadOrDefault
// helper, and a config struct that mirrors the domain options one field
// at a time via koanf tags. The core itself never reads a config file or
// an environment variable; only this ambient package and cmd/dupsentry do.
package dupconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/asynkron/dupsentry/dupscan"
)

// Config is the on-disk shape of a dupsentry config file. Every field
// mirrors a dupscan.Options field one-to-one; Overlay applies only the
// fields the file actually set; leaving everything else at whatever the
// caller passed in (usually dupscan.DefaultOptions()).
type Config struct {
	IgnoreDirs          []string `koanf:"ignore_dirs"`
	RespectGitignore    *bool    `koanf:"respect_gitignore"`
	FollowSymlinks      *bool    `koanf:"follow_symlinks"`
	MaxFileSize         *int64   `koanf:"max_file_size"`
	MaxFiles            *int64   `koanf:"max_files"`
	MaxTotalBytes       *int64   `koanf:"max_total_bytes"`
	MaxNormalizedChars  *int64   `koanf:"max_normalized_chars"`
	MaxTokens           *int64   `koanf:"max_tokens"`
	MinMatchLen         *int     `koanf:"min_match_len"`
	MinTokenLen         *int     `koanf:"min_token_len"`
	SimilarityThreshold *float64 `koanf:"similarity_threshold"`
	SimHashMaxDistance  *int     `koanf:"simhash_max_distance"`
	MaxReportItems      *int     `koanf:"max_report_items"`
	CrossRepoOnly       *bool    `koanf:"cross_repo_only"`
}

// candidateNames are the file names LoadOrDefault searches for, in order,
// pairing a dotted and undotted form per extension.
var candidateNames = []string{
	".dupsentry.yaml", ".dupsentry.yml", ".dupsentry.toml", ".dupsentry.json",
	"dupsentry.yaml", "dupsentry.yml", "dupsentry.toml", "dupsentry.json",
}

// searchDirs returns the standard search order: the working directory,
// then the user's XDG config home.
func searchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "dupsentry"))
	}
	return dirs
}

// LoadOrDefault searches the standard locations for a config file and
// overlays the first one that parses onto base; a file that fails to parse
// is skipped in favor of the next candidate, and if none parses, base is
// returned unchanged.
func LoadOrDefault(base dupscan.Options) dupscan.Options {
	for _, dir := range searchDirs() {
		for _, name := range candidateNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if cfg, err := Load(path); err == nil {
				return cfg.Overlay(base)
			}
		}
	}
	return base
}

// Load parses path with the parser selected by its extension.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	var cfg Config
	if err := k.Load(file.Provider(path), parser); err != nil {
		return Config{}, err
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Overlay applies every field this Config set onto base and returns the
// result, leaving base's own values for anything the file left unset.
func (c Config) Overlay(base dupscan.Options) dupscan.Options {
	if c.IgnoreDirs != nil {
		base.IgnoreDirs = c.IgnoreDirs
	}
	if c.RespectGitignore != nil {
		base.RespectGitignore = *c.RespectGitignore
	}
	if c.FollowSymlinks != nil {
		base.FollowSymlinks = *c.FollowSymlinks
	}
	if c.MaxFileSize != nil {
		base.MaxFileSize = *c.MaxFileSize
	}
	if c.MaxFiles != nil {
		base.MaxFiles = *c.MaxFiles
	}
	if c.MaxTotalBytes != nil {
		base.SetMaxTotalBytes(*c.MaxTotalBytes)
	}
	if c.MaxNormalizedChars != nil {
		base.SetMaxNormalizedChars(*c.MaxNormalizedChars)
	}
	if c.MaxTokens != nil {
		base.SetMaxTokens(*c.MaxTokens)
	}
	if c.MinMatchLen != nil {
		base.MinMatchLen = *c.MinMatchLen
	}
	if c.MinTokenLen != nil {
		base.MinTokenLen = *c.MinTokenLen
	}
	if c.SimilarityThreshold != nil {
		base.SimilarityThreshold = *c.SimilarityThreshold
	}
	if c.SimHashMaxDistance != nil {
		base.SimHashMaxDistance = *c.SimHashMaxDistance
	}
	if c.MaxReportItems != nil {
		base.MaxReportItems = *c.MaxReportItems
	}
	if c.CrossRepoOnly != nil {
		base.CrossRepoOnly = *c.CrossRepoOnly
	}
	return base
}
