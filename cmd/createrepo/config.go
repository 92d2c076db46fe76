package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rpmrepo/repomd"
)

// config holds every flag in spec.md §6's CLI surface, plus the
// "domain expansion" --config file and --workers/--cachedir knobs
// SPEC_FULL.md §6 adds.
type config struct {
	RepoDir string

	BaseURL        string
	OutputDir      string
	Excludes       stringList
	Pkglist        string
	IncludePkg     stringList
	Quiet          bool
	Verbose        bool
	Update         bool
	UpdateMDPath   string
	SkipStat       bool
	SkipSymlinks   bool
	Checksum       string
	ChangelogLimit int
	UniqueMD       bool
	Workers        int
	CacheDir       string
	IgnoreLock     bool
	LocationPrefix string
	CutDirs        int
}

// stringList implements [flag.Value] for a repeatable flag
// (--excludes, --includepkg may each be given more than once).
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// maxWorkers bounds --workers to a sane upper limit (spec.md §5:
// "configurable 1-∞ but validated to a sane upper bound").
const maxWorkers = 256

const defaultWorkers = 5

// fileConfig is the shape --config's JSON file is decoded into; flags
// always override whatever it supplies (SPEC_FULL.md §6's "domain
// expansion" config file note).
type fileConfig struct {
	BaseURL        *string `json:"baseurl"`
	OutputDir      *string `json:"outputdir"`
	Checksum       *string `json:"checksum"`
	ChangelogLimit *int    `json:"changelog_limit"`
	Workers        *int    `json:"workers"`
	CacheDir       *string `json:"cachedir"`
	SkipStat       *bool   `json:"skip_stat"`
	SkipSymlinks   *bool   `json:"skip_symlinks"`
	SimpleMD       *bool   `json:"simple_md_filenames"`
	LocationPrefix *string `json:"location_prefix"`
	CutDirs        *int    `json:"cut_dirs"`
}

// applyFileConfig merges path's JSON config into cfg, skipping any field
// whose flag was given explicitly on the command line (tracked in `set`,
// populated from [flag.FlagSet.Visit] -- which only visits flags actually
// passed, regardless of their registered default). Without that check,
// flags default to the same "zero-ish" values a config file would want to
// override (e.g. --workers defaults to 5, --checksum to "sha256"), so a
// plain presence-in-cfg test could never distinguish "the user asked for
// this" from "nobody set this, flag fell back to its default".
func applyFileConfig(cfg *config, path string, set map[string]bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &repomd.Error{Op: "config", Kind: repomd.BadArg, Inner: err}
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return &repomd.Error{Op: "config", Kind: repomd.BadArg, Message: "parsing --config", Inner: err}
	}
	if fc.BaseURL != nil && !set["baseurl"] {
		cfg.BaseURL = *fc.BaseURL
	}
	if fc.OutputDir != nil && !set["outputdir"] {
		cfg.OutputDir = *fc.OutputDir
	}
	if fc.Checksum != nil && !set["checksum"] {
		cfg.Checksum = *fc.Checksum
	}
	if fc.ChangelogLimit != nil && !set["changelog-limit"] {
		cfg.ChangelogLimit = *fc.ChangelogLimit
	}
	if fc.Workers != nil && !set["workers"] {
		cfg.Workers = *fc.Workers
	}
	if fc.CacheDir != nil && !set["cachedir"] {
		cfg.CacheDir = *fc.CacheDir
	}
	if fc.SkipStat != nil && !set["skip-stat"] {
		cfg.SkipStat = *fc.SkipStat
	}
	if fc.SkipSymlinks != nil && !set["skip-symlinks"] {
		cfg.SkipSymlinks = *fc.SkipSymlinks
	}
	if fc.SimpleMD != nil && *fc.SimpleMD && !set["unique-md-filenames"] && !set["simple-md-filenames"] {
		cfg.UniqueMD = false
	}
	if fc.LocationPrefix != nil && !set["location-prefix"] {
		cfg.LocationPrefix = *fc.LocationPrefix
	}
	if fc.CutDirs != nil && !set["cut-dirs"] {
		cfg.CutDirs = *fc.CutDirs
	}
	return nil
}

// parseArgs builds a config from argv. An optional --config file is merged
// in after flag parsing; any flag the user actually passed takes precedence
// over the same setting in the file.
func parseArgs(args []string) (*config, error) {
	cfg := &config{
		Checksum:       repomd.DefaultAlgorithm,
		ChangelogLimit: -1,
		Workers:        defaultWorkers,
		UniqueMD:       true,
	}

	fs := flag.NewFlagSet("createrepo", flag.ContinueOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s [flags] <directory>\n\n", os.Args[0])
		fs.PrintDefaults()
	}

	var configPath string
	var simple bool
	fs.StringVar(&configPath, "config", "", "load defaults from a JSON config file")
	fs.StringVar(&cfg.BaseURL, "baseurl", "", "base URL for package locations")
	fs.StringVar(&cfg.OutputDir, "outputdir", "", "output directory (default: the repo directory)")
	fs.Var(&cfg.Excludes, "excludes", "glob pattern to exclude (repeatable)")
	fs.StringVar(&cfg.Pkglist, "pkglist", "", "file listing package paths, one per line")
	fs.Var(&cfg.IncludePkg, "includepkg", "glob pattern to include (repeatable)")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "suppress informational output")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "verbose logging")
	fs.BoolVar(&cfg.Update, "update", false, "reuse unchanged packages from existing metadata")
	fs.StringVar(&cfg.UpdateMDPath, "update-md-path", "", "path to existing metadata to update from (default: outputdir)")
	fs.BoolVar(&cfg.SkipStat, "skip-stat", false, "skip the mtime/size/checksum-type staleness test on update")
	fs.BoolVar(&cfg.SkipSymlinks, "skip-symlinks", false, "ignore symlinks found while discovering packages")
	fs.StringVar(&cfg.Checksum, "checksum", repomd.DefaultAlgorithm, "checksum type: sha256, sha1, or md5")
	fs.IntVar(&cfg.ChangelogLimit, "changelog-limit", -1, "maximum changelog entries per package (-1: unlimited)")
	fs.BoolVar(&cfg.UniqueMD, "unique-md-filenames", true, "prefix metadata filenames with their checksum")
	fs.BoolVar(&simple, "simple-md-filenames", false, "omit the checksum prefix from metadata filenames")
	fs.IntVar(&cfg.Workers, "workers", defaultWorkers, "number of parallel package workers")
	fs.StringVar(&cfg.CacheDir, "cachedir", "", "checksum cache directory")
	fs.BoolVar(&cfg.IgnoreLock, "ignore-lock", false, "remove a stale .repodata lock directory and proceed")
	fs.StringVar(&cfg.LocationPrefix, "location-prefix", "", "string prepended to every location_href")
	fs.IntVar(&cfg.CutDirs, "cut-dirs", 0, "number of leading path components to strip from location_href")

	if err := fs.Parse(args); err != nil {
		return nil, &repomd.Error{Op: "config", Kind: repomd.BadArg, Inner: err}
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if configPath != "" {
		if err := applyFileConfig(cfg, configPath, set); err != nil {
			return nil, err
		}
	}
	if simple {
		cfg.UniqueMD = false
	}

	if fs.NArg() < 1 {
		return nil, &repomd.Error{Op: "config", Kind: repomd.BadArg, Message: "missing repository directory argument"}
	}
	cfg.RepoDir = fs.Arg(0)
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.RepoDir
	}
	if cfg.UpdateMDPath == "" {
		cfg.UpdateMDPath = cfg.OutputDir
	}

	return cfg, cfg.validate()
}

// validate applies spec.md §7's BadArg checks: bad checksum type, workers
// out of range, missing output dir.
func (c *config) validate() error {
	algo, err := repomd.ParseAlgorithm(c.Checksum)
	if err != nil {
		return err
	}
	c.Checksum = algo

	if c.Workers < 1 || c.Workers > maxWorkers {
		return &repomd.Error{Op: "config", Kind: repomd.BadArg, Message: fmt.Sprintf("workers must be between 1 and %d, got %d", maxWorkers, c.Workers)}
	}
	if c.OutputDir == "" {
		return &repomd.Error{Op: "config", Kind: repomd.BadArg, Message: "output directory must not be empty"}
	}
	return nil
}
