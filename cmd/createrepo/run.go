package main

import (
	"bufio"
	"context"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/checksum"
	"github.com/rpmrepo/repomd/internal/compressio"
	"github.com/rpmrepo/repomd/internal/discover"
	"github.com/rpmrepo/repomd/internal/oldmeta"
	"github.com/rpmrepo/repomd/internal/pool"
	"github.com/rpmrepo/repomd/internal/xmlfmt"
)

// compressKind is the stream compression format this driver writes.
// createrepo's own historical default is gzip; no --compress-type flag
// appears in spec.md §6's "relevant flags only" list, so it isn't exposed
// here.
const compressKind = compressio.KindGzip

var tracer = otel.Tracer("github.com/rpmrepo/repomd/cmd/createrepo")

// run is the driver: it owns discovery, the lock directory, the three
// output streams, the pool, and repomd.xml assembly (spec.md §2's data
// flow, SPEC_FULL.md §4.5's "domain expansion" outer document assembly).
func run(ctx context.Context, cfg *config, log *slog.Logger) error {
	ctx, span := tracer.Start(ctx, "createrepo.run")
	defer span.End()
	defer trace.StartRegion(ctx, "createrepo.run").End()

	files, err := discoverFiles(cfg)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "discovered packages", "count", len(files))

	lockDir := filepath.Join(cfg.OutputDir, ".repodata")
	workDir, err := acquireLock(lockDir, cfg.IgnoreLock)
	if err != nil {
		return err
	}
	cleanedUp := false
	defer func() {
		if cleanedUp {
			return
		}
		os.RemoveAll(lockDir)
		if workDir != lockDir {
			os.RemoveAll(workDir)
		}
	}()

	var (
		cache       *oldmeta.Cache
		oldmetaWarn []error
	)
	if cfg.Update {
		cache, oldmetaWarn, err = loadOldMetadata(cfg.UpdateMDPath)
		if err != nil {
			log.WarnContext(ctx, "could not load existing metadata; treating run as a cold run", "error", err)
		}
		for _, w := range oldmetaWarn {
			log.WarnContext(ctx, "old-metadata parse warning", "error", w)
		}
	}

	streams, err := openStreams(workDir, cfg.Checksum)
	if err != nil {
		return &repomd.Error{Op: "run", Kind: repomd.IO, Inner: err}
	}

	n := len(files)
	for _, s := range streams {
		io.WriteString(s.counting, xmlfmt.OpenTag(s.kind, n))
	}

	emitter := pool.NewEmitter(writersOf(streams), uint64(n))

	var update *pool.UpdateEngine
	if cfg.Update {
		update = pool.NewUpdateEngine(cache, cfg.SkipStat, cfg.Checksum)
	}

	chkEngine := &checksum.Engine{Algorithm: cfg.Checksum, CacheDir: cfg.CacheDir}

	dups := pool.NewDupTable()
	pcfg := pool.Config{
		BaseURL:        cfg.BaseURL,
		LocationPrefix: cfg.LocationPrefix,
		CutDirs:        cfg.CutDirs,
		ChecksumType:   cfg.Checksum,
		ChangelogLimit: cfg.ChangelogLimit,
		SkipSymlinks:   cfg.SkipSymlinks,
		LoadSignatures: cfg.CacheDir != "",
	}
	p := pool.New(pcfg, emitter, update, chkEngine, dups)

	tasks := make([]pool.Task, n)
	for i, f := range files {
		tasks[i] = pool.Task{ID: uint64(i), FullPath: f.FullPath, RelativePath: f.RelativePath}
	}

	warnings, runErr := p.Run(ctx, tasks, cfg.Workers)
	for _, w := range warnings {
		log.WarnContext(ctx, w)
	}
	for _, w := range dups.Warnings() {
		log.WarnContext(ctx, w)
	}
	if runErr != nil {
		closeStreamsAbort(streams)
		return &repomd.Error{Op: "run", Kind: repomd.IO, Message: "pool run did not complete", Inner: runErr}
	}

	for _, s := range streams {
		io.WriteString(s.counting, xmlfmt.CloseTag(s.kind))
	}
	records, err := finalizeStreams(streams, cfg)
	if err != nil {
		return err
	}

	repomdBytes, err := xmlfmt.Repomd(records, time.Now().Unix())
	if err != nil {
		return &repomd.Error{Op: "run", Kind: repomd.IO, Inner: err}
	}
	if err := os.WriteFile(filepath.Join(workDir, "repomd.xml"), repomdBytes, 0o644); err != nil {
		return &repomd.Error{Op: "run", Kind: repomd.IO, Inner: err}
	}

	finalDir := filepath.Join(cfg.OutputDir, "repodata")
	if err := os.RemoveAll(finalDir); err != nil {
		return &repomd.Error{Op: "run", Kind: repomd.IO, Message: "removing previous repodata", Inner: err}
	}
	if err := os.Rename(workDir, finalDir); err != nil {
		return &repomd.Error{Op: "run", Kind: repomd.IO, Message: "publishing repodata atomically", Inner: err}
	}
	if workDir != lockDir {
		os.RemoveAll(lockDir)
	}
	cleanedUp = true // workDir was renamed away and lockDir removed; nothing left for the deferred cleanup.

	m := pool.Metrics{}
	log.InfoContext(ctx, "repository metadata written",
		"outputdir", cfg.OutputDir,
		"packages", n,
		"cache_hits", m.CacheHits(),
		"cache_misses", m.CacheMisses(),
		"task_errors", m.TaskErrors(),
	)
	return nil
}

// discoverFiles resolves spec.md §6's input-discovery rules: either an
// explicit --pkglist, or a recursive directory scan honoring
// --excludes/--includepkg.
func discoverFiles(cfg *config) ([]discover.File, error) {
	filter := discover.Filter{
		Excludes: cfg.Excludes,
		Includes: cfg.IncludePkg,
	}
	if cfg.Pkglist != "" {
		lines, err := readLines(cfg.Pkglist)
		if err != nil {
			return nil, &repomd.Error{Op: "discover", Kind: repomd.IO, Inner: err}
		}
		filter.Allowlist = lines
	}
	files, err := discover.Walk(cfg.RepoDir, filter)
	if err != nil {
		return nil, &repomd.Error{Op: "discover", Kind: repomd.IO, Inner: err}
	}
	return files, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// acquireLock implements spec.md §7's Lock error kind: the presence of
// lockDir means another run is in progress. It returns the directory the
// driver should actually write its working files into -- normally lockDir
// itself, but per spec.md §7's "--ignore-lock... a separate staging dir
// is used", a sibling directory when a stale lock had to be forcibly
// cleared (so a crashed process's half-written files in what was
// .repodata never get mixed into this run's output).
func acquireLock(lockDir string, ignoreLock bool) (workDir string, err error) {
	if err := os.Mkdir(lockDir, 0o755); err == nil {
		return lockDir, nil
	} else if !os.IsExist(err) {
		return "", &repomd.Error{Op: "acquireLock", Kind: repomd.IO, Inner: err}
	} else if !ignoreLock {
		return "", &repomd.Error{Op: "acquireLock", Kind: repomd.Lock, Message: lockDir + " already exists"}
	}

	if err := os.RemoveAll(lockDir); err != nil {
		return "", &repomd.Error{Op: "acquireLock", Kind: repomd.IO, Message: "removing stale lock dir", Inner: err}
	}
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		return "", &repomd.Error{Op: "acquireLock", Kind: repomd.IO, Inner: err}
	}

	staging := lockDir + "-staging"
	if err := os.RemoveAll(staging); err != nil {
		return "", &repomd.Error{Op: "acquireLock", Kind: repomd.IO, Message: "clearing staging dir", Inner: err}
	}
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", &repomd.Error{Op: "acquireLock", Kind: repomd.IO, Inner: err}
	}
	return staging, nil
}

// loadOldMetadata reads path's repomd.xml and opens the primary/filelists/
// other streams it references, decompressing by magic, then builds the
// keyed [oldmeta.Cache] spec.md §4.3 describes.
func loadOldMetadata(path string) (*oldmeta.Cache, []error, error) {
	manifest, err := os.ReadFile(filepath.Join(path, "repodata", "repomd.xml"))
	if err != nil {
		return nil, nil, &repomd.Error{Op: "loadOldMetadata", Kind: repomd.IO, Inner: err}
	}
	records, _, err := xmlfmt.ParseRepomd(manifest)
	if err != nil {
		return nil, nil, &repomd.Error{Op: "loadOldMetadata", Kind: repomd.BadXml, Inner: err}
	}

	var src oldmeta.Sources
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for _, r := range records {
		rc, err := openCompressed(filepath.Join(path, "repodata", filepath.Base(r.LocationHref)))
		if err != nil {
			continue // a missing sibling stream just means that stream isn't reused.
		}
		closers = append(closers, rc)
		switch r.Type {
		case "primary":
			src.Primary = rc
		case "filelists":
			src.Filelists = rc
		case "other":
			src.Other = rc
		}
	}

	return oldmeta.Load(src)
}

// openCompressed opens path and wraps it in a decompressing reader chosen
// by magic-byte detection (internal/compressio.Detect).
func openCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	peek, _ := br.Peek(8)
	kind := compressio.Detect(peek)
	rc, err := compressio.NewReader(kind, br)
	if err != nil {
		f.Close()
		return nil, err
	}
	return multiCloser{rc, f}, nil
}

type multiCloser struct {
	io.ReadCloser
	under io.Closer
}

func (m multiCloser) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.under.Close(); err == nil {
		err = cerr
	}
	return err
}

// streamWriter is one output stream's temp-file chain: file -> compressor
// -> hashing counting writer (spec.md §4.5's "domain expansion" outer
// document assembly note).
type streamWriter struct {
	kind     xmlfmt.Stream
	tmpName  string
	file     *os.File
	comp     io.WriteCloser
	hasher   hash.Hash
	counting *compressio.CountingWriter
}

var streamNames = [...]string{"primary", "filelists", "other"}

func openStreams(lockDir string, algo string) ([]*streamWriter, error) {
	out := make([]*streamWriter, 3)
	kinds := [...]xmlfmt.Stream{xmlfmt.StreamPrimary, xmlfmt.StreamFilelists, xmlfmt.StreamOther}
	for i, name := range streamNames {
		tmpName := filepath.Join(lockDir, name+".xml"+compressKind.Ext())
		f, err := os.Create(tmpName)
		if err != nil {
			return nil, err
		}
		comp, err := compressio.NewWriter(compressKind, f)
		if err != nil {
			f.Close()
			return nil, err
		}
		h, err := repomd.NewHash(algo)
		if err != nil {
			f.Close()
			return nil, err
		}
		counting := &compressio.CountingWriter{W: io.MultiWriter(comp, h)}
		out[i] = &streamWriter{kind: kinds[i], tmpName: tmpName, file: f, comp: comp, hasher: h, counting: counting}
	}
	return out, nil
}

func writersOf(streams []*streamWriter) []io.Writer {
	out := make([]io.Writer, len(streams))
	for i, s := range streams {
		out[i] = s.counting
	}
	return out
}

func closeStreamsAbort(streams []*streamWriter) {
	for _, s := range streams {
		s.comp.Close()
		s.file.Close()
	}
}

// finalizeStreams closes each stream's compressor/file, computes its final
// digest and (for unique_md_filenames) renames it into its
// checksum-prefixed final name, then returns the [repomd.RepomdRecord]
// slice repomd.xml is built from.
func finalizeStreams(streams []*streamWriter, cfg *config) ([]repomd.RepomdRecord, error) {
	now := time.Now().Unix()
	out := make([]repomd.RepomdRecord, 0, len(streams))
	for _, s := range streams {
		if err := s.comp.Close(); err != nil {
			return nil, &repomd.Error{Op: "finalizeStreams", Kind: repomd.IO, Inner: err}
		}
		if err := s.file.Close(); err != nil {
			return nil, &repomd.Error{Op: "finalizeStreams", Kind: repomd.IO, Inner: err}
		}

		digest, err := repomd.DigestFile(cfg.Checksum, s.tmpName)
		if err != nil {
			return nil, err
		}
		openDigest, err := repomd.NewDigest(cfg.Checksum, s.hasher.Sum(nil))
		if err != nil {
			return nil, err
		}

		finalName := streamNames[s.kind] + ".xml" + compressKind.Ext()
		if cfg.UniqueMD {
			finalName = fmt.Sprintf("%x-%s", digest.Checksum(), finalName)
		}
		finalPath := filepath.Join(filepath.Dir(s.tmpName), finalName)
		if err := os.Rename(s.tmpName, finalPath); err != nil {
			return nil, &repomd.Error{Op: "finalizeStreams", Kind: repomd.IO, Inner: err}
		}

		fi, err := os.Stat(finalPath)
		if err != nil {
			return nil, &repomd.Error{Op: "finalizeStreams", Kind: repomd.IO, Inner: err}
		}

		out = append(out, repomd.RepomdRecord{
			Type:             streamTypeName(s.kind),
			LocationHref:     "repodata/" + finalName,
			Checksum:         fmt.Sprintf("%x", digest.Checksum()),
			ChecksumType:     cfg.Checksum,
			OpenChecksum:     fmt.Sprintf("%x", openDigest.Checksum()),
			OpenChecksumType: cfg.Checksum,
			Size:             fi.Size(),
			SizeOpen:         s.counting.N,
			Timestamp:        now,
		})
	}
	return out, nil
}

func streamTypeName(k xmlfmt.Stream) string {
	switch k {
	case xmlfmt.StreamFilelists:
		return "filelists"
	case xmlfmt.StreamOther:
		return "other"
	default:
		return "primary"
	}
}
