// Package pool implements the dumper pool: a bounded set of worker
// goroutines that turn RPM files into Package records and XML fragments,
// an ordered-output serializer that writes those fragments to the three
// metadata streams in submission order regardless of which worker finishes
// first, an incremental-update engine that lets a worker reuse prior XML
// instead of reparsing an RPM header, and a NEVRA table that flags
// duplicate packages across a run.
package pool

import (
	"context"
	"fmt"
	"os"
	"path"
	"runtime/trace"
	"strings"
	"sync"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/checksum"
	"github.com/rpmrepo/repomd/internal/oldmeta"
	"github.com/rpmrepo/repomd/internal/rpmpkg"
	"github.com/rpmrepo/repomd/internal/xmlfmt"
)

// Task is one RPM file queued for processing. ID is the task's position in
// submission order -- the identity the [Emitter] and [UpdateEngine] key on
// -- and must be dense, starting at zero, with no gaps.
type Task struct {
	ID           uint64
	FullPath     string
	RelativePath string // path under the repo root, used to derive location_href.
	MediaID      string // non-empty for multi-disc sets; used to derive location_base.
}

// Config holds the per-run settings a worker needs to turn a Task into a
// Package and locate it correctly in the tree.
type Config struct {
	BaseURL        string // --baseurl; empty means "none supplied".
	LocationPrefix string // --location-prefix, prepended after cut-dirs.
	CutDirs        int    // path components stripped from the front of RelativePath.
	ChecksumType   string
	ChangelogLimit int // passed through to internal/xmlfmt.Other.
	SkipSymlinks   bool
	LoadSignatures bool // mirrors whether a checksum cache directory is configured.
}

// Pool ties the dumper worker loop to its collaborators: the ordered
// serializer, the incremental-update engine, the checksum engine, and the
// duplicate-NEVRA table.
//
// Grounded on internal/indexer/layerscanner/layerscanner.go's
// concurrency-token-channel pattern (a buffered channel sized to the
// configured worker count gates how many goroutines run at once) combined
// with internal/indexer/controller/coalesce.go's first-error-wins
// cancellation. A literal errgroup.Group isn't used because the pool must
// process a pre-sized, ID-ordered stream of tasks with ordered side
// effects on the emitter, which errgroup's unordered fan-out doesn't model;
// the cancellation posture (context.Context, first error wins, every
// worker stops) is still lifted directly from its pattern.
type Pool struct {
	cfg      Config
	emitter  *Emitter
	update   *UpdateEngine
	checksum *checksum.Engine
	dups     *DupTable
}

// New builds a Pool. update and chk may be nil (disables incremental reuse
// and the on-disk checksum cache, respectively); emitter and dups must not
// be.
func New(cfg Config, emitter *Emitter, update *UpdateEngine, chk *checksum.Engine, dups *DupTable) *Pool {
	return &Pool{cfg: cfg, emitter: emitter, update: update, checksum: chk, dups: dups}
}

// Run fans tasks out across workers workers, in ID order into the emitter
// (though not necessarily processed in that order), and returns once every
// task has either been emitted or skipped. A per-task error is recorded as
// a warning and does not stop the run; ctx cancellation stops it early and
// is returned as err.
func (p *Pool) Run(ctx context.Context, tasks []Task, workers int) (warnings []string, err error) {
	defer trace.StartRegion(ctx, "Pool.Run").End()
	if workers < 1 {
		workers = 1
	}

	in := make(chan Task)
	var (
		mu       sync.Mutex
		warnOut  []string
		firstErr error
	)
	fail := func(e error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = e
		}
		mu.Unlock()
	}
	warn := func(s string) {
		mu.Lock()
		warnOut = append(warnOut, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range in {
				if err := ctx.Err(); err != nil {
					fail(err)
					p.emitter.Skip(t.ID)
					continue
				}
				if msg, err := p.process(ctx, t); err != nil {
					fail(err)
				} else if msg != "" {
					warn(msg)
				}
			}
		}()
	}

feed:
	for _, t := range tasks {
		select {
		case in <- t:
		case <-ctx.Done():
			fail(ctx.Err())
			break feed
		}
	}
	close(in)
	wg.Wait()

	return warnOut, firstErr
}

// process handles one task end to end: locate it (steal-or-parse), emit
// its fragments, and record its NEVRA. A non-nil warning string reports a
// per-task problem that didn't abort the run (spec.md §7's per-package
// error kinds); a non-nil error is fatal to the whole run.
func (p *Pool) process(ctx context.Context, t Task) (warning string, err error) {
	defer trace.StartRegion(ctx, "pool.process").End()
	trace.Logf(ctx, "task", "%d %s", t.ID, t.FullPath)

	recordSubmit()
	defer recordComplete()

	fi, statErr := os.Lstat(t.FullPath)
	if statErr != nil {
		p.emitter.Skip(t.ID)
		recordTaskError()
		return fmt.Sprintf("task %d: %s: %v", t.ID, t.FullPath, statErr), nil
	}
	if p.cfg.SkipSymlinks && fi.Mode()&os.ModeSymlink != 0 {
		p.emitter.Skip(t.ID)
		return "", nil
	}

	href := locationHref(t.RelativePath, p.cfg.CutDirs, p.cfg.LocationPrefix)
	base, baseProvided := effectiveLocationBase(p.cfg.BaseURL, t.MediaID)

	pkg, cacheErr := p.tryReuse(href, base, baseProvided, fi)
	if cacheErr != nil {
		recordCacheMiss()
		parsed, perr := p.parse(ctx, t.FullPath, fi, href, base)
		if perr != nil {
			p.emitter.Skip(t.ID)
			recordTaskError()
			return fmt.Sprintf("task %d: %s: %v", t.ID, t.FullPath, perr), nil
		}
		pkg = parsed
	} else {
		recordCacheHit()
	}

	n := FromRecordNEVRA(pkg)
	if count := p.dups.Record(n, pkg.LocationHref); count > 1 {
		warning = fmt.Sprintf("duplicate NEVRA %s at %s", n, pkg.LocationHref)
	}

	if err := p.emitFragments(t.ID, pkg); err != nil {
		return warning, fmt.Errorf("pool: task %d: %w", t.ID, err)
	}
	return warning, nil
}

// tryReuse attempts the incremental-update path: steal a cached Package at
// href and, if it's still fresh against fi, rewrite its location in place
// and return it. A non-nil error (always [errNoReuse]) means the caller
// must parse the RPM itself.
var errNoReuse = fmt.Errorf("pool: no cached package to reuse")

func (p *Pool) tryReuse(href, base string, baseProvided bool, fi os.FileInfo) (*repomd.Package, error) {
	if p.update == nil {
		return nil, errNoReuse
	}
	cached, ok := p.update.Steal(oldmeta.CleanLocation(href))
	if !ok {
		return nil, errNoReuse
	}
	if !p.update.Fresh(cached, fi) {
		return nil, errNoReuse
	}
	RewriteLocation(cached, href, base, baseProvided)
	return cached, nil
}

// parse reads path's RPM header fresh, applies the libc.so.6 require
// filter, converts to a [repomd.Package], and computes its checksum.
func (p *Pool) parse(ctx context.Context, fullPath string, fi os.FileInfo, href, base string) (*repomd.Package, error) {
	rec, rg, err := rpmpkg.Read(ctx, fullPath, rpmpkg.ReadOptions{LoadSignature: p.cfg.LoadSignatures})
	if err != nil {
		return nil, &repomd.Error{Op: "pool.parse", Kind: repomd.BadRpm, Inner: err}
	}
	rec.Requires = FilterLibcRequires(rec.Requires)

	pkg := repomd.FromRecord(rec, rg)
	pkg.LocationHref = href
	pkg.LocationBase = base
	pkg.SizePackage = fi.Size()
	pkg.TimeFile = fi.ModTime().Unix()

	algo := p.cfg.ChecksumType
	if algo == "" {
		algo = repomd.DefaultAlgorithm
	}
	if p.checksum != nil {
		d, err := p.checksum.Digest(checksum.Request{
			Path:          fullPath,
			LocationHref:  href,
			SizeInstalled: pkg.SizeInstalled,
			TimeFile:      pkg.TimeFile,
			SigGPG:        pkg.SigGPG,
			SigPGP:        pkg.SigPGP,
			HdrID:         pkg.HdrID,
		})
		if err != nil {
			return nil, err
		}
		pkg.PkgID = fmt.Sprintf("%x", d.Checksum())
		pkg.ChecksumType = d.Algorithm()
	} else {
		d, err := repomd.DigestFile(algo, fullPath)
		if err != nil {
			return nil, err
		}
		pkg.PkgID = fmt.Sprintf("%x", d.Checksum())
		pkg.ChecksumType = d.Algorithm()
	}

	return pkg, nil
}

// emitFragments marshals pkg's primary/filelists/other XML and submits all
// three to the ordered serializer under id.
func (p *Pool) emitFragments(id uint64, pkg *repomd.Package) error {
	primary, err := xmlfmt.Primary(pkg)
	if err != nil {
		return &repomd.Error{Op: "pool.emitFragments", Kind: repomd.BadXml, Inner: err}
	}
	filelists, err := xmlfmt.Filelists(pkg)
	if err != nil {
		return &repomd.Error{Op: "pool.emitFragments", Kind: repomd.BadXml, Inner: err}
	}
	other, err := xmlfmt.Other(pkg, p.cfg.ChangelogLimit)
	if err != nil {
		return &repomd.Error{Op: "pool.emitFragments", Kind: repomd.BadXml, Inner: err}
	}
	return p.emitter.Submit(id, [][]byte{[]byte(primary), []byte(filelists), []byte(other)})
}

// FromRecordNEVRA derives a NEVRA identity directly from a Package, for
// packages reused via the update engine (which never go through
// rpmpkg.Record).
func FromRecordNEVRA(p *repomd.Package) NEVRA {
	return NEVRA{Name: p.Name, Epoch: p.Epoch, Version: p.Version, Release: p.Release, Arch: p.Arch}
}

// locationHref computes a package's location_href: strip cutDirs leading
// path components from rel (the rsync --cut-dirs convention), then
// prepend prefix. Multi-disc sets never touch location_href -- per
// spec.md §4.1 step 1, a media_id only changes location_base (see
// [effectiveLocationBase]).
func locationHref(rel string, cutDirs int, prefix string) string {
	rel = path.Clean(rel)
	if cutDirs > 0 {
		parts := strings.Split(rel, "/")
		if cutDirs < len(parts) {
			rel = strings.Join(parts[cutDirs:], "/")
		} else {
			rel = parts[len(parts)-1]
		}
	}
	href := rel
	if prefix != "" {
		href = strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(rel, "/")
	}
	return href
}

// effectiveLocationBase derives a package's location_base. When mediaID is
// empty, the configured base URL passes through unchanged; baseProvided
// reports whether one was configured at all (spec.md §4.3's "LocationBase
// is replaced iff a new one was supplied").
//
// When mediaID is set, spec.md §4.1 step 1 requires a per-media base URL
// derived from the configured one: no base becomes "media:#<id>"; a base
// ending in "://" has its trailing "//" replaced with "#<id>"; any other
// base has "#<id>" appended. A media_id always counts as "a new
// location_base supplied", even when the configured base URL is empty.
func effectiveLocationBase(base, mediaID string) (effective string, baseProvided bool) {
	if mediaID == "" {
		return base, base != ""
	}
	switch {
	case base == "":
		return "media:#" + mediaID, true
	case strings.HasSuffix(base, "://"):
		return strings.TrimSuffix(base, "//") + "#" + mediaID, true
	default:
		return base + "#" + mediaID, true
	}
}
