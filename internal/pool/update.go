package pool

import (
	"os"
	"sync"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/oldmeta"
)

// UpdateEngine wraps an [oldmeta.Cache] with the locking "atomic steal"
// semantics spec.md §4.3 requires (the cache itself has none, since it's
// built once by a single goroutine before the pool starts, but is then
// read by every worker).
//
// Grounded on the teacher's "stolen under lock" pattern for distributed
// locks (internal/distlock/guard.go): remove-on-lookup so two workers can
// never both "hit" the same cached Package.
type UpdateEngine struct {
	mu       sync.Mutex
	cache    *oldmeta.Cache
	skipStat bool
	checksum string // configured checksum type, already case-folded.
}

// NewUpdateEngine wraps cache. skipStat, when true, makes every lookup
// succeed as "fresh" without checking the staleness test (spec.md §4.3).
// A nil cache disables the update engine entirely; Steal always reports a
// miss.
func NewUpdateEngine(cache *oldmeta.Cache, skipStat bool, checksumType string) *UpdateEngine {
	return &UpdateEngine{cache: cache, skipStat: skipStat, checksum: checksumType}
}

// Steal atomically removes and returns the cached Package at location, if
// one exists.
func (u *UpdateEngine) Steal(location string) (*repomd.Package, bool) {
	if u == nil || u.cache == nil {
		return nil, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cache.Take(location)
}

// Fresh runs spec.md §4.3's staleness test: exactly three conditions must
// all hold for a hit to be considered fresh -- file mtime equals the
// cached Package's TimeFile, file size equals SizePackage, and the
// configured checksum type equals the cached Package's ChecksumType.
// skip_stat bypasses the test entirely.
func (u *UpdateEngine) Fresh(cached *repomd.Package, fi os.FileInfo) bool {
	if u.skipStat {
		return true
	}
	return fi.ModTime().Unix() == cached.TimeFile &&
		fi.Size() == cached.SizePackage &&
		u.checksum == cached.ChecksumType
}

// RewriteLocation replaces cached's location fields with the effective
// ones computed for this run, leaving every other field untouched
// (spec.md §4.3: "No other field is touched"). baseProvided distinguishes
// "a new location_base was supplied" from "none was"; LocationBase is
// only replaced in the former case.
//
// Per spec.md's design notes, a cached Package's per-package string arena
// would need reinitializing before this mutation in the original's memory
// model; this Go port uses owned strings (see SPEC_FULL.md §9), so the
// equivalent step is simply overwriting the two fields directly -- there
// is no shared arena to corrupt.
func RewriteLocation(cached *repomd.Package, href, base string, baseProvided bool) {
	cached.LocationHref = href
	if baseProvided {
		cached.LocationBase = base
	}
}
