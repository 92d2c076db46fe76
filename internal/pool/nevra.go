package pool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rpmrepo/repomd/internal/rpmpkg"
	"github.com/rpmrepo/repomd/internal/rpmver"
)

// NEVRA is a package's Name-Epoch-Version-Release-Architecture identity.
type NEVRA struct {
	Name, Epoch, Version, Release, Arch string
}

// String formats the NEVRA the way rpm itself does: name-epoch:version-release.arch.
func (n NEVRA) String() string {
	var b strings.Builder
	b.WriteString(n.Name)
	b.WriteByte('-')
	if n.Epoch != "" && n.Epoch != "0" {
		b.WriteString(n.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(n.Version)
	b.WriteByte('-')
	b.WriteString(n.Release)
	b.WriteByte('.')
	b.WriteString(n.Arch)
	return b.String()
}

// FromRecord builds a NEVRA from a decoded RPM header record.
func FromRecord(rec *rpmpkg.Record) NEVRA {
	return NEVRA{
		Name:    rec.Name,
		Epoch:   rec.Epoch,
		Version: rec.Version,
		Release: rec.Release,
		Arch:    rec.Arch,
	}
}

// DupEntry is one occurrence of a NEVRA, recorded at the location_href it was
// found at.
type DupEntry struct {
	Location string
}

// DupTable is the NEVRA -> []location table every worker records into as
// packages are produced, used for duplicate-NEVRA detection (spec.md's
// "Duplicate-detection table" design note). The first entry at a given NEVRA
// creates the bucket; later entries append -- buckets are never merged or
// overwritten, so a warning can later be produced for every collision,
// naming every location involved, not just the second.
//
// Grounded on the teacher's distlock/guard.go mutex-protected shared-state
// pattern: one mutex serializes all access, since writes happen far less
// often than the per-package work that produces them.
type DupTable struct {
	mu      sync.Mutex
	buckets map[NEVRA][]DupEntry
	// order preserves first-seen NEVRA order so Warnings() output is
	// deterministic across runs, independent of worker scheduling.
	order []NEVRA
}

// NewDupTable returns an empty duplicate-detection table.
func NewDupTable() *DupTable {
	return &DupTable{buckets: make(map[NEVRA][]DupEntry)}
}

// Record adds location to n's bucket, returning the bucket's size after the
// insert. A return value > 1 means this insert created (or extended) a
// duplicate.
func (t *DupTable) Record(n NEVRA, location string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.buckets[n]; !ok {
		t.order = append(t.order, n)
	}
	t.buckets[n] = append(t.buckets[n], DupEntry{Location: location})
	return len(t.buckets[n])
}

// Warnings returns one line per NEVRA bucket with more than one entry,
// naming the NEVRA and every location_href it was seen at, in first-seen
// order. Called once after the pool has drained.
func (t *DupTable) Warnings() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, n := range t.order {
		b := t.buckets[n]
		if len(b) <= 1 {
			continue
		}
		locs := make([]string, len(b))
		for i, e := range b {
			locs[i] = e.Location
		}
		out = append(out, fmt.Sprintf("duplicate NEVRA %s: %s", n, strings.Join(locs, ", ")))
	}
	return out
}

// libcBaseName is the dependency base name the "keep only the highest
// libc.so.6* require" filter applies to.
const libcBaseName = "libc.so.6"

// FilterLibcRequires collapses every libc.so.6(...) require down to the
// single one carrying the highest parenthesized version, leaving every
// other dependency untouched.
//
// This rule is inherited from older createrepo behavior and is preserved
// verbatim (spec.md's Open Question on the libc.so filter): newer glibc
// builds `Provide` dozens of symbol-versioned libc.so.6(GLIBC_x.y) requires
// per consumer, and older repo tooling only ever kept the newest one to
// avoid bloating primary.xml with redundant entries.
func FilterLibcRequires(deps []rpmpkg.Dep) []rpmpkg.Dep {
	var (
		out      = make([]rpmpkg.Dep, 0, len(deps))
		best     rpmpkg.Dep
		bestVer  rpmver.Version
		bestHave bool
	)
	for _, d := range deps {
		base, ver, ok := splitLibcVersion(d.Name)
		if !ok || base != libcBaseName {
			out = append(out, d)
			continue
		}
		v := rpmver.Version{Epoch: "0", Version: ver}
		if !bestHave || rpmver.Compare(&v, &bestVer) > 0 {
			bestHave = true
			bestVer = v
			best = d
		}
		// Else: drop d, a lower-versioned libc.so.6 require. The
		// previous best is never placed in out, so there is nothing to
		// remove when a later candidate beats it.
	}
	if bestHave {
		out = append(out, best)
	}
	return out
}

// splitLibcVersion extracts the base symbol name and the first parenthesized
// group from a dependency name like "libc.so.6(GLIBC_2.2.5)(64bit)",
// reporting ok=false for names with no parenthesized group at all.
func splitLibcVersion(name string) (base, version string, ok bool) {
	i := strings.IndexByte(name, '(')
	if i < 0 {
		return "", "", false
	}
	j := strings.IndexByte(name[i:], ')')
	if j < 0 {
		return "", "", false
	}
	return name[:i], name[i+1 : i+j], true
}
