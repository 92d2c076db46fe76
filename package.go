// Package repomd generates yum/dnf repository metadata (primary, filelists,
// other XML plus a repomd.xml manifest) for a directory of RPM packages.
package repomd

import "github.com/rpmrepo/repomd/internal/rpmpkg"

// FileType classifies an entry in a [Package]'s file list.
type FileType byte

const (
	FileRegular FileType = iota
	FileDir
	FileGhost
)

// String implements [fmt.Stringer].
func (t FileType) String() string {
	switch t {
	case FileDir:
		return "dir"
	case FileGhost:
		return "ghost"
	default:
		return "file"
	}
}

// DepFlag is a dependency's version comparator, as emitted in a
// <rpm:entry flags="..."/> XML attribute.
type DepFlag byte

const (
	DepAny DepFlag = iota
	DepEQ
	DepLT
	DepGT
	DepLE
	DepGE
)

// String renders the flag the way primary.xml's rpm:entry/@flags expects.
func (f DepFlag) String() string {
	switch f {
	case DepEQ:
		return "EQ"
	case DepLT:
		return "LT"
	case DepGT:
		return "GT"
	case DepLE:
		return "LE"
	case DepGE:
		return "GE"
	default:
		return ""
	}
}

// Dependency is one entry of a provides/requires/conflicts/obsoletes/weak-
// deps list (spec.md §3).
type Dependency struct {
	Name    string
	Flags   DepFlag
	Epoch   string
	Version string
	Release string
	Pre     bool
}

// PackageFile is one file owned by a package.
type PackageFile struct {
	Path string
	Name string
	Type FileType
}

// ChangelogEntry is one %changelog entry. Lists of these are stored
// most-recent-first, author trailing whitespace stripped, and dates made
// strictly increasing by post-increment on collision (spec.md §3).
type ChangelogEntry struct {
	Author string
	Date   int64
	Text   string
}

// Package is the canonical record of one RPM, either freshly parsed from a
// file or rehydrated from prior XML by the old-metadata loader. Both shapes
// round-trip through the XML serializer identically (spec.md §3).
type Package struct {
	Name          string
	Arch          string
	Epoch         string
	Version       string
	Release       string
	PkgID         string
	ChecksumType  string

	Summary     string
	Description string
	URL         string
	License     string
	Vendor      string
	Group       string
	BuildHost   string
	SourceRPM   string
	Packager    string

	SizePackage   int64
	SizeInstalled int64
	SizeArchive   int64
	TimeFile      int64
	TimeBuild     int64

	RPMHeaderStart int64
	RPMHeaderEnd   int64

	LocationHref string
	LocationBase string

	Files      []PackageFile
	Changelogs []ChangelogEntry

	Provides    []Dependency
	Requires    []Dependency
	Conflicts   []Dependency
	Obsoletes   []Dependency
	Suggests    []Dependency
	Enhances    []Dependency
	Recommends  []Dependency
	Supplements []Dependency

	// SigGPG, SigPGP and HdrID are optional signature blobs, populated
	// only when a checksum cache directory is configured (spec.md §4.1
	// step 3).
	SigGPG []byte
	SigPGP []byte
	HdrID  []byte

	// RepositoryHint is a diagnostic-only key-ID hint extracted from
	// whichever signature blob is present; never used to verify
	// signatures (verification is out of scope, spec.md §1).
	RepositoryHint string

	// Cached reports whether this Package was rehydrated from prior XML
	// rather than freshly parsed (spec.md §3's "parsed or cached" shape
	// distinction).
	Cached bool
}

// NEVRA returns the package's Name-Epoch-Version-Release-Architecture
// identity string.
func (p *Package) NEVRA() string {
	var epochPrefix string
	if p.Epoch != "" && p.Epoch != "0" {
		epochPrefix = p.Epoch + ":"
	}
	return p.Name + "-" + epochPrefix + p.Version + "-" + p.Release + "." + p.Arch
}

// RepomdRecord describes one of the output streams (primary, filelists,
// other, ...) in repomd.xml (spec.md §3).
type RepomdRecord struct {
	Type            string
	LocationHref    string
	LocationBase    string
	Checksum        string
	ChecksumType    string
	OpenChecksum    string
	OpenChecksumType string
	Size            int64
	SizeOpen        int64 // -1 if unknown (compression kind unsupported).
	Timestamp       int64
	DBVersion       int
}

// depFromRecord converts a header-reader dependency into the wire
// [Dependency] shape.
func depFromRecord(d rpmpkg.Dep) Dependency {
	return Dependency{
		Name:    d.Name,
		Flags:   depFlagFromRecord(d.Flags),
		Epoch:   d.Epoch,
		Version: d.Version,
		Release: d.Release,
		Pre:     d.Pre,
	}
}

func depFlagFromRecord(f rpmpkg.DepFlag) DepFlag {
	switch f {
	case rpmpkg.DepEQ:
		return DepEQ
	case rpmpkg.DepLT:
		return DepLT
	case rpmpkg.DepGT:
		return DepGT
	case rpmpkg.DepLE:
		return DepLE
	case rpmpkg.DepGE:
		return DepGE
	default:
		return DepAny
	}
}

func depsFromRecord(ds []rpmpkg.Dep) []Dependency {
	out := make([]Dependency, len(ds))
	for i, d := range ds {
		out[i] = depFromRecord(d)
	}
	return out
}

func fileTypeFromRecord(k rpmpkg.FileKind) FileType {
	switch k {
	case rpmpkg.FileDir:
		return FileDir
	case rpmpkg.FileGhost:
		return FileGhost
	default:
		return FileRegular
	}
}

func filesFromRecord(fs []rpmpkg.FileEntry) []PackageFile {
	out := make([]PackageFile, len(fs))
	for i, f := range fs {
		out[i] = PackageFile{
			Path: f.Path,
			Name: baseName(f.Path),
			Type: fileTypeFromRecord(f.Kind),
		}
	}
	return out
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func changelogsFromRecord(cs []rpmpkg.Changelog) []ChangelogEntry {
	out := make([]ChangelogEntry, len(cs))
	for i, c := range cs {
		out[i] = ChangelogEntry{Author: c.Author, Date: c.Date, Text: c.Text}
	}
	return out
}

// FromRecord builds a fresh (non-cached) Package from a decoded RPM
// [rpmpkg.Record] and its header byte range. It does not set the
// file-level metadata (size on disk, file mtime, location, checksum); the
// worker fills those in afterwards (spec.md §4.1 steps 1/3).
func FromRecord(rec *rpmpkg.Record, rg *rpmpkg.Ranges) *Package {
	p := &Package{
		Name:           rec.Name,
		Arch:           rec.Arch,
		Epoch:          normalizeEpoch(rec.Epoch),
		Version:        rec.Version,
		Release:        rec.Release,
		Summary:        rec.Summary,
		Description:    rec.Description,
		URL:            rec.URL,
		License:        rec.License,
		Vendor:         rec.Vendor,
		Group:          rec.Group,
		BuildHost:      rec.BuildHost,
		SourceRPM:      rec.SourceRPM,
		Packager:       rec.Packager,
		SizeInstalled:  rec.SizeInstalled,
		SizeArchive:    rec.SizeArchive,
		TimeBuild:      rec.BuildTime,
		Files:          filesFromRecord(rec.Files),
		Changelogs:     normalizeChangelogs(changelogsFromRecord(rec.Changelogs)),
		Provides:       depsFromRecord(rec.Provides),
		Requires:       depsFromRecord(rec.Requires),
		Conflicts:      depsFromRecord(rec.Conflicts),
		Obsoletes:      depsFromRecord(rec.Obsoletes),
		Suggests:       depsFromRecord(rec.Suggests),
		Enhances:       depsFromRecord(rec.Enhances),
		Recommends:     depsFromRecord(rec.Recommends),
		Supplements:    depsFromRecord(rec.Supplements),
		SigGPG:         rec.SigGPG,
		SigPGP:         rec.SigPGP,
		HdrID:          rec.HdrID,
	}
	if rg != nil {
		p.RPMHeaderStart = rg.HeaderStart
		p.RPMHeaderEnd = rg.HeaderEnd
	}
	p.Requires = DedupeRequires(p)
	return p
}

// normalizeEpoch applies spec.md §3's "epoch on the wire is always present;
// empty parses to 0" rule.
func normalizeEpoch(e string) string {
	if e == "" {
		return "0"
	}
	return e
}

// normalizeChangelogs enforces spec.md §3's strictly-increasing-dates
// invariant: author trailing whitespace is stripped, and any date that
// collides with an adjacent one is bumped forward by post-increment.
//
// Entries are stored most-recent-first (index 0 is newest), so "strictly
// increasing" refers to chronological order, oldest to newest -- the
// reverse of storage order. Resolution therefore walks from the oldest
// entry (the end of the slice) toward the newest, and whenever an entry's
// time doesn't exceed the already-fixed time of its older neighbor, bumps
// it to that neighbor's time plus one second.
func normalizeChangelogs(cs []ChangelogEntry) []ChangelogEntry {
	for i := range cs {
		cs[i].Author = trimTrailingSpace(cs[i].Author)
	}
	for i := len(cs) - 2; i >= 0; i-- {
		if cs[i].Date <= cs[i+1].Date {
			cs[i].Date = cs[i+1].Date + 1
		}
	}
	return cs
}

func trimTrailingSpace(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == '\t' || s[i-1] == '\n' || s[i-1] == '\r') {
		i--
	}
	return s[:i]
}

// depKey is the (name, flags, epoch, version, release) tuple spec.md §3
// uses to decide whether a require is satisfied by one of the package's
// own provides.
type depKey struct {
	name, epoch, version, release string
	flags                         DepFlag
}

func keyOf(d Dependency) depKey {
	return depKey{name: d.Name, flags: d.Flags, epoch: d.Epoch, version: d.Version, release: d.Release}
}

// IsPrimaryFile reports whether path matches one of the patterns
// primary.xml files files under (spec.md §4.5): ".*bin/.*", "/etc/.*", or
// exactly "/usr/lib/sendmail".
func IsPrimaryFile(path string) bool {
	if path == "/usr/lib/sendmail" {
		return true
	}
	if len(path) >= 5 && path[:5] == "/etc/" {
		return true
	}
	return containsBin(path)
}

func containsBin(path string) bool {
	const needle = "bin/"
	for i := 0; i+len(needle) <= len(path); i++ {
		if path[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// DedupeRequires drops every entry of p.Requires whose (name, flags,
// epoch, version, release) tuple also appears in p.Provides, and every
// entry whose name is one of the package's own primary file paths
// (spec.md §3: "requires is de-duplicated against provides... and against
// the package's own primary files").
func DedupeRequires(p *Package) []Dependency {
	provided := make(map[depKey]struct{}, len(p.Provides))
	for _, d := range p.Provides {
		provided[keyOf(d)] = struct{}{}
	}
	ownPath := make(map[string]struct{})
	for _, f := range p.Files {
		if IsPrimaryFile(f.Path) {
			ownPath[f.Path] = struct{}{}
		}
	}
	out := make([]Dependency, 0, len(p.Requires))
	for _, d := range p.Requires {
		if _, ok := provided[keyOf(d)]; ok {
			continue
		}
		if _, ok := ownPath[d.Name]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Note: the libc.so.6 "keep only the highest version" filter (spec.md §9's
// open question, preserved verbatim) is applied to [rpmpkg.Dep] values
// inside the dumper pool's worker, before FromRecord converts them to
// [Dependency] -- see internal/pool's FilterLibcRequires, which has access
// to the full rpmver comparator this package doesn't need elsewhere.
