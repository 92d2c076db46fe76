package rpmpkg

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
)

// DepFlag mirrors rpm's sense bits for a dependency comparator.
type DepFlag uint32

// Recognized comparator bits. Multiple bits may be combined (e.g. LE is
// LT|EQ); zero means no version comparison is implied.
const (
	DepAny DepFlag = 0
	DepLT  DepFlag = 1 << 1
	DepGT  DepFlag = 1 << 2
	DepEQ  DepFlag = 1 << 3
	DepLE          = DepLT | DepEQ
	DepGE          = DepGT | DepEQ

	depPreReq DepFlag = 1 << 6 // rpmsenseflags RPMSENSE_PREREQ
)

// Dep is one entry of a dependency list (provides/requires/conflicts/
// obsoletes/suggests/enhances/recommends/supplements).
type Dep struct {
	Name    string
	Flags   DepFlag
	Epoch   string
	Version string
	Release string
	Pre     bool
}

// FileKind classifies an entry in Record.Files.
type FileKind byte

const (
	FileRegular FileKind = iota
	FileDir
	FileGhost
)

// FileEntry is one file owned by the package.
type FileEntry struct {
	Path string
	Kind FileKind
}

// Changelog is one %changelog entry, most-recent-first, exactly as stored
// in the header (time collisions are resolved by the caller, not here --
// see internal/pool's Package construction, which is the only place that
// needs the strictly-increasing invariant).
type Changelog struct {
	Author string
	Date   int64
	Text   string
}

// Record is everything the header reader extracts from a single RPM's
// header section: the typed scalar fields, file list, dependency lists,
// changelog, and whatever signature blobs were requested. It deliberately
// mirrors the "black box capability" spec.md describes in its Design Notes:
// a producer of {scalars, files, dependencies, changelogs, header byte
// range, optional signature blobs}, nothing more.
type Record struct {
	Name      string
	Arch      string
	Epoch     string
	Version   string
	Release   string
	SourceRPM string

	Summary     string
	Description string
	URL         string
	License     string
	Vendor      string
	Group       string
	BuildHost   string
	Packager    string

	SizeInstalled int64
	SizeArchive   int64
	BuildTime     int64

	Files      []FileEntry
	Changelogs []Changelog

	Provides    []Dep
	Requires    []Dep
	Conflicts   []Dep
	Obsoletes   []Dep
	Suggests    []Dep
	Enhances    []Dep
	Recommends  []Dep
	Supplements []Dep

	// Populated only when requested via ReadOptions.LoadSignature.
	SigGPG []byte
	SigPGP []byte
	HdrID  []byte

	dirname  []string
	dirindex []int32
	basename []string
}

var wantTags = map[Tag]struct{}{
	TagName: {}, TagArch: {}, TagEpoch: {}, TagVersion: {}, TagRelease: {}, TagSourceRPM: {},
	TagSummary: {}, TagDescription: {}, TagURL: {}, TagLicense: {}, TagVendor: {}, TagGroup: {},
	TagBuildHost: {}, TagPackager: {}, TagSize: {}, TagArchiveSize: {}, TagBuildTime: {},
	TagBasenames: {}, TagDirnames: {}, TagDirindexes: {}, TagFilenames: {},
	TagFileModes: {}, TagFileFlags: {},
	TagChangelogTime: {}, TagChangelogName: {}, TagChangelogText: {},
	TagProvideName: {}, TagProvideFlags: {}, TagProvideVersion: {},
	TagRequireName: {}, TagRequireFlags: {}, TagRequireVersion: {},
	TagConflictName: {}, TagConflictFlags: {}, TagConflictVersion: {},
	TagObsoleteName: {}, TagObsoleteFlags: {}, TagObsoleteVersion: {},
	TagSuggestName: {}, TagSuggestFlags: {}, TagSuggestVersion: {},
	TagEnhanceName: {}, TagEnhanceFlags: {}, TagEnhanceVersion: {},
	TagRecommendName: {}, TagRecommendFlags: {}, TagRecommendVersion: {},
	TagSupplementName: {}, TagSupplementFlags: {}, TagSupplementVersion: {},
}

// LoadRecord populates a [Record] from a parsed main [Header]. This is the
// header reader's principal job, adapted from the Info.Load walk in
// claircore's internal/rpm/info.go: iterate h.Infos, dispatch on Tag, read
// the typed value via h.ReadData.
func LoadRecord(ctx context.Context, h *Header) (*Record, error) {
	rec := &Record{}

	var (
		fileModes          []int16
		fileFlags          []int32
		provN, reqN        []string
		provF, reqF        []int32
		provV, reqV        []string
		conN, obsN         []string
		conF, obsF         []int32
		conV, obsV         []string
		sugN, enhN         []string
		sugF, enhF         []int32
		sugV, enhV         []string
		recN, supN         []string
		recF, supF         []int32
		recV, supV         []string
		chTime             []int32
		chName, chText     []string
	)

	for idx := range h.Infos {
		e := &h.Infos[idx]
		if _, ok := wantTags[e.Tag]; !ok {
			continue
		}
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("rpmpkg: reading tag %v: %w", e.Tag, err)
		}
		switch e.Tag {
		case TagName:
			rec.Name = v.(string)
		case TagArch:
			rec.Arch = v.(string)
		case TagEpoch:
			rec.Epoch = strconv.Itoa(int(v.([]int32)[0]))
		case TagVersion:
			rec.Version = v.(string)
		case TagRelease:
			rec.Release = v.(string)
		case TagSourceRPM:
			rec.SourceRPM = v.(string)
		case TagSummary:
			rec.Summary = first(v.([]string))
		case TagDescription:
			rec.Description = first(v.([]string))
		case TagURL:
			rec.URL = v.(string)
		case TagLicense:
			rec.License = v.(string)
		case TagVendor:
			rec.Vendor = v.(string)
		case TagGroup:
			rec.Group = first(v.([]string))
		case TagBuildHost:
			rec.BuildHost = v.(string)
		case TagPackager:
			rec.Packager = v.(string)
		case TagSize:
			rec.SizeInstalled = int64(v.([]int32)[0])
		case TagArchiveSize:
			rec.SizeArchive = int64(v.([]int32)[0])
		case TagBuildTime:
			rec.BuildTime = int64(v.([]int32)[0])
		case TagDirnames:
			rec.dirname = v.([]string)
		case TagDirindexes:
			rec.dirindex = v.([]int32)
		case TagBasenames:
			rec.basename = v.([]string)
		case TagFilenames:
			loadFlatFilenames(rec, v.([]string))
		case TagFileModes:
			fileModes = int16Slice(v)
		case TagFileFlags:
			fileFlags = v.([]int32)
		case TagChangelogTime:
			chTime = v.([]int32)
		case TagChangelogName:
			chName = v.([]string)
		case TagChangelogText:
			chText = v.([]string)
		case TagProvideName:
			provN = v.([]string)
		case TagProvideFlags:
			provF = v.([]int32)
		case TagProvideVersion:
			provV = v.([]string)
		case TagRequireName:
			reqN = v.([]string)
		case TagRequireFlags:
			reqF = v.([]int32)
		case TagRequireVersion:
			reqV = v.([]string)
		case TagConflictName:
			conN = v.([]string)
		case TagConflictFlags:
			conF = v.([]int32)
		case TagConflictVersion:
			conV = v.([]string)
		case TagObsoleteName:
			obsN = v.([]string)
		case TagObsoleteFlags:
			obsF = v.([]int32)
		case TagObsoleteVersion:
			obsV = v.([]string)
		case TagSuggestName:
			sugN = v.([]string)
		case TagSuggestFlags:
			sugF = v.([]int32)
		case TagSuggestVersion:
			sugV = v.([]string)
		case TagEnhanceName:
			enhN = v.([]string)
		case TagEnhanceFlags:
			enhF = v.([]int32)
		case TagEnhanceVersion:
			enhV = v.([]string)
		case TagRecommendName:
			recN = v.([]string)
		case TagRecommendFlags:
			recF = v.([]int32)
		case TagRecommendVersion:
			recV = v.([]string)
		case TagSupplementName:
			supN = v.([]string)
		case TagSupplementFlags:
			supF = v.([]int32)
		case TagSupplementVersion:
			supV = v.([]string)
		}
	}

	rec.Files = buildFiles(rec, fileModes, fileFlags)
	rec.Changelogs = buildChangelog(chTime, chName, chText)
	rec.Provides = buildDeps(provN, provF, provV)
	rec.Requires = buildDeps(reqN, reqF, reqV)
	rec.Conflicts = buildDeps(conN, conF, conV)
	rec.Obsoletes = buildDeps(obsN, obsF, obsV)
	rec.Suggests = buildDeps(sugN, sugF, sugV)
	rec.Enhances = buildDeps(enhN, enhF, enhV)
	rec.Recommends = buildDeps(recN, recF, recV)
	rec.Supplements = buildDeps(supN, supF, supV)

	return rec, nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func int16Slice(v any) []int16 {
	switch t := v.(type) {
	case []int16:
		return t
	default:
		return nil
	}
}

// loadFlatFilenames handles the rpm4-style TagFilenames tag by splitting
// each full path into an rpm5-style dirname/dirindex/basename triple, the
// same strategy used by claircore's internal/rpm/info.go.
func loadFlatFilenames(rec *Record, names []string) {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	rec.dirname = rec.dirname[:0]
	rec.dirindex = make([]int32, 0, len(sorted))
	rec.basename = make([]string, 0, len(sorted))
	cur := -1
	for _, name := range sorted {
		dir, base := path.Split(name)
		rec.basename = append(rec.basename, base)
		if len(rec.dirname) == 0 || rec.dirname[cur] != dir {
			cur = len(rec.dirname)
			rec.dirname = append(rec.dirname, dir)
		}
		rec.dirindex = append(rec.dirindex, int32(cur))
	}
}

const (
	modeFmtMask = 0o170000
	modeFmtDir  = 0o040000
)

// rpmFileFlagGhost is RPMFILE_GHOST from rpm's header.h.
const rpmFileFlagGhost = 1 << 6

func buildFiles(rec *Record, modes []int16, flags []int32) []FileEntry {
	n := len(rec.basename)
	out := make([]FileEntry, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(rec.dirindex) {
			break
		}
		di := rec.dirindex[i]
		if int(di) >= len(rec.dirname) {
			continue
		}
		p := path.Join(rec.dirname[di], rec.basename[i])
		k := FileRegular
		if i < len(modes) && int(modes[i])&modeFmtMask == modeFmtDir {
			k = FileDir
		} else if i < len(flags) && flags[i]&rpmFileFlagGhost != 0 {
			k = FileGhost
		}
		out = append(out, FileEntry{Path: p, Kind: k})
	}
	return out
}

func buildChangelog(times []int32, names, texts []string) []Changelog {
	n := len(times)
	out := make([]Changelog, 0, n)
	for i := 0; i < n; i++ {
		var name, text string
		if i < len(names) {
			name = names[i]
		}
		if i < len(texts) {
			text = texts[i]
		}
		out = append(out, Changelog{
			Author: name,
			Date:   int64(times[i]),
			Text:   text,
		})
	}
	return out
}

func buildDeps(names []string, flags []int32, versions []string) []Dep {
	n := len(names)
	out := make([]Dep, 0, n)
	for i := 0; i < n; i++ {
		var f DepFlag
		if i < len(flags) {
			f = DepFlag(flags[i])
		}
		var ver string
		if i < len(versions) {
			ver = versions[i]
		}
		epoch, version, release := splitEVR(ver)
		out = append(out, Dep{
			Name:    names[i],
			Flags:   f &^ depPreReq,
			Epoch:   epoch,
			Version: version,
			Release: release,
			Pre:     f&depPreReq != 0,
		})
	}
	return out
}

// splitEVR splits a dependency's stored version string, which may be
// "[epoch:]version[-release]", into its three components.
func splitEVR(s string) (epoch, version, release string) {
	if s == "" {
		return "", "", ""
	}
	rest := s
	if i := indexByte(rest, ':'); i >= 0 {
		epoch = rest[:i]
		rest = rest[i+1:]
	}
	if i := lastIndexByte(rest, '-'); i >= 0 {
		version = rest[:i]
		release = rest[i+1:]
	} else {
		version = rest
	}
	return epoch, version, release
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
