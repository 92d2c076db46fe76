package oldmeta

import "github.com/rpmrepo/repomd"

// The decode structs below mirror the shapes internal/xmlfmt marshals,
// field for field, so a prior run's primary/filelists/other output can be
// read back without reassembling anything -- decoding populates a
// Package's XML-derived fields directly (spec.md §4.3: "produces a
// Package whose XML fields are populated by parsing -- not by
// reassembling").

type versionDecoded struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

type fileDecoded struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type depEntryDecoded struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr"`
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
	Pre   string `xml:"pre,attr"`
}

type depListDecoded struct {
	Entry []depEntryDecoded `xml:"entry"`
}

type primaryDecoded struct {
	Name     string         `xml:"name"`
	Arch     string         `xml:"arch"`
	Version  versionDecoded `xml:"version"`
	Checksum struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"checksum"`
	Summary     string `xml:"summary"`
	Description string `xml:"description"`
	Packager    string `xml:"packager"`
	URL         string `xml:"url"`
	Time        struct {
		File  int64 `xml:"file,attr"`
		Build int64 `xml:"build,attr"`
	} `xml:"time"`
	Size struct {
		Package   int64 `xml:"package,attr"`
		Installed int64 `xml:"installed,attr"`
		Archive   int64 `xml:"archive,attr"`
	} `xml:"size"`
	Location struct {
		XMLBase string `xml:"base,attr"`
		Href    string `xml:"href,attr"`
	} `xml:"location"`
	Format struct {
		License     string `xml:"license"`
		Vendor      string `xml:"vendor"`
		Group       string `xml:"group"`
		Buildhost   string `xml:"buildhost"`
		Sourcerpm   string `xml:"sourcerpm"`
		HeaderRange struct {
			Start int64 `xml:"start,attr"`
			End   int64 `xml:"end,attr"`
		} `xml:"header-range"`
		Provides  depListDecoded `xml:"provides"`
		Requires  depListDecoded `xml:"requires"`
		Conflicts depListDecoded `xml:"conflicts"`
		Obsoletes depListDecoded `xml:"obsoletes"`
		Files     []fileDecoded  `xml:"file"`
	} `xml:"format"`
}

type filelistsDecoded struct {
	Pkgid   string         `xml:"pkgid,attr"`
	Name    string         `xml:"name,attr"`
	Arch    string         `xml:"arch,attr"`
	Version versionDecoded `xml:"version"`
	Files   []fileDecoded  `xml:"file"`
}

type changelogDecoded struct {
	Author string `xml:"author,attr"`
	Date   int64  `xml:"date,attr"`
	Text   string `xml:",chardata"`
}

type otherDecoded struct {
	Pkgid     string             `xml:"pkgid,attr"`
	Name      string             `xml:"name,attr"`
	Arch      string             `xml:"arch,attr"`
	Version   versionDecoded     `xml:"version"`
	Changelog []changelogDecoded `xml:"changelog"`
}

func depFlagFromXML(s string) repomd.DepFlag {
	switch s {
	case "EQ":
		return repomd.DepEQ
	case "LT":
		return repomd.DepLT
	case "GT":
		return repomd.DepGT
	case "LE":
		return repomd.DepLE
	case "GE":
		return repomd.DepGE
	default:
		return repomd.DepAny
	}
}

func depsFromXML(dl depListDecoded) []repomd.Dependency {
	out := make([]repomd.Dependency, len(dl.Entry))
	for i, e := range dl.Entry {
		out[i] = repomd.Dependency{
			Name:    e.Name,
			Flags:   depFlagFromXML(e.Flags),
			Epoch:   e.Epoch,
			Version: e.Ver,
			Release: e.Rel,
			Pre:     e.Pre != "",
		}
	}
	return out
}

func fileTypeFromXML(s string) repomd.FileType {
	switch s {
	case "dir":
		return repomd.FileDir
	case "ghost":
		return repomd.FileGhost
	default:
		return repomd.FileRegular
	}
}

// filelistsFiles returns the authoritative full file list: filelists.xml
// always carries every file, where primary.xml only carries the primary
// subset (spec.md §4.5), so the merged Package's Files always comes from
// there.
func filelistsFiles(fs []fileDecoded) []repomd.PackageFile {
	out := make([]repomd.PackageFile, len(fs))
	for i, f := range fs {
		out[i] = repomd.PackageFile{Path: f.Value, Name: baseName(f.Value), Type: fileTypeFromXML(f.Type)}
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

func changelogsFromXML(cs []changelogDecoded) []repomd.ChangelogEntry {
	out := make([]repomd.ChangelogEntry, len(cs))
	for i, c := range cs {
		out[i] = repomd.ChangelogEntry{Author: c.Author, Date: c.Date, Text: c.Text}
	}
	return out
}

// mergePackage assembles a cached Package from the three decoded
// per-stream fragments, in lockstep (spec.md §4.3). filelists is the
// source of truth for the file list; other is the source of truth for
// changelogs; primary supplies everything else.
func mergePackage(p *primaryDecoded, f *filelistsDecoded, o *otherDecoded) *repomd.Package {
	return &repomd.Package{
		Name:           p.Name,
		Arch:           p.Arch,
		Epoch:          p.Version.Epoch,
		Version:        p.Version.Ver,
		Release:        p.Version.Rel,
		PkgID:          p.Checksum.Value,
		ChecksumType:   p.Checksum.Type,
		Summary:        p.Summary,
		Description:    p.Description,
		URL:            p.URL,
		License:        p.Format.License,
		Vendor:         p.Format.Vendor,
		Group:          p.Format.Group,
		BuildHost:      p.Format.Buildhost,
		SourceRPM:      p.Format.Sourcerpm,
		Packager:       p.Packager,
		SizePackage:    p.Size.Package,
		SizeInstalled:  p.Size.Installed,
		SizeArchive:    p.Size.Archive,
		TimeFile:       p.Time.File,
		TimeBuild:      p.Time.Build,
		RPMHeaderStart: p.Format.HeaderRange.Start,
		RPMHeaderEnd:   p.Format.HeaderRange.End,
		LocationHref:   p.Location.Href,
		LocationBase:   p.Location.XMLBase,
		Files:          filelistsFiles(f.Files),
		Changelogs:     changelogsFromXML(o.Changelog),
		Provides:       depsFromXML(p.Format.Provides),
		Requires:       depsFromXML(p.Format.Requires),
		Conflicts:      depsFromXML(p.Format.Conflicts),
		Obsoletes:      depsFromXML(p.Format.Obsoletes),
		Cached:         true,
	}
}
