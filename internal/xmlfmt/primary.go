package xmlfmt

import (
	"encoding/xml"

	"github.com/rpmrepo/repomd"
)

type primaryChecksum struct {
	Type  string `xml:"type,attr"`
	Pkgid string `xml:"pkgid,attr"`
	Value string `xml:",chardata"`
}

type primaryTime struct {
	File  int64 `xml:"file,attr"`
	Build int64 `xml:"build,attr"`
}

type primarySize struct {
	Package   int64 `xml:"package,attr"`
	Installed int64 `xml:"installed,attr"`
	Archive   int64 `xml:"archive,attr"`
}

type primaryLocation struct {
	XMLBase string `xml:"xml:base,attr,omitempty"`
	Href    string `xml:"href,attr"`
}

type headerRange struct {
	Start int64 `xml:"start,attr"`
	End   int64 `xml:"end,attr"`
}

type primaryFormat struct {
	License     string      `xml:"rpm:license"`
	Vendor      string      `xml:"rpm:vendor,omitempty"`
	Group       string      `xml:"rpm:group,omitempty"`
	Buildhost   string      `xml:"rpm:buildhost,omitempty"`
	Sourcerpm   string      `xml:"rpm:sourcerpm,omitempty"`
	HeaderRange headerRange `xml:"rpm:header-range"`
	Provides    depList     `xml:"rpm:provides"`
	Requires    depList     `xml:"rpm:requires"`
	Conflicts   depList     `xml:"rpm:conflicts"`
	Obsoletes   depList     `xml:"rpm:obsoletes"`
	Files       []fileElem  `xml:"file"`
}

type primaryPackage struct {
	XMLName     xml.Name        `xml:"package"`
	Type        string          `xml:"type,attr"`
	Name        string          `xml:"name"`
	Arch        string          `xml:"arch"`
	Version     versionElem     `xml:"version"`
	Checksum    primaryChecksum `xml:"checksum"`
	Summary     string          `xml:"summary"`
	Description string          `xml:"description"`
	Packager    string          `xml:"packager,omitempty"`
	URL         string          `xml:"url,omitempty"`
	Time        primaryTime     `xml:"time"`
	Size        primarySize     `xml:"size"`
	Location    primaryLocation `xml:"location"`
	Format      primaryFormat   `xml:"format"`
}

// Primary dumps the primary.xml fragment for p: identity, a single
// pkgid-flavored checksum, descriptive fields, the primary-only file
// subset (spec.md §4.5's ".*bin/.*", "/etc/.*", "/usr/lib/sendmail"
// patterns), and the four dependency blocks in provides/requires/
// conflicts/obsoletes order.
func Primary(p *repomd.Package) (string, error) {
	pkg := primaryPackage{
		Type:        "rpm",
		Name:        p.Name,
		Arch:        p.Arch,
		Version:     versionOf(p),
		Checksum:    primaryChecksum{Type: p.ChecksumType, Pkgid: "YES", Value: p.PkgID},
		Summary:     sanitize(p.Summary),
		Description: sanitize(p.Description),
		Packager:    sanitize(p.Packager),
		URL:         p.URL,
		Time:        primaryTime{File: p.TimeFile, Build: p.TimeBuild},
		Size:        primarySize{Package: p.SizePackage, Installed: p.SizeInstalled, Archive: p.SizeArchive},
		Location:    primaryLocation{Href: p.LocationHref, XMLBase: p.LocationBase},
		Format: primaryFormat{
			License:     p.License,
			Vendor:      p.Vendor,
			Group:       p.Group,
			Buildhost:   p.BuildHost,
			Sourcerpm:   p.SourceRPM,
			HeaderRange: headerRange{Start: p.RPMHeaderStart, End: p.RPMHeaderEnd},
			Provides:    buildDepList(p.Provides),
			Requires:    buildDepList(p.Requires),
			Conflicts:   buildDepList(p.Conflicts),
			Obsoletes:   buildDepList(p.Obsoletes),
			Files:       fileElems(p.Files, true),
		},
	}
	return marshalFragment(pkg)
}
