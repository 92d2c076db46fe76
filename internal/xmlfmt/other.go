package xmlfmt

import (
	"encoding/xml"

	"github.com/rpmrepo/repomd"
)

type changelogElem struct {
	Author string `xml:"author,attr"`
	Date   int64  `xml:"date,attr"`
	Text   string `xml:",chardata"`
}

type otherPackage struct {
	XMLName   xml.Name        `xml:"package"`
	Pkgid     string          `xml:"pkgid,attr"`
	Name      string          `xml:"name,attr"`
	Arch      string          `xml:"arch,attr"`
	Version   versionElem     `xml:"version"`
	Changelog []changelogElem `xml:"changelog"`
}

// Other dumps the other.xml fragment for p: every changelog entry in
// stored (most-recent-first) order, capped at limit entries when limit is
// non-negative (the --changelog-limit flag; 0 means "no changelogs at
// all", matching spec.md §8's changelog_limit=0 boundary case -- a
// negative limit means unlimited).
func Other(p *repomd.Package, limit int) (string, error) {
	cs := p.Changelogs
	if limit >= 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	out := make([]changelogElem, len(cs))
	for i, c := range cs {
		out[i] = changelogElem{Author: sanitize(c.Author), Date: c.Date, Text: sanitize(c.Text)}
	}
	pkg := otherPackage{
		Pkgid:     p.PkgID,
		Name:      p.Name,
		Arch:      p.Arch,
		Version:   versionOf(p),
		Changelog: out,
	}
	return marshalFragment(pkg)
}
