package xmlfmt

import (
	"encoding/xml"

	"github.com/rpmrepo/repomd"
)

type filelistsPackage struct {
	XMLName xml.Name    `xml:"package"`
	Pkgid   string      `xml:"pkgid,attr"`
	Name    string      `xml:"name,attr"`
	Arch    string      `xml:"arch,attr"`
	Version versionElem `xml:"version"`
	Files   []fileElem  `xml:"file"`
}

// Filelists dumps the filelists.xml fragment for p: every file, not just
// the primary subset (spec.md §4.5).
func Filelists(p *repomd.Package) (string, error) {
	pkg := filelistsPackage{
		Pkgid:   p.PkgID,
		Name:    p.Name,
		Arch:    p.Arch,
		Version: versionOf(p),
		Files:   fileElems(p.Files, false),
	}
	return marshalFragment(pkg)
}
