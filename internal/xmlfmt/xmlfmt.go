// Package xmlfmt is the XML serializer: a pure function from a
// [repomd.Package] to the three UTF-8 XML fragments (primary, filelists,
// other) spec.md §4.5 describes, plus the outer-document open/close tags
// and the repomd.xml builder.
package xmlfmt

import (
	"encoding/xml"
	"regexp"
	"strconv"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/xmlutil"
)

// versionElem is the shared <version epoch="" ver="" rel=""/> element used
// by primary, filelists and other fragments.
type versionElem struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

func versionOf(p *repomd.Package) versionElem {
	return versionElem{Epoch: p.Epoch, Ver: p.Version, Rel: p.Release}
}

// fileElem is a <file> entry, shared by primary (primary-only files, "file"
// type attribute omitted per spec.md §4.5) and filelists (every file, same
// omission rule for the regular/"file" kind).
type fileElem struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

func fileTypeAttr(t repomd.FileType) string {
	switch t {
	case repomd.FileDir:
		return "dir"
	case repomd.FileGhost:
		return "ghost"
	default:
		return ""
	}
}

func fileElems(files []repomd.PackageFile, primaryOnly bool) []fileElem {
	out := make([]fileElem, 0, len(files))
	for _, f := range files {
		if primaryOnly && !repomd.IsPrimaryFile(f.Path) {
			continue
		}
		out = append(out, fileElem{Type: fileTypeAttr(f.Type), Value: f.Path})
	}
	return out
}

// depEntry is one <rpm:entry> of a provides/requires/conflicts/obsoletes
// block.
type depEntry struct {
	Name  string `xml:"name,attr"`
	Flags string `xml:"flags,attr,omitempty"`
	Epoch string `xml:"epoch,attr,omitempty"`
	Ver   string `xml:"ver,attr,omitempty"`
	Rel   string `xml:"rel,attr,omitempty"`
	Pre   string `xml:"pre,attr,omitempty"`
}

type depList struct {
	Entry []depEntry `xml:"rpm:entry"`
}

func buildDepList(deps []repomd.Dependency) depList {
	dl := depList{Entry: make([]depEntry, len(deps))}
	for i, d := range deps {
		e := depEntry{Name: d.Name}
		if d.Flags != repomd.DepAny {
			e.Flags = d.Flags.String()
			e.Epoch = d.Epoch
			e.Ver = d.Version
			e.Rel = d.Release
		}
		if d.Pre {
			e.Pre = "1"
		}
		dl.Entry[i] = e
	}
	return dl
}

// emptyElem matches a content-free element pair produced by
// encoding/xml -- which always writes an explicit close tag, never a
// self-closed one -- so it can be collapsed into the self-closing form
// createrepo's own output uses for elements like <version .../> and
// <location .../>.
var emptyElem = regexp.MustCompile(`<([\w:-]+)((?:\s+[\w:-]+="[^"]*")*)></` + `[\w:-]+>`)

func collapseEmptyElems(s string) string {
	return emptyElem.ReplaceAllString(s, `<$1$2/>`)
}

// marshalFragment indents and terminates a single <package> element with
// the trailing newline spec.md §4.5 requires ("The fragment is terminated
// by a single newline").
func marshalFragment(v any) (string, error) {
	b, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return collapseEmptyElems(string(b)) + "\n", nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func sanitize(s string) string { return xmlutil.SanitizeUTF8(s) }
