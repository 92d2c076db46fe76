package xmlfmt

import (
	"encoding/xml"
	"fmt"

	"github.com/rpmrepo/repomd"
)

type repomdChecksum struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type repomdLocation struct {
	XMLBase string `xml:"xml:base,attr,omitempty"`
	Href    string `xml:"href,attr"`
}

type repomdData struct {
	Type            string          `xml:"type,attr"`
	Checksum        repomdChecksum  `xml:"checksum"`
	OpenChecksum    *repomdChecksum `xml:"open-checksum,omitempty"`
	HeaderChecksum  *repomdChecksum `xml:"header-checksum,omitempty"`
	Location        repomdLocation  `xml:"location"`
	Timestamp       int64           `xml:"timestamp"`
	Size            int64           `xml:"size"`
	OpenSize        int64           `xml:"open-size"`
	HeaderSize      int64           `xml:"header-size,omitempty"`
	DatabaseVersion int             `xml:"database_version,omitempty"`
}

type repomdDoc struct {
	XMLName  xml.Name     `xml:"repomd"`
	Xmlns    string       `xml:"xmlns,attr"`
	XmlnsRpm string       `xml:"xmlns:rpm,attr"`
	Revision int64        `xml:"revision"`
	Data     []repomdData `xml:"data"`
}

// Repomd builds repomd.xml's bytes from the per-stream records the driver
// collects after each output file is finalized (spec.md §6): one <data>
// block per stream, in the order given, a <revision> of the supplied unix
// timestamp, and the standard repo/rpm namespace declarations.
func Repomd(records []repomd.RepomdRecord, revision int64) ([]byte, error) {
	doc := repomdDoc{
		Xmlns:    "http://linux.duke.edu/metadata/repo",
		XmlnsRpm: "http://linux.duke.edu/metadata/rpm",
		Revision: revision,
	}
	for _, r := range records {
		d := repomdData{
			Type:            r.Type,
			Checksum:        repomdChecksum{Type: r.ChecksumType, Value: r.Checksum},
			Location:        repomdLocation{Href: r.LocationHref, XMLBase: r.LocationBase},
			Timestamp:       r.Timestamp,
			Size:            r.Size,
			OpenSize:        r.SizeOpen,
			DatabaseVersion: r.DBVersion,
		}
		if r.OpenChecksum != "" {
			d.OpenChecksum = &repomdChecksum{Type: r.OpenChecksumType, Value: r.OpenChecksum}
		}
		doc.Data = append(doc.Data, d)
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b)+64)
	out = append(out, []byte("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")...)
	out = append(out, b...)
	out = append(out, '\n')
	return out, nil
}

// ParseRepomd reads a repomd.xml document (the inverse of [Repomd]), for
// the update engine's "find the existing primary/filelists/other" lookup
// (spec.md §4.3's old-metadata loader, which needs the prior run's
// location_hrefs before it can open those files).
func ParseRepomd(data []byte) ([]repomd.RepomdRecord, int64, error) {
	var doc repomdDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("xmlfmt: parsing repomd.xml: %w", err)
	}
	out := make([]repomd.RepomdRecord, len(doc.Data))
	for i, d := range doc.Data {
		r := repomd.RepomdRecord{
			Type:         d.Type,
			LocationHref: d.Location.Href,
			LocationBase: d.Location.XMLBase,
			Checksum:     d.Checksum.Value,
			ChecksumType: d.Checksum.Type,
			Size:         d.Size,
			SizeOpen:     d.OpenSize,
			Timestamp:    d.Timestamp,
			DBVersion:    d.DatabaseVersion,
		}
		if d.OpenChecksum != nil {
			r.OpenChecksum = d.OpenChecksum.Value
			r.OpenChecksumType = d.OpenChecksum.Type
		}
		out[i] = r
	}
	return out, doc.Revision, nil
}
