package xmlfmt

import (
	"fmt"
	"strconv"
)

// Stream identifies which of the three output documents an open/close tag
// pair is for.
type Stream int

const (
	StreamPrimary Stream = iota
	StreamFilelists
	StreamOther
)

// rootElem and xmlns are the outer-document root element name and default
// namespace for each stream (spec.md §4.5's "outer document... root
// element with a packages=\"N\" attribute and the standard namespace
// declarations").
func rootElem(s Stream) (name, xmlns string) {
	switch s {
	case StreamFilelists:
		return "filelists", "http://linux.duke.edu/metadata/filelists"
	case StreamOther:
		return "otherdata", "http://linux.duke.edu/metadata/other"
	default:
		return "metadata", "http://linux.duke.edu/metadata/common"
	}
}

// OpenTag renders the XML declaration plus the open root tag for stream s,
// declaring n packages. The driver writes this once, before the pool
// starts (spec.md §4.5's "domain expansion" outer-document note).
func OpenTag(s Stream, n int) string {
	name, xmlns := rootElem(s)
	var rpmNS string
	if s == StreamPrimary {
		rpmNS = ` xmlns:rpm="http://linux.duke.edu/metadata/rpm"`
	}
	return fmt.Sprintf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<%s xmlns=\"%s\"%s packages=\"%s\">\n",
		name, xmlns, rpmNS, strconv.Itoa(n))
}

// CloseTag renders the closing root tag for stream s, appended once the
// pool has drained.
func CloseTag(s Stream) string {
	name, _ := rootElem(s)
	return fmt.Sprintf("</%s>\n", name)
}
