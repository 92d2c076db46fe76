// Package xmlutil provides the non-UTF-8 handling shared by the old-metadata
// loader and the XML serializer: encoding/xml's CharsetReader hook for
// decoding, and a best-effort transcoder for strings pulled out of RPM
// headers that turn out not to be valid UTF-8 (spec.md §4.5).
package xmlutil

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CharsetReader implements the signature [encoding/xml.Decoder.CharsetReader]
// expects. Repository metadata XML is always supposed to declare UTF-8, but
// old or hand-edited feeds sometimes declare legacy charsets; this accepts
// UTF-8 (including its common aliases) as a no-op and falls back to
// Latin-1 transcoding for everything else, matching spec.md §4.5's
// "reinterpreted as Latin-1" rule for non-UTF-8 input.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	case "iso-8859-1", "latin1", "latin-1", "windows-1252", "cp1252":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	}
}

// SanitizeUTF8 applies spec.md §4.5's string-cleanup rule to a value pulled
// directly from an RPM header: if it isn't valid UTF-8, it's reinterpreted
// as Latin-1 and transcoded; control characters below 0x20 other than tab,
// LF and CR are stripped either way.
func SanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		if t, _, err := transform.String(charmap.ISO8859_1.NewDecoder(), s); err == nil {
			s = t
		}
	}
	return stripControl(s)
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	clean := true
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			clean = false
			continue
		}
		b.WriteRune(r)
	}
	if clean && b.Len() == len(s) {
		return s
	}
	return b.String()
}
