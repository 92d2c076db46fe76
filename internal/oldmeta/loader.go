// Package oldmeta streams an existing primary/filelists/other XML triple
// and materializes a keyed cache of prior [repomd.Package] objects, for
// the incremental update engine (spec.md §4.3).
package oldmeta

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/xmlutil"
)

// Sources names the three existing metadata files to load.
type Sources struct {
	Primary, Filelists, Other io.Reader
}

// Cache is the keyed map the update engine steals from: cleaned
// location_href -> cached Package (spec.md §3's "Old-metadata cache").
type Cache struct {
	byLocation map[string]*repomd.Package
}

// Lookup returns the cached Package at the cleaned location, and reports
// whether one was found.
func (c *Cache) Lookup(location string) (*repomd.Package, bool) {
	p, ok := c.byLocation[CleanLocation(location)]
	return p, ok
}

// Take returns and removes the cached Package at the cleaned location --
// the "atomic steal" spec.md §4.3 describes. Callers sharing a Cache
// across worker goroutines must hold their own lock around Take; this
// type has none of its own (see internal/pool's update engine, which owns
// the mutex).
func (c *Cache) Take(location string) (*repomd.Package, bool) {
	key := CleanLocation(location)
	p, ok := c.byLocation[key]
	if ok {
		delete(c.byLocation, key)
	}
	return p, ok
}

// Len reports how many entries remain in the cache.
func (c *Cache) Len() int { return len(c.byLocation) }

// CleanLocation implements spec.md §3's "cleaned(location_href)" rule:
// strip any leading "./" and any fragment suffix ("#...", used for
// per-media base URLs), then key on the basename alone, so a package
// moved to a different directory between runs is still the same cache
// key. Grounded on original_source/load_metadata_2.c, which keys its old-
// metadata hash table on location_href's final path component
// (g_strrstr(location_href, "/") + 1) rather than the full path.
func CleanLocation(href string) string {
	href = strings.TrimPrefix(href, "./")
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		href = href[i+1:]
	}
	return href
}

// Load streams the three existing documents in lockstep, one <package>
// element at a time, and returns the resulting [Cache]. A <package>
// element that fails to decode produces a [repomd.BadXml] warning and is
// skipped (spec.md §4.3/§7). A syntax or read error ends that stream: it
// produces a [repomd.BadXml] warning and the load stops there, keeping the
// packages read before it.
func Load(src Sources) (*Cache, []error, error) {
	pd := newStreamDecoder(src.Primary)
	fd := newStreamDecoder(src.Filelists)
	od := newStreamDecoder(src.Other)

	cache := &Cache{byLocation: make(map[string]*repomd.Package)}
	var warnings []error

	for {
		var pp primaryDecoded
		var fp filelistsDecoded
		var op otherDecoded

		pOK, pErr := pd.next(&pp)
		fOK, fErr := fd.next(&fp)
		oOK, oErr := od.next(&op)

		if !pOK && !fOK && !oOK && pErr == nil && fErr == nil && oErr == nil {
			break
		}
		if pErr != nil || fErr != nil || oErr != nil {
			for _, err := range []error{pErr, fErr, oErr} {
				if err != nil {
					warnings = append(warnings, &repomd.Error{Op: "oldmeta.Load", Kind: repomd.BadXml, Inner: err})
				}
			}
			continue
		}
		if !pOK || !fOK || !oOK {
			warnings = append(warnings, &repomd.Error{Op: "oldmeta.Load", Kind: repomd.BadXml, Message: "primary/filelists/other package counts don't match"})
			break
		}

		pkg := mergePackage(&pp, &fp, &op)
		cache.byLocation[CleanLocation(pkg.LocationHref)] = pkg
	}

	return cache, warnings, nil
}

// streamDecoder advances an xml.Decoder one <package> element at a time.
type streamDecoder struct {
	dec *xml.Decoder
}

func newStreamDecoder(r io.Reader) *streamDecoder {
	if r == nil {
		return &streamDecoder{}
	}
	dec := xml.NewDecoder(r)
	dec.CharsetReader = xmlutil.CharsetReader
	return &streamDecoder{dec: dec}
}

// next advances to the next <package> start element and decodes its
// subtree into v, reporting ok=false at end of input.
func (s *streamDecoder) next(v any) (ok bool, err error) {
	if s.dec == nil {
		return false, nil
	}
	for {
		tok, err := s.dec.Token()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			// xml.Decoder keeps returning the same error once it has one.
			s.dec = nil
			return false, fmt.Errorf("oldmeta: %w", err)
		}
		se, isStart := tok.(xml.StartElement)
		if !isStart || se.Name.Local != "package" {
			continue
		}
		if err := s.dec.DecodeElement(v, &se); err != nil {
			return false, fmt.Errorf("oldmeta: decoding package element: %w", err)
		}
		return true, nil
	}
}
