package rpmpkg

import (
	"encoding/binary"
	"fmt"
	"io"
)

// leadSize is the size of the fixed-format RPM "lead" that begins every
// ".rpm" file. Modern RPM mostly ignores its contents (the real metadata
// lives in the header sections that follow) but it must still be skipped.
const leadSize = 96

var leadMagic = [4]byte{0xed, 0xab, 0xee, 0xdb}

// ErrNotRPM is returned when a file doesn't start with the RPM lead magic.
var ErrNotRPM = fmt.Errorf("rpmpkg: not an RPM file")

// Ranges describes the byte ranges of the two header blobs ("signature" and
// "main") found in an RPM file, plus the offset where the payload begins.
type Ranges struct {
	SignatureStart, SignatureEnd int64
	HeaderStart, HeaderEnd       int64
	PayloadStart                int64
}

// FindHeaders reads the lead and both header blobs of an RPM file and
// reports their byte ranges within r.
//
// Only the main header's range is part of the [Package] contract
// (spec's rpm_header_start/rpm_header_end); the signature header's range
// is reported too since decoding it is necessary to locate the main header,
// and some signature tags (PGP/GPG blobs, header+payload digest) are read
// from it directly.
func FindHeaders(r io.ReaderAt) (*Ranges, error) {
	var lead [leadSize]byte
	if _, err := r.ReadAt(lead[:], 0); err != nil {
		return nil, fmt.Errorf("rpmpkg: short read on lead: %w", err)
	}
	if lead[0] != leadMagic[0] || lead[1] != leadMagic[1] || lead[2] != leadMagic[2] || lead[3] != leadMagic[3] {
		return nil, ErrNotRPM
	}

	rg := &Ranges{SignatureStart: leadSize}
	sigSz, err := blobSize(r, rg.SignatureStart)
	if err != nil {
		return nil, fmt.Errorf("rpmpkg: reading signature header: %w", err)
	}
	rg.SignatureEnd = rg.SignatureStart + sigSz
	// The signature header is padded to an 8-byte boundary before the main
	// header begins.
	rg.HeaderStart = align8(rg.SignatureEnd)

	hdrSz, err := blobSize(r, rg.HeaderStart)
	if err != nil {
		return nil, fmt.Errorf("rpmpkg: reading main header: %w", err)
	}
	rg.HeaderEnd = rg.HeaderStart + hdrSz
	rg.PayloadStart = rg.HeaderEnd

	return rg, nil
}

func align8(off int64) int64 {
	if rem := off % 8; rem != 0 {
		off += 8 - rem
	}
	return off
}

// blobSize reads the 16-byte preamble (8-byte magic/reserved + the
// INDEXCOUNT/HSIZE pair the rpmdb-format [Header] decoder expects) at off
// and returns the total size, in bytes, of the header blob starting there
// (preamble + index table + data store).
func blobSize(r io.ReaderAt, off int64) (int64, error) {
	const (
		blobMagic0 = 0x8e
		blobMagic1 = 0xad
		blobMagic2 = 0xe8
		blobMagic3 = 0x01
	)
	var preamble [16]byte
	if _, err := r.ReadAt(preamble[:], off); err != nil {
		return 0, fmt.Errorf("short read on header preamble: %w", err)
	}
	if preamble[0] != blobMagic0 || preamble[1] != blobMagic1 || preamble[2] != blobMagic2 || preamble[3] != blobMagic3 {
		return 0, fmt.Errorf("bad header blob magic")
	}
	tagsCt := binary.BigEndian.Uint32(preamble[8:12])
	dataSz := binary.BigEndian.Uint32(preamble[12:16])
	// The 8-byte preamble consumed by [Header.Parse] is the INDEXCOUNT/HSIZE
	// pair; the 8 bytes of magic/reserved read above sit in front of it.
	return 8 + 8 + int64(tagsCt)*entryInfoSize + int64(dataSz), nil
}

// headerReaderAt adapts the region of r starting at start into the
// io.ReaderAt [Header.Parse] expects, which wants to see the
// INDEXCOUNT/HSIZE pair at offset 0 -- i.e. skipping the 8-byte
// magic/reserved block blobSize accounted for.
func headerReaderAt(r io.ReaderAt, start int64) io.ReaderAt {
	return &offsetReaderAt{r: r, base: start + 8}
}

type offsetReaderAt struct {
	r    io.ReaderAt
	base int64
}

func (o *offsetReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return o.r.ReadAt(p, o.base+off)
}
