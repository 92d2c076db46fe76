// Package rpmpkg is the RPM header reader: given the path to an RPM file,
// it returns a typed record of header fields plus the byte range the main
// header occupies in the file.
//
// The on-disk formats decoded here (the lead/signature framing in lead.go,
// the header blob format in header.go/tag.go) are RPM's own wire formats,
// not anything specific to repository metadata generation -- this package
// is the "black box" spec.md's design notes describe, implemented rather
// than stubbed because claircore already carries most of the low-level
// decoder this needs.
package rpmpkg

import (
	"context"
	"fmt"
	"os"
)

// ReadOptions controls how much of an RPM is decoded.
type ReadOptions struct {
	// LoadSignature causes the signature header to be decoded too, so that
	// SigGPG/SigPGP/HdrID get populated. Skipped by default because it's
	// only needed when a checksum cache directory is configured (see
	// internal/checksum).
	LoadSignature bool
}

// Read opens the RPM file at path and decodes its header section(s).
//
// It returns the populated [Record] and the byte range ([Ranges]) the main
// header occupies in the file, which callers use to populate a package's
// rpm_header_start/rpm_header_end fields.
func Read(ctx context.Context, path string, opts ReadOptions) (*Record, *Ranges, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("rpmpkg: %w", err)
	}
	defer f.Close()

	rg, err := FindHeaders(f)
	if err != nil {
		return nil, nil, fmt.Errorf("rpmpkg: %s: %w", path, err)
	}

	mainHdr, err := ParseHeader(ctx, headerReaderAt(f, rg.HeaderStart))
	if err != nil {
		return nil, nil, fmt.Errorf("rpmpkg: %s: parsing header: %w", path, err)
	}
	rec, err := LoadRecord(ctx, mainHdr)
	if err != nil {
		return nil, nil, fmt.Errorf("rpmpkg: %s: %w", path, err)
	}

	if opts.LoadSignature {
		sigHdr, err := ParseHeader(ctx, headerReaderAt(f, rg.SignatureStart))
		if err != nil {
			return nil, nil, fmt.Errorf("rpmpkg: %s: parsing signature header: %w", path, err)
		}
		if err := LoadSignature(ctx, sigHdr, rec); err != nil {
			return nil, nil, fmt.Errorf("rpmpkg: %s: %w", path, err)
		}
	}

	return rec, rg, nil
}
