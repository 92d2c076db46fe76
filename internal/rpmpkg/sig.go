package rpmpkg

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/crypto/openpgp/packet"
)

var wantSigTags = map[Tag]struct{}{
	TagSigGPG:       {},
	TagSigPGP:       {},
	TagSHA1Header:   {},
	TagSHA256Header: {},
}

// LoadSignature populates SigGPG, SigPGP and HdrID on rec from a parsed
// signature [Header]. Mirrors LoadRecord's tag-dispatch shape but walks the
// much smaller set of signature tags.
func LoadSignature(ctx context.Context, h *Header, rec *Record) error {
	for idx := range h.Infos {
		e := &h.Infos[idx]
		if _, ok := wantSigTags[e.Tag]; !ok {
			continue
		}
		v, err := h.ReadData(ctx, e)
		if err != nil {
			return fmt.Errorf("rpmpkg: reading signature tag %v: %w", e.Tag, err)
		}
		switch e.Tag {
		case TagSigGPG:
			rec.SigGPG = v.([]byte)
		case TagSigPGP:
			rec.SigPGP = v.([]byte)
		case TagSHA256Header:
			rec.HdrID = []byte(v.(string))
		case TagSHA1Header:
			if rec.HdrID == nil {
				rec.HdrID = []byte(v.(string))
			}
		}
	}
	return nil
}

// SignatureKeyHint extracts a short hex key-ID hint from whichever
// signature blob is present, for diagnostic purposes only -- this never
// performs (or implies) signature verification, which is explicitly out of
// scope (spec.md's Non-goals).
func SignatureKeyHint(rec *Record) string {
	blob := rec.SigGPG
	if len(blob) == 0 {
		blob = rec.SigPGP
	}
	if len(blob) == 0 {
		return ""
	}
	prd := packet.NewReader(bytes.NewReader(blob))
	for {
		p, err := prd.Next()
		if err != nil {
			break
		}
		switch p := p.(type) {
		case *packet.SignatureV3:
			if p.SigType == 0 {
				return fmt.Sprintf("%016x", p.IssuerKeyId)
			}
		case *packet.Signature:
			if p.SigType == 0 && p.IssuerKeyId != nil {
				return fmt.Sprintf("%016x", *p.IssuerKeyId)
			}
		}
	}
	return ""
}
