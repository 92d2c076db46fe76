package rpmpkg

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
)

// buildBlob wraps a blobBuilder's output with the 8-byte magic/reserved
// preamble blobSize expects (the builder itself produces what Header.Parse
// wants, i.e. without that preamble).
func buildBlob(b *blobBuilder) []byte {
	body := b.bytes()
	var buf bytes.Buffer
	buf.Write([]byte{0x8e, 0xad, 0xe8, 0x01, 0, 0, 0, 0})
	buf.Write(body)
	return buf.Bytes()
}

func TestFindHeadersAndRead(t *testing.T) {
	var sig blobBuilder
	sig.addString(TagSigPGP, "not-a-real-signature")
	sigBlob := buildBlob(&sig)

	var main blobBuilder
	main.addString(TagName, "foo")
	main.addString(TagVersion, "1.0")
	main.addString(TagRelease, "1")
	mainBlob := buildBlob(&main)

	var file bytes.Buffer
	lead := make([]byte, leadSize)
	lead[0], lead[1], lead[2], lead[3] = 0xed, 0xab, 0xee, 0xdb
	file.Write(lead)
	file.Write(sigBlob)
	for file.Len()%8 != 0 {
		file.WriteByte(0)
	}
	file.Write(mainBlob)
	file.WriteString("payload-bytes")

	ra := bytes.NewReader(file.Bytes())
	rg, err := FindHeaders(ra)
	if err != nil {
		t.Fatalf("FindHeaders: %v", err)
	}
	if rg.HeaderStart%8 != 0 {
		t.Errorf("HeaderStart %d not 8-byte aligned", rg.HeaderStart)
	}

	h, err := ParseHeader(context.Background(), headerReaderAt(ra, rg.HeaderStart))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	rec, err := LoadRecord(context.Background(), h)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.Name != "foo" || rec.Version != "1.0" || rec.Release != "1" {
		t.Errorf("rec = %+v", rec)
	}

	if got := file.Bytes()[rg.PayloadStart:]; string(got) != "payload-bytes" {
		t.Errorf("PayloadStart landed at %q, want payload-bytes", got)
	}
}

func TestFindHeadersNotRPM(t *testing.T) {
	var buf [leadSize]byte
	if _, err := FindHeaders(bytes.NewReader(buf[:])); err != ErrNotRPM {
		t.Errorf("err = %v, want ErrNotRPM", err)
	}
}

func TestBlobSizeBadMagic(t *testing.T) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint32(b[8:], 1)
	if _, err := blobSize(bytes.NewReader(b), 0); err == nil {
		t.Error("expected error on bad blob magic")
	}
}
