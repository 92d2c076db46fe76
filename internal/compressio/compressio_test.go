package compressio

import (
	"bytes"
	"io"
	"testing"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
		want Kind
	}{
		{"empty", nil, KindNone},
		{"plain", []byte("hello"), KindNone},
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0, 0}, KindGzip},
		{"bzip2", []byte("BZh91AY"), KindBzip2},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0}, KindXZ},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0}, KindZstd},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Detect(tc.b); got != tc.want {
				t.Errorf("Detect(%v) = %v, want %v", tc.b, got, tc.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]Kind{
		"":     KindNone,
		"none": KindNone,
		"gz":   KindGzip,
		"gzip": KindGzip,
		"bz2":  KindBzip2,
		"xz":   KindXZ,
		"zstd": KindZstd,
	} {
		got, err := ParseKind(s)
		if err != nil {
			t.Errorf("ParseKind(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseKind("lz4"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestRoundTripGzip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(KindGzip, &buf)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("some xml-ish content\n")
	if _, err := w.Write(want); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if got := Detect(buf.Bytes()); got != KindGzip {
		t.Fatalf("Detect(round-tripped) = %v, want gzip", got)
	}

	r, err := NewReader(KindGzip, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("round trip = %q, want %q", got, want)
	}
}

func TestNoWriterForBzip2(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(KindBzip2, &buf); err == nil {
		t.Error("expected error requesting a bzip2 writer")
	}
}

func TestCountingWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := &CountingWriter{W: &buf}
	n, err := cw.Write([]byte("12345"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if cw.N != 5 {
		t.Errorf("N = %d, want 5", cw.N)
	}
}
