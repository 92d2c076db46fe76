package rpmpkg

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
)

// blobBuilder assembles a synthetic header blob in the format [Header.Parse]
// expects: an 8-byte INDEXCOUNT/HSIZE pair, an index table of 16-byte
// EntryInfo records, then a data store. Offsets are assigned as entries are
// added, in the same order they're appended to the data store.
type blobBuilder struct {
	entries []EntryInfo
	data    bytes.Buffer
}

func (b *blobBuilder) addString(tag Tag, s string) {
	off := int32(b.data.Len())
	b.data.WriteString(s)
	b.data.WriteByte(0)
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: TypeString, offset: off, count: 1})
}

func (b *blobBuilder) addStringArray(tag Tag, ss []string) {
	off := int32(b.data.Len())
	for _, s := range ss {
		b.data.WriteString(s)
		b.data.WriteByte(0)
	}
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: TypeStringArray, offset: off, count: uint32(len(ss))})
}

func (b *blobBuilder) addInt32(tag Tag, vs ...int32) {
	b.pad(4)
	off := int32(b.data.Len())
	for _, v := range vs {
		binary.Write(&b.data, binary.BigEndian, v)
	}
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: TypeInt32, offset: off, count: uint32(len(vs))})
}

func (b *blobBuilder) addInt16(tag Tag, vs ...int16) {
	b.pad(2)
	off := int32(b.data.Len())
	for _, v := range vs {
		binary.Write(&b.data, binary.BigEndian, v)
	}
	b.entries = append(b.entries, EntryInfo{Tag: tag, Type: TypeInt16, offset: off, count: uint32(len(vs))})
}

func (b *blobBuilder) pad(align int) {
	for b.data.Len()%align != 0 {
		b.data.WriteByte(0)
	}
}

func (b *blobBuilder) bytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(b.entries)))
	binary.Write(&buf, binary.BigEndian, uint32(b.data.Len()))
	for _, e := range b.entries {
		binary.Write(&buf, binary.BigEndian, int32(e.Tag))
		binary.Write(&buf, binary.BigEndian, uint32(e.Type))
		binary.Write(&buf, binary.BigEndian, e.offset)
		binary.Write(&buf, binary.BigEndian, e.count)
	}
	buf.Write(b.data.Bytes())
	return buf.Bytes()
}

func TestLoadRecordScalars(t *testing.T) {
	ctx := context.Background()
	var b blobBuilder
	b.addInt32(TagEpoch, 0)
	b.addString(TagName, "foo")
	b.addString(TagVersion, "1.0")
	b.addString(TagRelease, "1")
	b.addString(TagArch, "noarch")
	b.addStringArray(TagBasenames, []string{"bin/foo"})
	b.addStringArray(TagDirnames, []string{"/usr/"})
	b.addInt32(TagDirindexes, 0)
	b.addInt16(TagFileModes, 0o100755)
	b.addInt32(TagFileFlags, 0)

	raw := b.bytes()
	h, err := ParseHeader(ctx, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	rec, err := LoadRecord(ctx, h)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}

	if rec.Name != "foo" {
		t.Errorf("Name = %q, want foo", rec.Name)
	}
	if rec.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", rec.Version)
	}
	if rec.Release != "1" {
		t.Errorf("Release = %q, want 1", rec.Release)
	}
	if rec.Arch != "noarch" {
		t.Errorf("Arch = %q, want noarch", rec.Arch)
	}
	if rec.Epoch != "0" {
		t.Errorf("Epoch = %q, want 0", rec.Epoch)
	}
	if len(rec.Files) != 1 || rec.Files[0].Path != "/usr/bin/foo" {
		t.Errorf("Files = %+v, want [/usr/bin/foo]", rec.Files)
	}
	if rec.Files[0].Kind != FileRegular {
		t.Errorf("Files[0].Kind = %v, want FileRegular", rec.Files[0].Kind)
	}
}

func TestLoadRecordDeps(t *testing.T) {
	ctx := context.Background()
	var b blobBuilder
	b.addString(TagName, "foo")
	b.addStringArray(TagRequireName, []string{"libc.so.6(GLIBC_2.2.5)(64bit)", "bar"})
	b.addInt32(TagRequireFlags, int32(DepGE), int32(DepAny))
	b.addStringArray(TagRequireVersion, []string{"1:2.3-4", ""})

	raw := b.bytes()
	h, err := ParseHeader(ctx, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	rec, err := LoadRecord(ctx, h)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if len(rec.Requires) != 2 {
		t.Fatalf("Requires = %+v, want 2 entries", rec.Requires)
	}
	d := rec.Requires[0]
	if d.Name != "libc.so.6(GLIBC_2.2.5)(64bit)" || d.Epoch != "1" || d.Version != "2.3" || d.Release != "4" {
		t.Errorf("Requires[0] = %+v", d)
	}
	if rec.Requires[0].Flags != DepGE {
		t.Errorf("Requires[0].Flags = %v, want DepGE", rec.Requires[0].Flags)
	}
}
