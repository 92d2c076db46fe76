package pool

import (
	"testing"

	"github.com/rpmrepo/repomd/internal/rpmpkg"
)

func TestNEVRAString(t *testing.T) {
	n := NEVRA{Name: "foo", Epoch: "0", Version: "1.0", Release: "1", Arch: "x86_64"}
	if got, want := n.String(), "foo-1.0-1.x86_64"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	n.Epoch = "2"
	if got, want := n.String(), "foo-2:1.0-1.x86_64"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDupTable(t *testing.T) {
	dt := NewDupTable()
	n := NEVRA{Name: "foo", Version: "1.0", Release: "1", Arch: "x86_64"}
	if got := dt.Record(n, "a/foo.rpm"); got != 1 {
		t.Errorf("first Record = %d, want 1", got)
	}
	if got := dt.Record(n, "b/foo.rpm"); got != 2 {
		t.Errorf("second Record = %d, want 2", got)
	}
	other := NEVRA{Name: "bar", Version: "1.0", Release: "1", Arch: "x86_64"}
	dt.Record(other, "a/bar.rpm")

	warnings := dt.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Warnings() = %v, want 1 entry", warnings)
	}
}

func TestFilterLibcRequires(t *testing.T) {
	deps := []rpmpkg.Dep{
		{Name: "libc.so.6(GLIBC_2.2.5)(64bit)"},
		{Name: "libc.so.6(GLIBC_2.17)(64bit)"},
		{Name: "libc.so.6(GLIBC_2.4)(64bit)"},
		{Name: "libfoo.so.1"},
	}
	got := FilterLibcRequires(deps)

	var libcCount int
	var keptVersion string
	for _, d := range got {
		if base, ver, ok := splitLibcVersion(d.Name); ok && base == libcBaseName {
			libcCount++
			keptVersion = ver
		}
	}
	if libcCount != 1 {
		t.Fatalf("got %d libc.so.6 requires, want 1: %+v", libcCount, got)
	}
	if keptVersion != "GLIBC_2.17" {
		t.Errorf("kept version %q, want GLIBC_2.17", keptVersion)
	}
	if len(got) != 2 {
		t.Errorf("len(got) = %d, want 2 (1 libc + libfoo)", len(got))
	}
}
