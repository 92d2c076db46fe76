package oldmeta

import (
	"strings"
	"testing"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/xmlfmt"
)

func samplePackage() *repomd.Package {
	return &repomd.Package{
		Name:          "foo",
		Arch:          "noarch",
		Epoch:         "0",
		Version:       "1.0",
		Release:       "1",
		PkgID:         "deadbeef",
		ChecksumType:  "sha256",
		Summary:       "a test package",
		Description:   "a longer description",
		URL:           "https://example.com/foo",
		License:       "MIT",
		Vendor:        "Test Vendor",
		Group:         "Applications/Test",
		BuildHost:     "builder.example.com",
		SourceRPM:     "foo-1.0-1.src.rpm",
		Packager:      "packager@example.com",
		SizePackage:   1024,
		SizeInstalled: 2048,
		SizeArchive:   4096,
		TimeFile:      1700000000,
		TimeBuild:     1699999000,
		LocationHref:  "foo-1.0-1.noarch.rpm",
		Files: []repomd.PackageFile{
			{Path: "/usr/bin/foo", Name: "foo", Type: repomd.FileRegular},
			{Path: "/usr/share/foo", Name: "foo", Type: repomd.FileDir},
		},
		Changelogs: []repomd.ChangelogEntry{
			{Author: "Dev One <dev@example.com>", Date: 1699999999, Text: "- initial build"},
		},
		Provides: []repomd.Dependency{
			{Name: "foo", Flags: repomd.DepEQ, Epoch: "0", Version: "1.0", Release: "1"},
		},
		Requires: []repomd.Dependency{
			{Name: "libc.so.6", Flags: repomd.DepAny},
		},
	}
}

// TestLoadRoundTrip is spec.md §8's round-trip property: parse/dump (here,
// a hand-built Package), load-old, dump again must produce the same
// primary/filelists/other fragments (location element aside).
func TestLoadRoundTrip(t *testing.T) {
	pkg := samplePackage()

	wantPrimary, err := xmlfmt.Primary(pkg)
	if err != nil {
		t.Fatalf("Primary: %v", err)
	}
	wantFilelists, err := xmlfmt.Filelists(pkg)
	if err != nil {
		t.Fatalf("Filelists: %v", err)
	}
	wantOther, err := xmlfmt.Other(pkg, 0)
	if err != nil {
		t.Fatalf("Other: %v", err)
	}

	cache, warnings, err := Load(Sources{
		Primary:   strings.NewReader(wantPrimary),
		Filelists: strings.NewReader(wantFilelists),
		Other:     strings.NewReader(wantOther),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("Load warnings: %v", warnings)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache.Len() = %d, want 1", cache.Len())
	}

	cached, ok := cache.Lookup("foo-1.0-1.noarch.rpm")
	if !ok {
		t.Fatal("Lookup(foo-1.0-1.noarch.rpm) missed")
	}
	if !cached.Cached {
		t.Error("loaded Package should have Cached = true")
	}

	gotPrimary, err := xmlfmt.Primary(cached)
	if err != nil {
		t.Fatalf("Primary (reloaded): %v", err)
	}
	if gotPrimary != wantPrimary {
		t.Errorf("primary fragment changed across a round-trip:\n got  %s\n want %s", gotPrimary, wantPrimary)
	}
	gotFilelists, err := xmlfmt.Filelists(cached)
	if err != nil {
		t.Fatalf("Filelists (reloaded): %v", err)
	}
	if gotFilelists != wantFilelists {
		t.Errorf("filelists fragment changed across a round-trip:\n got  %s\n want %s", gotFilelists, wantFilelists)
	}
	gotOther, err := xmlfmt.Other(cached, 0)
	if err != nil {
		t.Fatalf("Other (reloaded): %v", err)
	}
	if gotOther != wantOther {
		t.Errorf("other fragment changed across a round-trip:\n got  %s\n want %s", gotOther, wantOther)
	}
}

// TestTakeStealsEntry checks the "atomic steal" removal semantics: Take
// must both return and remove the entry so a second lookup misses.
func TestTakeStealsEntry(t *testing.T) {
	pkg := samplePackage()
	primary, _ := xmlfmt.Primary(pkg)
	filelists, _ := xmlfmt.Filelists(pkg)
	other, _ := xmlfmt.Other(pkg, 0)

	cache, _, err := Load(Sources{
		Primary:   strings.NewReader(primary),
		Filelists: strings.NewReader(filelists),
		Other:     strings.NewReader(other),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := cache.Take("foo-1.0-1.noarch.rpm"); !ok {
		t.Fatal("Take missed on first call")
	}
	if _, ok := cache.Take("foo-1.0-1.noarch.rpm"); ok {
		t.Fatal("Take succeeded twice; entry was not stolen")
	}
	if cache.Len() != 0 {
		t.Errorf("cache.Len() = %d, want 0 after steal", cache.Len())
	}
}

// TestCleanLocation covers spec.md §3's "cleaned(location_href)" rule,
// including that a package's directory doesn't affect its cache key (so a
// moved-but-otherwise-identical package still hits -- spec.md §8 scenario 3).
func TestCleanLocation(t *testing.T) {
	cases := []struct{ in, want string }{
		{"foo-1.0-1.noarch.rpm", "foo-1.0-1.noarch.rpm"},
		{"./foo-1.0-1.noarch.rpm", "foo-1.0-1.noarch.rpm"},
		{"media:#1", "media:"},
		{"./subdir/foo-1.0-1.noarch.rpm#2", "foo-1.0-1.noarch.rpm"},
		{"a/b/foo-1.0-1.noarch.rpm", "foo-1.0-1.noarch.rpm"},
	}
	for _, c := range cases {
		if got := CleanLocation(c.in); got != c.want {
			t.Errorf("CleanLocation(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
