package xmlfmt

import (
	"strings"
	"testing"

	"github.com/rpmrepo/repomd"
)

func testPackage() *repomd.Package {
	return &repomd.Package{
		Name:         "foo",
		Arch:         "noarch",
		Epoch:        "0",
		Version:      "1.0",
		Release:      "1",
		PkgID:        "deadbeef",
		ChecksumType: "sha256",
		LocationHref: "foo-1.0-1.noarch.rpm",
		Files: []repomd.PackageFile{
			{Path: "/usr/bin/foo", Type: repomd.FileRegular},
			{Path: "/usr/share/doc/foo", Type: repomd.FileDir},
		},
	}
}

func TestPrimaryColdRun(t *testing.T) {
	frag, err := Primary(testPackage())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"<name>foo</name>",
		`<version epoch="0" ver="1.0" rel="1"/>`,
		`<location href="foo-1.0-1.noarch.rpm"/>`,
	} {
		if !strings.Contains(frag, want) {
			t.Errorf("fragment missing %q:\n%s", want, frag)
		}
	}
	if strings.Contains(frag, "/usr/share/doc/foo") {
		t.Errorf("primary fragment should only contain primary files:\n%s", frag)
	}
}

func TestFilelistsIncludesAllFiles(t *testing.T) {
	frag, err := Filelists(testPackage())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(frag, "/usr/bin/foo") || !strings.Contains(frag, "/usr/share/doc/foo") {
		t.Errorf("filelists fragment should contain every file:\n%s", frag)
	}
	if !strings.Contains(frag, `type="dir"`) {
		t.Errorf("dir entries should carry a type attribute:\n%s", frag)
	}
}

func TestOtherChangelogLimit(t *testing.T) {
	p := testPackage()
	p.Changelogs = []repomd.ChangelogEntry{
		{Author: "a", Date: 30, Text: "third"},
		{Author: "b", Date: 20, Text: "second"},
		{Author: "c", Date: 10, Text: "first"},
	}
	frag, err := Other(p, 0)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(frag, "<changelog") {
		t.Errorf("changelog_limit=0 should emit no changelog entries:\n%s", frag)
	}

	frag, err = Other(p, 2)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(frag, "<changelog") != 2 {
		t.Errorf("expected 2 changelog entries:\n%s", frag)
	}
}

func TestFragmentTerminatedBySingleNewline(t *testing.T) {
	frag, err := Primary(testPackage())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(frag, "\n") || strings.HasSuffix(frag, "\n\n") {
		t.Errorf("fragment must be terminated by exactly one newline: %q", frag)
	}
}
