package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("rpm"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWalkFindsRPMsSortedAndExcludesOthers(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"b/second-1.0-1.noarch.rpm",
		"a/first-1.0-1.noarch.rpm",
		"README",
		"debug/foo-debuginfo-1.0-1.noarch.rpm",
	)

	files, err := Walk(root, Filter{Excludes: []string{"debug/*"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("Walk found %d files, want 2: %+v", len(files), files)
	}
	if files[0].RelativePath != "a/first-1.0-1.noarch.rpm" || files[1].RelativePath != "b/second-1.0-1.noarch.rpm" {
		t.Errorf("Walk did not return files in lexical order: %+v", files)
	}
}

func TestWalkIncludesFilterIsWhitelist(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "foo-1.0-1.noarch.rpm", "bar-1.0-1.noarch.rpm")

	files, err := Walk(root, Filter{Includes: []string{"foo-*"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].RelativePath != "foo-1.0-1.noarch.rpm" {
		t.Fatalf("Walk with Includes = %+v, want only foo-1.0-1.noarch.rpm", files)
	}
}

func TestWalkAllowlistPreservesOrderAndAppliesExcludes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "z.rpm", "a.rpm", "skip.rpm")

	files, err := Walk(root, Filter{
		Allowlist: []string{"z.rpm", "skip.rpm", "a.rpm"},
		Excludes:  []string{"skip.rpm"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("Walk found %d files, want 2: %+v", len(files), files)
	}
	if files[0].RelativePath != "z.rpm" || files[1].RelativePath != "a.rpm" {
		t.Errorf("Walk with Allowlist should preserve the list's order, got %+v", files)
	}
}
