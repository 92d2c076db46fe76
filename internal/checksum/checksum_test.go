package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDigestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pkgPath := filepath.Join(dir, "foo-1.0-1.noarch.rpm")
	if err := os.WriteFile(pkgPath, []byte("fake rpm bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	cacheDir := t.TempDir()
	e := &Engine{Algorithm: "sha256", CacheDir: cacheDir}
	req := Request{Path: pkgPath, LocationHref: "foo-1.0-1.noarch.rpm", SizeInstalled: 100, TimeFile: 12345}

	d1, err := e.Digest(req)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one cache file, got %d", len(entries))
	}

	d2, err := e.Digest(req)
	if err != nil {
		t.Fatal(err)
	}
	if d1.String() != d2.String() {
		t.Errorf("cached digest %q != fresh digest %q", d2, d1)
	}
}

func TestDigestNoCacheDir(t *testing.T) {
	dir := t.TempDir()
	pkgPath := filepath.Join(dir, "foo.rpm")
	if err := os.WriteFile(pkgPath, []byte("bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := &Engine{Algorithm: "sha256"}
	if _, err := e.Digest(Request{Path: pkgPath}); err != nil {
		t.Fatal(err)
	}
}
