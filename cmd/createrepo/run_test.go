package main

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpmrepo/repomd"
	"github.com/rpmrepo/repomd/internal/xmlfmt"
)

func TestAcquireLockFresh(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, ".repodata")
	workDir, err := acquireLock(lockDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if workDir != lockDir {
		t.Errorf("workDir = %q, want lockDir %q on a fresh acquire", workDir, lockDir)
	}
	if _, err := os.Stat(lockDir); err != nil {
		t.Errorf("lockDir should exist: %v", err)
	}
}

func TestAcquireLockBusyWithoutIgnore(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, ".repodata")
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := acquireLock(lockDir, false)
	if err == nil {
		t.Fatal("expected a Lock error when .repodata already exists")
	}
	var rerr *repomd.Error
	if !errors.As(err, &rerr) || rerr.Kind != repomd.Lock {
		t.Errorf("err = %v, want a repomd.Lock error", err)
	}
}

func TestAcquireLockIgnoreUsesStagingDir(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, ".repodata")
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		t.Fatal(err)
	}
	leftover := filepath.Join(lockDir, "primary.xml.gz")
	if err := os.WriteFile(leftover, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	workDir, err := acquireLock(lockDir, true)
	if err != nil {
		t.Fatal(err)
	}
	if workDir == lockDir {
		t.Fatal("a force-cleared lock should return a distinct staging directory")
	}
	if workDir != lockDir+"-staging" {
		t.Errorf("workDir = %q, want %q", workDir, lockDir+"-staging")
	}
	if _, err := os.Stat(lockDir); err != nil {
		t.Errorf("lockDir should have been recreated as the lock marker: %v", err)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("stale file from the previous run should not survive in the recreated lockDir")
	}
}

func TestOpenAndFinalizeStreams(t *testing.T) {
	dir := t.TempDir()
	streams, err := openStreams(dir, "sha256")
	if err != nil {
		t.Fatal(err)
	}
	if len(streams) != 3 {
		t.Fatalf("expected 3 streams, got %d", len(streams))
	}

	for i, s := range streams {
		if _, err := s.counting.Write([]byte(xmlfmt.OpenTag(s.kind, 1))); err != nil {
			t.Fatalf("stream %d: %v", i, err)
		}
		if _, err := s.counting.Write([]byte(xmlfmt.CloseTag(s.kind))); err != nil {
			t.Fatalf("stream %d: %v", i, err)
		}
	}

	cfg := &config{Checksum: "sha256", UniqueMD: true}
	records, err := finalizeStreams(streams, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	wantTypes := map[string]bool{"primary": false, "filelists": false, "other": false}
	for _, r := range records {
		if _, ok := wantTypes[r.Type]; !ok {
			t.Errorf("unexpected record type %q", r.Type)
			continue
		}
		wantTypes[r.Type] = true

		if r.Checksum == "" {
			t.Errorf("%s record missing Checksum", r.Type)
		}
		if r.OpenChecksum == "" {
			t.Errorf("%s record missing OpenChecksum", r.Type)
		}
		if r.Size == 0 {
			t.Errorf("%s record has zero Size", r.Type)
		}
		finalPath := filepath.Join(dir, filepath.Base(r.LocationHref))
		if _, err := os.Stat(finalPath); err != nil {
			t.Errorf("%s: final file %q missing: %v", r.Type, finalPath, err)
		}
		if filepath.Base(r.LocationHref) == r.Type+".xml.gz" {
			t.Errorf("%s: unique-md-filenames should prefix the filename with a checksum, got %q", r.Type, r.LocationHref)
		}
	}
	for typ, seen := range wantTypes {
		if !seen {
			t.Errorf("missing a %s record", typ)
		}
	}
}

func TestFinalizeStreamsSimpleFilenames(t *testing.T) {
	dir := t.TempDir()
	streams, err := openStreams(dir, "sha256")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range streams {
		writeEmptyDoc(t, s)
	}
	cfg := &config{Checksum: "sha256", UniqueMD: false}
	records, err := finalizeStreams(streams, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		want := "repodata/" + r.Type + ".xml.gz"
		if r.LocationHref != want {
			t.Errorf("LocationHref = %q, want %q when unique-md-filenames is off", r.LocationHref, want)
		}
	}
}

func writeEmptyDoc(t *testing.T, s *streamWriter) {
	t.Helper()
	if _, err := s.counting.Write([]byte(xmlfmt.OpenTag(s.kind, 0) + xmlfmt.CloseTag(s.kind))); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverFilesWalk(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.rpm", "b.src.rpm", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config{RepoDir: dir, Excludes: stringList{"*.src.rpm"}}
	files, err := discoverFiles(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f.FullPath))
	}
	for _, n := range names {
		if n == "b.src.rpm" || n == "c.txt" {
			t.Errorf("discoverFiles returned %q, should have been excluded", n)
		}
	}
	if len(names) != 1 || names[0] != "a.rpm" {
		t.Errorf("discoverFiles = %v, want just [a.rpm]", names)
	}
}

func TestDiscoverFilesPkglist(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.rpm", "b.rpm"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	pkglist := filepath.Join(dir, "pkglist.txt")
	if err := os.WriteFile(pkglist, []byte("a.rpm\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config{RepoDir: dir, Pkglist: pkglist}
	files, err := discoverFiles(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0].FullPath) != "a.rpm" {
		t.Errorf("discoverFiles with pkglist = %v, want just [a.rpm]", files)
	}
}

func TestReadLinesSkipsBlank(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(p, []byte("one\n\n  \ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := readLines(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("readLines = %v, want [one two]", lines)
	}
}

// writeGzip writes body to path, gzip-compressed, so loadOldMetadata's
// magic-byte detection picks it up as a compressed stream.
func writeGzip(t *testing.T, path, body string) {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOldMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repodataDir := filepath.Join(dir, "repodata")
	if err := os.MkdirAll(repodataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	pkg := &repomd.Package{
		Name: "foo", Arch: "x86_64", Epoch: "0", Version: "1.0", Release: "1",
		PkgID: "abc123", ChecksumType: "sha256", LocationHref: "foo-1.0-1.x86_64.rpm",
	}
	primaryFrag, err := xmlfmt.Primary(pkg)
	if err != nil {
		t.Fatal(err)
	}
	filelistsFrag, err := xmlfmt.Filelists(pkg)
	if err != nil {
		t.Fatal(err)
	}
	otherFrag, err := xmlfmt.Other(pkg, -1)
	if err != nil {
		t.Fatal(err)
	}

	primaryDoc := xmlfmt.OpenTag(xmlfmt.StreamPrimary, 1) + primaryFrag + xmlfmt.CloseTag(xmlfmt.StreamPrimary)
	filelistsDoc := xmlfmt.OpenTag(xmlfmt.StreamFilelists, 1) + filelistsFrag + xmlfmt.CloseTag(xmlfmt.StreamFilelists)
	otherDoc := xmlfmt.OpenTag(xmlfmt.StreamOther, 1) + otherFrag + xmlfmt.CloseTag(xmlfmt.StreamOther)

	writeGzip(t, filepath.Join(repodataDir, "primary.xml.gz"), primaryDoc)
	writeGzip(t, filepath.Join(repodataDir, "filelists.xml.gz"), filelistsDoc)
	writeGzip(t, filepath.Join(repodataDir, "other.xml.gz"), otherDoc)

	records := []repomd.RepomdRecord{
		{Type: "primary", LocationHref: "repodata/primary.xml.gz", ChecksumType: "sha256", Checksum: "x"},
		{Type: "filelists", LocationHref: "repodata/filelists.xml.gz", ChecksumType: "sha256", Checksum: "x"},
		{Type: "other", LocationHref: "repodata/other.xml.gz", ChecksumType: "sha256", Checksum: "x"},
	}
	manifest, err := xmlfmt.Repomd(records, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repodataDir, "repomd.xml"), manifest, 0o644); err != nil {
		t.Fatal(err)
	}

	cache, warnings, err := loadOldMetadata(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	got, ok := cache.Lookup("foo-1.0-1.x86_64.rpm")
	if !ok {
		t.Fatal("expected the cache to contain foo-1.0-1.x86_64.rpm")
	}
	if got.Name != "foo" || got.Version != "1.0" || got.Release != "1" {
		t.Errorf("cached package = %+v", got)
	}
}
