package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseArgsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseArgs([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RepoDir != dir {
		t.Errorf("RepoDir = %q, want %q", cfg.RepoDir, dir)
	}
	if cfg.OutputDir != dir {
		t.Errorf("OutputDir defaults to RepoDir, got %q", cfg.OutputDir)
	}
	if cfg.UpdateMDPath != dir {
		t.Errorf("UpdateMDPath defaults to OutputDir, got %q", cfg.UpdateMDPath)
	}
	if cfg.Checksum != "sha256" {
		t.Errorf("Checksum default = %q, want sha256", cfg.Checksum)
	}
	if cfg.Workers != defaultWorkers {
		t.Errorf("Workers default = %d, want %d", cfg.Workers, defaultWorkers)
	}
	if !cfg.UniqueMD {
		t.Error("UniqueMD should default true")
	}
	if cfg.ChangelogLimit != -1 {
		t.Errorf("ChangelogLimit default = %d, want -1", cfg.ChangelogLimit)
	}
}

func TestParseArgsMissingDirectory(t *testing.T) {
	if _, err := parseArgs(nil); err == nil {
		t.Fatal("expected an error for a missing directory argument")
	}
}

func TestParseArgsBadChecksum(t *testing.T) {
	dir := t.TempDir()
	if _, err := parseArgs([]string{"-checksum", "crc32", dir}); err == nil {
		t.Fatal("expected an error for an unrecognized checksum type")
	}
}

func TestParseArgsWorkersOutOfRange(t *testing.T) {
	dir := t.TempDir()
	if _, err := parseArgs([]string{"-workers", "0", dir}); err == nil {
		t.Fatal("expected an error for zero workers")
	}
	if _, err := parseArgs([]string{"-workers", "99999", dir}); err == nil {
		t.Fatal("expected an error for too many workers")
	}
}

func TestParseArgsSimpleMDFilenames(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseArgs([]string{"-simple-md-filenames", dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UniqueMD {
		t.Error("-simple-md-filenames should disable UniqueMD")
	}
}

func TestParseArgsRepeatableFlags(t *testing.T) {
	dir := t.TempDir()
	cfg, err := parseArgs([]string{"-excludes", "*.src.rpm", "-excludes", "*debuginfo*", "-includepkg", "*.x86_64.rpm", dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Excludes) != 2 {
		t.Fatalf("expected two -excludes values, got %v", cfg.Excludes)
	}
	if len(cfg.IncludePkg) != 1 {
		t.Fatalf("expected one -includepkg value, got %v", cfg.IncludePkg)
	}
}

func TestParseArgsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	body := `{"baseurl": "https://example.test/repo", "workers": 3, "checksum": "sha1"}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseArgs([]string{"-config", cfgPath, dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "https://example.test/repo" {
		t.Errorf("BaseURL = %q, want the config file value", cfg.BaseURL)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3 from config file", cfg.Workers)
	}
	if cfg.Checksum != "sha1" {
		t.Errorf("Checksum = %q, want sha1 from config file", cfg.Checksum)
	}
}

func TestParseArgsFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	body := `{"workers": 3}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := parseArgs([]string{"-config", cfgPath, "-workers", "7", dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want the flag value 7 to win over the config file", cfg.Workers)
	}
}
