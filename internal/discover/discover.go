// Package discover walks a repository directory and produces the ordered
// list of RPM files the dumper pool will process, honoring the --excludes,
// --pkglist, and --includepkg filtering rules.
package discover

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Filter controls which files [Walk] returns.
type Filter struct {
	// Excludes are shell glob patterns (path/filepath.Match syntax)
	// matched against each file's path relative to root; a match drops
	// the file.
	Excludes []string
	// Includes, when non-empty, is the inverse: only files matching at
	// least one pattern are kept. Applied after Excludes.
	Includes []string
	// Allowlist, when non-empty, restricts the walk to exactly the
	// relative paths it names (the --pkglist file), in whatever order
	// they're given. Excludes/Includes still apply on top of it.
	Allowlist []string
}

// File is one discovered RPM, path relative to the walked root.
type File struct {
	FullPath     string
	RelativePath string
}

// Walk finds every ".rpm" file under root, relative paths sorted
// lexically for determinism, and applies f.
//
// Grounded on docs/injecturls.go's filepath.WalkDir(root, walkFunc) idiom;
// the glob matching itself is path/filepath.Match, the standard library's
// shell-pattern matcher.
func Walk(root string, f Filter) ([]File, error) {
	if len(f.Allowlist) > 0 {
		return walkAllowlist(root, f)
	}

	var out []File
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".rpm") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		if !keep(rel, f) {
			return nil
		}
		out = append(out, File{FullPath: p, RelativePath: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walking %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out, nil
}

func walkAllowlist(root string, f Filter) ([]File, error) {
	out := make([]File, 0, len(f.Allowlist))
	for _, rel := range f.Allowlist {
		if !keep(rel, f) {
			continue
		}
		out = append(out, File{FullPath: filepath.Join(root, rel), RelativePath: rel})
	}
	return out, nil
}

func keep(rel string, f Filter) bool {
	for _, pat := range f.Excludes {
		if ok, _ := filepath.Match(pat, rel); ok {
			return false
		}
	}
	if len(f.Includes) == 0 {
		return true
	}
	for _, pat := range f.Includes {
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
