package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ExpandGlobs resolves patterns (which may use **) to regular files. Relative
// patterns are matched under root. A pattern without wildcards is returned as
// is so that a missing file surfaces when it is read. Results keep pattern
// order; matches of one pattern are sorted and duplicates are dropped.
func ExpandGlobs(root string, patterns []string) ([]string, error) {
	if root == "" {
		root = "."
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(root, pattern)
			}
			add(pattern)
			continue
		}

		matches, err := match(root, pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return files, nil
}

func match(root, pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}

	rel, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(root, filepath.FromSlash(r))
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
