// Package suggest proposes existing files for a path that could not be opened.
package suggest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sahilm/fuzzy"
)

// DefaultLimit is the number of suggestions shown for a missing file.
const DefaultLimit = 3

// nameSource implements fuzzy.Source for directory entries
type nameSource []string

func (s nameSource) String(i int) string { return s[i] }

func (s nameSource) Len() int { return len(s) }

// Candidates ranks names against query, best first. A case-insensitive exact
// match always ranks first.
func Candidates(query string, names []string, limit int) []string {
	if query == "" || len(names) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []string
	seen := make(map[string]bool)
	for _, n := range names {
		if strings.EqualFold(n, query) && n != query {
			out = append(out, n)
			seen[n] = true
		}
	}
	for _, m := range fuzzy.FindFrom(query, nameSource(names)) {
		if len(out) >= limit {
			break
		}
		name := names[m.Index]
		if seen[name] || name == query {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ForMissing lists regular files next to path whose names resemble its base
// name. Returned paths keep path's directory prefix.
func ForMissing(path string, limit int) []string {
	dir, base := filepath.Split(path)
	lookIn := dir
	if lookIn == "" {
		lookIn = "."
	}
	entries, err := os.ReadDir(lookIn)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	matches := Candidates(base, names, limit)
	for i, m := range matches {
		matches[i] = dir + m
	}
	return matches
}
