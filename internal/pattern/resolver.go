// SPDX-License-Identifier: MPL-2.0

package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/karrick/godirwalk"
)

// everything matches every candidate file, dotfiles included.
const everything = "**"

type (
	// PatternSet is an ordered list of glob patterns. A leading "!" negates a
	// pattern. Order is significant and must be preserved.
	PatternSet []string

	// Pattern is a single normalized glob with its verdict. A negated pattern
	// marks its matches as excluded, a plain one marks them as included.
	Pattern struct {
		Glob    string
		Negated bool
	}
)

// Order builds the single ordered pattern list used for resolution: every
// exclude pattern first (flipped, so "p" excludes and "!p" includes), followed
// by every include pattern as written.
func Order(exclude, include PatternSet) []Pattern {
	ordered := make([]Pattern, 0, len(exclude)+len(include))
	for _, p := range exclude {
		glob, negated := split(p)
		ordered = append(ordered, Pattern{Glob: glob, Negated: !negated})
	}
	for _, p := range include {
		glob, negated := split(p)
		ordered = append(ordered, Pattern{Glob: glob, Negated: negated})
	}
	return ordered
}

// Resolve returns the root-relative, forward-slash paths of the files under
// root selected by the exclude and include patterns. The result is sorted.
// It fails with *NoMatchError when nothing is selected.
func Resolve(root string, exclude, include PatternSet) ([]string, error) {
	ordered := Order(exclude, include)
	for _, p := range ordered {
		if !doublestar.ValidatePattern(p.Glob) {
			return nil, &InvalidPatternError{Pattern: p.Glob}
		}
	}

	candidates, err := Candidates(root, include)
	if err != nil {
		return nil, err
	}

	state := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		state[c] = true
	}
	for _, p := range ordered {
		for _, c := range candidates {
			if matches(p.Glob, c) {
				state[c] = !p.Negated
			}
		}
	}

	selected := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if state[c] {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return nil, &NoMatchError{Root: root, Include: slices.Clone(include), Exclude: slices.Clone(exclude)}
	}
	return selected, nil
}

// Candidates lists every file under root that matches "**" or one of the
// include patterns. Directories are never listed. Symbolic links are followed;
// a directory reached twice through links is walked once. Unreadable entries
// are skipped.
func Candidates(root string, include PatternSet) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	scope := make([]string, 0, 1+len(include))
	scope = append(scope, everything)
	for _, p := range include {
		if glob, negated := split(p); !negated {
			scope = append(scope, glob)
		}
	}

	visited := make(map[string]struct{})
	var files []string
	walkErr := godirwalk.Walk(absRoot, &godirwalk.Options{
		FollowSymbolicLinks: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			isDir, statErr := isDirectory(osPathname, de)
			if statErr != nil {
				return nil //nolint:nilerr // dangling symlinks are not files
			}
			if isDir {
				realPath, evalErr := filepath.EvalSymlinks(osPathname)
				if evalErr != nil {
					return filepath.SkipDir
				}
				if _, seen := visited[realPath]; seen {
					return filepath.SkipDir
				}
				visited[realPath] = struct{}{}
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, osPathname)
			if relErr != nil {
				return nil //nolint:nilerr // outside root
			}
			rel = filepath.ToSlash(rel)
			for _, s := range scope {
				if matches(s, rel) {
					files = append(files, rel)
					break
				}
			}
			return nil
		},
		ErrorCallback: func(string, error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// split normalizes a raw pattern from the platform separator to forward
// slashes and reports whether it carries the leading negation marker.
func split(raw string) (glob string, negated bool) {
	glob = filepath.ToSlash(raw)
	if strings.HasPrefix(glob, "!") {
		negated = true
		glob = glob[1:]
	}
	glob = strings.TrimPrefix(glob, "./")
	return glob, negated
}

func matches(glob, path string) bool {
	ok, err := doublestar.Match(glob, path)
	return err == nil && ok
}

// isDirectory reports whether the entry is a directory, resolving symlinks.
func isDirectory(osPathname string, de *godirwalk.Dirent) (bool, error) {
	if de.IsDir() {
		return true, nil
	}
	if !de.IsSymlink() {
		return false, nil
	}
	info, err := os.Stat(osPathname)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
