// SPDX-License-Identifier: MPL-2.0

package pattern

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/packwright/packwright/internal/testutil"
)

func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a/keep.txt": "keep",
		"a/drop.txt": "drop",
	})
	return root
}

func TestResolve_Precedence(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	got, err := Resolve(root, PatternSet{"a/**"}, PatternSet{"a/keep.txt"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"a/keep.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolve_OrderSensitivity(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	got, err := Resolve(root, PatternSet{"a/keep.txt"}, PatternSet{"a/**"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"a/drop.txt", "a/keep.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	_, err := Resolve(root, PatternSet{"**"}, PatternSet{"nonexistent/**"})
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Resolve() error = %v, want ErrNoMatch", err)
	}
	var nm *NoMatchError
	if !errors.As(err, &nm) {
		t.Fatalf("Resolve() error type = %T, want *NoMatchError", err)
	}
	if nm.Root != root {
		t.Errorf("NoMatchError.Root = %q, want %q", nm.Root, root)
	}
}

func TestResolve_EmptyDirectory(t *testing.T) {
	t.Parallel()

	_, err := Resolve(t.TempDir(), nil, nil)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Resolve() error = %v, want ErrNoMatch", err)
	}
}

func TestResolve_Patterns(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		".git/HEAD":                  "ref",
		".gitignore":                 "node_modules",
		".env":                       "SECRET=1",
		".env.local":                 "SECRET=2",
		"handler.js":                 "exports.handler = 1",
		"lib/util.js":                "",
		"lib/util.test.js":           "",
		"node_modules/dep/index.js":  "",
		"node_modules/dep/README.md": "",
		"node_modules/other/main.js": "",
		"yarn-error.log":             "",
	}

	tests := []struct {
		name    string
		exclude PatternSet
		include PatternSet
		want    []string
	}{
		{
			name:    "dotfiles are candidates",
			exclude: nil,
			include: PatternSet{".env"},
			want: []string{
				".env", ".env.local", ".git/HEAD", ".gitignore", "handler.js", "lib/util.js",
				"lib/util.test.js", "node_modules/dep/README.md", "node_modules/dep/index.js",
				"node_modules/other/main.js", "yarn-error.log",
			},
		},
		{
			name:    "default style excludes",
			exclude: PatternSet{".git/**", ".gitignore", "yarn-*.log", ".env*", "node_modules/**"},
			want:    []string{"handler.js", "lib/util.js", "lib/util.test.js"},
		},
		{
			name:    "resurrect a subtree",
			exclude: PatternSet{".git/**", ".gitignore", "yarn-*.log", ".env*", "node_modules/**"},
			include: PatternSet{"node_modules/dep/**"},
			want: []string{
				"handler.js", "lib/util.js", "lib/util.test.js",
				"node_modules/dep/README.md", "node_modules/dep/index.js",
			},
		},
		{
			name:    "later negated include wins over earlier include",
			exclude: PatternSet{"**"},
			include: PatternSet{"lib/**", "!lib/*.test.js"},
			want:    []string{"lib/util.js"},
		},
		{
			name:    "negated exclude acts as include",
			exclude: PatternSet{"node_modules/**", "!node_modules/other/**"},
			include: nil,
			want: []string{
				".env", ".env.local", ".git/HEAD", ".gitignore", "handler.js", "lib/util.js",
				"lib/util.test.js", "node_modules/other/main.js", "yarn-error.log",
			},
		},
		{
			name:    "dot slash prefix is ignored",
			exclude: PatternSet{"**"},
			include: PatternSet{"./handler.js"},
			want:    []string{"handler.js"},
		},
		{
			name:    "single star does not cross directories",
			exclude: PatternSet{"*.js"},
			include: nil,
			want: []string{
				".env", ".env.local", ".git/HEAD", ".gitignore", "lib/util.js",
				"lib/util.test.js", "node_modules/dep/README.md", "node_modules/dep/index.js",
				"node_modules/other/main.js", "yarn-error.log",
			},
		},
	}

	root := t.TempDir()
	testutil.WriteTree(t, root, files)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(root, tt.exclude, tt.include)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Resolve() =\n  %v\nwant\n  %v", got, tt.want)
			}
		})
	}
}

func TestResolve_InvalidPattern(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	_, err := Resolve(root, PatternSet{"a/[z-"}, nil)
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("Resolve() error = %v, want ErrInvalidPattern", err)
	}
}

func TestResolve_FollowsSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	shared := t.TempDir()
	testutil.WriteTree(t, shared, map[string]string{"lib.txt": "shared"})
	testutil.WriteTree(t, root, map[string]string{"main.txt": "main"})
	testutil.MustSymlink(t, shared, filepath.Join(root, "vendor"))

	got, err := Resolve(root, nil, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"main.txt", "vendor/lib.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestResolve_SymlinkCycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"sub/file.txt": "x"})
	testutil.MustSymlink(t, root, filepath.Join(root, "sub", "loop"))

	got, err := Resolve(root, nil, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []string{"sub/file.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestCandidates_NeverListsDirectories(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	testutil.MustMkdirAll(t, filepath.Join(root, "empty", "nested"), 0o755)

	got, err := Candidates(root, nil)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	for _, c := range got {
		info, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(c)))
		if statErr != nil {
			t.Fatalf("stat %s: %v", c, statErr)
		}
		if info.IsDir() {
			t.Errorf("Candidates() listed directory %q", c)
		}
		if filepath.IsAbs(c) {
			t.Errorf("Candidates() listed absolute path %q", c)
		}
	}
}

func TestCandidates_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := Candidates(filepath.Join(t.TempDir(), "missing"), nil)
	if err == nil {
		t.Fatal("Candidates() expected error for missing root")
	}
}

func TestOrder(t *testing.T) {
	t.Parallel()

	got := Order(PatternSet{"a/**", "!b/**"}, PatternSet{"c", "!d"})
	want := []Pattern{
		{Glob: "a/**", Negated: true},
		{Glob: "b/**", Negated: false},
		{Glob: "c", Negated: false},
		{Glob: "d", Negated: true},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}
