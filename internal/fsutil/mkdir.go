// SPDX-License-Identifier: MPL-2.0

// Package fsutil holds filesystem helpers shared by the packaging pipeline.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrFilesystem is the sentinel error wrapped by FilesystemError.
	ErrFilesystem = errors.New("filesystem error")

	errNotDirectory = errors.New("exists and is not a directory")
)

// FilesystemError reports a directory that could not be created.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns both the sentinel and the underlying OS error.
func (e *FilesystemError) Unwrap() []error { return []error{ErrFilesystem, e.Err} }

// EnsureDir creates target and any missing parents, one component at a time.
//
// Components that already exist are skipped. Permission errors on an
// intermediate component are tolerated (the component usually exists but is
// not writable) and only surface when target itself cannot be created. A
// component whose parent is missing is reported against the parent.
// Calling EnsureDir repeatedly on the same path succeeds every time.
func EnsureDir(target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return &FilesystemError{Op: "resolve", Path: target, Err: err}
	}

	vol := filepath.VolumeName(abs)
	cur := vol + string(filepath.Separator)
	rest := strings.TrimPrefix(abs[len(vol):], string(filepath.Separator))
	if rest == "" {
		return nil
	}

	parent := cur
	for _, part := range strings.Split(rest, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		cur = filepath.Join(parent, part)
		if mkErr := os.Mkdir(cur, 0o755); mkErr != nil {
			switch {
			case errors.Is(mkErr, fs.ErrExist):
				if info, statErr := os.Stat(cur); statErr == nil && !info.IsDir() {
					return &FilesystemError{Op: "mkdir", Path: cur, Err: errNotDirectory}
				}
			case errors.Is(mkErr, fs.ErrNotExist):
				return &FilesystemError{Op: "mkdir", Path: parent, Err: fs.ErrPermission}
			case errors.Is(mkErr, fs.ErrPermission) && cur != abs:
				// Intermediate component; the next step decides.
			default:
				return &FilesystemError{Op: "mkdir", Path: cur, Err: mkErr}
			}
		}
		parent = cur
	}
	return nil
}
