// SPDX-License-Identifier: MPL-2.0

// Package archive writes deployment archives.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/packwright/packwright/internal/fsutil"
)

// ErrArchive is the sentinel error wrapped by ArchiveError.
var ErrArchive = errors.New("archive creation failed")

// defaultModTime is stamped on every entry so identical inputs produce
// byte-identical archives. It is the earliest time a zip header can express.
var defaultModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// archiveMode is the permission of every written archive.
const archiveMode os.FileMode = 0o644

type (
	// Request describes one archive to create.
	Request struct {
		// BaseDir is the directory Files are relative to. Entry names inside
		// the archive are the Files paths themselves.
		BaseDir string
		// Files are slash-separated paths relative to BaseDir.
		Files []string
		// Name is the archive file name, e.g. "hello.zip".
		Name string
	}

	// Archiver creates archives and returns their absolute paths.
	Archiver interface {
		Create(ctx context.Context, req Request) (string, error)
	}

	// ZipArchiver writes deflated zip archives into OutputDir.
	ZipArchiver struct {
		OutputDir string
		ModTime   time.Time
	}

	// ArchiveError wraps a failure to create an archive.
	ArchiveError struct {
		Name string
		Err  error
	}
)

// NewZipArchiver creates a ZipArchiver writing into outputDir.
func NewZipArchiver(outputDir string) *ZipArchiver {
	return &ZipArchiver{OutputDir: outputDir, ModTime: defaultModTime}
}

// Create writes the archive described by req. A partially written archive is
// never left behind: the file is staged next to its destination and renamed
// into place only after every entry has been written.
func (z *ZipArchiver) Create(ctx context.Context, req Request) (string, error) {
	if req.Name == "" || strings.ContainsAny(req.Name, `/\`) {
		return "", &ArchiveError{Name: req.Name, Err: fmt.Errorf("invalid archive name %q", req.Name)}
	}

	outDir, err := filepath.Abs(z.OutputDir)
	if err != nil {
		return "", &ArchiveError{Name: req.Name, Err: err}
	}
	if err := fsutil.EnsureDir(outDir); err != nil {
		return "", &ArchiveError{Name: req.Name, Err: err}
	}

	staged, err := os.CreateTemp(outDir, "."+req.Name+".*")
	if err != nil {
		return "", &ArchiveError{Name: req.Name, Err: err}
	}
	stagedPath := staged.Name()

	if err := z.write(ctx, staged, req); err != nil {
		_ = os.Remove(stagedPath) // best-effort cleanup
		return "", &ArchiveError{Name: req.Name, Err: err}
	}

	// CreateTemp stages with 0600.
	if err := os.Chmod(stagedPath, archiveMode); err != nil {
		_ = os.Remove(stagedPath) // best-effort cleanup
		return "", &ArchiveError{Name: req.Name, Err: err}
	}

	archivePath := filepath.Join(outDir, req.Name)
	if err := os.Rename(stagedPath, archivePath); err != nil {
		_ = os.Remove(stagedPath) // best-effort cleanup
		return "", &ArchiveError{Name: req.Name, Err: err}
	}
	return archivePath, nil
}

// write streams every requested file into dst and closes it.
func (z *ZipArchiver) write(ctx context.Context, dst *os.File, req Request) (err error) {
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zw := zip.NewWriter(dst)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	modTime := z.ModTime
	if modTime.IsZero() {
		modTime = defaultModTime
	}

	for _, rel := range req.Files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if addErr := addFile(zw, req.BaseDir, rel, modTime); addErr != nil {
			return addErr
		}
	}
	return nil
}

// addFile copies one file into the archive, keeping its permission bits.
func addFile(zw *zip.Writer, baseDir, rel string, modTime time.Time) (err error) {
	path := filepath.Join(baseDir, filepath.FromSlash(rel))

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", rel, err)
	}
	header.Name = filepath.ToSlash(rel)
	header.Method = zip.Deflate
	header.Modified = modTime

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", rel, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write entry %s: %w", rel, err)
	}
	return nil
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("create archive %s: %v", e.Name, e.Err)
}

// Unwrap returns both the sentinel and the underlying failure.
func (e *ArchiveError) Unwrap() []error { return []error{ErrArchive, e.Err} }
