// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/packwright/packwright/pkg/cueutil"
)

const (
	// CUEFileName is the preferred manifest file name.
	CUEFileName = "packwright.cue"
	// TOMLFileName is the alternative manifest file name.
	TOMLFileName = "packwright.toml"
)

var (
	//go:embed schema.cue
	serviceSchema []byte

	// ErrNotFound is returned by Discover when a directory holds no manifest.
	ErrNotFound = errors.New("no service manifest found")

	// ErrInvalid is the sentinel error wrapped by InvalidError.
	ErrInvalid = errors.New("invalid service manifest")
)

// InvalidError reports a manifest that could not be parsed or failed
// validation.
type InvalidError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns both the sentinel and the underlying failure.
func (e *InvalidError) Unwrap() []error { return []error{ErrInvalid, e.Err} }

// Discover returns the manifest path inside dir. packwright.cue takes
// precedence over packwright.toml.
func Discover(dir string) (string, error) {
	for _, name := range []string{CUEFileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w in %s (looked for %s, %s)", ErrNotFound, dir, CUEFileName, TOMLFileName)
}

// Load reads and validates the manifest at path. The format follows the
// file extension.
func Load(path string) (*Service, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, abs)
}

// Parse decodes manifest bytes. path selects the format and becomes the
// service's ConfigPath; its directory becomes the service Root.
func Parse(data []byte, path string) (*Service, error) {
	var (
		svc *Service
		err error
	)
	switch filepath.Ext(path) {
	case ".cue":
		svc, err = cueutil.Decode[Service](serviceSchema, data, "#Service", cueutil.WithFilename(filepath.Base(path)))
	case ".toml":
		svc, err = decodeTOML(data)
	default:
		err = fmt.Errorf("unsupported manifest format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, &InvalidError{Path: path, Err: err}
	}

	svc.Normalize()
	if err := svc.validate(); err != nil {
		return nil, &InvalidError{Path: path, Err: err}
	}

	svc.ConfigPath = path
	svc.Root = filepath.Dir(path)
	return svc, nil
}

func decodeTOML(data []byte) (*Service, error) {
	if size := int64(len(data)); size > cueutil.DefaultMaxFileSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum %d bytes", size, cueutil.DefaultMaxFileSize)
	}
	var svc Service
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&svc); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.New(strict.String())
		}
		return nil, err
	}
	return &svc, nil
}
