// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrValidation is the sentinel error wrapped by ValidationError.
var ErrValidation = errors.New("document does not match schema")

type (
	// FieldError is one validation failure at a field path.
	FieldError struct {
		// Path is the JSON-style path, e.g. "functions.hello.package.include[0]".
		Path    string
		Message string
	}

	// ValidationError collects every field failure found in one document.
	ValidationError struct {
		File   string
		Fields []FieldError
	}
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Path == "" {
			lines = append(lines, f.Message)
			continue
		}
		lines = append(lines, f.Path+": "+f.Message)
	}
	if len(lines) == 1 {
		return fmt.Sprintf("%s: %s", e.File, lines[0])
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.File, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// FormatError turns a CUE error into a *ValidationError naming file. Errors
// that did not originate in CUE are wrapped with the file name only.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	verr := &ValidationError{File: file}
	for _, e := range list {
		path := formatPath(cueerrors.Path(e))
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		verr.Fields = append(verr.Fields, FieldError{Path: path, Message: msg})
	}
	return verr
}

// formatPath renders ["functions", "hello", "include", "0"] as
// "functions.hello.include[0]".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		switch {
		case i > 0 && isIndex(part):
			b.WriteString("[" + part + "]")
		case i > 0:
			b.WriteString("." + part)
		default:
			b.WriteString(part)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
