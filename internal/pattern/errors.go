// SPDX-License-Identifier: MPL-2.0

package pattern

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMatch is the sentinel error wrapped by NoMatchError.
	ErrNoMatch = errors.New("no file matches include / exclude patterns")

	// ErrInvalidPattern is the sentinel error wrapped by InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

type (
	// NoMatchError is returned when resolution leaves no file selected.
	// An empty archive is always a misconfiguration, so callers must surface it.
	NoMatchError struct {
		Root    string
		Include []string
		Exclude []string
	}

	// InvalidPatternError is returned when a pattern is not valid glob syntax.
	InvalidPatternError struct {
		Pattern string
	}
)

// Error implements the error interface.
func (e *NoMatchError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrNoMatch.Error())
	sb.WriteString(" in ")
	sb.WriteString(e.Root)
	if len(e.Include) > 0 {
		fmt.Fprintf(&sb, " (include: %s)", strings.Join(e.Include, ", "))
	}
	return sb.String()
}

// Unwrap returns ErrNoMatch for errors.Is() compatibility.
func (e *NoMatchError) Unwrap() error { return ErrNoMatch }

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q", e.Pattern)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }
