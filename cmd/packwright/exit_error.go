// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/packwright/packwright/internal/issue"
)

// ExitError signals a specific non-zero exit code without calling os.Exit
// inside a RunE handler.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Exit codes reported by packwright.
const (
	exitFailure = 1
	// exitUsage covers manifest, configuration and unknown-unit errors.
	exitUsage = 2
	// exitBuild is used when the toolchain failed.
	exitBuild = 3
)

// exitCodeFor maps err onto an exit code.
func exitCodeFor(err error) int {
	switch issueFor(err) {
	case issue.BuildFailedId:
		return exitBuild
	case issue.ManifestNotFoundId, issue.ManifestInvalidId, issue.UnknownUnitId,
		issue.CompiledWithoutIncludeId, issue.ConfigLoadFailedId:
		return exitUsage
	default:
		return exitFailure
	}
}
