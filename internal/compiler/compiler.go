// SPDX-License-Identifier: MPL-2.0

// Package compiler invokes the external toolchain that turns a source project
// into publishable build output.
//
// The command line is a shell-style template. It is expanded with
// mvdan.cc/sh so quoting and $VARIABLE references behave as they would in a
// POSIX shell, but no shell process is started: the resulting fields are
// executed directly.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
)

// DefaultCommand publishes a .NET project in the configured build
// configuration into the output directory.
const DefaultCommand = `dotnet publish "$PROJECT" -c "$CONFIGURATION" -o "$OUTPUT" --nologo /p:GenerateRuntimeConfigurationFiles=true`

// DefaultConfiguration is the build configuration used when none is set.
const DefaultConfiguration = "Release"

// ErrBuildFailed is the sentinel error wrapped by BuildError.
var ErrBuildFailed = errors.New("build failed")

type (
	// Request describes one compilation.
	Request struct {
		// ProjectFile is the project path, relative to WorkDir or absolute.
		ProjectFile string
		// OutputDir receives the build output.
		OutputDir string
		// WorkDir is the directory the toolchain runs in.
		WorkDir string
	}

	// Result carries the captured toolchain output of a successful build.
	Result struct {
		Stdout string
		Stderr string
	}

	// Compiler builds a project into an output directory.
	Compiler interface {
		Compile(ctx context.Context, req Request) (Result, error)
	}

	// Command runs a templated toolchain command line.
	Command struct {
		// Template is the shell-style command line. $PROJECT, $OUTPUT and
		// $CONFIGURATION are substituted; other variables come from the
		// process environment.
		Template string
		// Configuration is substituted for $CONFIGURATION.
		Configuration string
		// Logger receives the toolchain output. A nil Logger discards it.
		Logger *log.Logger
	}

	// BuildError reports a toolchain invocation that failed.
	BuildError struct {
		Project  string
		ExitCode int
		Stdout   string
		Stderr   string
		Err      error
	}
)

// NewCommand creates a Command, falling back to DefaultCommand and
// DefaultConfiguration for empty values.
func NewCommand(template, configuration string, logger *log.Logger) *Command {
	if strings.TrimSpace(template) == "" {
		template = DefaultCommand
	}
	if configuration == "" {
		configuration = DefaultConfiguration
	}
	return &Command{Template: template, Configuration: configuration, Logger: logger}
}

// Argv expands the template for req into the program and its arguments.
func (c *Command) Argv(req Request) ([]string, error) {
	vars := map[string]string{
		"PROJECT":       req.ProjectFile,
		"OUTPUT":        req.OutputDir,
		"CONFIGURATION": c.Configuration,
	}
	fields, err := shell.Fields(c.Template, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, fmt.Errorf("expand build command %q: %w", c.Template, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("build command %q is empty", c.Template)
	}
	return fields, nil
}

// Compile runs the toolchain for req. A non-zero exit produces *BuildError
// carrying the captured output.
func (c *Command) Compile(ctx context.Context, req Request) (Result, error) {
	argv, err := c.Argv(req)
	if err != nil {
		return Result{}, &BuildError{Project: req.ProjectFile, ExitCode: -1, Err: err}
	}

	c.debug("building", "project", req.ProjectFile, "output", req.OutputDir, "command", strings.Join(argv, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // command line comes from user configuration
	cmd.Dir = req.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if out := strings.TrimSpace(res.Stdout); out != "" {
		c.info(out)
	}
	if runErr == nil {
		return res, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if c.Logger != nil {
		c.Logger.Error("an error occurred while building", "project", req.ProjectFile, "exit_code", exitCode)
		if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
			c.Logger.Error(errOut)
		}
	}
	return res, &BuildError{
		Project:  req.ProjectFile,
		ExitCode: exitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Err:      runErr,
	}
}

func (c *Command) info(msg string, keyvals ...any) {
	if c.Logger != nil {
		c.Logger.Info(msg, keyvals...)
	}
}

func (c *Command) debug(msg string, keyvals ...any) {
	if c.Logger != nil {
		c.Logger.Debug(msg, keyvals...)
	}
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("build %s: exit status %d", e.Project, e.ExitCode)
	}
	return fmt.Sprintf("build %s: %v", e.Project, e.Err)
}

// Unwrap returns both the sentinel and the underlying failure.
func (e *BuildError) Unwrap() []error { return []error{ErrBuildFailed, e.Err} }
