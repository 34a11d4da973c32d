// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the packwright command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlagValues holds the persistent flags shared by every subcommand.
type rootFlagValues struct {
	verbose    bool
	configPath string
	dir        string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	root := &cobra.Command{
		Use:   "packwright",
		Short: "Package serverless functions and layers into deployable archives",
		Long: TitleStyle.Render("packwright") + SubtitleStyle.Render(" - serverless artifact packaging") + `

packwright reads a service manifest (packwright.cue or packwright.toml),
selects the files of every function and layer through include / exclude
glob patterns and writes one zip archive per deployable unit. .NET
functions are compiled first; a project shared by several functions is
built once.

` + SubtitleStyle.Render("Examples:") + `
  packwright package                  Package the whole service
  packwright package --function api   Package a single function
  packwright package --watch          Re-package on every change
  packwright files --layer deps       List the files of a layer archive
  packwright config show              Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/packwright/config.cue)")
	root.PersistentFlags().StringVarP(&flags.dir, "dir", "C", "", "service directory (default is the working directory)")

	root.AddCommand(
		newPackageCommand(app, flags),
		newFilesCommand(app, flags),
		newConfigCommand(app, flags),
		newExplainCommand(app),
		newVersionCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the command's status. It is called by
// main.main().
func Execute() {
	app := NewApp(Dependencies{})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
