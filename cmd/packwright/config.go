// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packwright/packwright/internal/config"
	"github.com/packwright/packwright/internal/issue"
)

// newConfigCommand creates the `packwright config` command tree.
func newConfigCommand(app *App, flags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage packwright configuration",
		Long: `Manage packwright configuration.

Configuration is read from the first of:
  - the file given with --config
  - the user config file:
      Linux:   ~/.config/packwright/config.cue
      macOS:   ~/Library/Application Support/packwright/config.cue
      Windows: %APPDATA%\packwright\config.cue
  - packwright.config.cue in the service directory

PACKWRIGHT_* environment variables override file values, e.g.
PACKWRIGHT_OUTPUT_DIR or PACKWRIGHT_BUILD_CONFIGURATION.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(flags, func() error {
				return showConfig(cmd.Context(), app, flags)
			})
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := configPath(flags)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(defaults)"
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.run(flags, func() error {
				path, err := config.WriteDefault("", force)
				if errors.Is(err, config.ErrConfigExists) {
					return issue.NewErrorContext().
						WithOperation("create configuration").
						WithResource(path).
						WithSuggestion("Use 'packwright config init --force' to overwrite it").
						Wrap(err).
						BuildError()
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created"), path)
				return nil
			})
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(flags, func() error {
				cfg, err := app.loadConfig(cmd.Context(), flags)
				if err != nil {
					return err
				}
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			})
		},
	})

	return cfgCmd
}

func configPath(flags *rootFlagValues) (string, error) {
	dir, err := flags.serviceDir()
	if err != nil {
		return "", err
	}
	return config.ResolvePath(flags.loadOptions(dir))
}

func showConfig(ctx context.Context, app *App, flags *rootFlagValues) error {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	path, err := configPath(flags)
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	out := app.stdout

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if path == "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), path)
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("output_dir"), valueStyle.Render(cfg.OutputDir))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("build_dir"), valueStyle.Render(cfg.BuildDir))
	fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("default_runtime"), valueStyle.Render(cfg.DefaultRuntime))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("build"))
	fmt.Fprintf(out, "  configuration: %s\n", valueStyle.Render(cfg.Build.Configuration))
	command := cfg.Build.Command
	if command == "" {
		command = SubtitleStyle.Render("(default dotnet publish)")
	} else {
		command = valueStyle.Render(command)
	}
	fmt.Fprintf(out, "  command: %s\n", command)
	fmt.Fprintf(out, "  project_extensions: %s\n", valueStyle.Render(strings.Join(cfg.Build.ProjectExtensions, ", ")))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(out, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))
	fmt.Fprintf(out, "  color: %s\n", valueStyle.Render(string(cfg.UI.Color)))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s:\n", keyStyle.Render("watch"))
	fmt.Fprintf(out, "  debounce: %s\n", valueStyle.Render(cfg.Watch.Debounce.String()))
	return nil
}
