// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/packwright/packwright/internal/issue"
	"github.com/packwright/packwright/pkg/cueutil"
	"github.com/packwright/packwright/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "packwright"
	// ConfigFileName is the name of the user config file.
	ConfigFileName = "config.cue"
	// LocalConfigFileName is the service-local config file, read from the
	// service directory when no user config exists.
	LocalConfigFileName = "packwright.config.cue"
	// EnvPrefix prefixes environment overrides, e.g. PACKWRIGHT_BUILD_DIR.
	EnvPrefix = "PACKWRIGHT"
)

var (
	//go:embed config_schema.cue
	configSchema string

	// ErrConfigExists is returned by WriteDefault when the file is already there.
	ErrConfigExists = errors.New("config file already exists")
)

// ConfigDir returns the packwright configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case platform.Windows:
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// ResolvePath returns the config file Load would read, or "" when none
// exists and the defaults apply.
func ResolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	dir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if p := filepath.Join(dir, ConfigFileName); fileExists(p) {
		return p, nil
	}
	if opts.BaseDir != "" {
		if p := filepath.Join(opts.BaseDir, LocalConfigFileName); fileExists(p) {
			return p, nil
		}
	}
	return "", nil
}

// Load reads the configuration described by opts and returns it together
// with the path it was read from ("" for pure defaults).
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := newViper()

	if opts.ConfigFilePath != "" && !fileExists(opts.ConfigFilePath) {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'packwright config show' to see the default configuration").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	path, err := ResolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the schema shown by 'packwright config dump'").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check the PACKWRIGHT_* environment variables and the config file").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

// newViper returns a Viper instance holding the defaults and the
// PACKWRIGHT_* environment overrides.
func newViper() *viper.Viper {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("build_dir", d.BuildDir)
	v.SetDefault("default_runtime", d.DefaultRuntime)
	v.SetDefault("build.configuration", d.Build.Configuration)
	v.SetDefault("build.command", d.Build.Command)
	v.SetDefault("build.project_extensions", d.Build.ProjectExtensions)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color", string(d.UI.Color))
	v.SetDefault("watch.debounce", d.Watch.Debounce.String())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func configDirWithOverride(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates the CUE file at path against #Config and merges
// it into v. The file is decoded into a map rather than a struct so that
// Viper keeps ownership of defaults and env overrides.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if size := int64(len(data)); size > cueutil.DefaultMaxFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, size, cueutil.DefaultMaxFileSize)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", err)
	}

	user := ctx.CompileBytes(data, cue.Filename(path))
	if err := user.Err(); err != nil {
		return cueutil.FormatError(err, path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var m map[string]any
	if err := unified.Decode(&m); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to dir/config.cue and returns
// the path. An existing file is kept unless force is set.
func WriteDefault(dir string, force bool) (string, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, ErrConfigExists
		}
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// packwright configuration\n\n")
	fmt.Fprintf(&sb, "output_dir:      %q\n", cfg.OutputDir)
	fmt.Fprintf(&sb, "build_dir:       %q\n", cfg.BuildDir)
	fmt.Fprintf(&sb, "default_runtime: %q\n", cfg.DefaultRuntime)

	sb.WriteString("\nbuild: {\n")
	fmt.Fprintf(&sb, "\tconfiguration: %q\n", cfg.Build.Configuration)
	if cfg.Build.Command != "" {
		fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Build.Command)
	}
	quoted := make([]string, 0, len(cfg.Build.ProjectExtensions))
	for _, ext := range cfg.Build.ProjectExtensions {
		quoted = append(quoted, fmt.Sprintf("%q", ext))
	}
	fmt.Fprintf(&sb, "\tproject_extensions: [%s]\n", strings.Join(quoted, ", "))
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor:   %q\n", cfg.UI.Color)
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tdebounce: %q\n", formatDuration(cfg.Watch.Debounce))
	sb.WriteString("}\n")

	return sb.String()
}

// formatDuration renders d in the "<n>ms" / "<n>s" form the schema accepts.
func formatDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}
