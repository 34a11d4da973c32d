// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ColorAuto colors output when stderr is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways forces colored output.
	ColorAlways ColorMode = "always"
	// ColorNever disables colored output.
	ColorNever ColorMode = "never"

	// DefaultOutputDir receives the produced archives, relative to the service root.
	DefaultOutputDir = ".packwright"
	// DefaultBuildDir receives compiled build output, relative to the service root.
	DefaultBuildDir = ".bin"
	// DefaultRuntime applies to functions when neither the function nor the
	// provider names a runtime.
	DefaultRuntime = "nodejs20.x"
	// DefaultBuildConfiguration is passed to the toolchain as $CONFIGURATION.
	DefaultBuildConfiguration = "Release"
	// DefaultDebounce is the quiet period before a watch-triggered repackage.
	DefaultDebounce = 500 * time.Millisecond
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidColorMode is the sentinel error wrapped by InvalidColorModeError.
	ErrInvalidColorMode = errors.New("invalid color mode")

	// defaultProjectExtensions mark the include entries that are project files.
	defaultProjectExtensions = []string{".csproj", ".fsproj", ".vbproj"}
)

type (
	// ColorMode selects when output is colored.
	ColorMode string

	// InvalidColorModeError is returned for an unknown ColorMode.
	InvalidColorModeError struct {
		Value ColorMode
	}

	// InvalidConfigError collects every field error of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// OutputDir receives archives. Relative paths are resolved against the
		// service root.
		OutputDir string `json:"output_dir" mapstructure:"output_dir"`
		// BuildDir receives compiled output, one subdirectory per function.
		BuildDir string `json:"build_dir" mapstructure:"build_dir"`
		// DefaultRuntime is the last runtime fallback.
		DefaultRuntime string `json:"default_runtime" mapstructure:"default_runtime"`
		// Build configures the compiler.
		Build BuildConfig `json:"build" mapstructure:"build"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Watch configures package --watch.
		Watch WatchConfig `json:"watch" mapstructure:"watch"`
	}

	// BuildConfig configures compiled-runtime builds.
	BuildConfig struct {
		Configuration string `json:"configuration" mapstructure:"configuration"`
		// Command is the toolchain command template; empty means the
		// built-in dotnet publish line.
		Command           string   `json:"command" mapstructure:"command"`
		ProjectExtensions []string `json:"project_extensions" mapstructure:"project_extensions"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		Verbose bool      `json:"verbose" mapstructure:"verbose"`
		Color   ColorMode `json:"color" mapstructure:"color"`
	}

	// WatchConfig configures package --watch.
	WatchConfig struct {
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:      DefaultOutputDir,
		BuildDir:       DefaultBuildDir,
		DefaultRuntime: DefaultRuntime,
		Build: BuildConfig{
			Configuration:     DefaultBuildConfiguration,
			ProjectExtensions: append([]string(nil), defaultProjectExtensions...),
		},
		UI: UIConfig{
			Color: ColorAuto,
		},
		Watch: WatchConfig{
			Debounce: DefaultDebounce,
		},
	}
}

// IsProjectFile reports whether path ends in one of the configured project
// extensions.
func (c *Config) IsProjectFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range c.Build.ProjectExtensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// OutputPath resolves OutputDir against root.
func (c *Config) OutputPath(root string) string { return resolveUnder(root, c.OutputDir) }

// BuildPath resolves BuildDir against root.
func (c *Config) BuildPath(root string) string { return resolveUnder(root, c.BuildDir) }

func resolveUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if strings.TrimSpace(c.BuildDir) == "" {
		errs = append(errs, errors.New("build_dir must not be empty"))
	}
	if c.OutputDir != "" && filepath.Clean(c.OutputDir) == filepath.Clean(c.BuildDir) {
		errs = append(errs, fmt.Errorf("output_dir and build_dir must differ (both %q)", c.OutputDir))
	}
	if strings.TrimSpace(c.DefaultRuntime) == "" {
		errs = append(errs, errors.New("default_runtime must not be empty"))
	}
	for _, ext := range c.Build.ProjectExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			errs = append(errs, fmt.Errorf("build.project_extensions: %q must look like \".csproj\"", ext))
		}
	}
	if err := c.UI.Color.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative (got %s)", c.Watch.Debounce))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Validate reports whether m is a known color mode.
func (m ColorMode) Validate() error {
	switch m {
	case ColorAuto, ColorAlways, ColorNever:
		return nil
	default:
		return &InvalidColorModeError{Value: m}
	}
}

// String returns the mode name.
func (m ColorMode) String() string { return string(m) }

// Error implements the error interface.
func (e *InvalidColorModeError) Error() string {
	return fmt.Sprintf("invalid color mode %q (valid: auto, always, never)", e.Value)
}

// Unwrap returns ErrInvalidColorMode.
func (e *InvalidColorModeError) Unwrap() error { return ErrInvalidColorMode }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
