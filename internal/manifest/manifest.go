// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/packwright/packwright/pkg/platform"
)

const (
	// UnitFunction names function units in errors.
	UnitFunction UnitKind = "function"
	// UnitLayer names layer units in errors.
	UnitLayer UnitKind = "layer"
	// UnitService names the aggregate service archive in errors.
	UnitService UnitKind = "service"
)

// ErrUnknownUnit is the sentinel error wrapped by UnknownUnitError.
var ErrUnknownUnit = errors.New("unknown unit")

type (
	// UnitKind distinguishes functions from layers.
	UnitKind string

	// Runtime identifies the execution runtime of a function, e.g.
	// "nodejs20.x" or "dotnet8".
	Runtime string

	// Service is a loaded manifest.
	Service struct {
		Name      string               `json:"service" toml:"service"`
		Provider  Provider             `json:"provider,omitempty" toml:"provider"`
		Package   PackageConfig        `json:"package,omitempty" toml:"package"`
		UseDotenv bool                 `json:"useDotenv,omitempty" toml:"useDotenv"`
		Plugins   Plugins              `json:"plugins,omitempty" toml:"plugins"`
		Functions map[string]*Function `json:"functions,omitempty" toml:"functions"`
		Layers    map[string]*Layer    `json:"layers,omitempty" toml:"layers"`

		// Root is the absolute directory holding the manifest.
		Root string `json:"-" toml:"-"`
		// ConfigPath is the absolute manifest path.
		ConfigPath string `json:"-" toml:"-"`
	}

	// Provider holds service-wide deployment settings.
	Provider struct {
		Name    string  `json:"name,omitempty" toml:"name"`
		Runtime Runtime `json:"runtime,omitempty" toml:"runtime"`
	}

	// Plugins describes the service's plugin setup. Only LocalPath matters to
	// packaging: it is never shipped.
	Plugins struct {
		LocalPath string   `json:"localPath,omitempty" toml:"localPath"`
		Modules   []string `json:"modules,omitempty" toml:"modules"`
	}

	// PackageConfig holds the packaging options of the service or one unit.
	// Zero values mean the option is absent.
	PackageConfig struct {
		Include      []string `json:"include,omitempty" toml:"include"`
		Exclude      []string `json:"exclude,omitempty" toml:"exclude"`
		Individually bool     `json:"individually,omitempty" toml:"individually"`
		Artifact     string   `json:"artifact,omitempty" toml:"artifact"`
		Disable      bool     `json:"disable,omitempty" toml:"disable"`
	}

	// Function is a deployable function unit.
	Function struct {
		Name    string         `json:"-" toml:"-"`
		Handler string         `json:"handler,omitempty" toml:"handler"`
		Runtime Runtime        `json:"runtime,omitempty" toml:"runtime"`
		Image   string         `json:"image,omitempty" toml:"image"`
		Package *PackageConfig `json:"package,omitempty" toml:"package"`
	}

	// Layer is a shared-dependency unit rooted at Path.
	Layer struct {
		Name    string         `json:"-" toml:"-"`
		Path    string         `json:"path" toml:"path"`
		Package *PackageConfig `json:"package,omitempty" toml:"package"`
	}

	// UnknownUnitError is returned when a function or layer name is not
	// declared in the manifest.
	UnknownUnitError struct {
		Kind UnitKind
		Name string
	}
)

// IsCompiled reports whether functions on this runtime must be built with
// the .NET toolchain before packaging.
func (r Runtime) IsCompiled() bool {
	return strings.HasPrefix(string(r), "dotnet")
}

// String returns the runtime identifier.
func (r Runtime) String() string { return string(r) }

// AllFunctions returns the declared function names in sorted order.
func (s *Service) AllFunctions() []string {
	return slices.Sorted(maps.Keys(s.Functions))
}

// Function returns the named function.
func (s *Service) Function(name string) (*Function, error) {
	fn, ok := s.Functions[name]
	if !ok {
		return nil, &UnknownUnitError{Kind: UnitFunction, Name: name}
	}
	return fn, nil
}

// AllLayers returns the declared layer names in sorted order.
func (s *Service) AllLayers() []string {
	return slices.Sorted(maps.Keys(s.Layers))
}

// Layer returns the named layer.
func (s *Service) Layer(name string) (*Layer, error) {
	l, ok := s.Layers[name]
	if !ok {
		return nil, &UnknownUnitError{Kind: UnitLayer, Name: name}
	}
	return l, nil
}

// IsImage reports whether the function ships as a container image.
func (f *Function) IsImage() bool { return f.Image != "" }

// Error implements the error interface.
func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("%s %q is not declared in the manifest", e.Kind, e.Name)
}

// Unwrap returns ErrUnknownUnit.
func (e *UnknownUnitError) Unwrap() error { return ErrUnknownUnit }

// Normalize fills the fields derived from map keys and makes every unit's
// Package non-nil so the packager can write artifacts back.
func (s *Service) Normalize() {
	for name, fn := range s.Functions {
		if fn == nil {
			fn = &Function{}
			s.Functions[name] = fn
		}
		fn.Name = name
		if fn.Package == nil {
			fn.Package = &PackageConfig{}
		}
	}
	for name, l := range s.Layers {
		if l == nil {
			l = &Layer{}
			s.Layers[name] = l
		}
		l.Name = name
		if l.Package == nil {
			l.Package = &PackageConfig{}
		}
	}
}

// validate checks the rules both manifest formats share.
func (s *Service) validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	for _, name := range s.AllFunctions() {
		fn := s.Functions[name]
		if fn.Handler == "" && fn.Image == "" {
			errs = append(errs, fmt.Errorf("function %q needs a handler or an image", name))
		}
		if platform.IsWindowsReservedName(name) {
			errs = append(errs, fmt.Errorf("function %q is a reserved file name on Windows", name))
		}
	}
	for _, name := range s.AllLayers() {
		if s.Layers[name].Path == "" {
			errs = append(errs, fmt.Errorf("layer %q needs a path", name))
		}
		if platform.IsWindowsReservedName(name) {
			errs = append(errs, fmt.Errorf("layer %q is a reserved file name on Windows", name))
		}
	}
	return errors.Join(errs...)
}
