// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"errors"
	"fmt"

	"github.com/packwright/packwright/internal/manifest"
)

// ErrConfiguration is the sentinel error wrapped by ConfigurationError.
var ErrConfiguration = errors.New("invalid packaging configuration")

type (
	// ConfigurationError reports a unit whose manifest entry cannot be
	// packaged as declared.
	ConfigurationError struct {
		Unit   string
		Reason string
	}

	// UnitError attributes a failure to one function, layer or the service
	// archive.
	UnitError struct {
		Kind manifest.UnitKind
		Name string
		Err  error
	}
)

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Unit, e.Reason)
}

// Unwrap returns ErrConfiguration.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Error implements the error interface.
func (e *UnitError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Name, e.Err)
}

// Unwrap returns the unit's failure.
func (e *UnitError) Unwrap() error { return e.Err }

// wrapUnit attributes err to a unit unless it already is.
func wrapUnit(kind manifest.UnitKind, name string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnitError
	if errors.As(err, &ue) && ue.Kind == kind && ue.Name == name {
		return err
	}
	return &UnitError{Kind: kind, Name: name, Err: err}
}
