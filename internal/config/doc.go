// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// The user config lives in config.cue under ConfigDir (XDG on Linux,
// ~/Library/Application Support on macOS, %APPDATA% on Windows). When it is
// absent, packwright.config.cue in the service directory is used instead.
// Files are validated against the embedded #Config schema. Every key can be
// overridden from the environment with the PACKWRIGHT_ prefix, dots replaced
// by underscores: PACKWRIGHT_BUILD_DIR, PACKWRIGHT_UI_VERBOSE.
package config
