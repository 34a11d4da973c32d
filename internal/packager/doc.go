// SPDX-License-Identifier: MPL-2.0

// Package packager turns a loaded service manifest into deployment archives.
//
// For every function and layer it decides which files ship, builds compiled
// units through the run's build registry, and asks the archiver for one zip
// per unit. Functions that are not packaged individually share a single
// service archive. Units are processed concurrently and a failing unit does
// not stop its siblings: PackageService reports every failure at once.
package packager
