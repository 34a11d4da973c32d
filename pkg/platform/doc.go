// SPDX-License-Identifier: MPL-2.0

// Package platform holds the operating-system names packwright switches on
// and the file names Windows refuses to create. Unit names become archive
// file names, so manifests are checked against the Windows list on every
// platform.
package platform
