// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include file tree construction (WriteTree, MustWriteFile),
// directory operations (MustMkdirAll, MustSymlink) and archive inspection
// (ZipEntries).
package testutil
