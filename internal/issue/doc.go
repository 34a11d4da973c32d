// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable, user-facing errors and a catalog of
// markdown troubleshooting pages rendered with glamour.
package issue
