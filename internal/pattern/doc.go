// SPDX-License-Identifier: MPL-2.0

// Package pattern resolves the set of files that belong to a deployment
// archive from ordered include and exclude glob patterns.
//
// Resolution is order-dependent rather than set-theoretic: every exclude
// pattern is applied first, then every include pattern, and a later pattern's
// verdict overwrites an earlier one for any path both match. This lets a
// caller exclude a broad tree (e.g. "node_modules/**") and re-include a
// specific path inside it.
package pattern
