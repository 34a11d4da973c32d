// SPDX-License-Identifier: MPL-2.0

// Package manifest loads service manifests: the functions, layers and
// packaging options of one deployable service.
//
// A manifest is either packwright.cue, validated against the embedded
// #Service schema, or packwright.toml with the same field names. A minimal
// CUE manifest looks like:
//
//	service: "hello"
//	provider: runtime: "nodejs20.x"
//	functions: hello: handler: "handler.hello"
//	layers: common: path: "layers/common"
//
// Loaded services are mutable: the packager writes the produced archive path
// back into each unit's Package.Artifact.
package manifest
