// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes user-authored CUE documents against an embedded
// schema.
//
// Both the packaging manifest and the tool configuration go through the same
// flow: compile the schema, compile the document, unify the document with a
// schema definition, validate, and decode into a Go struct. Validation
// failures are reported per field with JSON-style paths:
//
//	packwright.cue: functions.hello.handler: conflicting values 1 and string
//
// # Usage
//
//	//go:embed schema.cue
//	var schema []byte
//
//	svc, err := cueutil.Decode[Service](schema, data, "#Service",
//	    cueutil.WithFilename("packwright.cue"))
package cueutil
