// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the packaging hot paths: manifest
// decoding, pattern resolution over a large tree and a full service run.
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
