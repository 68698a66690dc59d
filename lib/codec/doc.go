// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the engine's standard CBOR encoding.
//
// Control packets on the live transport's data channel and records in
// the audit stream are encoded with Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Deterministic bytes matter for the audit
// hash chain — the same logical record always hashes identically.
//
// Consumers import only this package, never fxamacker/cbor directly.
package codec
