// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for comms-net entities: net codes, backing rooms, users, and
// transport-assigned client connections.
//
// All constructors validate their inputs and return errors for invalid
// values. Once constructed, a ref is immutable — the engine never
// passes raw strings across component boundaries. Transport backends
// and the net directory parse external identifiers into these types at
// the boundary; everything inward operates on validated values.
//
// JSON and CBOR marshaling use the canonical string form via
// encoding.TextMarshaler, so refs round-trip through control packets
// and audit records without custom codec configuration.
package ref
