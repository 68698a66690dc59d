// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records engine activity — joins, leaves, discipline
// changes, bridge opens — for after-action review.
//
// Delivery is fire-and-forget: [Sink.Emit] never blocks and never
// returns an error, so an overloaded or broken sink cannot stall a
// session transition. The [FileSink] buffers writes and counts drops
// when saturated rather than applying backpressure.
//
// The file format is a zstd-compressed stream of CBOR records, each
// carrying a BLAKE3 hash of its predecessor. Truncating or rewriting
// history breaks the chain, which [VerifyChain] detects.
package audit
