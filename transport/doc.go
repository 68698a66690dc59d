// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries voice to and from a net's backing room.
//
// [Transport] is the contract the session layer programs against. Two
// implementations exist: [SimulatedTransport], an in-process backend
// with scriptable latency and failure injection used by tests and
// development builds, and [LiveTransport], a WebRTC client that joins
// a selective forwarding unit over an HTTP SDP exchange and speaks
// CBOR control packets on a data channel.
//
// A transport is single-use: Connect once, Disconnect or fail, then
// discard. Reconnection is the session layer's job and always uses a
// fresh transport instance.
//
// Events are delivered on one bounded channel per instance, in receipt
// order. Sends block rather than drop, so the consumer (the session
// event loop) must keep draining until the channel closes.
package transport
