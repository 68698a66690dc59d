// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package voice owns net membership: the session state machine, the
// presence registry, and the status chip projection.
//
// A [Session] moves through idle, joining, connected, reconnecting,
// and error. Joins time out after [DefaultConnectTimeout]; an
// unexpected drop while connected gets exactly one automatic
// reconnect, and every further recovery is an explicit [Session.Retry].
// Each connection attempt uses a fresh transport — a spent transport
// is never reused.
//
// All transitions for one session are serialized through its event
// loop, the only writer of that session's [Registry]. Multiple
// sessions progress independently; a failure in one never touches
// another's roster.
//
// [Manager] is the entry point: it resolves nets in the directory,
// enforces the receive policy at join, hands out session handles
// (idempotently — a second join of the same net returns the existing
// handle), and re-gates active push-to-talk when a net's discipline
// or stage mode changes mid-session.
package voice
