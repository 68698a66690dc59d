// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package patch records temporary bridges between two rooms for
// cross-net relay during incidents.
//
// A bridge is declarative state: its existence tells operators and
// the live infrastructure which rooms should be cross-patched. No
// audio moves through this package. Creation is gated on rank at the
// call boundary; closing is idempotent — closing an already-closed
// bridge is a no-op, not an error.
package patch
