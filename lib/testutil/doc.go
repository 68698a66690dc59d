// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for commsnet packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// individual tests do not need direct time.After calls. Engine tests
// otherwise run on a fake clock; these helpers are the only sanctioned
// wall-clock waits, and they exist purely to turn a hung test into a
// failure with a message.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation — user IDs, room names, and callsigns that must be
// distinguishable across subtests sharing a directory or transport.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
