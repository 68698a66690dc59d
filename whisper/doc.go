// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package whisper manages private side-channels layered on the same
// transport contract as nets.
//
// A whisper is scoped to a single member, a role, a squad, a wing, or
// the whole fleet, and lives independently of any primary net session.
// The one hard invariant: at most one active whisper per local user.
// [Manager.Open] closes the previous whisper's transport before the
// new connect starts, so two whisper transports never exist at the
// same instant.
//
// Whispers carry no policy gating — initiating one is always
// permitted; access control applies to primary nets only. Mute and
// leave are local operations.
package whisper
