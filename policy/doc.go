// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy decides who may hear and who may speak on a net.
//
// The evaluation functions are pure: given a net record and a member's
// rank they return a [Verdict], and they may be called concurrently
// from any number of sessions without synchronization. Rank comparison
// uses a fixed total order over rank names; an unrecognized rank is
// treated as the lowest rank and never granted elevated access
// (fail-closed).
//
// Stage mode is the one stateful concern: while a net is staged,
// nobody transmits without an explicit commander approval. The
// [StageApprovals] ledger records those grants. Approvals are
// multi-holder — approving a new speaker does not revoke an existing
// one, because implicitly dropping a transmitting relay mid-incident
// is worse than a commander having to revoke explicitly.
package policy
