// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package netdir provides read access to the organization's net
// directory: the externally managed records describing which voice
// nets exist and under what rules they operate.
//
// Net definitions live in a JSONC file edited by operations staff —
// comments and trailing commas are allowed, since these files are
// maintained by hand between events. The engine treats records as
// read-only except for two fields: discipline and stage mode, which
// authorized roles toggle mid-operation through [Directory.SetDiscipline]
// and [Directory.SetStageMode]. Authorization for those toggles is
// enforced at the call boundary (see the policy package), not here.
//
// [Directory.Watch] delivers changed records to connected sessions so
// they can re-evaluate transmit gating when a commander flips a net
// from open to focused or enables stage mode during an incident.
package netdir
