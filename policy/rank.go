// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import "github.com/vanguard-fleet/commsnet/lib/ref"

// Rank is a position in the organization's fixed rank order. Higher
// values outrank lower ones. The zero value is the lowest rank, so an
// unparsed or unknown rank never grants elevated access.
type Rank int

// The fixed rank order, lowest to highest. Net records reference ranks
// by name (min_rank_to_tx, min_rank_to_rx); ParseRank maps names into
// this order.
const (
	Vagrant Rank = iota
	Scout
	Voyager
	Warden
	Sentinel
	Commander
	Marshal
)

var rankNames = [...]string{
	Vagrant:   "Vagrant",
	Scout:     "Scout",
	Voyager:   "Voyager",
	Warden:    "Warden",
	Sentinel:  "Sentinel",
	Commander: "Commander",
	Marshal:   "Marshal",
}

// ParseRank maps a rank name to its position in the rank order. An
// unrecognized name returns the lowest rank (fail-closed) and false.
func ParseRank(name string) (Rank, bool) {
	for rank, rankName := range rankNames {
		if rankName == name {
			return Rank(rank), true
		}
	}
	return Vagrant, false
}

// String returns the rank name.
func (r Rank) String() string {
	if r < 0 || int(r) >= len(rankNames) {
		return "Unknown"
	}
	return rankNames[r]
}

// AtLeast reports whether r meets a minimum rank given by name. An
// empty name means no floor (always true). An unrecognized name is a
// misconfigured record; the floor is treated as the highest rank so a
// typo in a net record locks down rather than opens up (fail-closed).
func (r Rank) AtLeast(minimumName string) bool {
	if minimumName == "" {
		return true
	}
	minimum, recognized := ParseRank(minimumName)
	if !recognized {
		return false
	}
	return r >= minimum
}

// Member is a roster entry as the engine sees it: identity, display
// callsign, rank, and whether the member holds an administrative role.
// Roster management is external; this is the projection policy needs.
type Member struct {
	// User is the opaque roster identity.
	User ref.UserID

	// Callsign is the display name used on nets.
	Callsign string

	// Rank is the member's position in the rank order.
	Rank Rank

	// Admin marks administrative roles, which bypass rank thresholds
	// for bridge creation and net direction.
	Admin bool
}
