// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package netdir

import (
	"fmt"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Discipline is a net's transmit/receive policy mode.
type Discipline string

const (
	// Open nets let any connected participant transmit immediately.
	Open Discipline = "open"
	// Focused nets gate receive and transmit on member rank.
	Focused Discipline = "focused"
)

// NetType categorizes a net for display ordering and defaults.
type NetType string

const (
	TypeCommand  NetType = "command"
	TypeSquad    NetType = "squad"
	TypeTactical NetType = "tactical"
	TypeSupport  NetType = "support"
	TypeSocial   NetType = "social"
)

// Priority orders nets for display and audio ducking. Lower is more
// important.
type Priority int

const (
	PriorityCommand  Priority = 1
	PriorityStandard Priority = 2
	PriorityLow      Priority = 3
)

// Net is a single net directory record. Records are created and edited
// by the administration surface; the engine reads them and toggles only
// Discipline and StageMode.
type Net struct {
	// Code is the short radio-style name ("CMD-1").
	Code ref.NetCode `json:"code"`

	// Label is the human-readable name ("Fleet Command Primary").
	Label string `json:"label"`

	// Type categorizes the net.
	Type NetType `json:"type"`

	// Discipline is "open" or "focused".
	Discipline Discipline `json:"discipline"`

	// StageMode requires explicit commander approval to transmit,
	// regardless of discipline or rank.
	StageMode bool `json:"stage_mode"`

	// MinRankToTransmit is the minimum rank name for transmit on a
	// focused net. Empty means no rank floor.
	MinRankToTransmit string `json:"min_rank_to_tx"`

	// MinRankToReceive is the minimum rank name for receive on a
	// focused net. Empty means no rank floor.
	MinRankToReceive string `json:"min_rank_to_rx"`

	// Priority orders nets: 1 command, 2 standard, 3 low.
	Priority Priority `json:"priority"`

	// RequireApproval gates joining itself: a session stays pending
	// until an authorized role approves the join.
	RequireApproval bool `json:"require_approval"`
}

// Room returns the backing room ID for the net's primary channel.
func (n Net) Room() ref.RoomID {
	return ref.NetRoom(n.Code)
}

// validate checks a record for structural errors after decoding.
func (n Net) validate() error {
	if n.Code.IsZero() {
		return fmt.Errorf("net record missing code")
	}
	if n.Label == "" {
		return fmt.Errorf("net %s: missing label", n.Code)
	}
	switch n.Discipline {
	case Open, Focused:
	default:
		return fmt.Errorf("net %s: invalid discipline %q", n.Code, n.Discipline)
	}
	switch n.Type {
	case TypeCommand, TypeSquad, TypeTactical, TypeSupport, TypeSocial:
	default:
		return fmt.Errorf("net %s: invalid type %q", n.Code, n.Type)
	}
	if n.Priority < PriorityCommand || n.Priority > PriorityLow {
		return fmt.Errorf("net %s: priority must be 1-3, got %d", n.Code, n.Priority)
	}
	return nil
}
