// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package voice

import (
	"fmt"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Chip is the compact status summary display surfaces render: the
// externally observable state vocabulary. A pure projection — reading
// it never changes engine state.
type Chip struct {
	// Backend names the transport mode, "simulated" or "live".
	Backend string

	// State is the session state.
	State State

	// Net is the net code.
	Net ref.NetCode

	// Room is the backing room.
	Room ref.RoomID

	// Participants is the current roster size.
	Participants int

	// PendingApproval marks a join parked on the approval gate.
	PendingApproval bool

	// LastError is the most recent failure, formatted with its
	// taxonomy reason, or empty.
	LastError string
}

// Chip projects the session into its status summary.
func (s *Session) Chip() Chip {
	s.mu.Lock()
	defer s.mu.Unlock()

	chip := Chip{
		Backend:         s.backend,
		State:           s.state,
		Net:             s.net.Code,
		Room:            s.net.Room(),
		Participants:    s.registry.Len(),
		PendingApproval: s.pendingApproval,
	}
	if s.lastError != nil {
		chip.LastError = s.lastError.Error()
	}
	return chip
}

// String renders the chip as a single status line.
func (c Chip) String() string {
	switch {
	case c.LastError != "":
		return fmt.Sprintf("[%s] %s %s — %s", c.Backend, c.Net, c.State, c.LastError)
	case c.PendingApproval:
		return fmt.Sprintf("[%s] %s joining (awaiting approval)", c.Backend, c.Net)
	case c.State == StateConnected:
		return fmt.Sprintf("[%s] %s connected (%d)", c.Backend, c.Net, c.Participants)
	default:
		return fmt.Sprintf("[%s] %s %s", c.Backend, c.Net, c.State)
	}
}
