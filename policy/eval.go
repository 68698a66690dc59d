// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"github.com/vanguard-fleet/commsnet/netdir"
)

// DenyReason describes why a policy check was denied.
type DenyReason int

const (
	// ReasonNone means the check was allowed.
	ReasonNone DenyReason = iota

	// ReasonRankBelowReceive means the member's rank is below the
	// net's receive floor.
	ReasonRankBelowReceive

	// ReasonRankBelowTransmit means the member's rank is below the
	// net's transmit floor.
	ReasonRankBelowTransmit

	// ReasonStageNotApproved means stage mode is active and the member
	// holds no commander approval.
	ReasonStageNotApproved
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "allowed"
	case ReasonRankBelowReceive:
		return "rank below receive floor"
	case ReasonRankBelowTransmit:
		return "rank below transmit floor"
	case ReasonStageNotApproved:
		return "no stage approval"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of a policy check. The zero value denies.
type Verdict struct {
	// Allowed is the decision.
	Allowed bool

	// Reason explains a denial. ReasonNone when allowed.
	Reason DenyReason
}

func allow() Verdict { return Verdict{Allowed: true} }

func deny(reason DenyReason) Verdict { return Verdict{Reason: reason} }

// CanReceive decides whether a member may receive audio on a net.
// Open nets have no receive gating; focused nets require the net's
// receive rank floor.
func CanReceive(net netdir.Net, member Member) Verdict {
	if net.Discipline == netdir.Open {
		return allow()
	}
	if !member.Rank.AtLeast(net.MinRankToReceive) {
		return deny(ReasonRankBelowReceive)
	}
	return allow()
}

// CanRequestTransmit decides whether a member may request transmit
// rights on a net. On a staged net anyone who can receive may hail;
// the grant itself is a commander action recorded in StageApprovals.
// On a focused net the transmit rank floor applies.
func CanRequestTransmit(net netdir.Net, member Member) Verdict {
	if receive := CanReceive(net, member); !receive.Allowed {
		return receive
	}
	if net.StageMode {
		return allow()
	}
	if net.Discipline == netdir.Open {
		return allow()
	}
	if !member.Rank.AtLeast(net.MinRankToTransmit) {
		return deny(ReasonRankBelowTransmit)
	}
	return allow()
}

// CanTransmitNow decides whether a member may key up immediately.
// Stage mode overrides everything: only currently-approved speakers
// hold the floor, regardless of rank or discipline. Otherwise open
// nets allow any connected participant, and focused nets require the
// transmit rank floor.
func CanTransmitNow(net netdir.Net, member Member, approvals *StageApprovals) Verdict {
	if net.StageMode {
		if approvals != nil && approvals.IsApproved(net.Code, member.User) {
			return allow()
		}
		return deny(ReasonStageNotApproved)
	}
	if net.Discipline == netdir.Open {
		return allow()
	}
	if !member.Rank.AtLeast(net.MinRankToTransmit) {
		return deny(ReasonRankBelowTransmit)
	}
	return allow()
}

// CanDirectNet reports whether a member may toggle a net's discipline
// or stage mode. Commanders and administrative roles only.
func CanDirectNet(member Member) bool {
	return member.Admin || member.Rank >= Commander
}

// CanCreateBridge reports whether a member may open a cross-net
// bridge. The threshold rank is configured per deployment; admins
// bypass it.
func CanCreateBridge(member Member, threshold Rank) bool {
	return member.Admin || member.Rank >= threshold
}
