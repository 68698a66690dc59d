// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"testing"

	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/netdir"
)

var allRanks = []Rank{Vagrant, Scout, Voyager, Warden, Sentinel, Commander, Marshal}

func memberWithRank(rank Rank) Member {
	return Member{User: ref.MustUserID("user-" + rank.String()), Rank: rank}
}

func TestOpenNetAllowsEveryRank(t *testing.T) {
	net := netdir.Net{
		Code:       ref.MustNetCode("SQD-RAPTOR"),
		Discipline: netdir.Open,
	}
	for _, rank := range allRanks {
		member := memberWithRank(rank)
		if verdict := CanReceive(net, member); !verdict.Allowed {
			t.Errorf("rank %s: receive denied on open net: %s", rank, verdict.Reason)
		}
		if verdict := CanTransmitNow(net, member, nil); !verdict.Allowed {
			t.Errorf("rank %s: transmit denied on open net: %s", rank, verdict.Reason)
		}
	}
}

func TestFocusedNetRankPairings(t *testing.T) {
	// Every (floor, member) rank pairing: transmit and receive are
	// allowed exactly when the member's rank meets the floor.
	for _, floor := range allRanks {
		net := netdir.Net{
			Code:              ref.MustNetCode("CMD-1"),
			Discipline:        netdir.Focused,
			MinRankToTransmit: floor.String(),
			MinRankToReceive:  floor.String(),
		}
		for _, rank := range allRanks {
			member := memberWithRank(rank)
			wantAllowed := rank >= floor

			receive := CanReceive(net, member)
			if receive.Allowed != wantAllowed {
				t.Errorf("floor %s, rank %s: receive allowed = %v, want %v",
					floor, rank, receive.Allowed, wantAllowed)
			}
			if !receive.Allowed && receive.Reason != ReasonRankBelowReceive {
				t.Errorf("floor %s, rank %s: receive reason = %s", floor, rank, receive.Reason)
			}

			transmit := CanTransmitNow(net, member, nil)
			if transmit.Allowed != wantAllowed {
				t.Errorf("floor %s, rank %s: transmit allowed = %v, want %v",
					floor, rank, transmit.Allowed, wantAllowed)
			}
		}
	}
}

func TestScoutOnFocusedCommandNet(t *testing.T) {
	// A Scout on a focused net with a Voyager transmit floor and a
	// Vagrant receive floor may listen but not key up.
	net := netdir.Net{
		Code:              ref.MustNetCode("CMD-1"),
		Discipline:        netdir.Focused,
		MinRankToTransmit: "Voyager",
		MinRankToReceive:  "Vagrant",
	}
	scout := memberWithRank(Scout)

	if verdict := CanReceive(net, scout); !verdict.Allowed {
		t.Fatalf("receive denied: %s", verdict.Reason)
	}
	verdict := CanTransmitNow(net, scout, nil)
	if verdict.Allowed {
		t.Fatal("transmit allowed for Scout below Voyager floor")
	}
	if verdict.Reason != ReasonRankBelowTransmit {
		t.Fatalf("reason = %s", verdict.Reason)
	}
}

func TestEmptyFloorMeansNoGate(t *testing.T) {
	net := netdir.Net{
		Code:       ref.MustNetCode("TAC-1"),
		Discipline: netdir.Focused,
	}
	member := memberWithRank(Vagrant)
	if verdict := CanTransmitNow(net, member, nil); !verdict.Allowed {
		t.Fatalf("transmit denied with no floor configured: %s", verdict.Reason)
	}
}

func TestUnrecognizedFloorLocksDown(t *testing.T) {
	// A typo in a net record must deny everyone, not open the net up.
	net := netdir.Net{
		Code:              ref.MustNetCode("CMD-1"),
		Discipline:        netdir.Focused,
		MinRankToTransmit: "Admrial",
	}
	for _, rank := range allRanks {
		if verdict := CanTransmitNow(net, memberWithRank(rank), nil); verdict.Allowed {
			t.Errorf("rank %s: transmit allowed under unrecognized floor", rank)
		}
	}
}

func TestStageModeRequiresApproval(t *testing.T) {
	net := netdir.Net{
		Code:       ref.MustNetCode("CMD-1"),
		Discipline: netdir.Open,
		StageMode:  true,
	}
	approvals := NewStageApprovals()
	marshal := memberWithRank(Marshal)

	// Even the highest rank does not hold the floor without a grant.
	verdict := CanTransmitNow(net, marshal, approvals)
	if verdict.Allowed {
		t.Fatal("transmit allowed on staged net without approval")
	}
	if verdict.Reason != ReasonStageNotApproved {
		t.Fatalf("reason = %s", verdict.Reason)
	}

	approvals.Approve(net.Code, marshal.User)
	if verdict := CanTransmitNow(net, marshal, approvals); !verdict.Allowed {
		t.Fatalf("transmit denied after approval: %s", verdict.Reason)
	}

	// Requesting the floor remains open to anyone who can receive.
	vagrant := memberWithRank(Vagrant)
	if verdict := CanRequestTransmit(net, vagrant); !verdict.Allowed {
		t.Fatalf("hail denied on staged net: %s", verdict.Reason)
	}
}

func TestStageApprovalsAreMultiHolder(t *testing.T) {
	code := ref.MustNetCode("CMD-1")
	first := ref.MustUserID("relay-one")
	second := ref.MustUserID("relay-two")

	approvals := NewStageApprovals()
	approvals.Approve(code, first)
	approvals.Approve(code, second)

	if !approvals.IsApproved(code, first) {
		t.Fatal("first grant dropped by second approval")
	}
	if !approvals.IsApproved(code, second) {
		t.Fatal("second grant missing")
	}

	approvals.Revoke(code, first)
	if approvals.IsApproved(code, first) {
		t.Fatal("revoked grant still present")
	}
	if !approvals.IsApproved(code, second) {
		t.Fatal("revoking one member dropped another")
	}

	approvals.Clear(code)
	if approvals.IsApproved(code, second) {
		t.Fatal("grant survived Clear")
	}
}

func TestCanDirectNet(t *testing.T) {
	if CanDirectNet(memberWithRank(Sentinel)) {
		t.Error("Sentinel may not direct nets")
	}
	if !CanDirectNet(memberWithRank(Commander)) {
		t.Error("Commander may direct nets")
	}
	admin := memberWithRank(Scout)
	admin.Admin = true
	if !CanDirectNet(admin) {
		t.Error("admin may direct nets regardless of rank")
	}
}

func TestCanCreateBridge(t *testing.T) {
	if CanCreateBridge(memberWithRank(Warden), Sentinel) {
		t.Error("Warden below Sentinel threshold")
	}
	if !CanCreateBridge(memberWithRank(Sentinel), Sentinel) {
		t.Error("Sentinel meets Sentinel threshold")
	}
	admin := memberWithRank(Vagrant)
	admin.Admin = true
	if !CanCreateBridge(admin, Marshal) {
		t.Error("admin bypasses threshold")
	}
}

func TestParseRank(t *testing.T) {
	rank, ok := ParseRank("Voyager")
	if !ok || rank != Voyager {
		t.Fatalf("ParseRank(Voyager) = %v, %v", rank, ok)
	}
	rank, ok = ParseRank("voyager")
	if ok || rank != Vagrant {
		t.Fatalf("ParseRank is case-sensitive and fails to the lowest rank, got %v, %v", rank, ok)
	}
}
