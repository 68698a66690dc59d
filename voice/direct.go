// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package voice

import (
	"fmt"

	"github.com/vanguard-fleet/commsnet/audit"
	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/netdir"
	"github.com/vanguard-fleet/commsnet/policy"
)

// Net direction: the coordination surface over the directory and the
// stage-approval ledger. Every write is gated on policy.CanDirectNet
// here, at the call boundary; the directory itself is an ungated write
// path. Directory changes reach connected sessions through the watch;
// approval changes are pushed to the affected session directly, since
// the ledger has no watch of its own.

// SetDiscipline changes a net's discipline mode.
func (m *Manager) SetDiscipline(code ref.NetCode, discipline netdir.Discipline) error {
	if !policy.CanDirectNet(m.member) {
		return newError(ReasonDenied, "rank %s cannot direct nets", m.member.Rank)
	}
	if err := m.directory.SetDiscipline(code, discipline); err != nil {
		return err
	}
	m.sink.Emit(audit.Event{
		Kind: audit.KindDiscipline, Net: code, Actor: m.member.User,
		Detail: string(discipline), At: m.clk.Now(),
	})
	return nil
}

// SetStageMode enables or disables stage mode on a net. Disabling
// clears the net's speaker approvals: the next staging starts from an
// empty slate.
func (m *Manager) SetStageMode(code ref.NetCode, enabled bool) error {
	if !policy.CanDirectNet(m.member) {
		return newError(ReasonDenied, "rank %s cannot direct nets", m.member.Rank)
	}
	if err := m.directory.SetStageMode(code, enabled); err != nil {
		return err
	}
	if !enabled {
		m.approvals.Clear(code)
	}
	m.sink.Emit(audit.Event{
		Kind: audit.KindStageMode, Net: code, Actor: m.member.User,
		Detail: fmt.Sprintf("enabled=%t", enabled), At: m.clk.Now(),
	})
	return nil
}

// ApproveSpeaker grants a member the stage floor on a net. Approvals
// are additive: granting a new speaker does not revoke earlier grants.
func (m *Manager) ApproveSpeaker(code ref.NetCode, user ref.UserID) error {
	if !policy.CanDirectNet(m.member) {
		return newError(ReasonDenied, "rank %s cannot direct nets", m.member.Rank)
	}
	m.approvals.Approve(code, user)
	m.sink.Emit(audit.Event{
		Kind: audit.KindStageApproval, Net: code, Actor: m.member.User,
		Detail: "approved " + user.String(), At: m.clk.Now(),
	})
	m.regate(code)
	return nil
}

// RevokeSpeaker withdraws a member's stage floor. A revoked member
// who is transmitting is un-keyed on the next policy evaluation.
func (m *Manager) RevokeSpeaker(code ref.NetCode, user ref.UserID) error {
	if !policy.CanDirectNet(m.member) {
		return newError(ReasonDenied, "rank %s cannot direct nets", m.member.Rank)
	}
	m.approvals.Revoke(code, user)
	m.sink.Emit(audit.Event{
		Kind: audit.KindStageApproval, Net: code, Actor: m.member.User,
		Detail: "revoked " + user.String(), At: m.clk.Now(),
	})
	m.regate(code)
	return nil
}

// regate re-runs the transmit policy for the local session on a net
// after an approval change. The directory watch covers record changes;
// the ledger is mutated here, so the push happens here too.
func (m *Manager) regate(code ref.NetCode) {
	net, ok := m.directory.Get(code)
	if !ok {
		return
	}
	m.mu.Lock()
	session, present := m.sessions[code]
	m.mu.Unlock()
	if present {
		session.applyNetChange(net)
	}
}
