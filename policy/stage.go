// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"sync"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// StageApprovals records which members currently hold the floor on
// staged nets. Grants are per net and multi-holder: approving one
// member never revokes another. Safe for concurrent use.
type StageApprovals struct {
	mu       sync.RWMutex
	approved map[ref.NetCode]map[ref.UserID]struct{}
}

// NewStageApprovals returns an empty ledger.
func NewStageApprovals() *StageApprovals {
	return &StageApprovals{
		approved: make(map[ref.NetCode]map[ref.UserID]struct{}),
	}
}

// Approve grants a member the floor on a net. Approving an already
// approved member is a no-op.
func (s *StageApprovals) Approve(net ref.NetCode, user ref.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grants, ok := s.approved[net]
	if !ok {
		grants = make(map[ref.UserID]struct{})
		s.approved[net] = grants
	}
	grants[user] = struct{}{}
}

// Revoke removes a member's floor grant on a net. Revoking a member
// who holds no grant is a no-op.
func (s *StageApprovals) Revoke(net ref.NetCode, user ref.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grants, ok := s.approved[net]
	if !ok {
		return
	}
	delete(grants, user)
	if len(grants) == 0 {
		delete(s.approved, net)
	}
}

// IsApproved reports whether a member holds the floor on a net.
func (s *StageApprovals) IsApproved(net ref.NetCode, user ref.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.approved[net][user]
	return ok
}

// Clear removes every grant on a net, typically when stage mode is
// switched off.
func (s *StageApprovals) Clear(net ref.NetCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.approved, net)
}

// Approved returns the members currently holding the floor on a net.
// The returned slice is a copy in unspecified order.
func (s *StageApprovals) Approved(net ref.NetCode) []ref.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grants := s.approved[net]
	users := make([]ref.UserID, 0, len(grants))
	for user := range grants {
		users = append(users, user)
	}
	return users
}
