// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package voice

import (
	"sort"
	"sync"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Participant is one roster entry as displayed.
type Participant struct {
	User     ref.UserID
	Callsign string

	// Client is the transport connection identity. Presence dedup
	// keys on User: a rejoin replaces the Client rather than adding a
	// second row.
	Client ref.ClientID

	Local    bool
	Muted    bool
	Speaking bool
}

// Registry is the live roster of one session. Every operation is
// idempotent and tolerates out-of-order presence events: removing an
// absent participant and re-upserting a present one are both safe.
//
// Only the owning session's event loop writes to a registry; readers
// get copies.
type Registry struct {
	mu       sync.RWMutex
	local    ref.UserID
	byUser   map[ref.UserID]Participant
	byClient map[ref.ClientID]ref.UserID
}

// NewRegistry creates an empty roster. The local user's entries are
// marked Local on upsert.
func NewRegistry(local ref.UserID) *Registry {
	return &Registry{
		local:    local,
		byUser:   make(map[ref.UserID]Participant),
		byClient: make(map[ref.ClientID]ref.UserID),
	}
}

// Upsert inserts or merges a participant. A duplicate upsert updates
// fields in place — never a second row. Zero Callsign and Client
// leave the existing values untouched, so a flag-only update does not
// erase identity.
func (r *Registry) Upsert(participant Participant) {
	if participant.User.IsZero() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, present := r.byUser[participant.User]
	if present {
		if participant.Callsign == "" {
			participant.Callsign = existing.Callsign
		}
		if participant.Client.IsZero() {
			participant.Client = existing.Client
		} else if existing.Client != participant.Client {
			delete(r.byClient, existing.Client)
		}
	}
	participant.Local = participant.User == r.local

	r.byUser[participant.User] = participant
	if !participant.Client.IsZero() {
		r.byClient[participant.Client] = participant.User
	}
}

// Remove deletes a participant. Removing an absent user is a no-op.
func (r *Registry) Remove(user ref.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	participant, present := r.byUser[user]
	if !present {
		return
	}
	delete(r.byUser, user)
	delete(r.byClient, participant.Client)
}

// UserForClient resolves a transport connection identity to the
// participant's user identity.
func (r *Registry) UserForClient(client ref.ClientID) (ref.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byClient[client]
	return user, ok
}

// SetSpeaking updates voice activity. Unknown users are ignored; the
// join event that introduces them carries the current flag.
func (r *Registry) SetSpeaking(user ref.UserID, speaking bool) {
	r.setFlag(user, func(p *Participant) { p.Speaking = speaking })
}

// SetMuted updates the self-mute flag. Unknown users are ignored.
func (r *Registry) SetMuted(user ref.UserID, muted bool) {
	r.setFlag(user, func(p *Participant) { p.Muted = muted })
}

func (r *Registry) setFlag(user ref.UserID, mutate func(*Participant)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	participant, present := r.byUser[user]
	if !present {
		return
	}
	mutate(&participant)
	r.byUser[user] = participant
}

// List returns the roster in display order: the local user first,
// then speaking participants, then the rest alphabetically by
// callsign.
func (r *Registry) List() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]Participant, 0, len(r.byUser))
	for _, participant := range r.byUser {
		roster = append(roster, participant)
	}
	sort.Slice(roster, func(i, j int) bool {
		left, right := roster[i], roster[j]
		if left.Local != right.Local {
			return left.Local
		}
		if left.Speaking != right.Speaking {
			return left.Speaking
		}
		if left.Callsign != right.Callsign {
			return left.Callsign < right.Callsign
		}
		return left.User.String() < right.User.String()
	})
	return roster
}

// Len returns the roster size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Clear empties the roster.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[ref.UserID]Participant)
	r.byClient = make(map[ref.ClientID]ref.UserID)
}
