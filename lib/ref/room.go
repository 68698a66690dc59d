// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// RoomID identifies a backing audio room on a transport. Room IDs are
// hierarchical slash-separated paths with a kind prefix:
//
//	net/CMD-1             — primary room for a net
//	whisper/one/u-17      — 1:1 whisper to a user
//	whisper/squad/raptor  — squad-scoped whisper
//
// The engine never constructs room IDs from raw strings outside this
// package — they come from NetRoom/WhisperRoom or are parsed at the
// transport boundary.
//
// RoomID is an immutable value type. The zero value is not valid; use
// IsZero to check.
type RoomID struct {
	id string
}

// ParseRoomID validates and wraps a raw room ID string. A room ID must
// contain a '/' separating a non-empty kind prefix from a non-empty
// remainder, and must not contain whitespace.
func ParseRoomID(raw string) (RoomID, error) {
	if raw == "" {
		return RoomID{}, fmt.Errorf("empty room ID")
	}
	slashIndex := strings.IndexByte(raw, '/')
	if slashIndex <= 0 || slashIndex == len(raw)-1 {
		return RoomID{}, fmt.Errorf("room ID must be 'kind/name': %q", raw)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return RoomID{}, fmt.Errorf("room ID contains whitespace: %q", raw)
	}
	return RoomID{id: raw}, nil
}

// NetRoom returns the primary room ID for a net.
func NetRoom(code NetCode) RoomID {
	return RoomID{id: "net/" + code.String()}
}

// WhisperRoom returns the room ID for a whisper side-channel of the
// given scope ("one", "role", "squad", "wing", "fleet") and target.
func WhisperRoom(scope, target string) (RoomID, error) {
	if scope == "" || target == "" {
		return RoomID{}, fmt.Errorf("whisper room needs scope and target")
	}
	return ParseRoomID("whisper/" + scope + "/" + target)
}

// String returns the full room ID (e.g., "net/CMD-1").
func (r RoomID) String() string { return r.id }

// IsZero reports whether the RoomID is the zero value.
func (r RoomID) IsZero() bool { return r.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (r RoomID) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("cannot marshal zero RoomID")
	}
	return []byte(r.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RoomID) UnmarshalText(text []byte) error {
	parsed, err := ParseRoomID(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
