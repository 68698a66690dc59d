// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// UserID is an opaque member identity assigned by the organization's
// roster system. The engine treats it as an opaque token: non-empty,
// no whitespace, at most 64 bytes. Display names travel separately as
// callsigns — a UserID is never shown to operators.
//
// UserID is an immutable value type. The zero value is not valid; use
// IsZero to check.
type UserID struct {
	id string
}

// ParseUserID validates and wraps a raw user ID string.
func ParseUserID(raw string) (UserID, error) {
	if raw == "" {
		return UserID{}, fmt.Errorf("empty user ID")
	}
	if len(raw) > 64 {
		return UserID{}, fmt.Errorf("user ID exceeds 64 bytes: %q", raw)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return UserID{}, fmt.Errorf("user ID contains whitespace: %q", raw)
	}
	return UserID{id: raw}, nil
}

// MustUserID wraps ParseUserID and panics on error. For tests only.
func MustUserID(raw string) UserID {
	id, err := ParseUserID(raw)
	if err != nil {
		panic("ref: " + err.Error())
	}
	return id
}

// String returns the opaque user ID.
func (u UserID) String() string { return u.id }

// IsZero reports whether the UserID is the zero value.
func (u UserID) IsZero() bool { return u.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	if u.IsZero() {
		return nil, fmt.Errorf("cannot marshal zero UserID")
	}
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ClientID is a transport-assigned connection identifier. A user who
// reconnects gets a new ClientID; presence dedup keys on UserID, not
// ClientID. Opaque to the engine.
type ClientID struct {
	id string
}

// ParseClientID validates and wraps a raw client ID string.
func ParseClientID(raw string) (ClientID, error) {
	if raw == "" {
		return ClientID{}, fmt.Errorf("empty client ID")
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return ClientID{}, fmt.Errorf("client ID contains whitespace: %q", raw)
	}
	return ClientID{id: raw}, nil
}

// MustClientID wraps ParseClientID and panics on error. For tests only.
func MustClientID(raw string) ClientID {
	id, err := ParseClientID(raw)
	if err != nil {
		panic("ref: " + err.Error())
	}
	return id
}

// String returns the opaque client ID.
func (c ClientID) String() string { return c.id }

// IsZero reports whether the ClientID is the zero value.
func (c ClientID) IsZero() bool { return c.id == "" }

// MarshalText implements encoding.TextMarshaler.
func (c ClientID) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("cannot marshal zero ClientID")
	}
	return []byte(c.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClientID) UnmarshalText(text []byte) error {
	parsed, err := ParseClientID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
