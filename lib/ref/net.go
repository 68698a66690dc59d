// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// NetCode is a validated short radio-style net name (e.g., "CMD-1",
// "TAC-3", "SQD-ALPHA"). Codes are uppercase ASCII letters, digits,
// and dashes, between 2 and 16 characters, and never begin or end
// with a dash.
//
// NetCode is an immutable value type. The zero value is not valid;
// use IsZero to check.
type NetCode struct {
	code string
}

// ParseNetCode validates and wraps a raw net code string.
func ParseNetCode(raw string) (NetCode, error) {
	if len(raw) < 2 || len(raw) > 16 {
		return NetCode{}, fmt.Errorf("net code must be 2-16 characters: %q", raw)
	}
	if raw[0] == '-' || raw[len(raw)-1] == '-' {
		return NetCode{}, fmt.Errorf("net code must not begin or end with a dash: %q", raw)
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return NetCode{}, fmt.Errorf("net code contains invalid character %q: %q", c, raw)
		}
	}
	return NetCode{code: raw}, nil
}

// MustNetCode wraps ParseNetCode and panics on error. For tests and
// compiled-in constants only.
func MustNetCode(raw string) NetCode {
	code, err := ParseNetCode(raw)
	if err != nil {
		panic("ref: " + err.Error())
	}
	return code
}

// String returns the net code (e.g., "CMD-1").
func (n NetCode) String() string { return n.code }

// IsZero reports whether the NetCode is the zero value.
func (n NetCode) IsZero() bool { return n.code == "" }

// MarshalText implements encoding.TextMarshaler.
func (n NetCode) MarshalText() ([]byte, error) {
	if n.IsZero() {
		return nil, fmt.Errorf("cannot marshal zero NetCode")
	}
	return []byte(n.code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NetCode) UnmarshalText(text []byte) error {
	parsed, err := ParseNetCode(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
