// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

func TestDeterministicEncoding(t *testing.T) {
	record := map[string]any{
		"kind":  "join",
		"net":   "CMD-1",
		"actor": "u-17",
	}
	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same record produced different bytes")
	}
}

func TestRefTypesRoundTrip(t *testing.T) {
	type packet struct {
		Net  ref.NetCode `cbor:"net"`
		Room ref.RoomID  `cbor:"room"`
		User ref.UserID  `cbor:"user"`
	}
	original := packet{
		Net:  ref.MustNetCode("CMD-1"),
		Room: ref.NetRoom(ref.MustNetCode("CMD-1")),
		User: ref.MustUserID("u-17"),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded packet
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip: got %+v, want %+v", decoded, original)
	}
}

func TestZeroRefFieldsAreOmittedNotRejected(t *testing.T) {
	// Zero ref values refuse to marshal; under omitempty they must be
	// skipped before MarshalText ever runs. Control packets and audit
	// records rely on this for fields that are legitimately absent.
	type record struct {
		Kind string      `cbor:"kind"`
		Net  ref.NetCode `cbor:"net,omitempty"`
		User ref.UserID  `cbor:"user,omitempty"`
	}
	data, err := Marshal(record{Kind: "transmit"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded record
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != "transmit" || !decoded.Net.IsZero() || !decoded.User.IsZero() {
		t.Fatalf("round trip: got %+v", decoded)
	}
}

func TestAnyTargetDecodesToStringKeyedMap(t *testing.T) {
	data, err := Marshal(map[string]any{"speaking": true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
}
