// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "testing"

func TestParseNetCode(t *testing.T) {
	valid := []string{"CMD-1", "TAC-3", "SQD-ALPHA", "A1", "FLEET-OPS-9"}
	for _, raw := range valid {
		code, err := ParseNetCode(raw)
		if err != nil {
			t.Errorf("ParseNetCode(%q): unexpected error: %v", raw, err)
			continue
		}
		if code.String() != raw {
			t.Errorf("ParseNetCode(%q).String() = %q", raw, code.String())
		}
		if code.IsZero() {
			t.Errorf("ParseNetCode(%q) returned zero value", raw)
		}
	}

	invalid := []string{
		"",                  // empty
		"A",                 // too short
		"cmd-1",             // lowercase
		"CMD 1",             // space
		"-CMD",              // leading dash
		"CMD-",              // trailing dash
		"THIS-CODE-IS-LONG", // 17 chars
	}
	for _, raw := range invalid {
		if _, err := ParseNetCode(raw); err == nil {
			t.Errorf("ParseNetCode(%q): expected error", raw)
		}
	}
}

func TestParseRoomID(t *testing.T) {
	valid := []string{"net/CMD-1", "whisper/one/u-17", "whisper/squad/raptor"}
	for _, raw := range valid {
		room, err := ParseRoomID(raw)
		if err != nil {
			t.Errorf("ParseRoomID(%q): unexpected error: %v", raw, err)
			continue
		}
		if room.String() != raw {
			t.Errorf("ParseRoomID(%q).String() = %q", raw, room.String())
		}
	}

	invalid := []string{"", "noslash", "/leading", "trailing/", "net/CMD 1"}
	for _, raw := range invalid {
		if _, err := ParseRoomID(raw); err == nil {
			t.Errorf("ParseRoomID(%q): expected error", raw)
		}
	}
}

func TestNetRoom(t *testing.T) {
	room := NetRoom(MustNetCode("CMD-1"))
	if got := room.String(); got != "net/CMD-1" {
		t.Fatalf("NetRoom: got %q, want %q", got, "net/CMD-1")
	}
}

func TestUserIDRoundTrip(t *testing.T) {
	original := MustUserID("u-42")
	text, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var decoded UserID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip: got %v, want %v", decoded, original)
	}
}

func TestZeroValueMarshalFails(t *testing.T) {
	if _, err := (NetCode{}).MarshalText(); err == nil {
		t.Error("zero NetCode marshaled without error")
	}
	if _, err := (RoomID{}).MarshalText(); err == nil {
		t.Error("zero RoomID marshaled without error")
	}
	if _, err := (UserID{}).MarshalText(); err == nil {
		t.Error("zero UserID marshaled without error")
	}
	if _, err := (ClientID{}).MarshalText(); err == nil {
		t.Error("zero ClientID marshaled without error")
	}
}

func TestParseClientID(t *testing.T) {
	if _, err := ParseClientID(""); err == nil {
		t.Error("empty client ID accepted")
	}
	id, err := ParseClientID("conn-8f2a")
	if err != nil {
		t.Fatalf("ParseClientID: %v", err)
	}
	if id.String() != "conn-8f2a" {
		t.Fatalf("ParseClientID round trip: %q", id.String())
	}
}
