// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"

	"github.com/vanguard-fleet/commsnet/lib/codec"
	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// ControlKind discriminates control packets on the data channel.
type ControlKind string

const (
	// ControlJoin announces a participant, with identity fields set.
	// The forwarding unit replays one per existing participant to a
	// new joiner.
	ControlJoin ControlKind = "join"

	// ControlLeave announces a departure.
	ControlLeave ControlKind = "leave"

	// ControlSpeaking carries a voice-activity transition.
	ControlSpeaking ControlKind = "speaking"

	// ControlMute announces a self-mute change.
	ControlMute ControlKind = "mute"

	// ControlTransmit tells the forwarding unit whether to forward
	// this connection's audio.
	ControlTransmit ControlKind = "transmit"

	// ControlHail requests the floor on a staged net.
	ControlHail ControlKind = "hail"
)

// ControlPacket is the application message exchanged with the
// forwarding unit and other participants. Encoded as deterministic
// CBOR; unset fields are omitted on the wire.
type ControlPacket struct {
	Kind     ControlKind  `cbor:"kind"`
	Client   ref.ClientID `cbor:"client,omitempty"`
	User     ref.UserID   `cbor:"user,omitempty"`
	Callsign string       `cbor:"callsign,omitempty"`
	Speaking bool         `cbor:"speaking,omitempty"`
	Muted    bool         `cbor:"muted,omitempty"`
}

// EncodeControlPacket serializes a packet for the data channel.
func EncodeControlPacket(packet ControlPacket) ([]byte, error) {
	if packet.Kind == "" {
		return nil, fmt.Errorf("control packet has no kind")
	}
	return codec.Marshal(packet)
}

// DecodeControlPacket parses a data channel message.
func DecodeControlPacket(data []byte) (ControlPacket, error) {
	var packet ControlPacket
	if err := codec.Unmarshal(data, &packet); err != nil {
		return ControlPacket{}, fmt.Errorf("decoding control packet: %w", err)
	}
	if packet.Kind == "" {
		return ControlPacket{}, fmt.Errorf("control packet has no kind")
	}
	return packet, nil
}
