// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Sentinel errors classifying connection failures. The session layer
// maps these onto its error taxonomy with errors.Is.
var (
	// ErrTokenFailure means the access token could not be minted or
	// was rejected by the forwarding unit.
	ErrTokenFailure = errors.New("transport: token failure")

	// ErrUnavailable means the backend could not be reached.
	ErrUnavailable = errors.New("transport: backend unavailable")

	// ErrDenied means the backend refused the join for policy reasons.
	ErrDenied = errors.New("transport: join denied")

	// ErrClosed means the transport has been closed or already used.
	ErrClosed = errors.New("transport: closed")
)

// ConnectionState is the transport's own view of its link. The session
// layer keeps its richer state machine on top of this.
type ConnectionState int

const (
	// StateNew is the initial state before Connect.
	StateNew ConnectionState = iota

	// StateConnecting means Connect was accepted and the link is being
	// established.
	StateConnecting

	// StateConnected means audio and control are flowing.
	StateConnected

	// StateDisconnected means the link ended, cleanly or not. A
	// transport never leaves this state.
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectParams identifies who is joining which room.
type ConnectParams struct {
	// Room is the backing room for the net, whisper, or bridge leg.
	Room ref.RoomID

	// User is the joining member's roster identity.
	User ref.UserID

	// Callsign is the display name announced to other participants.
	Callsign string
}

// Participant is one connected member of a room as the backend
// reports it.
type Participant struct {
	// Client is the backend-assigned connection identity. Stable for
	// the life of the connection; a rejoin gets a new one.
	Client ref.ClientID

	// User is the member's roster identity.
	User ref.UserID

	// Callsign is the display name.
	Callsign string

	// Speaking reports live voice activity.
	Speaking bool

	// Muted reports a self-mute announced by the participant.
	Muted bool
}

// DisconnectReason distinguishes a clean local disconnect from a lost
// link.
type DisconnectReason int

const (
	// ReasonLocal means Disconnect or Close was called here.
	ReasonLocal DisconnectReason = iota

	// ReasonRemote means the backend ended the connection.
	ReasonRemote

	// ReasonLost means the link dropped without a close from either
	// side.
	ReasonLost
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonLocal:
		return "local"
	case ReasonRemote:
		return "remote"
	case ReasonLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Event is a transport notification. The concrete types are
// [Connected], [Disconnected], [ParticipantJoined], [ParticipantLeft],
// [SpeakingChanged], and [TransportError].
type Event interface {
	isEvent()
}

// Connected reports that the link is established. Self is this
// connection's backend-assigned identity.
type Connected struct {
	Self ref.ClientID
}

// Disconnected reports that the link ended. After this event the
// events channel closes and the transport is spent.
type Disconnected struct {
	Reason DisconnectReason
	Err    error
}

// ParticipantJoined reports a new participant in the room, including
// the existing roster replayed on join.
type ParticipantJoined struct {
	Participant Participant
}

// ParticipantLeft reports a departure.
type ParticipantLeft struct {
	Client ref.ClientID
}

// SpeakingChanged reports a voice-activity transition.
type SpeakingChanged struct {
	Client   ref.ClientID
	Speaking bool
}

// TransportError reports a non-fatal fault (a failed control send, a
// decode error). Fatal faults surface as Disconnected instead.
type TransportError struct {
	Err error
}

func (Connected) isEvent()         {}
func (Disconnected) isEvent()      {}
func (ParticipantJoined) isEvent() {}
func (ParticipantLeft) isEvent()   {}
func (SpeakingChanged) isEvent()   {}
func (TransportError) isEvent()    {}

// Transport is the voice backend contract.
//
// Connect establishes the link described by params. It returns an
// error only for immediate failures (token rejection, spent
// transport); the outcome of an accepted connect arrives on Events as
// Connected or Disconnected. Disconnect tears the link down and is
// idempotent. Close is Disconnect plus resource release; after either,
// the events channel closes.
type Transport interface {
	Connect(ctx context.Context, params ConnectParams) error
	Disconnect(ctx context.Context) error

	// SetMicEnabled opens or closes the capture path. Disabled wins
	// over an active PTT.
	SetMicEnabled(enabled bool)

	// SetPTTActive keys or releases transmit. The session layer
	// performs the policy check; the transport only moves audio.
	SetPTTActive(active bool)

	// SetOutputDevice routes received audio to a device.
	SetOutputDevice(ctx context.Context, deviceID string) error

	// SetParticipantGain adjusts local playback gain for one
	// participant. Gain is a linear multiplier in [0, 2].
	SetParticipantGain(client ref.ClientID, gain float64) error

	// PublishControlPacket sends an application packet to the room's
	// other participants.
	PublishControlPacket(ctx context.Context, packet ControlPacket) error

	// Events returns the event channel. Closed after Disconnected.
	Events() <-chan Event

	// Participants returns a snapshot of the room roster.
	Participants() []Participant

	// State returns the connection state.
	State() ConnectionState

	Close() error
}
