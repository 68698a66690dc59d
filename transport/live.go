// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Compile-time interface check.
var _ Transport = (*LiveTransport)(nil)

// iceGatherTimeout is the maximum time to wait for ICE candidate
// gathering before sending the SDP offer. Vanilla ICE: the complete
// offer goes to the forwarding unit in one round-trip.
const iceGatherTimeout = 15 * time.Second

// controlChannelLabel names the data channel carrying control packets.
const controlChannelLabel = "control"

// LiveOptions configures a LiveTransport.
type LiveOptions struct {
	// SFUURL is the forwarding unit's SDP exchange endpoint, used when
	// the minted token does not carry its own URL.
	SFUURL string

	// Tokens mints the room access token for the connection.
	Tokens TokenService

	// HTTPClient performs the SDP exchange. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives transport lifecycle logs. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// LiveTransport joins a net's backing room on a selective forwarding
// unit over WebRTC. The SDP exchange is a single authenticated HTTP
// round-trip; presence and floor control travel as CBOR control
// packets on an ordered data channel; audio rides an RTP transceiver
// on the same PeerConnection.
//
// Single-use, like every Transport: the session layer builds a fresh
// LiveTransport per connection attempt.
type LiveTransport struct {
	sfuURL string
	tokens TokenService
	client *http.Client
	logger *slog.Logger

	events chan Event

	// eventMu orders event emission against channel close.
	eventMu sync.Mutex
	spent   bool

	mu           sync.Mutex
	state        ConnectionState
	self         ref.ClientID
	params       ConnectParams
	connection   *webrtc.PeerConnection
	control      *webrtc.DataChannel
	participants map[ref.ClientID]Participant
	micEnabled   bool
	pttActive    bool
	transmitting bool
	outputDevice string
	gains        map[ref.ClientID]float64
}

// NewLive creates a live transport.
func NewLive(options LiveOptions) *LiveTransport {
	if options.HTTPClient == nil {
		options.HTTPClient = http.DefaultClient
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &LiveTransport{
		sfuURL:       options.SFUURL,
		tokens:       options.Tokens,
		client:       options.HTTPClient,
		logger:       options.Logger,
		events:       make(chan Event, 64),
		participants: make(map[ref.ClientID]Participant),
		micEnabled:   true,
		gains:        make(map[ref.ClientID]float64),
	}
}

// sdpExchangeRequest is the JSON body POSTed to the forwarding unit.
type sdpExchangeRequest struct {
	SDP      string     `json:"sdp"`
	Room     ref.RoomID `json:"room"`
	User     ref.UserID `json:"user"`
	Callsign string     `json:"callsign,omitempty"`
}

// sdpExchangeResponse is the forwarding unit's answer, carrying the
// client identity it assigned to this connection.
type sdpExchangeResponse struct {
	SDP    string       `json:"sdp"`
	Client ref.ClientID `json:"client_id"`
}

// Connect mints a token, performs the SDP exchange, and starts ICE.
// Errors returned here are immediate failures (token, exchange); the
// ICE outcome arrives on Events as Connected or Disconnected.
func (t *LiveTransport) Connect(ctx context.Context, params ConnectParams) error {
	if params.Room.IsZero() || params.User.IsZero() {
		return fmt.Errorf("connect params missing room or user")
	}

	t.mu.Lock()
	if t.state != StateNew {
		t.mu.Unlock()
		return ErrClosed
	}
	t.state = StateConnecting
	t.params = params
	t.mu.Unlock()

	token, err := t.tokens.MintToken(ctx, params.Room, params.User)
	if err != nil {
		t.failConnect()
		return err
	}

	endpoint := token.URL
	if endpoint == "" {
		endpoint = t.sfuURL
	}

	connection, err := newPeerConnection()
	if err != nil {
		t.failConnect()
		return fmt.Errorf("%w: creating peer connection: %v", ErrUnavailable, err)
	}

	if _, err := connection.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv},
	); err != nil {
		connection.Close()
		t.failConnect()
		return fmt.Errorf("%w: adding audio transceiver: %v", ErrUnavailable, err)
	}

	ordered := true
	control, err := connection.CreateDataChannel(controlChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		connection.Close()
		t.failConnect()
		return fmt.Errorf("%w: creating control channel: %v", ErrUnavailable, err)
	}
	control.OnMessage(func(message webrtc.DataChannelMessage) {
		t.handleControlMessage(message.Data)
	})

	connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		t.handleICEStateChange(state)
	})

	offer, err := connection.CreateOffer(nil)
	if err != nil {
		connection.Close()
		t.failConnect()
		return fmt.Errorf("%w: creating SDP offer: %v", ErrUnavailable, err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(connection)
	if err := connection.SetLocalDescription(offer); err != nil {
		connection.Close()
		t.failConnect()
		return fmt.Errorf("%w: setting local description: %v", ErrUnavailable, err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(iceGatherTimeout):
		connection.Close()
		t.failConnect()
		return fmt.Errorf("%w: ICE gathering timed out after %s", ErrUnavailable, iceGatherTimeout)
	case <-ctx.Done():
		connection.Close()
		t.failConnect()
		return ctx.Err()
	}

	answer, self, err := t.exchangeSDP(ctx, endpoint, token, connection.LocalDescription().SDP, params)
	if err != nil {
		connection.Close()
		t.failConnect()
		return err
	}

	if err := connection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		connection.Close()
		t.failConnect()
		return fmt.Errorf("%w: setting remote description: %v", ErrUnavailable, err)
	}

	t.mu.Lock()
	t.connection = connection
	t.control = control
	t.self = self
	t.mu.Unlock()

	t.logger.Info("SDP exchange complete", "room", params.Room, "client", self)
	return nil
}

// failConnect marks an aborted connect. No Disconnected event: the
// caller gets the error synchronously.
func (t *LiveTransport) failConnect() {
	t.mu.Lock()
	t.state = StateDisconnected
	t.mu.Unlock()
	t.eventMu.Lock()
	if !t.spent {
		t.spent = true
		close(t.events)
	}
	t.eventMu.Unlock()
}

// exchangeSDP POSTs the offer to the forwarding unit and returns the
// answer SDP and the assigned client identity.
func (t *LiveTransport) exchangeSDP(ctx context.Context, endpoint string, token Token, offerSDP string, params ConnectParams) (string, ref.ClientID, error) {
	requestBody, err := json.Marshal(sdpExchangeRequest{
		SDP:      offerSDP,
		Room:     params.Room,
		User:     params.User,
		Callsign: params.Callsign,
	})
	if err != nil {
		return "", ref.ClientID{}, fmt.Errorf("encoding SDP exchange request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", ref.ClientID{}, fmt.Errorf("%w: building SDP exchange request: %v", ErrUnavailable, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+token.Value)

	response, err := t.client.Do(request)
	if err != nil {
		return "", ref.ClientID{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ref.ClientID{}, fmt.Errorf("%w: forwarding unit rejected token", ErrTokenFailure)
	case http.StatusForbidden:
		return "", ref.ClientID{}, fmt.Errorf("%w: forwarding unit refused join", ErrDenied)
	default:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return "", ref.ClientID{}, fmt.Errorf("%w: forwarding unit returned %s: %s",
			ErrUnavailable, response.Status, bytes.TrimSpace(body))
	}

	var exchange sdpExchangeResponse
	if err := json.NewDecoder(response.Body).Decode(&exchange); err != nil {
		return "", ref.ClientID{}, fmt.Errorf("%w: decoding SDP exchange response: %v", ErrUnavailable, err)
	}
	if exchange.SDP == "" || exchange.Client.IsZero() {
		return "", ref.ClientID{}, fmt.Errorf("%w: incomplete SDP exchange response", ErrUnavailable)
	}
	return exchange.SDP, exchange.Client, nil
}

// handleICEStateChange tracks the link. Connected fires once; a later
// failure or close finishes the transport.
func (t *LiveTransport) handleICEStateChange(state webrtc.ICEConnectionState) {
	t.logger.Debug("ICE state change", "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		t.mu.Lock()
		if t.state != StateConnecting {
			t.mu.Unlock()
			return
		}
		t.state = StateConnected
		self := t.self
		t.mu.Unlock()

		t.emit(Connected{Self: self})
		t.announceSelf()

	case webrtc.ICEConnectionStateFailed:
		t.finish(ReasonLost, fmt.Errorf("ICE connection failed"), true)

	case webrtc.ICEConnectionStateClosed:
		t.finish(ReasonRemote, nil, true)
	}
}

// announceSelf publishes the local join packet once the link is up.
func (t *LiveTransport) announceSelf() {
	t.mu.Lock()
	packet := ControlPacket{
		Kind:     ControlJoin,
		Client:   t.self,
		User:     t.params.User,
		Callsign: t.params.Callsign,
	}
	t.mu.Unlock()

	if err := t.sendControl(packet); err != nil {
		t.emit(TransportError{Err: fmt.Errorf("announcing join: %w", err)})
	}
}

// handleControlMessage decodes a data channel message and maps it to
// transport events. Mute changes ride ParticipantJoined — the presence
// registry upserts, so a repeated join with new flags is an update.
func (t *LiveTransport) handleControlMessage(data []byte) {
	packet, err := DecodeControlPacket(data)
	if err != nil {
		t.emit(TransportError{Err: err})
		return
	}
	if packet.Client.IsZero() {
		t.emit(TransportError{Err: fmt.Errorf("control packet %q has no client", packet.Kind)})
		return
	}

	switch packet.Kind {
	case ControlJoin:
		participant := Participant{
			Client:   packet.Client,
			User:     packet.User,
			Callsign: packet.Callsign,
			Speaking: packet.Speaking,
			Muted:    packet.Muted,
		}
		t.mu.Lock()
		t.participants[packet.Client] = participant
		t.mu.Unlock()
		t.emit(ParticipantJoined{Participant: participant})

	case ControlLeave:
		t.mu.Lock()
		delete(t.participants, packet.Client)
		t.mu.Unlock()
		t.emit(ParticipantLeft{Client: packet.Client})

	case ControlSpeaking:
		t.mu.Lock()
		if participant, known := t.participants[packet.Client]; known {
			participant.Speaking = packet.Speaking
			t.participants[packet.Client] = participant
		}
		t.mu.Unlock()
		t.emit(SpeakingChanged{Client: packet.Client, Speaking: packet.Speaking})

	case ControlMute:
		t.mu.Lock()
		participant, known := t.participants[packet.Client]
		if known {
			participant.Muted = packet.Muted
			t.participants[packet.Client] = participant
		}
		t.mu.Unlock()
		if known {
			t.emit(ParticipantJoined{Participant: participant})
		}

	default:
		// Unknown kinds are forward compatibility, not faults.
		t.logger.Debug("ignoring control packet", "kind", packet.Kind)
	}
}

// Disconnect announces departure and closes the link. Idempotent.
func (t *LiveTransport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	connected := t.state == StateConnected
	self := t.self
	t.mu.Unlock()

	if connected {
		// Best effort: the forwarding unit also detects the close.
		_ = t.sendControl(ControlPacket{Kind: ControlLeave, Client: self})
	}
	t.finish(ReasonLocal, nil, true)
	return nil
}

// Close is Disconnect without the departure announcement.
func (t *LiveTransport) Close() error {
	t.finish(ReasonLocal, nil, true)
	return nil
}

// finish moves to the terminal state, closes the PeerConnection, and
// closes the events channel. Only the first call acts.
func (t *LiveTransport) finish(reason DisconnectReason, err error, emitDisconnected bool) {
	t.eventMu.Lock()
	if t.spent {
		t.eventMu.Unlock()
		return
	}
	t.spent = true
	if emitDisconnected {
		t.events <- Disconnected{Reason: reason, Err: err}
	}
	close(t.events)
	t.eventMu.Unlock()

	t.mu.Lock()
	t.state = StateDisconnected
	connection := t.connection
	t.connection = nil
	t.control = nil
	t.mu.Unlock()

	if connection != nil {
		connection.Close()
	}
	t.logger.Info("live transport finished", "reason", reason, "error", err)
}

// emit delivers an event unless the transport is already spent.
func (t *LiveTransport) emit(event Event) {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()
	if t.spent {
		return
	}
	t.events <- event
}

// sendControl encodes and sends one packet on the control channel.
func (t *LiveTransport) sendControl(packet ControlPacket) error {
	data, err := EncodeControlPacket(packet)
	if err != nil {
		return err
	}

	t.mu.Lock()
	control := t.control
	t.mu.Unlock()
	if control == nil {
		return ErrClosed
	}
	if err := control.Send(data); err != nil {
		return fmt.Errorf("sending %s packet: %w", packet.Kind, err)
	}
	return nil
}

// SetMicEnabled opens or closes the capture path. Disabled wins over
// an active PTT.
func (t *LiveTransport) SetMicEnabled(enabled bool) {
	t.mu.Lock()
	t.micEnabled = enabled
	changed := t.updateTransmitLocked()
	t.mu.Unlock()
	if changed {
		t.publishTransmitState()
	}
}

// SetPTTActive keys or releases transmit.
func (t *LiveTransport) SetPTTActive(active bool) {
	t.mu.Lock()
	t.pttActive = active
	changed := t.updateTransmitLocked()
	t.mu.Unlock()
	if changed {
		t.publishTransmitState()
	}
}

func (t *LiveTransport) updateTransmitLocked() bool {
	transmitting := t.pttActive && t.micEnabled
	if transmitting == t.transmitting {
		return false
	}
	t.transmitting = transmitting
	return t.state == StateConnected
}

// publishTransmitState tells the forwarding unit whether to forward
// this connection's audio.
func (t *LiveTransport) publishTransmitState() {
	t.mu.Lock()
	packet := ControlPacket{
		Kind:     ControlTransmit,
		Client:   t.self,
		Speaking: t.transmitting,
	}
	t.mu.Unlock()

	if err := t.sendControl(packet); err != nil {
		t.emit(TransportError{Err: err})
	}
}

// SetOutputDevice records the playback route. Device binding happens
// in the console host's audio stack; the transport tracks the choice
// so a reconnect restores it.
func (t *LiveTransport) SetOutputDevice(ctx context.Context, deviceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateDisconnected {
		return ErrClosed
	}
	t.outputDevice = deviceID
	return nil
}

// SetParticipantGain records a per-participant playback gain.
func (t *LiveTransport) SetParticipantGain(client ref.ClientID, gain float64) error {
	if gain < 0 || gain > 2 {
		return fmt.Errorf("gain %v outside [0, 2]", gain)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, known := t.participants[client]; !known {
		return fmt.Errorf("unknown participant %s", client)
	}
	t.gains[client] = gain
	return nil
}

// PublishControlPacket sends an application packet to the room.
func (t *LiveTransport) PublishControlPacket(ctx context.Context, packet ControlPacket) error {
	t.mu.Lock()
	connected := t.state == StateConnected
	t.mu.Unlock()
	if !connected {
		return ErrClosed
	}
	return t.sendControl(packet)
}

// Events returns the event channel.
func (t *LiveTransport) Events() <-chan Event {
	return t.events
}

// Participants returns a roster snapshot.
func (t *LiveTransport) Participants() []Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := make([]Participant, 0, len(t.participants))
	for _, participant := range t.participants {
		snapshot = append(snapshot, participant)
	}
	return snapshot
}

// State returns the connection state.
func (t *LiveTransport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// newPeerConnection builds a pion PeerConnection. Loopback candidates
// are enabled so a forwarding unit on the same host works in
// development.
func newPeerConnection() (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{})
}
