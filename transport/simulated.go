// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanguard-fleet/commsnet/lib/clock"
	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Compile-time interface check.
var _ Transport = (*SimulatedTransport)(nil)

// defaultConnectLatency is the artificial connect delay when the
// options leave it unset. Roughly what a real SDP exchange costs.
const defaultConnectLatency = 250 * time.Millisecond

// simulatedClientCounter generates client IDs across all simulated
// transports in a process.
var simulatedClientCounter atomic.Uint64

// SimulatedOptions configures a SimulatedTransport.
type SimulatedOptions struct {
	// Clock drives connect latency and synthetic speaking activity.
	// Nil means the real clock; tests pass a FakeClock.
	Clock clock.Clock

	// ConnectLatency is the artificial delay between Connect and the
	// Connected event. Zero means defaultConnectLatency; negative
	// means connect on the next clock advance.
	ConnectLatency time.Duration

	// Roster is a synthetic set of participants that join immediately
	// after Connected.
	Roster []Participant

	// SpeakingInterval, when positive, toggles voice activity on
	// roster participants round-robin at this period.
	SpeakingInterval time.Duration

	// Logger receives transport lifecycle logs. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// SimulatedTransport is an in-process voice backend. No audio moves;
// it reproduces the transport contract's observable behavior — connect
// latency, roster replay, speaking activity, disconnects — under a
// controllable clock, with scripted failures for exercising the
// session state machine.
type SimulatedTransport struct {
	clock            clock.Clock
	connectLatency   time.Duration
	speakingInterval time.Duration
	logger           *slog.Logger

	events chan Event

	// eventMu orders event emission against channel close. spent is
	// set exactly once, by the finishing path.
	eventMu sync.Mutex
	spent   bool

	mu           sync.Mutex
	state        ConnectionState
	self         ref.ClientID
	roster       []Participant
	participants map[ref.ClientID]Participant
	micEnabled   bool
	pttActive    bool
	transmitting bool
	outputDevice string
	gains        map[ref.ClientID]float64
	published    []ControlPacket

	// Scripted failures.
	connectErr      error
	dropAfter       time.Duration
	dropAfterReason DisconnectReason

	connectTimer *clock.Timer
	dropTimer    *clock.Timer
	speakTicker  *clock.Ticker
	speakStop    chan struct{}
	speakIndex   int
}

// NewSimulated creates a simulated transport. Like every Transport it
// is single-use.
func NewSimulated(options SimulatedOptions) *SimulatedTransport {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.ConnectLatency == 0 {
		options.ConnectLatency = defaultConnectLatency
	}
	if options.ConnectLatency < 0 {
		options.ConnectLatency = 0
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &SimulatedTransport{
		clock:            options.Clock,
		connectLatency:   options.ConnectLatency,
		speakingInterval: options.SpeakingInterval,
		logger:           options.Logger,
		events:           make(chan Event, 64),
		roster:           options.Roster,
		participants:     make(map[ref.ClientID]Participant),
		micEnabled:       true,
		gains:            make(map[ref.ClientID]float64),
		speakStop:        make(chan struct{}),
	}
}

// FailNextConnect scripts the next Connect call to fail immediately
// with err. The transport is spent afterwards, as a real transport
// would be.
func (t *SimulatedTransport) FailNextConnect(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectErr = err
}

// DropAfterConnect scripts a disconnect with the given reason, delay
// after the Connected event.
func (t *SimulatedTransport) DropAfterConnect(delay time.Duration, reason DisconnectReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropAfter = delay
	t.dropAfterReason = reason
}

// Connect starts establishing the link. The Connected event arrives
// after the configured latency.
func (t *SimulatedTransport) Connect(ctx context.Context, params ConnectParams) error {
	if params.Room.IsZero() || params.User.IsZero() {
		return fmt.Errorf("connect params missing room or user")
	}

	t.mu.Lock()
	if t.state != StateNew {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.connectErr != nil {
		err := t.connectErr
		t.state = StateDisconnected
		t.mu.Unlock()
		t.finish(ReasonLost, err, false)
		return err
	}

	t.state = StateConnecting
	t.self = ref.MustClientID(fmt.Sprintf("sim-%d", simulatedClientCounter.Add(1)))
	latency := t.connectLatency
	t.mu.Unlock()

	// Scheduled outside the lock: a zero-latency fake clock runs the
	// callback synchronously.
	timer := t.clock.AfterFunc(latency, t.establish)
	t.mu.Lock()
	t.connectTimer = timer
	t.mu.Unlock()

	t.logger.Debug("simulated connect scheduled",
		"room", params.Room,
		"latency", latency,
	)
	return nil
}

// establish runs when the artificial latency elapses.
func (t *SimulatedTransport) establish() {
	t.mu.Lock()
	if t.state != StateConnecting {
		t.mu.Unlock()
		return
	}
	t.state = StateConnected
	self := t.self
	roster := t.roster
	for _, participant := range roster {
		t.participants[participant.Client] = participant
	}
	if t.dropAfter > 0 {
		reason := t.dropAfterReason
		t.dropTimer = t.clock.AfterFunc(t.dropAfter, func() {
			t.finish(reason, fmt.Errorf("scripted drop"), true)
		})
	}
	if t.speakingInterval > 0 && len(roster) > 0 {
		t.speakTicker = t.clock.NewTicker(t.speakingInterval)
		go t.speakLoop()
	}
	t.mu.Unlock()

	t.emit(Connected{Self: self})
	for _, participant := range roster {
		t.emit(ParticipantJoined{Participant: participant})
	}
}

// speakLoop toggles synthetic voice activity round-robin over the
// roster.
func (t *SimulatedTransport) speakLoop() {
	for {
		select {
		case <-t.speakStop:
			return
		case <-t.speakTicker.C:
		}

		t.mu.Lock()
		if t.state != StateConnected || len(t.roster) == 0 {
			t.mu.Unlock()
			return
		}
		participant := t.roster[t.speakIndex%len(t.roster)]
		t.speakIndex++
		current := t.participants[participant.Client]
		current.Speaking = !current.Speaking
		t.participants[participant.Client] = current
		t.mu.Unlock()

		t.emit(SpeakingChanged{Client: current.Client, Speaking: current.Speaking})
	}
}

// Disconnect ends the link cleanly. Idempotent.
func (t *SimulatedTransport) Disconnect(ctx context.Context) error {
	t.finish(ReasonLocal, nil, true)
	return nil
}

// Close is Disconnect plus resource release.
func (t *SimulatedTransport) Close() error {
	t.finish(ReasonLocal, nil, true)
	return nil
}

// finish moves the transport to its terminal state, emits the final
// Disconnected event when emitDisconnected is set, and closes the
// events channel. Safe to call from any path; only the first call
// acts.
func (t *SimulatedTransport) finish(reason DisconnectReason, err error, emitDisconnected bool) {
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
	if t.connectTimer != nil {
		t.connectTimer.Stop()
	}
	if t.dropTimer != nil {
		t.dropTimer.Stop()
	}
	if t.speakTicker != nil {
		t.speakTicker.Stop()
	}
	close(t.speakStop)
	t.mu.Unlock()

	t.logger.Debug("simulated transport finished", "reason", reason, "error", err)
}

// emit delivers an event unless the transport is already spent. Sends
// block when the buffer is full; the session loop drains continuously.
func (t *SimulatedTransport) emit(event Event) {
	t.eventMu.Lock()
	defer t.eventMu.Unlock()
	if t.spent {
		return
	}
	t.events <- event
}

// SetMicEnabled opens or closes the simulated capture path.
func (t *SimulatedTransport) SetMicEnabled(enabled bool) {
	t.mu.Lock()
	t.micEnabled = enabled
	event, changed := t.updateTransmitLocked()
	t.mu.Unlock()
	if changed {
		t.emit(event)
	}
}

// SetPTTActive keys or releases simulated transmit.
func (t *SimulatedTransport) SetPTTActive(active bool) {
	t.mu.Lock()
	t.pttActive = active
	event, changed := t.updateTransmitLocked()
	t.mu.Unlock()
	if changed {
		t.emit(event)
	}
}

// updateTransmitLocked recomputes the transmit state. Mic disabled
// wins over an active PTT. Returns a SpeakingChanged for the local
// client when the state transitions while connected.
func (t *SimulatedTransport) updateTransmitLocked() (Event, bool) {
	transmitting := t.pttActive && t.micEnabled
	if transmitting == t.transmitting {
		return nil, false
	}
	t.transmitting = transmitting
	if t.state != StateConnected {
		return nil, false
	}
	return SpeakingChanged{Client: t.self, Speaking: transmitting}, true
}

// SetOutputDevice records the routed device.
func (t *SimulatedTransport) SetOutputDevice(ctx context.Context, deviceID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateDisconnected {
		return ErrClosed
	}
	t.outputDevice = deviceID
	return nil
}

// OutputDevice returns the currently routed device.
func (t *SimulatedTransport) OutputDevice() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outputDevice
}

// SetParticipantGain records a per-participant playback gain.
func (t *SimulatedTransport) SetParticipantGain(client ref.ClientID, gain float64) error {
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

// PublishControlPacket records the packet. Tests inspect the record
// via PublishedPackets.
func (t *SimulatedTransport) PublishControlPacket(ctx context.Context, packet ControlPacket) error {
	if _, err := EncodeControlPacket(packet); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateConnected {
		return ErrClosed
	}
	t.published = append(t.published, packet)
	return nil
}

// PublishedPackets returns the control packets published so far.
func (t *SimulatedTransport) PublishedPackets() []ControlPacket {
	t.mu.Lock()
	defer t.mu.Unlock()
	packets := make([]ControlPacket, len(t.published))
	copy(packets, t.published)
	return packets
}

// Events returns the event channel.
func (t *SimulatedTransport) Events() <-chan Event {
	return t.events
}

// Participants returns a roster snapshot.
func (t *SimulatedTransport) Participants() []Participant {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := make([]Participant, 0, len(t.participants))
	for _, participant := range t.participants {
		snapshot = append(snapshot, participant)
	}
	return snapshot
}

// State returns the connection state.
func (t *SimulatedTransport) State() ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Self returns the local client identity, zero until connected.
func (t *SimulatedTransport) Self() ref.ClientID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.self
}
