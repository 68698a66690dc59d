// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vanguard-fleet/commsnet/audit"
	"github.com/vanguard-fleet/commsnet/lib/clock"
	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/netdir"
	"github.com/vanguard-fleet/commsnet/policy"
	"github.com/vanguard-fleet/commsnet/transport"
)

// DefaultConnectTimeout bounds a connect attempt when the manager
// options leave it unset.
const DefaultConnectTimeout = 16 * time.Second

// State is a session's position in its lifecycle.
type State int

const (
	// StateIdle means no membership. Terminal for a session handle: a
	// fresh Join constructs a new Session.
	StateIdle State = iota

	// StateJoining means a connect attempt (or an approval wait) is in
	// flight.
	StateJoining

	// StateConnected means the member is on the net.
	StateConnected

	// StateReconnecting means the link dropped unexpectedly and the
	// one automatic reconnect is in flight.
	StateReconnecting

	// StateError means the last attempt failed. Only an explicit Retry
	// leaves this state.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// TransportFactory builds one fresh transport per connection attempt.
// Retries and automatic reconnects never reuse a spent transport.
type TransportFactory func() transport.Transport

// Session is one net membership. All transitions are serialized under
// its mutex; the event loop of the current connection attempt is the
// only writer of the registry. Safe for concurrent use.
type Session struct {
	logger   *slog.Logger
	clk      clock.Clock
	backend  string
	member   policy.Member
	approval *policy.StageApprovals
	factory  TransportFactory
	timeout  time.Duration
	sink     audit.Sink
	onIdle   func(*Session)

	registry *Registry

	// changed coalesces update notifications for display layers.
	changed chan struct{}

	mu    sync.Mutex
	net   netdir.Net
	state State

	// generation invalidates stale connection attempts: every new
	// attempt and every terminal transition bumps it, and events from
	// an older attempt are dropped.
	generation int

	tr              transport.Transport
	lastError       *Error
	startedAt       time.Time
	connectTimer    *clock.Timer
	reconnectUsed   bool
	pendingApproval bool
	micEnabled      bool
	pttRequested    bool
	transmitGranted bool
}

func newSession(net netdir.Net, member policy.Member, approval *policy.StageApprovals,
	factory TransportFactory, timeout time.Duration, backend string,
	clk clock.Clock, sink audit.Sink, logger *slog.Logger, onIdle func(*Session)) *Session {
	return &Session{
		logger:     logger.With("net", net.Code),
		clk:        clk,
		backend:    backend,
		member:     member,
		approval:   approval,
		factory:    factory,
		timeout:    timeout,
		sink:       sink,
		onIdle:     onIdle,
		registry:   NewRegistry(member.User),
		changed:    make(chan struct{}, 1),
		net:        net,
		micEnabled: true,
	}
}

// start begins the join. With require_approval set, the session parks
// in joining until Approve or Deny; the connect budget starts when
// the actual connect does.
func (s *Session) start(ctx context.Context) {
	s.mu.Lock()
	s.state = StateJoining
	s.startedAt = s.clk.Now()
	if s.net.RequireApproval {
		s.pendingApproval = true
		s.mu.Unlock()
		s.logger.Info("join pending approval")
		s.notify()
		return
	}
	s.beginAttemptLocked(ctx)
}

// beginAttemptLocked starts one connection attempt: fresh transport,
// fresh generation, connect timer, event loop. Called with the mutex
// held; releases it.
func (s *Session) beginAttemptLocked(ctx context.Context) {
	s.generation++
	generation := s.generation
	tr := s.factory()
	s.tr = tr
	s.lastError = nil
	s.connectTimer = s.clk.AfterFunc(s.timeout, func() {
		s.connectTimedOut(generation)
	})

	params := transport.ConnectParams{
		Room:     s.net.Room(),
		User:     s.member.User,
		Callsign: s.member.Callsign,
	}
	s.mu.Unlock()

	s.notify()
	go s.eventLoop(generation, tr)
	go func() {
		if err := tr.Connect(ctx, params); err != nil {
			s.fail(generation, classify(err))
		}
	}()
}

// eventLoop drains one transport's events. It exits when the
// transport closes its channel; stale generations are filtered inside
// the handlers.
func (s *Session) eventLoop(generation int, tr transport.Transport) {
	for event := range tr.Events() {
		s.handleEvent(generation, event)
	}
}

func (s *Session) handleEvent(generation int, event transport.Event) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}

	switch event := event.(type) {
	case transport.Connected:
		s.handleConnectedLocked(event)

	case transport.ParticipantJoined:
		s.registry.Upsert(Participant{
			User:     event.Participant.User,
			Callsign: event.Participant.Callsign,
			Client:   event.Participant.Client,
			Muted:    event.Participant.Muted,
			Speaking: event.Participant.Speaking,
		})
		s.mu.Unlock()
		s.notify()

	case transport.ParticipantLeft:
		if user, known := s.registry.UserForClient(event.Client); known && user != s.member.User {
			s.registry.Remove(user)
		}
		s.mu.Unlock()
		s.notify()

	case transport.SpeakingChanged:
		if user, known := s.registry.UserForClient(event.Client); known {
			s.registry.SetSpeaking(user, event.Speaking)
		}
		s.mu.Unlock()
		s.notify()

	case transport.TransportError:
		s.mu.Unlock()
		s.logger.Warn("transport fault", "error", event.Err)

	case transport.Disconnected:
		s.handleDisconnectedLocked(event)

	default:
		s.mu.Unlock()
	}
}

// handleConnectedLocked completes a joining or reconnecting attempt.
// Called with the mutex held; releases it.
func (s *Session) handleConnectedLocked(event transport.Connected) {
	if s.state != StateJoining && s.state != StateReconnecting {
		s.mu.Unlock()
		return
	}
	wasReconnect := s.state == StateReconnecting
	s.state = StateConnected
	s.stopConnectTimerLocked()
	s.reconnectUsed = false
	s.registry.Upsert(Participant{
		User:     s.member.User,
		Callsign: s.member.Callsign,
		Client:   event.Self,
		Muted:    !s.micEnabled,
	})

	// Restore caller intent across a reconnect, re-checked against
	// current policy.
	tr := s.tr
	rekey := s.pttRequested
	granted := false
	if rekey {
		granted = policy.CanTransmitNow(s.net, s.member, s.approval).Allowed
		s.transmitGranted = granted
		if !granted {
			s.pttRequested = false
		}
	}
	net := s.net
	s.mu.Unlock()

	if rekey {
		tr.SetPTTActive(granted)
	}

	kind := audit.KindJoin
	if wasReconnect {
		kind = audit.KindReconnect
	}
	s.sink.Emit(audit.Event{Kind: kind, Net: net.Code, Actor: s.member.User, At: s.clk.Now()})
	s.logger.Info("connected", "reconnect", wasReconnect, "client", event.Self)
	s.notify()
}

// handleDisconnectedLocked routes an unexpected link end. Called with
// the mutex held; releases it.
func (s *Session) handleDisconnectedLocked(event transport.Disconnected) {
	if event.Reason == transport.ReasonLocal || s.state == StateIdle || s.state == StateError {
		// Local disconnects are driven by Leave, which already
		// transitioned.
		s.mu.Unlock()
		return
	}

	switch s.state {
	case StateConnected:
		if !s.reconnectUsed {
			s.reconnectUsed = true
			s.state = StateReconnecting
			s.transmitGranted = false
			s.registry.Clear()
			net := s.net
			s.logger.Warn("link dropped, reconnecting", "reason", event.Reason)
			s.sink.Emit(audit.Event{
				Kind: audit.KindReconnect, Net: net.Code, Actor: s.member.User,
				Detail: "link dropped", At: s.clk.Now(),
			})
			s.beginAttemptLocked(context.Background())
			return
		}
		s.failLocked(classifyDisconnect(event))

	case StateJoining, StateReconnecting:
		s.failLocked(classifyDisconnect(event))

	default:
		s.mu.Unlock()
	}
}

func classifyDisconnect(event transport.Disconnected) *Error {
	if event.Err != nil {
		return classify(event.Err)
	}
	return newError(ReasonTransportInternal, "connection ended: %s", event.Reason)
}

// connectTimedOut enforces the connect budget for one attempt.
func (s *Session) connectTimedOut(generation int) {
	s.mu.Lock()
	if generation != s.generation || (s.state != StateJoining && s.state != StateReconnecting) {
		s.mu.Unlock()
		return
	}
	s.failLocked(newError(ReasonTimeout, "connect exceeded %s", s.timeout))
}

// fail records a terminal error for the given attempt.
func (s *Session) fail(generation int, sessionError *Error) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.failLocked(sessionError)
}

// failLocked moves the session to the error state. Called with the
// mutex held; releases it.
func (s *Session) failLocked(sessionError *Error) {
	s.generation++
	s.state = StateError
	s.lastError = sessionError
	s.stopConnectTimerLocked()
	s.transmitGranted = false
	s.pendingApproval = false
	s.registry.Clear()
	tr := s.tr
	s.tr = nil
	net := s.net
	s.mu.Unlock()

	if tr != nil {
		tr.Close()
	}
	s.sink.Emit(audit.Event{
		Kind: audit.KindSessionError, Net: net.Code, Actor: s.member.User,
		Detail: sessionError.Error(), At: s.clk.Now(),
	})
	s.logger.Error("session failed", "reason", sessionError.Reason, "error", sessionError)
	s.notify()
}

func (s *Session) stopConnectTimerLocked() {
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
}

// Leave ends the membership. Issued while joining it cancels the
// in-flight connect and goes directly to idle — the session never
// shows a flash of connected state. Idempotent.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	s.state = StateIdle
	s.stopConnectTimerLocked()
	s.pendingApproval = false
	s.pttRequested = false
	s.transmitGranted = false
	s.lastError = nil
	s.registry.Clear()
	tr := s.tr
	s.tr = nil
	net := s.net
	s.mu.Unlock()

	if tr != nil {
		if err := tr.Disconnect(ctx); err != nil {
			s.logger.Warn("disconnect failed during leave", "error", err)
		}
	}
	s.sink.Emit(audit.Event{Kind: audit.KindLeave, Net: net.Code, Actor: s.member.User, At: s.clk.Now()})
	s.logger.Info("left net")
	s.notify()
	if s.onIdle != nil {
		s.onIdle(s)
	}
	return nil
}

// Retry re-enters joining after a failure. Only valid in the error
// state; automatic recovery stops after the single reconnect, and
// everything further is this explicit call.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateError {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("retry from %s: only an errored session can retry", state)
	}
	s.state = StateJoining
	s.lastError = nil
	s.reconnectUsed = false
	if s.net.RequireApproval {
		s.pendingApproval = true
		s.mu.Unlock()
		s.logger.Info("retry pending approval")
		s.notify()
		return nil
	}
	s.beginAttemptLocked(ctx)
	return nil
}

// Approve releases a join held by require_approval and starts the
// connect. Called by the coordination surface that granted it.
func (s *Session) Approve(ctx context.Context) {
	s.mu.Lock()
	if !s.pendingApproval || s.state != StateJoining {
		s.mu.Unlock()
		return
	}
	s.pendingApproval = false
	s.beginAttemptLocked(ctx)
}

// Deny rejects a join held by require_approval. The session lands in
// the error state with a DENIED reason; Retry re-enters the approval
// gate.
func (s *Session) Deny(detail string) {
	s.mu.Lock()
	if !s.pendingApproval || s.state != StateJoining {
		s.mu.Unlock()
		return
	}
	if detail == "" {
		detail = "join request denied"
	}
	s.failLocked(newError(ReasonDenied, "%s", detail))
}

// SetPTT keys or releases transmit. Keying consults policy against
// the current net record; a denial leaves the transport untouched and
// returns a DENIED error.
func (s *Session) SetPTT(active bool) error {
	s.mu.Lock()
	if !active {
		s.pttRequested = false
		release := s.transmitGranted
		s.transmitGranted = false
		tr := s.tr
		s.mu.Unlock()
		if release && tr != nil {
			tr.SetPTTActive(false)
		}
		return nil
	}

	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("push-to-talk while %s: not connected", state)
	}
	verdict := policy.CanTransmitNow(s.net, s.member, s.approval)
	if !verdict.Allowed {
		net := s.net
		s.mu.Unlock()
		s.sink.Emit(audit.Event{
			Kind: audit.KindTransmitDenied, Net: net.Code, Actor: s.member.User,
			Detail: verdict.Reason.String(), At: s.clk.Now(),
		})
		return newError(ReasonDenied, "%s", verdict.Reason)
	}
	s.pttRequested = true
	s.transmitGranted = true
	tr := s.tr
	s.mu.Unlock()

	tr.SetPTTActive(true)
	return nil
}

// CanTransmit reports whether keying up right now would be allowed.
func (s *Session) CanTransmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected {
		return false
	}
	return policy.CanTransmitNow(s.net, s.member, s.approval).Allowed
}

// SetMicEnabled opens or closes the capture path.
func (s *Session) SetMicEnabled(enabled bool) {
	s.mu.Lock()
	s.micEnabled = enabled
	s.registry.SetMuted(s.member.User, !enabled)
	tr := s.tr
	s.mu.Unlock()
	if tr != nil {
		tr.SetMicEnabled(enabled)
	}
	s.notify()
}

// SetOutputDevice routes received audio.
func (s *Session) SetOutputDevice(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return fmt.Errorf("no active transport")
	}
	return tr.SetOutputDevice(ctx, deviceID)
}

// SetParticipantGain adjusts local playback gain for one participant.
func (s *Session) SetParticipantGain(client ref.ClientID, gain float64) error {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return fmt.Errorf("no active transport")
	}
	return tr.SetParticipantGain(client, gain)
}

// applyNetChange installs an updated directory record and re-gates an
// active transmit against the new rules. A member keyed up when a net
// goes focused or staged is un-keyed immediately.
func (s *Session) applyNetChange(net netdir.Net) {
	s.mu.Lock()
	s.net = net
	revoke := false
	if s.transmitGranted && !policy.CanTransmitNow(net, s.member, s.approval).Allowed {
		s.transmitGranted = false
		s.pttRequested = false
		revoke = true
	}
	tr := s.tr
	s.mu.Unlock()

	if revoke {
		if tr != nil {
			tr.SetPTTActive(false)
		}
		s.sink.Emit(audit.Event{
			Kind: audit.KindTransmitDenied, Net: net.Code, Actor: s.member.User,
			Detail: "transmit revoked by net change", At: s.clk.Now(),
		})
		s.logger.Info("transmit revoked by net change")
	}
	s.notify()
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent classified failure, nil when none.
func (s *Session) LastError() *Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Net returns the session's current view of the net record.
func (s *Session) Net() netdir.Net {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net
}

// PendingApproval reports whether the join is parked on the
// require_approval gate.
func (s *Session) PendingApproval() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingApproval
}

// StartedAt returns when the join was requested.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Participants returns the roster in display order.
func (s *Session) Participants() []Participant {
	return s.registry.List()
}

// Changed returns a channel that receives a coalesced signal after
// state or roster updates. For display layers; never blocks the
// engine.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
