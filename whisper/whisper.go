// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vanguard-fleet/commsnet/audit"
	"github.com/vanguard-fleet/commsnet/lib/clock"
	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/transport"
)

// Scope is the audience of a whisper.
type Scope string

const (
	ScopeOne   Scope = "ONE"
	ScopeRole  Scope = "ROLE"
	ScopeSquad Scope = "SQUAD"
	ScopeWing  Scope = "WING"
	ScopeFleet Scope = "FLEET"
)

// roomKind maps a scope to its room ID segment.
func (s Scope) roomKind() (string, error) {
	switch s {
	case ScopeOne:
		return "one", nil
	case ScopeRole:
		return "role", nil
	case ScopeSquad:
		return "squad", nil
	case ScopeWing:
		return "wing", nil
	case ScopeFleet:
		return "fleet", nil
	default:
		return "", fmt.Errorf("unknown whisper scope %q", s)
	}
}

// Session is one whisper side-channel.
type Session struct {
	scope  Scope
	target string
	room   ref.RoomID
	logger *slog.Logger

	mu           sync.Mutex
	tr           transport.Transport
	muted        bool
	transmitting bool
	closed       bool
}

// Scope returns the whisper's audience scope.
func (s *Session) Scope() Scope { return s.scope }

// Target returns the targeted identity or group.
func (s *Session) Target() string { return s.target }

// Room returns the backing room.
func (s *Session) Room() ref.RoomID { return s.room }

// SetMuted toggles local mute. No transport round-trip beyond the
// capture path; never gated.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	tr := s.tr
	s.mu.Unlock()
	if tr != nil {
		tr.SetMicEnabled(!muted)
	}
}

// Muted reports the local mute flag.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetTransmitting keys or releases the whisper. Whispers have no
// policy check — the audience was chosen at open.
func (s *Session) SetTransmitting(active bool) {
	s.mu.Lock()
	s.transmitting = active
	tr := s.tr
	s.mu.Unlock()
	if tr != nil {
		tr.SetPTTActive(active)
	}
}

// Transmitting reports whether the whisper is keyed.
func (s *Session) Transmitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transmitting
}

// State returns the underlying transport state.
func (s *Session) State() transport.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tr == nil {
		return transport.StateDisconnected
	}
	return s.tr.State()
}

// Participants returns the whisper room's roster snapshot.
func (s *Session) Participants() []transport.Participant {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Participants()
}

// close tears down the transport. Idempotent.
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tr := s.tr
	s.tr = nil
	s.mu.Unlock()

	if tr != nil {
		if err := tr.Disconnect(ctx); err != nil {
			s.logger.Warn("whisper disconnect failed", "error", err)
		}
	}
}

// TransportFactory builds one fresh transport per whisper.
type TransportFactory func() transport.Transport

// ManagerOptions configures a whisper Manager.
type ManagerOptions struct {
	// Factory builds the transport for each whisper.
	Factory TransportFactory

	// User and Callsign identify the local member in whisper rooms.
	User     ref.UserID
	Callsign string

	// Clock stamps audit events. Nil means the real clock.
	Clock clock.Clock

	// Audit receives whisper open/close events. Nil means no
	// auditing.
	Audit audit.Sink

	// Logger receives whisper logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Manager opens and closes whispers, holding the at-most-one-active
// invariant.
type Manager struct {
	factory  TransportFactory
	user     ref.UserID
	callsign string
	clk      clock.Clock
	sink     audit.Sink
	logger   *slog.Logger

	// openMu serializes the close-previous, connect, install sequence
	// of Open, and Leave's teardown. Held across the blocking transport
	// calls: two racing Opens must never hold two live transports.
	openMu sync.Mutex

	mu     sync.Mutex
	active *Session
}

// NewManager creates a whisper manager.
func NewManager(options ManagerOptions) *Manager {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Audit == nil {
		options.Audit = audit.NullSink{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Manager{
		factory:  options.Factory,
		user:     options.User,
		callsign: options.Callsign,
		clk:      options.Clock,
		sink:     options.Audit,
		logger:   options.Logger,
	}
}

// Open starts a whisper to the target. An active whisper is closed
// first — its transport disconnect completes before the new connect
// begins, so at most one whisper transport exists at any instant.
func (m *Manager) Open(ctx context.Context, scope Scope, target string) (*Session, error) {
	kind, err := scope.roomKind()
	if err != nil {
		return nil, err
	}
	room, err := ref.WhisperRoom(kind, target)
	if err != nil {
		return nil, fmt.Errorf("building whisper room: %w", err)
	}

	m.openMu.Lock()
	defer m.openMu.Unlock()

	m.mu.Lock()
	previous := m.active
	m.active = nil
	m.mu.Unlock()

	if previous != nil {
		previous.close(ctx)
		m.sink.Emit(audit.Event{
			Kind: audit.KindWhisperClose, Actor: m.user,
			Detail: "superseded by " + room.String(), At: m.clk.Now(),
		})
	}

	tr := m.factory()
	session := &Session{
		scope:  scope,
		target: target,
		room:   room,
		logger: m.logger.With("room", room),
		tr:     tr,
	}
	if err := tr.Connect(ctx, transport.ConnectParams{
		Room:     room,
		User:     m.user,
		Callsign: m.callsign,
	}); err != nil {
		tr.Close()
		return nil, fmt.Errorf("opening whisper: %w", err)
	}

	m.mu.Lock()
	m.active = session
	m.mu.Unlock()

	m.sink.Emit(audit.Event{
		Kind: audit.KindWhisperOpen, Actor: m.user,
		Detail: room.String(), At: m.clk.Now(),
	})
	m.logger.Info("whisper opened", "scope", scope, "target", target)
	return session, nil
}

// Active returns the current whisper, nil when none.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Leave closes the given whisper. Closing one that was already
// superseded or left is a no-op.
func (m *Manager) Leave(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	m.openMu.Lock()
	defer m.openMu.Unlock()

	m.mu.Lock()
	if m.active == session {
		m.active = nil
	}
	m.mu.Unlock()

	session.close(ctx)
	m.sink.Emit(audit.Event{
		Kind: audit.KindWhisperClose, Actor: m.user,
		Detail: session.Room().String(), At: m.clk.Now(),
	})
}

// Close leaves any active whisper.
func (m *Manager) Close(ctx context.Context) {
	m.Leave(ctx, m.Active())
}
