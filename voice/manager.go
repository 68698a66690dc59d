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
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Directory resolves net codes to records and notifies changes.
	Directory *netdir.Directory

	// Member is the local operator.
	Member policy.Member

	// Approvals is the stage-mode grant ledger shared with the
	// coordination surface.
	Approvals *policy.StageApprovals

	// Factory builds one fresh transport per connection attempt.
	Factory TransportFactory

	// Backend names the transport mode for the status chip,
	// "simulated" or "live".
	Backend string

	// ConnectTimeout bounds each connect attempt. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Clock drives timeouts. Nil means the real clock.
	Clock clock.Clock

	// Audit receives engine activity. Nil means no auditing.
	Audit audit.Sink

	// Logger receives engine logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Manager hands out net sessions, one per net code, and keeps their
// policy views current as the directory changes.
type Manager struct {
	directory *netdir.Directory
	member    policy.Member
	approvals *policy.StageApprovals
	factory   TransportFactory
	backend   string
	timeout   time.Duration
	clk       clock.Clock
	sink      audit.Sink
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[ref.NetCode]*Session
	closed   bool

	stopWatch func()
	watchDone chan struct{}
}

// NewManager creates a session manager and starts watching the
// directory for discipline and stage-mode changes.
func NewManager(options ManagerOptions) *Manager {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Audit == nil {
		options.Audit = audit.NullSink{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Approvals == nil {
		options.Approvals = policy.NewStageApprovals()
	}

	manager := &Manager{
		directory: options.Directory,
		member:    options.Member,
		approvals: options.Approvals,
		factory:   options.Factory,
		backend:   options.Backend,
		timeout:   options.ConnectTimeout,
		clk:       options.Clock,
		sink:      options.Audit,
		logger:    options.Logger,
		sessions:  make(map[ref.NetCode]*Session),
		watchDone: make(chan struct{}),
	}

	changes, stop := options.Directory.Watch()
	manager.stopWatch = stop
	go manager.watchDirectory(changes)
	return manager
}

// Join opens (or returns) the session for a net. A second join while
// the existing session is joining or connected is a no-op returning
// the same handle — never a second transport. A join of a focused net
// the member cannot receive is denied before any transport work.
func (m *Manager) Join(ctx context.Context, code ref.NetCode) (*Session, error) {
	net, ok := m.directory.Get(code)
	if !ok {
		return nil, fmt.Errorf("unknown net %s", code)
	}
	if verdict := policy.CanReceive(net, m.member); !verdict.Allowed {
		return nil, newError(ReasonDenied, "cannot receive on %s: %s", code, verdict.Reason)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("manager closed")
	}
	if existing, present := m.sessions[code]; present {
		m.mu.Unlock()
		return existing, nil
	}
	session := newSession(net, m.member, m.approvals, m.factory, m.timeout,
		m.backend, m.clk, m.sink, m.logger, m.forget)
	m.sessions[code] = session
	m.mu.Unlock()

	session.start(ctx)
	return session, nil
}

// Session returns the session for a net, if one exists.
func (m *Manager) Session(code ref.NetCode) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[code]
	return session, ok
}

// Sessions returns a snapshot of all live sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// forget drops a session that went idle. Installed as the session's
// onIdle callback.
func (m *Manager) forget(session *Session) {
	code := session.Net().Code
	m.mu.Lock()
	if current, present := m.sessions[code]; present && current == session {
		delete(m.sessions, code)
	}
	m.mu.Unlock()
}

// watchDirectory forwards net record changes to the affected session,
// which re-gates any active transmit.
func (m *Manager) watchDirectory(changes <-chan netdir.Net) {
	defer close(m.watchDone)
	for net := range changes {
		m.mu.Lock()
		session, present := m.sessions[net.Code]
		m.mu.Unlock()
		if present {
			session.applyNetChange(net)
		}
	}
}

// Close leaves every session and stops the directory watch.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.mu.Unlock()

	for _, session := range sessions {
		if err := session.Leave(context.Background()); err != nil {
			m.logger.Warn("leaving session during close", "error", err)
		}
	}
	m.stopWatch()
	<-m.watchDone
	return nil
}
