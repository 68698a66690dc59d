// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package patch

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vanguard-fleet/commsnet/audit"
	"github.com/vanguard-fleet/commsnet/lib/clock"
	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/policy"
)

// Status is a bridge's lifecycle state.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// BridgeID identifies one bridge record.
type BridgeID string

// Bridge is one declared relay between two rooms.
type Bridge struct {
	ID BridgeID

	// Left and Right are the two rooms to cross-patch. Order carries
	// no meaning.
	Left  ref.RoomID
	Right ref.RoomID

	// Type is a free-form label ("relay", "incident", ...), recorded
	// for operators.
	Type string

	// Initiator is the member who opened the bridge.
	Initiator ref.UserID

	Status    Status
	StartedAt time.Time

	// EndedAt is zero while the bridge is active.
	EndedAt time.Time
}

// ManagerOptions configures a bridge manager.
type ManagerOptions struct {
	// Threshold is the minimum rank to create a bridge. Admins
	// bypass it.
	Threshold policy.Rank

	// Clock stamps bridge lifecycles. Nil means the real clock.
	Clock clock.Clock

	// Audit receives open/close events. Nil means no auditing.
	Audit audit.Sink

	// Logger receives bridge logs. Nil means slog.Default().
	Logger *slog.Logger
}

// Manager holds the bridge records.
type Manager struct {
	threshold policy.Rank
	clk       clock.Clock
	sink      audit.Sink
	logger    *slog.Logger

	mu      sync.Mutex
	bridges map[BridgeID]Bridge
	counter int
}

// NewManager creates a bridge manager.
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
		threshold: options.Threshold,
		clk:       options.Clock,
		sink:      options.Audit,
		logger:    options.Logger,
		bridges:   make(map[BridgeID]Bridge),
	}
}

// Create opens a bridge between two rooms. Gated on the configured
// rank threshold at this call boundary; the state machine below has
// no authorization concern.
func (m *Manager) Create(member policy.Member, left, right ref.RoomID, bridgeType string) (Bridge, error) {
	if !policy.CanCreateBridge(member, m.threshold) {
		return Bridge{}, fmt.Errorf("rank %s below bridge threshold %s", member.Rank, m.threshold)
	}
	if left.IsZero() || right.IsZero() {
		return Bridge{}, fmt.Errorf("bridge needs two rooms")
	}
	if left == right {
		return Bridge{}, fmt.Errorf("bridge endpoints are the same room %s", left)
	}

	m.mu.Lock()
	m.counter++
	bridge := Bridge{
		ID:        BridgeID(fmt.Sprintf("bridge-%d", m.counter)),
		Left:      left,
		Right:     right,
		Type:      bridgeType,
		Initiator: member.User,
		Status:    StatusActive,
		StartedAt: m.clk.Now(),
	}
	m.bridges[bridge.ID] = bridge
	m.mu.Unlock()

	m.sink.Emit(audit.Event{
		Kind: audit.KindBridgeOpen, Actor: member.User,
		Detail: fmt.Sprintf("%s <-> %s", left, right), At: bridge.StartedAt,
	})
	m.logger.Info("bridge opened", "bridge", bridge.ID, "left", left, "right", right)
	return bridge, nil
}

// Close ends a bridge. Closing an already-closed bridge is a no-op;
// only an unknown ID is an error.
func (m *Manager) Close(id BridgeID, actor ref.UserID) error {
	m.mu.Lock()
	bridge, present := m.bridges[id]
	if !present {
		m.mu.Unlock()
		return fmt.Errorf("unknown bridge %s", id)
	}
	if bridge.Status == StatusClosed {
		m.mu.Unlock()
		return nil
	}
	bridge.Status = StatusClosed
	bridge.EndedAt = m.clk.Now()
	m.bridges[id] = bridge
	m.mu.Unlock()

	m.sink.Emit(audit.Event{
		Kind: audit.KindBridgeClose, Actor: actor,
		Detail: fmt.Sprintf("%s <-> %s", bridge.Left, bridge.Right), At: bridge.EndedAt,
	})
	m.logger.Info("bridge closed", "bridge", id)
	return nil
}

// Get returns one bridge record.
func (m *Manager) Get(id BridgeID) (Bridge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bridge, ok := m.bridges[id]
	return bridge, ok
}

// List returns all bridges, active first, then by start time.
func (m *Manager) List() []Bridge {
	m.mu.Lock()
	defer m.mu.Unlock()

	bridges := make([]Bridge, 0, len(m.bridges))
	for _, bridge := range m.bridges {
		bridges = append(bridges, bridge)
	}
	sort.Slice(bridges, func(i, j int) bool {
		if bridges[i].Status != bridges[j].Status {
			return bridges[i].Status == StatusActive
		}
		if !bridges[i].StartedAt.Equal(bridges[j].StartedAt) {
			return bridges[i].StartedAt.Before(bridges[j].StartedAt)
		}
		return bridges[i].ID < bridges[j].ID
	})
	return bridges
}

// BridgesFor returns the active bridges touching a room. The live
// infrastructure polls this to know which rooms to cross-patch.
func (m *Manager) BridgesFor(room ref.RoomID) []Bridge {
	m.mu.Lock()
	defer m.mu.Unlock()

	var touching []Bridge
	for _, bridge := range m.bridges {
		if bridge.Status == StatusActive && (bridge.Left == room || bridge.Right == room) {
			touching = append(touching, bridge)
		}
	}
	sort.Slice(touching, func(i, j int) bool { return touching[i].ID < touching[j].ID })
	return touching
}
