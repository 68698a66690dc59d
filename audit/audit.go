// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Kind classifies an audit event.
type Kind string

const (
	KindJoin           Kind = "net.join"
	KindLeave          Kind = "net.leave"
	KindReconnect      Kind = "net.reconnect"
	KindSessionError   Kind = "net.error"
	KindDiscipline     Kind = "net.discipline"
	KindStageMode      Kind = "net.stage_mode"
	KindStageApproval  Kind = "net.stage_approval"
	KindWhisperOpen    Kind = "whisper.open"
	KindWhisperClose   Kind = "whisper.close"
	KindBridgeOpen     Kind = "bridge.open"
	KindBridgeClose    Kind = "bridge.close"
	KindTransmitDenied Kind = "ptt.denied"
)

// Event is one audit record.
type Event struct {
	Kind Kind `cbor:"kind"`

	// Net is the net the event concerns, when applicable.
	Net ref.NetCode `cbor:"net,omitempty"`

	// Actor is the member who caused the event, when known.
	Actor ref.UserID `cbor:"actor,omitempty"`

	// Detail is a short human-readable elaboration.
	Detail string `cbor:"detail,omitempty"`

	// At is when the event happened, stamped by the emitter.
	At time.Time `cbor:"at"`
}

// Sink receives audit events. Emit must not block and must not panic;
// a sink that cannot keep up drops events.
type Sink interface {
	Emit(event Event)
}

// NullSink discards every event.
type NullSink struct{}

var _ Sink = NullSink{}

func (NullSink) Emit(Event) {}

// SlogSink writes each event as a structured log line.
type SlogSink struct {
	Logger *slog.Logger
}

var _ Sink = (*SlogSink)(nil)

func (s *SlogSink) Emit(event Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit",
		"kind", event.Kind,
		"net", event.Net,
		"actor", event.Actor,
		"detail", event.Detail,
		"at", event.At,
	)
}

// MemorySink collects events in memory. For tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

var _ Sink = (*MemorySink)(nil)

func (s *MemorySink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a snapshot of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Event, len(s.events))
	copy(snapshot, s.events)
	return snapshot
}
