// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vanguard-fleet/commsnet/audit"
	"github.com/vanguard-fleet/commsnet/lib/clock"
	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/netdir"
	"github.com/vanguard-fleet/commsnet/policy"
	"github.com/vanguard-fleet/commsnet/transport"
)

const testDirectory = `[
	{"code": "CMD-1", "label": "Fleet Command", "type": "command", "discipline": "focused",
	 "min_rank_to_tx": "Voyager", "min_rank_to_rx": "Vagrant", "priority": 1},
	{"code": "SQD-RAPTOR", "label": "Raptor Squad", "type": "squad", "discipline": "open", "priority": 2},
	{"code": "GATE-1", "label": "Gated Ops", "type": "tactical", "discipline": "open",
	 "priority": 2, "require_approval": true},
	{"code": "ELITE-1", "label": "Command Council", "type": "command", "discipline": "focused",
	 "min_rank_to_tx": "Commander", "min_rank_to_rx": "Commander", "priority": 1}]`

// fixture wires a manager to scripted simulated transports on a fake
// clock.
type fixture struct {
	t       *testing.T
	fake    *clock.FakeClock
	sink    *audit.MemorySink
	manager *Manager

	mu      sync.Mutex
	latency time.Duration
	created []*transport.SimulatedTransport
	scripts []func(*transport.SimulatedTransport)
}

func newFixture(t *testing.T, member policy.Member) *fixture {
	t.Helper()
	directory, err := netdir.Parse([]byte(testDirectory), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	f := &fixture{
		t:       t,
		fake:    clock.Fake(time.Unix(1000, 0)),
		sink:    &audit.MemorySink{},
		latency: -1, // connect on the Connect call itself
	}
	f.manager = NewManager(ManagerOptions{
		Directory: directory,
		Member:    member,
		Factory:   f.buildTransport,
		Backend:   "simulated",
		Clock:     f.fake,
		Audit:     f.sink,
	})
	t.Cleanup(func() { f.manager.Close() })
	return f
}

// script queues a preparation function for the next transports the
// factory builds, in order.
func (f *fixture) script(prepare ...func(*transport.SimulatedTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, prepare...)
}

func (f *fixture) buildTransport() transport.Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	sim := transport.NewSimulated(transport.SimulatedOptions{
		Clock:          f.fake,
		ConnectLatency: f.latency,
	})
	if len(f.created) < len(f.scripts) {
		f.scripts[len(f.created)](sim)
	}
	f.created = append(f.created, sim)
	return sim
}

func (f *fixture) transportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func member(rank policy.Rank) policy.Member {
	return policy.Member{User: ref.MustUserID("operator-7"), Callsign: "Nightjar", Rank: rank}
}

func waitFor(t *testing.T, message string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(message)
}

func waitForState(t *testing.T, session *Session, state State) {
	t.Helper()
	waitFor(t, "waiting for state "+state.String(), func() bool {
		return session.State() == state
	})
}

func TestJoinConnectsAndInsertsLocalParticipant(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.latency = 2 * time.Second

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := session.State(); got != StateJoining {
		t.Fatalf("state = %s, want joining", got)
	}

	// Both the connect budget timer and the transport's latency timer
	// must be registered before advancing.
	f.fake.WaitForTimers(2)
	f.fake.Advance(2 * time.Second)
	waitForState(t, session, StateConnected)

	roster := session.Participants()
	if len(roster) != 1 {
		t.Fatalf("roster = %d entries, want exactly the local participant", len(roster))
	}
	if !roster[0].Local || roster[0].Callsign != "Nightjar" {
		t.Fatalf("local participant = %+v", roster[0])
	}

	chip := session.Chip()
	if chip.State != StateConnected || chip.Participants != 1 || chip.Net != ref.MustNetCode("SQD-RAPTOR") {
		t.Fatalf("chip = %+v", chip)
	}
}

func TestJoinIsIdempotentWhileActive(t *testing.T) {
	f := newFixture(t, member(policy.Scout))

	first, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, first, StateConnected)

	second, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if first != second {
		t.Fatal("second join returned a different session handle")
	}
	if f.transportCount() != 1 {
		t.Fatalf("transports = %d, want 1", f.transportCount())
	}
}

func TestLeaveWhileJoiningGoesDirectlyToIdle(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.latency = 5 * time.Second

	code := ref.MustNetCode("SQD-RAPTOR")
	session, err := f.manager.Join(context.Background(), code)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := session.Leave(context.Background()); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle immediately", got)
	}
	if _, present := f.manager.Session(code); present {
		t.Fatal("manager still tracks the left session")
	}

	// The cancelled attempt's latency elapsing later must not revive
	// anything.
	f.fake.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := session.State(); got != StateIdle {
		t.Fatalf("state = %s after stale connect, want idle", got)
	}
	if len(session.Participants()) != 0 {
		t.Fatal("roster not empty after leave")
	}
}

func TestConnectTimeoutLandsInErrorAndRetryIsFresh(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.latency = time.Minute // longer than the connect budget

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	waitFor(t, "waiting for timers", func() bool { return f.fake.PendingCount() >= 2 })
	f.fake.Advance(DefaultConnectTimeout)
	waitForState(t, session, StateError)

	lastError := session.LastError()
	if lastError == nil || lastError.Reason != ReasonTimeout {
		t.Fatalf("lastError = %v, want TIMEOUT", lastError)
	}
	if !lastError.Reason.Retryable() {
		t.Fatal("TIMEOUT must be retryable")
	}

	// Retry re-enters joining on a fresh transport, not the spent one.
	f.mu.Lock()
	f.latency = -1
	f.mu.Unlock()
	if err := session.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitForState(t, session, StateConnected)
	if f.transportCount() != 2 {
		t.Fatalf("transports = %d, want 2 (fresh instance per attempt)", f.transportCount())
	}
}

func TestConnectFailureClassifiesReason(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.script(func(sim *transport.SimulatedTransport) {
		sim.FailNextConnect(transport.ErrTokenFailure)
	})

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, session, StateError)
	if lastError := session.LastError(); lastError == nil || lastError.Reason != ReasonTokenFailure {
		t.Fatalf("lastError = %v, want TOKEN_FAILURE", session.LastError())
	}
	if err := session.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitForState(t, session, StateConnected)
}

func TestOneAutomaticReconnectThenError(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.script(
		func(sim *transport.SimulatedTransport) {
			sim.DropAfterConnect(5*time.Second, transport.ReasonLost)
		},
		func(sim *transport.SimulatedTransport) {
			sim.FailNextConnect(transport.ErrUnavailable)
		},
	)

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, session, StateConnected)

	// The drop triggers exactly one automatic reconnect; its scripted
	// failure is terminal.
	f.fake.WaitForTimers(1)
	f.fake.Advance(5 * time.Second)
	waitForState(t, session, StateError)

	if lastError := session.LastError(); lastError == nil || lastError.Reason != ReasonTransportUnavailable {
		t.Fatalf("lastError = %v, want TRANSPORT_UNAVAILABLE", session.LastError())
	}
	if f.transportCount() != 2 {
		t.Fatalf("transports = %d, want 2 (no second automatic attempt)", f.transportCount())
	}
}

func TestAutomaticReconnectRestoresConnection(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.script(func(sim *transport.SimulatedTransport) {
		sim.DropAfterConnect(5*time.Second, transport.ReasonLost)
	})

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, session, StateConnected)

	// The session is already connected before the drop, so polling on
	// state alone would pass against the stale connection. Synchronize
	// on the replacement transport existing first.
	f.fake.WaitForTimers(1)
	f.fake.Advance(5 * time.Second)
	waitFor(t, "waiting for reconnect transport", func() bool {
		return f.transportCount() == 2
	})
	waitForState(t, session, StateConnected)
	if len(session.Participants()) != 1 {
		t.Fatal("local participant missing after reconnect")
	}
}

func TestScoutHearsButCannotTransmitOnFocusedNet(t *testing.T) {
	f := newFixture(t, member(policy.Scout))

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("CMD-1"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, session, StateConnected)

	if session.CanTransmit() {
		t.Fatal("Scout below the Voyager transmit floor may not transmit")
	}
	err = session.SetPTT(true)
	var sessionError *Error
	if !errors.As(err, &sessionError) || sessionError.Reason != ReasonDenied {
		t.Fatalf("SetPTT error = %v, want DENIED", err)
	}
	if sessionError.Reason.Retryable() {
		t.Fatal("DENIED must not be retryable")
	}
}

func TestJoinDeniedBelowReceiveFloor(t *testing.T) {
	f := newFixture(t, member(policy.Scout))

	_, err := f.manager.Join(context.Background(), ref.MustNetCode("ELITE-1"))
	var sessionError *Error
	if !errors.As(err, &sessionError) || sessionError.Reason != ReasonDenied {
		t.Fatalf("Join error = %v, want DENIED", err)
	}
	if f.transportCount() != 0 {
		t.Fatal("transport built for a denied join")
	}
}

func TestVoyagerTransmitsOnFocusedNet(t *testing.T) {
	f := newFixture(t, member(policy.Voyager))

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("CMD-1"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, session, StateConnected)

	if !session.CanTransmit() {
		t.Fatal("Voyager meets the transmit floor")
	}
	if err := session.SetPTT(true); err != nil {
		t.Fatalf("SetPTT: %v", err)
	}
	if err := session.SetPTT(false); err != nil {
		t.Fatalf("SetPTT release: %v", err)
	}
}

func TestStageModeChangeRevokesActiveTransmit(t *testing.T) {
	directory, err := netdir.Parse([]byte(testDirectory), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := &fixture{t: t, fake: clock.Fake(time.Unix(1000, 0)), sink: &audit.MemorySink{}, latency: -1}
	f.manager = NewManager(ManagerOptions{
		Directory: directory,
		Member:    member(policy.Voyager),
		Factory:   f.buildTransport,
		Backend:   "simulated",
		Clock:     f.fake,
		Audit:     f.sink,
	})
	t.Cleanup(func() { f.manager.Close() })

	code := ref.MustNetCode("CMD-1")
	session, err := f.manager.Join(context.Background(), code)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, session, StateConnected)
	if err := session.SetPTT(true); err != nil {
		t.Fatalf("SetPTT: %v", err)
	}

	// A commander stages the net mid-transmission: the engine must
	// un-key immediately, without waiting for a new PTT request.
	if err := directory.SetStageMode(code, true); err != nil {
		t.Fatalf("SetStageMode: %v", err)
	}
	waitFor(t, "waiting for transmit revocation", func() bool {
		for _, event := range f.sink.Events() {
			if event.Kind == audit.KindTransmitDenied && event.Detail == "transmit revoked by net change" {
				return true
			}
		}
		return false
	})
	if session.CanTransmit() {
		t.Fatal("transmit still allowed under stage mode without approval")
	}
}

func TestRequireApprovalGatesJoin(t *testing.T) {
	f := newFixture(t, member(policy.Scout))

	code := ref.MustNetCode("GATE-1")
	session, err := f.manager.Join(context.Background(), code)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := session.State(); got != StateJoining {
		t.Fatalf("state = %s, want joining (pending)", got)
	}
	if !session.PendingApproval() {
		t.Fatal("session not marked pending approval")
	}
	if f.transportCount() != 0 {
		t.Fatal("transport built before approval")
	}

	session.Approve(context.Background())
	waitForState(t, session, StateConnected)
	if session.PendingApproval() {
		t.Fatal("still pending after approval")
	}
}

func TestRequireApprovalDenialIsTerminalDenied(t *testing.T) {
	f := newFixture(t, member(policy.Scout))

	session, err := f.manager.Join(context.Background(), ref.MustNetCode("GATE-1"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	session.Deny("commander declined")

	waitForState(t, session, StateError)
	lastError := session.LastError()
	if lastError == nil || lastError.Reason != ReasonDenied {
		t.Fatalf("lastError = %v, want DENIED", lastError)
	}

	// Retry re-enters the approval gate rather than bypassing it.
	if err := session.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !session.PendingApproval() {
		t.Fatal("retry bypassed the approval gate")
	}
}

func TestChipRendersStateVocabulary(t *testing.T) {
	chip := Chip{Backend: "simulated", Net: ref.MustNetCode("CMD-1"), State: StateConnected, Participants: 4}
	if got := chip.String(); got != "[simulated] CMD-1 connected (4)" {
		t.Fatalf("chip = %q", got)
	}

	chip = Chip{Backend: "live", Net: ref.MustNetCode("CMD-1"), State: StateError,
		LastError: "TIMEOUT: connect exceeded 16s"}
	if got := chip.String(); got != "[live] CMD-1 error — TIMEOUT: connect exceeded 16s" {
		t.Fatalf("chip = %q", got)
	}

	chip = Chip{Backend: "simulated", Net: ref.MustNetCode("GATE-1"), State: StateJoining, PendingApproval: true}
	if got := chip.String(); got != "[simulated] GATE-1 joining (awaiting approval)" {
		t.Fatalf("chip = %q", got)
	}
}

func TestSessionErrorDoesNotTouchOtherSessions(t *testing.T) {
	f := newFixture(t, member(policy.Scout))
	f.script(
		func(*transport.SimulatedTransport) {}, // first net connects normally
		func(sim *transport.SimulatedTransport) {
			sim.FailNextConnect(transport.ErrUnavailable)
		},
	)

	healthy, err := f.manager.Join(context.Background(), ref.MustNetCode("SQD-RAPTOR"))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	waitForState(t, healthy, StateConnected)

	failing, err := f.manager.Join(context.Background(), ref.MustNetCode("CMD-1"))
	if err != nil {
		t.Fatalf("second Join: %v", err)
	}
	waitForState(t, failing, StateError)

	if healthy.State() != StateConnected {
		t.Fatal("failure in one session disturbed another")
	}
	if len(healthy.Participants()) != 1 {
		t.Fatal("failure in one session corrupted another's roster")
	}
}
