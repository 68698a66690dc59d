// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects [Real]; tests inject [Fake] and drive it with Advance.
//
// Every engine component that waits — connect timeouts, the simulated
// transport's artificial latency, synthetic speaking tickers — takes a
// Clock instead of calling the time package directly. This makes the
// session state machine's timeout edges (16-second connect budget, the
// single automatic reconnect) testable without wall-clock sleeps.
//
// The fake clock fires waiters in deadline order when advanced, and
// WaitForTimers lets a test block until a goroutine under test has
// registered its timer, eliminating the register/advance race.
package clock
