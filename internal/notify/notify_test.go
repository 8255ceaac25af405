// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package notify

import (
	"testing"
	"time"
)

func withFixedTime(t *testing.T, start time.Time) func(time.Time) {
	cur := start
	now = func() time.Time { return cur }
	t.Cleanup(func() { now = time.Now })
	return func(v time.Time) { cur = v }
}

// E5: replay delivers historical events in order, then expires at
// stop-time.
func TestReplayDeliversInOrderThenExpires(t *testing.T) {
	base := time.Unix(1000, 0)
	advance := withFixedTime(t, base)

	e := NewEngine(false)
	e.RegisterStream("NETCONF", "test stream", true, 60*time.Second, "")

	advance(base)
	e.Notify("NETCONF", "<a/>")
	advance(base.Add(1 * time.Second))
	e.Notify("NETCONF", "<b/>")

	var received []string
	var terminalHit bool
	advance(base.Add(1500 * time.Millisecond))
	_, err := e.Subscribe("sub1", "NETCONF", "",
		base.Add(-1*time.Second), base.Add(2*time.Second),
		func(env Envelope) { received = append(received, env.Payload) },
		func() { terminalHit = true })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(received) != 2 || received[0] != "<a/>" || received[1] != "<b/>" {
		t.Fatalf("expected replay [<a/> <b/>], got %v", received)
	}

	advance(base.Add(3 * time.Second))
	e.Tick()
	if !terminalHit {
		t.Fatalf("expected terminal callback once stop-time has passed")
	}
}

// Property 6, the no-events-after-stop-time half: a live event after
// stop-time is not delivered.
func TestNoEventsAfterStopTime(t *testing.T) {
	base := time.Unix(2000, 0)
	advance := withFixedTime(t, base)

	e := NewEngine(false)
	e.RegisterStream("NETCONF", "test stream", false, 60*time.Second, "")

	var received []string
	e.Subscribe("sub1", "NETCONF", "", time.Time{}, base.Add(1*time.Second),
		func(env Envelope) { received = append(received, env.Payload) }, nil)

	advance(base.Add(500 * time.Millisecond))
	e.Notify("NETCONF", "<ok/>")
	advance(base.Add(2 * time.Second))
	e.Notify("NETCONF", "<late/>")

	if len(received) != 1 || received[0] != "<ok/>" {
		t.Fatalf("expected only the pre-stop-time event delivered, got %v", received)
	}
}

func TestRetentionTrimsReplayBuffer(t *testing.T) {
	base := time.Unix(3000, 0)
	advance := withFixedTime(t, base)

	e := NewEngine(false)
	s := e.RegisterStream("NETCONF", "test stream", true, 10*time.Second, "")

	e.Notify("NETCONF", "<old/>")
	advance(base.Add(20 * time.Second))
	e.Tick()

	s.mu.Lock()
	n := len(s.replay)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected replay buffer trimmed after retention elapsed, got %d entries", n)
	}
}
