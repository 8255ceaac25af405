// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package notify is component H (spec §4.H): named streams, filtered
// subscriptions with start/stop time, a replay buffer, and the
// periodic housekeeping timer that expires subscriptions and trims
// replay history.
//
// Grounded directly on original_source/lib/src/clixon_stream.c:
// stream_notify (timestamp + envelope + per-subscription delivery),
// stream_replay_add / stream_replay_notify (the replay buffer), and
// the stream_publish* HTTP POST extension, added back here as
// Stream.PublishURL below, guarded by the `publish-enabled`
// configuration option.
package notify

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const envelopeNamespace = "urn:ietf:params:xml:ns:netconf:notification:1.0"

// Envelope is one delivered notification (spec §6 "Notification
// envelope").
type Envelope struct {
	Stream    string
	EventTime time.Time
	Payload   string // opaque event XML
}

// XML renders the RFC 5277-style envelope.
func (e Envelope) XML() string {
	return fmt.Sprintf(
		`<notification xmlns=%q><eventTime>%s</eventTime>%s</notification>`,
		envelopeNamespace, e.EventTime.Format(time.RFC3339), e.Payload)
}

// Subscription is a standing interest in a stream's events.
type Subscription struct {
	ID       string
	Stream   string
	Filter   string // evaluated against the envelope payload, see matches()
	Start    time.Time
	Stop     time.Time // zero means "no stop time"
	Deliver  func(Envelope)
	Terminal func()
}

func (s *Subscription) expired(now time.Time) bool {
	return !s.Stop.IsZero() && now.After(s.Stop)
}

func (s *Subscription) matches(env Envelope) bool {
	if s.Filter == "" {
		return true
	}
	// This engine carries no XPath evaluator (§1 treats expression
	// languages as an external collaborator, same stance taken for
	// validate's when/must constraints); a filter is matched as a
	// literal substring of the event payload, which is enough for the
	// common case of filtering on an element or attribute value.
	return strings.Contains(env.Payload, s.Filter)
}

type replayEntry struct {
	at  time.Time
	env Envelope
}

// Stream is one registered notification source.
type Stream struct {
	Name          string
	Description   string
	ReplayEnabled bool
	Retention     time.Duration
	PublishURL    string // HTTP POST target; empty disables publish for this stream

	mu     sync.Mutex
	subs   map[string]*Subscription
	replay []replayEntry
}

// Engine owns every registered stream and drives the periodic
// housekeeping timer (spec §4.H "a single periodic timer").
type Engine struct {
	mu             sync.Mutex
	streams        map[string]*Stream
	publishEnabled bool
	httpClient     *http.Client

	stop chan struct{}
}

func NewEngine(publishEnabled bool) *Engine {
	return &Engine{
		streams:        make(map[string]*Stream),
		publishEnabled: publishEnabled,
		httpClient:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterStream adds a stream at startup (spec §4.H "Streams are
// registered at startup").
func (e *Engine) RegisterStream(name, description string, replayEnabled bool, retention time.Duration, publishURL string) *Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &Stream{
		Name:          name,
		Description:   description,
		ReplayEnabled: replayEnabled,
		Retention:     retention,
		PublishURL:    publishURL,
		subs:          make(map[string]*Subscription),
	}
	e.streams[name] = s
	return s
}

func (e *Engine) stream(name string) (*Stream, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.streams[name]
	return s, ok
}

// Notify delivers eventXML on stream (spec §4.H "notify"): it
// timestamps the event, wraps it, delivers to every non-expired
// subscription whose filter matches, appends to the replay buffer if
// enabled, and — if publish is enabled for the stream — POSTs the
// envelope to PublishURL.
func (e *Engine) Notify(streamName, eventXML string) error {
	s, ok := e.stream(streamName)
	if !ok {
		return fmt.Errorf("unknown stream %q", streamName)
	}

	env := Envelope{Stream: streamName, EventTime: now(), Payload: eventXML}

	s.mu.Lock()
	for _, sub := range s.subs {
		if sub.expired(env.EventTime) {
			continue
		}
		if !sub.matches(env) {
			continue
		}
		sub.Deliver(env)
	}
	if s.ReplayEnabled {
		s.replay = append(s.replay, replayEntry{at: env.EventTime, env: env})
	}
	publishURL := s.PublishURL
	s.mu.Unlock()

	if e.publishEnabled && publishURL != "" {
		e.publish(publishURL, env)
	}
	return nil
}

// publish is the HTTP POST extension clixon_stream.c's
// stream_publish* path implements; failures are fire-and-forget since
// a down publish endpoint must never block event delivery to local
// subscribers.
func (e *Engine) publish(url string, env Envelope) {
	go func() {
		body := bytes.NewBufferString(env.XML())
		resp, err := e.httpClient.Post(url, "application/xml", body)
		if err == nil {
			resp.Body.Close()
		}
	}()
}

// Subscribe creates a subscription on streamName (spec §4.G
// `subscribe`). If start is non-zero, historical events in
// [start, stop] are delivered in chronological order before Subscribe
// returns — the "one-shot near-now timer" the spec describes collapses
// to an immediate synchronous replay here, since there is no
// meaningful delay to introduce in an in-process engine.
func (e *Engine) Subscribe(id, streamName, filter string, start, stop time.Time, deliver func(Envelope), terminal func()) (*Subscription, error) {
	s, ok := e.stream(streamName)
	if !ok {
		return nil, fmt.Errorf("unknown stream %q", streamName)
	}
	sub := &Subscription{
		ID: id, Stream: streamName, Filter: filter,
		Start: start, Stop: stop, Deliver: deliver, Terminal: terminal,
	}

	s.mu.Lock()
	s.subs[id] = sub
	var toReplay []Envelope
	if !start.IsZero() && s.ReplayEnabled {
		for _, entry := range s.replay {
			if entry.at.Before(start) {
				continue
			}
			if !stop.IsZero() && entry.at.After(stop) {
				continue
			}
			if !sub.matches(entry.env) {
				continue
			}
			toReplay = append(toReplay, entry.env)
		}
	}
	s.mu.Unlock()

	for _, env := range toReplay {
		deliver(env)
	}
	return sub, nil
}

// Unsubscribe removes id from streamName without invoking its
// terminal callback (used when a session closes and simply drops
// interest, as opposed to the subscription's own stop-time elapsing).
func (e *Engine) Unsubscribe(streamName, id string) {
	s, ok := e.stream(streamName)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

// Tick performs one round of the periodic housekeeping timer (spec
// §4.H): expire subscriptions whose stop-time has passed and trim
// replay entries older than retention. cmd/confd calls it every 5s
// from its own ticker goroutine, concurrently with the session
// goroutines; Tick takes each stream's lock itself.
func (e *Engine) Tick() {
	t := now()
	e.mu.Lock()
	streams := make([]*Stream, 0, len(e.streams))
	for _, s := range e.streams {
		streams = append(streams, s)
	}
	e.mu.Unlock()

	for _, s := range streams {
		s.mu.Lock()
		for id, sub := range s.subs {
			if sub.expired(t) {
				delete(s.subs, id)
				term := sub.Terminal
				s.mu.Unlock()
				if term != nil {
					term()
				}
				s.mu.Lock()
			}
		}
		if s.Retention > 0 {
			cutoff := t.Add(-s.Retention)
			kept := s.replay[:0]
			for _, entry := range s.replay {
				if entry.at.After(cutoff) {
					kept = append(kept, entry)
				}
			}
			s.replay = kept
		}
		s.mu.Unlock()
	}
}

// now is the single indirection point for "current time", so tests
// can observe deterministic behavior without real sleeps.
var now = time.Now
