// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package session is component G (spec §4.G): one request loop per
// client, decoding nothing itself (that's server/ and internal/wire's
// job) but exposing exactly the operation set the dispatch table
// names — edit, commit, validate, save, snapshot, load, copy,
// lock/unlock, subscribe, debug, call, kill — plus Close for the
// "on EOF" cleanup row.
package session

import (
	"time"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/diff"
	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/merge"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/internal/validate"
	"github.com/opennetd/configd/rpc"
)

// Session is a client's handle onto the engine: every method blocks
// until its request has been processed on the session's own
// goroutine, in arrival order, per spec §5's ordering guarantee.
type Session struct {
	s session
}

// New creates a session addressing stores, gated by ac (nil disables
// access control entirely, the access-control-mode: none case).
func New(
	sid string,
	stores *Stores,
	schemaRoot *schema.Node,
	extensions *ext.Registry,
	notifier *notify.Engine,
	validators []validate.Constraint,
	principal string,
	ac merge.AccessControl,
) *Session {
	sess := &Session{
		s: session{
			sid:        sid,
			stores:     stores,
			schemaRoot: schemaRoot,
			extensions: extensions,
			notifier:   notifier,
			validators: validators,
			principal:  principal,
			ac:         ac,
			subs:       make(map[string]string),
			reqch:      make(chan request),
			kill:       make(chan struct{}),
			term:       make(chan struct{}),
		},
	}
	go sess.s.run()
	return sess
}

// ID is the session identifier used as the advisory-lock holder and
// as the target of Mgr.Kill.
func (s *Session) ID() string { return s.s.sid }

func (s *Session) Edit(db rpc.DB, op data.Op, mod *data.Node) error {
	resp := make(chan error)
	select {
	case s.s.reqch <- &editreq{db: db, op: op, mod: mod, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return sessTermError()
}

func (s *Session) Commit() (*diff.Result, error) {
	resp := make(chan commitresp)
	select {
	case s.s.reqch <- &commitreq{resp: resp}:
		r := <-resp
		return r.diff, r.err
	case <-s.s.term:
	}
	return nil, sessTermError()
}

func (s *Session) Validate() error {
	resp := make(chan error)
	select {
	case s.s.reqch <- &validatereq{resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return sessTermError()
}

func (s *Session) Save(db rpc.DB, path string) error {
	resp := make(chan error)
	select {
	case s.s.reqch <- &savereq{db: db, path: path, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return sessTermError()
}

func (s *Session) Snapshot(db rpc.DB, dir string, n int) error {
	resp := make(chan error)
	select {
	case s.s.reqch <- &snapshotreq{db: db, dir: dir, n: n, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return sessTermError()
}

func (s *Session) Load(db rpc.DB, path string, replace bool) error {
	resp := make(chan error)
	select {
	case s.s.reqch <- &loadreq{db: db, path: path, replace: replace, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return sessTermError()
}

func (s *Session) Copy(src, dst rpc.DB) error {
	resp := make(chan error)
	select {
	case s.s.reqch <- &copyreq{src: src, dst: dst, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return sessTermError()
}

func (s *Session) Lock(db rpc.DB) *mgmterror.Error {
	resp := make(chan *mgmterror.Error)
	select {
	case s.s.reqch <- &lockreq{db: db, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return mgmterror.NewOperationFailedError("session terminated")
}

func (s *Session) Unlock(db rpc.DB) {
	resp := make(chan struct{})
	select {
	case s.s.reqch <- &unlockreq{db: db, resp: resp}:
		<-resp
	case <-s.s.term:
	}
}

func (s *Session) LockedBy(db rpc.DB) string {
	resp := make(chan string)
	select {
	case s.s.reqch <- &lockedbyreq{db: db, resp: resp}:
		return <-resp
	case <-s.s.term:
	}
	return ""
}

func (s *Session) Subscribe(
	stream, filter string,
	start, stop time.Time,
	deliver func(notify.Envelope),
) (*notify.Subscription, error) {
	resp := make(chan subscriberesp)
	req := &subscribereq{stream: stream, filter: filter, start: start, stop: stop, deliver: deliver, resp: resp}
	select {
	case s.s.reqch <- req:
		r := <-resp
		return r.sub, r.err
	case <-s.s.term:
	}
	return nil, sessTermError()
}

func (s *Session) Unsubscribe(stream, id string) {
	resp := make(chan struct{})
	select {
	case s.s.reqch <- &unsubscribereq{stream: stream, id: id, resp: resp}:
		<-resp
	case <-s.s.term:
	}
}

// SetDebug is spec §4.G's `debug`: set process-wide debug level.
func (s *Session) SetDebug(logName, level string) (string, error) {
	resp := make(chan debugresp)
	select {
	case s.s.reqch <- &debugreq{logName: logName, level: level, resp: resp}:
		r := <-resp
		return r.status, r.err
	case <-s.s.term:
	}
	return "", sessTermError()
}

// Call is spec §4.G's `call`: dispatch to a named extension and
// return its reply bytes.
func (s *Session) Call(name string, args []byte) ([]byte, *mgmterror.Error) {
	resp := make(chan callresp)
	select {
	case s.s.reqch <- &callreq{name: name, args: args, resp: resp}:
		r := <-resp
		return r.out, r.err
	case <-s.s.term:
	}
	return nil, mgmterror.NewOperationFailedError("session terminated")
}

// Close releases every lock and subscription this session holds
// without terminating its goroutine, as opposed to Kill.
func (s *Session) Close() {
	resp := make(chan struct{})
	select {
	case s.s.reqch <- &closereq{resp: resp}:
		<-resp
	case <-s.s.term:
	}
}

// Kill terminates the session's goroutine immediately, releasing its
// locks and subscriptions on the way out (spec §4.G `kill`).
func (s *Session) Kill() {
	select {
	case s.s.kill <- struct{}{}:
	case <-s.s.term:
	}
	<-s.s.term
}

func sessTermError() error {
	return mgmterror.NewOperationFailedError("session terminated")
}
