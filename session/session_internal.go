// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package session

import (
	"time"

	"github.com/opennetd/configd/common"
	"github.com/opennetd/configd/internal/commit"
	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/diff"
	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/merge"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/internal/validate"
	"github.com/opennetd/configd/rpc"
)

// Stores is the engine-wide set of named datastores a session
// addresses by rpc.DB; sessions reference them, they never own them
// (spec §3 "Session / client entry").
type Stores struct {
	Candidate *datastore.Store
	Running   *datastore.Store
	Startup   *datastore.Store
}

func (s *Stores) get(db rpc.DB) *datastore.Store {
	switch db {
	case rpc.RUNNING:
		return s.Running
	case rpc.STARTUP:
		return s.Startup
	default:
		return s.Candidate
	}
}

func (s *Stores) all() []*datastore.Store {
	return []*datastore.Store{s.Candidate, s.Running, s.Startup}
}

// session is the per-client request loop (spec §4.G, §5): every
// operation is submitted as a typed request over reqch and processed
// one at a time on run's goroutine, so a datastore mutation and its
// reply appear atomic to every other observer without any locking
// inside the handlers themselves.
type session struct {
	sid string

	stores     *Stores
	schemaRoot *schema.Node
	extensions *ext.Registry
	notifier   *notify.Engine
	validators []validate.Constraint
	principal  string
	ac         merge.AccessControl

	subs map[string]string // subscription id -> stream name

	reqch chan request
	kill  chan struct{}
	term  chan struct{}
}

func (s *session) run() {
	defer close(s.term)
	for {
		select {
		case req := <-s.reqch:
			s.process(req)
		case <-s.kill:
			s.closeLocked()
			return
		}
	}
}

func (s *session) process(req request) {
	switch r := req.(type) {
	case *editreq:
		r.resp <- s.doEdit(r.db, r.op, r.mod)
	case *commitreq:
		d, err := s.doCommit()
		r.resp <- commitresp{diff: d, err: err}
	case *validatereq:
		r.resp <- s.doValidate()
	case *savereq:
		r.resp <- s.stores.get(r.db).Save(r.path)
	case *snapshotreq:
		r.resp <- s.stores.get(r.db).Snapshot(r.dir, r.n)
	case *loadreq:
		r.resp <- s.stores.get(r.db).Load(r.path, r.replace)
	case *copyreq:
		r.resp <- datastore.Copy(s.stores.get(r.src), s.stores.get(r.dst))
	case *lockreq:
		r.resp <- s.doLock(r.db)
	case *unlockreq:
		s.stores.get(r.db).Unlock(s.sid)
		r.resp <- struct{}{}
	case *lockedbyreq:
		r.resp <- s.stores.get(r.db).LockedBy()
	case *subscribereq:
		sub, err := s.doSubscribe(r.stream, r.filter, r.start, r.stop, r.deliver)
		r.resp <- subscriberesp{sub: sub, err: err}
	case *unsubscribereq:
		s.doUnsubscribe(r.stream, r.id)
		r.resp <- struct{}{}
	case *debugreq:
		status, err := setConfigDebug(r.logName, r.level)
		r.resp <- debugresp{status: status, err: err}
	case *callreq:
		out, err := s.extensions.Call(r.name, r.args)
		r.resp <- callresp{out: out, err: err}
	case *closereq:
		s.closeLocked()
		r.resp <- struct{}{}
	}
}

// doEdit is spec §4.G's `edit` row: merge(candidate, payload, op),
// refused if the target store is locked by another session.
func (s *session) doEdit(db rpc.DB, op data.Op, mod *data.Node) error {
	store := s.stores.get(db)
	if lockErr := store.CheckLock(s.sid); lockErr != nil {
		return lockErr
	}
	_, err := store.Write(op, mod, s.principal, s.ac)
	return err
}

func (s *session) doCommit() (*diff.Result, error) {
	p := &commit.Pipeline{
		Candidate:  s.stores.Candidate,
		Running:    s.stores.Running,
		SchemaRoot: s.schemaRoot,
		Extensions: s.extensions,
		Validators: s.validators,
	}
	return p.Commit(s.principal)
}

func (s *session) doValidate() error {
	p := &commit.Pipeline{
		Candidate:  s.stores.Candidate,
		SchemaRoot: s.schemaRoot,
		Validators: s.validators,
	}
	return p.Validate()
}

func (s *session) doLock(db rpc.DB) *mgmterror.Error {
	return s.stores.get(db).Lock(s.sid)
}

func (s *session) doSubscribe(
	stream, filter string,
	start, stop time.Time,
	deliver func(notify.Envelope),
) (*notify.Subscription, error) {
	if s.notifier == nil {
		return nil, mgmterror.NewOperationNotSupportedError("subscribe")
	}
	id := s.sid + "#" + stream + "#" + time.Now().UTC().String()
	sub, err := s.notifier.Subscribe(id, stream, filter, start, stop, deliver,
		func() { s.forgetSub(stream, id) })
	if err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}
	s.subs[id] = stream
	return sub, nil
}

func (s *session) doUnsubscribe(stream, id string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Unsubscribe(stream, id)
	delete(s.subs, id)
}

func (s *session) forgetSub(stream, id string) {
	delete(s.subs, id)
}

// closeLocked releases every lock and subscription this session
// holds (spec §4.G "On EOF the session is removed, releasing all its
// subscriptions and locks").
func (s *session) closeLocked() {
	for _, store := range s.stores.all() {
		if store != nil && store.LockedBy() == s.sid {
			store.Unlock(s.sid)
		}
	}
	if s.notifier != nil {
		for id, stream := range s.subs {
			s.notifier.Unsubscribe(stream, id)
		}
	}
	s.subs = nil
}

func setConfigDebug(logName, level string) (string, error) {
	return common.SetConfigDebug(logName, level)
}
