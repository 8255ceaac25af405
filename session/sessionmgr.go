// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package session

import (
	"sync"

	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/merge"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/internal/validate"
)

// Mgr is the shared registry of live sessions, mirrored across server
// connections so one session (the `call`/`kill` target) can be looked
// up by id from any connection's goroutine.
type Mgr struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	stores     *Stores
	schemaRoot *schema.Node
	extensions *ext.Registry
	notifier   *notify.Engine
	validators []validate.Constraint
	ac         merge.AccessControl
}

func NewMgr(
	stores *Stores,
	schemaRoot *schema.Node,
	extensions *ext.Registry,
	notifier *notify.Engine,
	validators []validate.Constraint,
	ac merge.AccessControl,
) *Mgr {
	return &Mgr{
		sessions:   make(map[string]*Session),
		stores:     stores,
		schemaRoot: schemaRoot,
		extensions: extensions,
		notifier:   notifier,
		validators: validators,
		ac:         ac,
	}
}

func (mgr *Mgr) Get(sid string) (*Session, error) {
	if mgr == nil {
		return nil, nilSessionMgrError()
	}
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	sess, ok := mgr.sessions[sid]
	if !ok {
		return nil, unknownSessionError(sid)
	}
	return sess, nil
}

// Create returns the existing session for sid, or creates one running
// as principal.
func (mgr *Mgr) Create(sid, principal string) (*Session, error) {
	if mgr == nil {
		return nil, nilSessionMgrError()
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if sess, ok := mgr.sessions[sid]; ok {
		return sess, nil
	}
	sess := New(sid, mgr.stores, mgr.schemaRoot, mgr.extensions, mgr.notifier, mgr.validators, principal, mgr.ac)
	mgr.sessions[sid] = sess
	return sess, nil
}

// Close is the "on EOF" path (spec §4.G): remove sid from the
// registry and terminate its goroutine, releasing its locks and
// subscriptions on the way out. Like the teacher's destroy, removal
// always kills the session outright; there is no lingering
// request-loop left running once its connection is gone.
func (mgr *Mgr) Close(sid string) error {
	if mgr == nil {
		return nilSessionMgrError()
	}
	mgr.mu.Lock()
	sess, ok := mgr.sessions[sid]
	if ok {
		delete(mgr.sessions, sid)
	}
	mgr.mu.Unlock()
	if !ok {
		return nil
	}
	sess.Kill()
	return nil
}

// Kill is spec §4.G's `kill`: terminate a peer session by id,
// releasing its locks.
func (mgr *Mgr) Kill(sid string) error {
	if mgr == nil {
		return nilSessionMgrError()
	}
	mgr.mu.Lock()
	sess, ok := mgr.sessions[sid]
	if ok {
		delete(mgr.sessions, sid)
	}
	mgr.mu.Unlock()
	if !ok {
		return unknownSessionError(sid)
	}
	sess.Kill()
	return nil
}
