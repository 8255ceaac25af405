// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package ext is the extension ABI (spec §6 "Extension ABI", §4.F
// transaction phases, §4.G `call` dispatch): init/start/exit, an
// auth gate, the begin/apply/abort/complete transaction callbacks a
// commit drives, and named RPC callbacks keyed by tag.
//
// The teacher's equivalent is an external, process-wide component
// model (`sctx.CompMgr.ComponentSetRunningWithLog`, `VCI` in the wider
// danos stack) that talks to out-of-process components over D-Bus.
// That transport is out of this engine's scope (§1); what's kept from
// the teacher is the shape — registration order is commit order,
// failures abort in reverse registration order — reimplemented as a
// plain in-process registry extensions call into directly.
package ext

import (
	"github.com/opennetd/configd/internal/diff"
	"github.com/opennetd/configd/internal/mgmterror"
)

// RPCFunc answers one named `call` request (spec §4.G).
type RPCFunc func(args []byte) ([]byte, error)

// Extension is everything one extension may register. Every field but
// Name is optional — an extension that only wants to handle a named
// RPC call leaves Txn nil, for instance.
type Extension struct {
	Name string

	Init  func() error
	Start func(argv []string) error
	Exit  func()

	// Auth answers whether principal may proceed with the in-flight
	// request; nil means this extension has no opinion.
	Auth func(principal string) bool

	Begin    func(d *diff.Result) error
	Apply    func(d *diff.Result) error
	Abort    func(d *diff.Result)
	Complete func(d *diff.Result) error

	RPCs map[string]RPCFunc
}

// Registry holds every registered Extension, in registration order —
// the order transaction callbacks and `init`/`start`/`exit` run in.
type Registry struct {
	exts []*Extension
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(e *Extension) {
	r.exts = append(r.exts, e)
}

func (r *Registry) InitAll() error {
	for _, e := range r.exts {
		if e.Init == nil {
			continue
		}
		if err := e.Init(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) StartAll(argv []string) error {
	for _, e := range r.exts {
		if e.Start == nil {
			continue
		}
		if err := e.Start(argv); err != nil {
			return err
		}
	}
	return nil
}

// ExitAll runs every extension's exit callback, ignoring the order of
// failures — shutdown must make a best effort through all of them.
func (r *Registry) ExitAll() {
	for _, e := range r.exts {
		if e.Exit != nil {
			e.Exit()
		}
	}
}

// Authorized reports whether every extension that registered an Auth
// callback permits principal. An extension with no Auth callback has
// no opinion and never blocks a request.
func (r *Registry) Authorized(principal string) bool {
	for _, e := range r.exts {
		if e.Auth != nil && !e.Auth(principal) {
			return false
		}
	}
	return true
}

// RunTransaction drives the commit pipeline's extension phases (spec
// §4.F phases 3-6): begin every extension in order, then apply every
// extension in order; on any failure, abort every extension that was
// successfully begun, in reverse order, and return the failure as
// operation-failed; on success, run complete in order.
func (r *Registry) RunTransaction(d *diff.Result) *mgmterror.Error {
	begun := make([]*Extension, 0, len(r.exts))
	for _, e := range r.exts {
		if e.Begin == nil {
			begun = append(begun, e)
			continue
		}
		if err := e.Begin(d); err != nil {
			r.abort(begun, d)
			return failure(e.Name, err)
		}
		begun = append(begun, e)
	}

	for _, e := range r.exts {
		if e.Apply == nil {
			continue
		}
		if err := e.Apply(d); err != nil {
			r.abort(begun, d)
			return failure(e.Name, err)
		}
	}

	for _, e := range r.exts {
		if e.Complete == nil {
			continue
		}
		if err := e.Complete(d); err != nil {
			return failure(e.Name, err)
		}
	}
	return nil
}

func (r *Registry) abort(begun []*Extension, d *diff.Result) {
	for i := len(begun) - 1; i >= 0; i-- {
		if begun[i].Abort != nil {
			begun[i].Abort(d)
		}
	}
}

func failure(ext string, err error) *mgmterror.Error {
	e := mgmterror.NewOperationFailedError(err.Error())
	e.Info = map[string]string{"extension": ext}
	return e
}

// Call dispatches a named RPC (spec §4.G `call`) to whichever
// extension registered it, searched in registration order so the
// first registrant for a name wins.
func (r *Registry) Call(name string, args []byte) ([]byte, *mgmterror.Error) {
	for _, e := range r.exts {
		fn, ok := e.RPCs[name]
		if !ok {
			continue
		}
		out, err := fn(args)
		if err != nil {
			return nil, failure(e.Name, err)
		}
		return out, nil
	}
	return nil, mgmterror.NewOperationNotSupportedError(name)
}
