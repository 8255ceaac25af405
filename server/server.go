// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package server is the listener side of component G (spec §4.G,
// §6): a net.Listener accepting client connections, one goroutine per
// connection decoding internal/wire frames and dispatching them onto
// a session.Session.
package server

import (
	"log"
	"net"
	"os/user"
	"strconv"
	"sync"
	"time"

	"github.com/opennetd/configd"
	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/merge"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/internal/validate"
	"github.com/opennetd/configd/session"
)

// Srv owns the listener and the shared session registry every
// connection's dispatcher looks sessions up in.
type Srv struct {
	net.Listener

	mgr        *session.Mgr
	schemaRoot *schema.Node

	config *configd.Config
	uid    uint32

	Dlog *log.Logger
	Elog *log.Logger
	Wlog *log.Logger

	mu       sync.Mutex
	shutdown bool
}

// NewSrv wires a Srv addressing stores, gated by ac (nil disables
// access control, the access-control-mode: none case).
func NewSrv(
	l net.Listener,
	stores *session.Stores,
	schemaRoot *schema.Node,
	extensions *ext.Registry,
	notifier *notify.Engine,
	validators []validate.Constraint,
	ac merge.AccessControl,
	config *configd.Config,
	elog, dlog, wlog *log.Logger,
) *Srv {
	s := &Srv{
		Listener:   l,
		mgr:        session.NewMgr(stores, schemaRoot, extensions, notifier, validators, ac),
		schemaRoot: schemaRoot,
		config:     config,
		Dlog:       dlog,
		Elog:       elog,
		Wlog:       wlog,
	}
	if u, err := user.Lookup(config.User); err == nil {
		if uid, err := strconv.ParseUint(u.Uid, 10, 32); err == nil {
			s.uid = uint32(uid)
		}
	}
	return s
}

// Serve is the accept loop: one goroutine per accepted connection,
// matching the teacher's server.go Serve shape.
func (s *Srv) Serve() error {
	for {
		conn, err := s.Accept()
		if err != nil {
			s.mu.Lock()
			down := s.shutdown
			s.mu.Unlock()
			if down {
				return nil
			}
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			s.LogError(err)
			return err
		}
		sc := s.newConn(conn)
		go sc.handle()
	}
}

// Shutdown is spec §5/§7's SIGTERM path: stop accepting connections.
// In-flight connections drain on their own as peers disconnect or
// their sessions are killed by the caller.
func (s *Srv) Shutdown() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	return s.Close()
}

func (s *Srv) LogError(err error) {
	if s.Elog != nil {
		s.Elog.Println(err)
	}
}
