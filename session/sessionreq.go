// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package session

import (
	"time"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/diff"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/rpc"
)

// A request type defines the alphabet of the session's request
// channel: one struct per operation in spec §4.G's dispatch table,
// each carrying its own response channel so a caller blocks only on
// its own reply.
type request interface {
	reqty()
}

type editreq struct {
	db   rpc.DB
	op   data.Op
	mod  *data.Node
	resp chan error
}

func (*editreq) reqty() {}

type commitresp struct {
	diff *diff.Result
	err  error
}

type commitreq struct {
	resp chan commitresp
}

func (*commitreq) reqty() {}

type validatereq struct {
	resp chan error
}

func (*validatereq) reqty() {}

type savereq struct {
	db   rpc.DB
	path string
	resp chan error
}

func (*savereq) reqty() {}

type snapshotreq struct {
	db   rpc.DB
	dir  string
	n    int
	resp chan error
}

func (*snapshotreq) reqty() {}

type loadreq struct {
	db      rpc.DB
	path    string
	replace bool
	resp    chan error
}

func (*loadreq) reqty() {}

type copyreq struct {
	src, dst rpc.DB
	resp     chan error
}

func (*copyreq) reqty() {}

type lockreq struct {
	db   rpc.DB
	resp chan *mgmterror.Error
}

func (*lockreq) reqty() {}

type unlockreq struct {
	db   rpc.DB
	resp chan struct{}
}

func (*unlockreq) reqty() {}

type lockedbyreq struct {
	db   rpc.DB
	resp chan string
}

func (*lockedbyreq) reqty() {}

type subscribereq struct {
	stream, filter string
	start, stop    time.Time
	deliver        func(notify.Envelope)
	resp           chan subscriberesp
}

func (*subscribereq) reqty() {}

type subscriberesp struct {
	sub *notify.Subscription
	err error
}

type unsubscribereq struct {
	stream, id string
	resp       chan struct{}
}

func (*unsubscribereq) reqty() {}

type debugreq struct {
	logName, level string
	resp           chan debugresp
}

func (*debugreq) reqty() {}

type debugresp struct {
	status string
	err    error
}

type callreq struct {
	name string
	args []byte
	resp chan callresp
}

func (*callreq) reqty() {}

type callresp struct {
	out []byte
	err *mgmterror.Error
}

type closereq struct {
	resp chan struct{}
}

func (*closereq) reqty() {}
