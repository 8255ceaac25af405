// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package server

import (
	"io"
	"net"
	"os/user"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/opennetd/configd"
	"github.com/opennetd/configd/internal/wire"
)

var connCounter int64

// srvConn is one accepted connection: its own goroutine reads frames
// off the wire strictly in order and feeds them to a dispatcher bound
// to one session, so per spec §5 a session's requests are processed
// in arrival order regardless of how many other connections exist.
type srvConn struct {
	net.Conn
	srv  *Srv
	sid  string
	ctx  *configd.Context
	send sync.Mutex
}

func (s *Srv) newConn(c net.Conn) *srvConn {
	return &srvConn{Conn: c, srv: s}
}

// peerCredentials looks up the connecting process's uid over
// SO_PEERCRED when the connection is a Unix domain socket; over any
// other transport the connection is treated as anonymous.
func peerCredentials(c net.Conn) (uid uint32, ok bool) {
	uc, isUnix := c.(*net.UnixConn)
	if !isUnix {
		return 0, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var cred *unix.Ucred
	ctlErr := raw.Control(func(fd uintptr) {
		cred, err = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctlErr != nil || err != nil || cred == nil {
		return 0, false
	}
	return cred.Uid, true
}

func (conn *srvConn) buildContext() *configd.Context {
	uid, ok := peerCredentials(conn.Conn)
	ctx := &configd.Context{
		Config: conn.srv.config,
		Dlog:   conn.srv.Dlog,
		Elog:   conn.srv.Elog,
		Wlog:   conn.srv.Wlog,
	}
	if !ok {
		ctx.User = "anonymous"
		return ctx
	}
	ctx.Uid = uid
	ctx.Superuser = uid == 0
	ctx.Configd = uid == conn.srv.uid
	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		ctx.User = u.Username
		ctx.UserHome = u.HomeDir
		if groups, err := u.GroupIds(); err == nil {
			for _, gid := range groups {
				if g, err := user.LookupGroupId(gid); err == nil {
					ctx.Groups = append(ctx.Groups, g.Name)
					if conn.srv.config.SuperGroup != "" && g.Name == conn.srv.config.SuperGroup {
						ctx.Superuser = true
					}
				}
			}
		}
	} else {
		ctx.User = "uid" + strconv.FormatUint(uint64(uid), 10)
	}
	return ctx
}

// handle is the connection's main loop: read a frame, dispatch it,
// write the reply, repeat until EOF or a framing error.
func (conn *srvConn) handle() {
	defer conn.Close()

	conn.ctx = conn.buildContext()
	id := atomic.AddInt64(&connCounter, 1)
	conn.sid = conn.ctx.User + "-" + strconv.FormatInt(id, 10)

	sess, err := conn.srv.mgr.Create(conn.sid, conn.ctx.Principal())
	if err != nil {
		conn.srv.LogError(err)
		return
	}
	defer conn.srv.mgr.Close(conn.sid)

	disp := &dispatcher{conn: conn, sess: sess}

	for {
		kind, body, err := wire.ReadFrame(conn.Conn)
		if err != nil {
			if err != io.EOF {
				conn.srv.LogError(err)
			}
			return
		}
		replyKind, replyBody := disp.dispatch(kind, body)
		if err := conn.writeFrame(replyKind, replyBody); err != nil {
			conn.srv.LogError(err)
			return
		}
	}
}

func (conn *srvConn) writeFrame(kind wire.Kind, body []byte) error {
	conn.send.Lock()
	defer conn.send.Unlock()
	return wire.WriteFrame(conn.Conn, kind, body)
}
