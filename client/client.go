// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package client is the thin peer side of component G's transport:
// one net.Conn plus the §6 framing, exposing the same operation set
// server/dispatcher.go accepts.
package client

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/wire"
	"github.com/opennetd/configd/rpc"
)

// Client is a connection to a running engine, labeled on the caller's
// side by sid (never sent; see SessionID).
type Client struct {
	conn net.Conn
	sid  string

	mu sync.Mutex // serializes request/reply pairs on conn

	// Notify receives one bare wire.KindReply frame per event pushed
	// by an active subscription, outside the normal request/reply
	// turn, as read by Listen. Nil by default; set it before calling
	// Listen.
	Notify func(body []byte)
}

// Dial opens network/address (e.g. "unix", "/var/run/confd/main.sock")
// and binds the connection to sid.
func Dial(network, address, sid string) (*Client, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, sid: sid}, nil
}

// SessionID returns the id Dial was called with. The server assigns
// the actual session identity from the connection's peer credentials
// (server/conn.go); this is a caller-side label, useful mainly as the
// target of another client's Kill call.
func (c *Client) SessionID() string { return c.sid }

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func dbByte(db rpc.DB) byte { return byte(db) }

// call writes one frame and reads back exactly one reply frame,
// returning its kind and raw body; callers turn ERR replies into
// errors with asError and decode bodies themselves. It does not
// itself demultiplex asynchronous
// subscription pushes — callers that subscribe must read those
// through Listen instead.
func (c *Client) call(kind wire.Kind, body []byte) (wire.Kind, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := wire.WriteFrame(c.conn, kind, body); err != nil {
		return 0, nil, err
	}
	replyKind, replyBody, err := wire.ReadFrame(c.conn)
	if err != nil {
		return 0, nil, err
	}
	return replyKind, replyBody, nil
}

func asError(kind wire.Kind, body []byte) error {
	if kind != wire.KindErr {
		return nil
	}
	me, err := wire.DecodeErr(body)
	if err != nil {
		return mgmterror.NewMalformedMessageError("could not decode error reply")
	}
	return me
}

func (c *Client) Commit() (string, error) {
	kind, body, err := c.call(wire.KindCommit, nil)
	if err != nil {
		return "", err
	}
	if e := asError(kind, body); e != nil {
		return "", e
	}
	out, _ := wire.DecodeReply(body)
	return string(out), nil
}

func (c *Client) Validate() error {
	kind, body, err := c.call(wire.KindValidate, nil)
	if err != nil {
		return err
	}
	return asError(kind, body)
}

func (c *Client) Edit(db rpc.DB, op data.Op, mod *data.Node) error {
	var buf bytes.Buffer
	if err := datastore.EncodeTreeXML(&buf, mod, false); err != nil {
		return err
	}
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(db))))
	w.WriteString(op.String())
	w.WriteBlob(buf.Bytes())
	kind, body, err := c.call(wire.KindEdit, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

func (c *Client) Save(db rpc.DB, path string) error {
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(db))))
	w.WriteString(path)
	kind, body, err := c.call(wire.KindSave, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

// Snapshot rotates the N previous snapshots held in dir and writes
// db's current tree as the newest one.
func (c *Client) Snapshot(db rpc.DB, dir string, n int) error {
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(db))))
	w.WriteString(dir)
	w.WriteUint16(uint16(n))
	kind, body, err := c.call(wire.KindSnapshot, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

func (c *Client) Load(db rpc.DB, path string, replace bool) error {
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(db))))
	w.WriteString(path)
	if replace {
		w.WriteString("1")
	} else {
		w.WriteString("0")
	}
	kind, body, err := c.call(wire.KindLoad, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

func (c *Client) Copy(src, dst rpc.DB) error {
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(src))))
	w.WriteString(string(rune(dbByte(dst))))
	kind, body, err := c.call(wire.KindCopy, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

func (c *Client) Lock(db rpc.DB) error {
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(db))))
	kind, body, err := c.call(wire.KindLock, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

func (c *Client) Unlock(db rpc.DB) error {
	w := wire.NewWriter()
	w.WriteString(string(rune(dbByte(db))))
	kind, body, err := c.call(wire.KindUnlock, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

// Kill terminates a peer session by id (spec §4.G `kill`).
func (c *Client) Kill(sid string) error {
	w := wire.NewWriter()
	w.WriteString(sid)
	kind, body, err := c.call(wire.KindKill, w.Bytes())
	if err != nil {
		return err
	}
	return asError(kind, body)
}

// Subscribe registers interest in stream and returns the subscription
// id carried by the server's REPLY. It does not read the events pushed
// afterwards; Listen does that.
func (c *Client) Subscribe(stream, filter string, start, stop time.Time) (string, error) {
	w := wire.NewWriter()
	w.WriteString(stream)
	w.WriteString(filter)
	w.WriteString(formatTime(start))
	w.WriteString(formatTime(stop))
	kind, body, err := c.call(wire.KindSubscribe, w.Bytes())
	if err != nil {
		return "", err
	}
	if e := asError(kind, body); e != nil {
		return "", e
	}
	r := wire.NewReader(body)
	return r.ReadString()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// Listen reads pushed subscription frames off conn in a loop, handing
// each REPLY body to Notify and skipping frames of any other kind,
// until a read fails (EOF or a closed conn), whose error it returns.
// Call it from its own goroutine after
// Subscribe; it is not safe to call concurrently with Commit/Edit/etc
// on the same connection since both share conn's read side.
func (c *Client) Listen() error {
	for {
		kind, body, err := wire.ReadFrame(c.conn)
		if err != nil {
			return err
		}
		if kind != wire.KindReply {
			continue
		}
		if c.Notify != nil {
			c.Notify(body)
		}
	}
}

func (c *Client) SetDebug(logName, level string) (string, error) {
	w := wire.NewWriter()
	w.WriteString(logName)
	w.WriteString(level)
	kind, body, err := c.call(wire.KindDebug, w.Bytes())
	if err != nil {
		return "", err
	}
	if e := asError(kind, body); e != nil {
		return "", e
	}
	r := wire.NewReader(body)
	return r.ReadString()
}

func (c *Client) Call(name string, args []byte) ([]byte, error) {
	w := wire.NewWriter()
	w.WriteString(name)
	w.WriteBlob(args)
	kind, body, err := c.call(wire.KindCall, w.Bytes())
	if err != nil {
		return nil, err
	}
	if e := asError(kind, body); e != nil {
		return nil, e
	}
	return wire.DecodeReply(body)
}
