// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/internal/wire"
	"github.com/opennetd/configd/session"
)

const dbCandidate = 2 // rpc.CANDIDATE

func testSchema() *schema.Node {
	root := schema.NewNode(schema.Module, "config", "")
	iface := schema.NewNode(schema.Container, "interfaces", "")
	root.AddChild(iface)
	iface.AddChild(schema.NewNode(schema.Leaf, "mtu", ""))
	return root
}

func testMgr(t *testing.T) *session.Mgr {
	t.Helper()
	mgr, _ := testMgrWithDir(t)
	return mgr
}

func testMgrWithDir(t *testing.T) (*session.Mgr, string) {
	t.Helper()
	dir := t.TempDir()
	sn := testSchema()
	mk := func(name string) *datastore.Store {
		return datastore.New(name, filepath.Join(dir, name+".xml"), datastore.FormatXML, true, sn)
	}
	stores := &session.Stores{Candidate: mk("candidate"), Running: mk("running"), Startup: mk("startup")}
	return session.NewMgr(stores, sn, nil, nil, nil, nil), dir
}

func testDispatcher(t *testing.T, mgr *session.Mgr, sid string) *dispatcher {
	t.Helper()
	sess, err := mgr.Create(sid, "admin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	srv := &Srv{mgr: mgr, schemaRoot: testSchema()}
	return &dispatcher{conn: &srvConn{srv: srv, sid: sid}, sess: sess}
}

func dbFrame(db byte) []byte {
	w := wire.NewWriter()
	w.WriteString(string(rune(db)))
	return w.Bytes()
}

func snapshotFrame(db byte, dir string, n uint16) []byte {
	w := wire.NewWriter()
	w.WriteString(string(rune(db)))
	w.WriteString(dir)
	w.WriteUint16(n)
	return w.Bytes()
}

func editFrame(db byte, op, xmlBody string) []byte {
	w := wire.NewWriter()
	w.WriteString(string(rune(db)))
	w.WriteString(op)
	w.WriteBlob([]byte(xmlBody))
	return w.Bytes()
}

func TestDispatchLockThenEditThenCommit(t *testing.T) {
	d := testDispatcher(t, testMgr(t), "A")

	kind, body := d.dispatch(wire.KindLock, dbFrame(dbCandidate))
	if kind != wire.KindOK {
		t.Fatalf("lock: expected OK, got kind=%v body=%q", kind, body)
	}

	kind, body = d.dispatch(wire.KindEdit, editFrame(dbCandidate, "merge",
		`<config><interfaces><mtu>1500</mtu></interfaces></config>`))
	if kind != wire.KindOK {
		t.Fatalf("edit: expected OK, got kind=%v body=%q", kind, body)
	}

	kind, body = d.dispatch(wire.KindCommit, nil)
	if kind != wire.KindReply {
		t.Fatalf("commit: expected REPLY, got kind=%v body=%q", kind, body)
	}
}

func TestDispatchUnknownKindIsMalformed(t *testing.T) {
	d := testDispatcher(t, testMgr(t), "A")
	kind, body := d.dispatch(wire.Kind(0xABCD), nil)
	if kind != wire.KindErr {
		t.Fatalf("expected KindErr for an unknown op_type, got kind=%v body=%q", kind, body)
	}
}

func TestDispatchEditRefusedWhenLockedByAnotherSession(t *testing.T) {
	mgr := testMgr(t)
	a := testDispatcher(t, mgr, "A")
	b := testDispatcher(t, mgr, "B")

	if kind, body := a.dispatch(wire.KindLock, dbFrame(dbCandidate)); kind != wire.KindOK {
		t.Fatalf("lock: expected OK, got kind=%v body=%q", kind, body)
	}

	kind, body := b.dispatch(wire.KindEdit, editFrame(dbCandidate, "merge",
		`<config><interfaces><mtu>9000</mtu></interfaces></config>`))
	if kind != wire.KindErr {
		t.Fatalf("expected a locked-out edit to come back as ERR, got kind=%v body=%q", kind, body)
	}
}

func TestDispatchSnapshot(t *testing.T) {
	mgr, dir := testMgrWithDir(t)
	d := testDispatcher(t, mgr, "A")
	snapDir := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snapDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	kind, body := d.dispatch(wire.KindSnapshot, snapshotFrame(dbCandidate, snapDir, 3))
	if kind != wire.KindOK {
		t.Fatalf("snapshot: expected OK, got kind=%v body=%q", kind, body)
	}
	if _, err := os.Stat(filepath.Join(snapDir, "0")); err != nil {
		t.Fatalf("expected index 0 snapshot, got %v", err)
	}
}

func TestDispatchMalformedEditBodyIsErr(t *testing.T) {
	d := testDispatcher(t, testMgr(t), "A")
	kind, body := d.dispatch(wire.KindEdit, []byte{})
	if kind != wire.KindErr {
		t.Fatalf("expected malformed edit body to come back as ERR, got kind=%v body=%q", kind, body)
	}
}
