// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/rpc"
)

func testSchema() *schema.Node {
	root := schema.NewNode(schema.Module, "config", "")
	iface := schema.NewNode(schema.Container, "interfaces", "")
	root.AddChild(iface)
	iface.AddChild(schema.NewNode(schema.Leaf, "mtu", ""))
	return root
}

func testStores(t *testing.T) *Stores {
	t.Helper()
	dir := t.TempDir()
	sn := testSchema()
	mk := func(name string) *datastore.Store {
		return datastore.New(name, filepath.Join(dir, name+".xml"), datastore.FormatXML, true, sn)
	}
	return &Stores{Candidate: mk("candidate"), Running: mk("running"), Startup: mk("startup")}
}

func leaf(name, body string) *data.Node {
	n := data.New(name)
	n.Body = body
	return n
}

func container(name string, children ...*data.Node) *data.Node {
	n := data.New(name)
	for _, c := range children {
		n.AddChild(c)
	}
	return n
}

func TestEditRequiresUnlockedStore(t *testing.T) {
	stores := testStores(t)
	a := New("A", stores, testSchema(), nil, nil, nil, "admin", nil)
	b := New("B", stores, testSchema(), nil, nil, nil, "bob", nil)

	if err := a.Lock(rpc.CANDIDATE); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	mod := container("config", container("interfaces", leaf("mtu", "1500")))
	if err := b.Edit(rpc.CANDIDATE, data.OpMerge, mod); err == nil {
		t.Fatalf("expected edit from a non-locking session to be refused")
	}
	if err := a.Edit(rpc.CANDIDATE, data.OpMerge, mod); err != nil {
		t.Fatalf("expected edit from the locking session to succeed, got %v", err)
	}

	a.Unlock(rpc.CANDIDATE)
	if holder := a.LockedBy(rpc.CANDIDATE); holder != "" {
		t.Fatalf("expected candidate unlocked, got held by %q", holder)
	}
}

func TestCommitReconcilesRunningFromCandidate(t *testing.T) {
	stores := testStores(t)
	s := New("A", stores, testSchema(), nil, nil, nil, "admin", nil)

	mod := container("config", container("interfaces", leaf("mtu", "9000")))
	if err := s.Edit(rpc.CANDIDATE, data.OpMerge, mod); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	d, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if d.Empty() {
		t.Fatalf("expected a non-empty diff from the first commit")
	}

	runRoot, err := stores.Running.Root()
	if err != nil {
		t.Fatalf("Running.Root: %v", err)
	}
	iface := runRoot.Children()[0]
	if iface.Children()[0].Body != "9000" {
		t.Fatalf("expected running to carry the committed mtu, got %q", iface.Children()[0].Body)
	}
}

func TestCloseReleasesLocksAndSubscriptions(t *testing.T) {
	stores := testStores(t)
	engine := notify.NewEngine(false)
	engine.RegisterStream("CONFIG", "config changes", false, 0, "")

	s := New("A", stores, testSchema(), nil, engine, nil, "admin", nil)
	if err := s.Lock(rpc.CANDIDATE); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	delivered := 0
	if _, err := s.Subscribe("CONFIG", "", time.Time{}, time.Time{}, func(notify.Envelope) { delivered++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	s.Close()

	if holder := stores.Candidate.LockedBy(); holder != "" {
		t.Fatalf("expected lock released on close, still held by %q", holder)
	}
	if err := engine.Notify("CONFIG", "<change/>"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("expected subscription released on close, got %d deliveries", delivered)
	}
}

func TestKillTerminatesSessionGoroutine(t *testing.T) {
	stores := testStores(t)
	mgr := NewMgr(stores, testSchema(), nil, nil, nil, nil)

	sess, err := mgr.Create("A", "admin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sess.Lock(rpc.CANDIDATE); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := mgr.Kill("A"); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if holder := stores.Candidate.LockedBy(); holder != "" {
		t.Fatalf("expected lock released by kill, still held by %q", holder)
	}
	if _, err := mgr.Get("A"); err == nil {
		t.Fatalf("expected killed session to be gone from the manager")
	}
}

func TestMgrCloseTerminatesSessionGoroutine(t *testing.T) {
	stores := testStores(t)
	mgr := NewMgr(stores, testSchema(), nil, nil, nil, nil)

	sess, err := mgr.Create("A", "admin")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sess.Lock(rpc.CANDIDATE); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := mgr.Close("A"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if holder := stores.Candidate.LockedBy(); holder != "" {
		t.Fatalf("expected lock released on close, still held by %q", holder)
	}
	if _, err := mgr.Get("A"); err == nil {
		t.Fatalf("expected closed session to be gone from the manager")
	}

	// The session's goroutine must actually have exited: a further
	// request on its handle returns the terminated error instead of
	// hanging forever on a goroutine nobody's reading from.
	if err := sess.Edit(rpc.CANDIDATE, 0, nil); err == nil {
		t.Fatalf("expected Edit on a closed session to fail")
	}
}
