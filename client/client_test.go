// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package client

import (
	"io"
	"log"
	"net"
	"path/filepath"
	"testing"

	"github.com/opennetd/configd"
	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/rpc"
	"github.com/opennetd/configd/server"
	"github.com/opennetd/configd/session"
)

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testSchema() *schema.Node {
	root := schema.NewNode(schema.Module, "config", "")
	iface := schema.NewNode(schema.Container, "interfaces", "")
	root.AddChild(iface)
	iface.AddChild(schema.NewNode(schema.Leaf, "mtu", ""))
	return root
}

func startTestServer(t *testing.T) net.Addr {
	t.Helper()
	dir := t.TempDir()
	sn := testSchema()
	mk := func(name string) *datastore.Store {
		return datastore.New(name, filepath.Join(dir, name+".xml"), datastore.FormatXML, true, sn)
	}
	stores := &session.Stores{Candidate: mk("candidate"), Running: mk("running"), Startup: mk("startup")}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	srv := server.NewSrv(ln, stores, sn, nil, nil, nil, nil,
		&configd.Config{}, discardLogger(), discardLogger(), discardLogger())
	go srv.Serve()
	t.Cleanup(func() { srv.Shutdown() })
	return ln.Addr()
}

func TestClientLockEditCommitRoundTrip(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial("tcp", addr.String(), "test")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Lock(rpc.CANDIDATE); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	mod := data.New("config")
	iface := mod.NewChild("interfaces", nil)
	mtu := iface.NewChild("mtu", nil)
	mtu.SetBody("1500")

	if err := c.Edit(rpc.CANDIDATE, data.OpMerge, mod); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if _, err := c.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := c.Unlock(rpc.CANDIDATE); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestClientValidateOnEmptyCandidateSucceeds(t *testing.T) {
	addr := startTestServer(t)
	c, err := Dial("tcp", addr.String(), "test")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
