// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/schema"
)

func testSchema() *schema.Node {
	root := schema.NewNode(schema.Module, "config", "")
	x := schema.NewNode(schema.Container, "x", "")
	root.AddChild(x)
	x.AddChild(schema.NewNode(schema.Leaf, "v", ""))
	return root
}

func mod(body string) *data.Node {
	root := data.New("config")
	x := root.NewChild("x", nil)
	v := x.NewChild("v", nil)
	v.SetBody(body)
	return root
}

// Property 4: copy(A, B); read(B) == read(A).
func TestCopyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sn := testSchema()
	a := New("candidate", filepath.Join(dir, "a"), FormatXML, true, sn)
	b := New("running", filepath.Join(dir, "b"), FormatXML, true, sn)

	if _, err := a.Write(data.OpMerge, mod("hello"), "admin", nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Copy(a, b); err != nil {
		t.Fatalf("copy: %v", err)
	}

	ra, _ := a.Root()
	rb, _ := b.Root()
	if diff := cmp.Diff(treeSnapshot(ra), treeSnapshot(rb)); diff != "" {
		t.Fatalf("copied tree differs from source (-source +copy):\n%s", diff)
	}
	if v := findLeaf(rb, "x", "v"); v != "hello" {
		t.Fatalf("expected copy to read %q, got %q", "hello", v)
	}
}

// Property 5: save(db, f); load(db', f, replace=true); read(db') == read(db).
func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sn := testSchema()
	a := New("candidate", filepath.Join(dir, "a"), FormatXML, true, sn)
	if _, err := a.Write(data.OpMerge, mod("hello"), "admin", nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	ra, _ := a.Root()
	savePath := filepath.Join(dir, "snapshot.xml")
	if err := a.Save(savePath); err != nil {
		t.Fatalf("save: %v", err)
	}

	b := New("candidate2", filepath.Join(dir, "b"), FormatXML, true, sn)
	if err := b.Load(savePath, true); err != nil {
		t.Fatalf("load: %v", err)
	}
	rb, _ := b.Root()
	if diff := cmp.Diff(treeSnapshot(ra), treeSnapshot(rb)); diff != "" {
		t.Fatalf("loaded tree differs from saved source (-saved +loaded):\n%s", diff)
	}
}

// Property 7: while lock(db) is held by S, edit from S' != S returns in-use.
func TestLockConflict(t *testing.T) {
	dir := t.TempDir()
	sn := testSchema()
	s := New("candidate", filepath.Join(dir, "a"), FormatXML, true, sn)

	if err := s.Lock("s1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := s.CheckLock("s2"); err == nil {
		t.Fatalf("expected in-use for s2 while s1 holds the lock")
	} else if err.Kind != mgmterror.KindInUse {
		t.Fatalf("expected in-use, got %v", err)
	}
	if err := s.CheckLock("s1"); err != nil {
		t.Fatalf("expected s1 (the holder) to proceed, got %v", err)
	}

	s.Unlock("s1")
	if err := s.CheckLock("s2"); err != nil {
		t.Fatalf("expected s2 to proceed after unlock, got %v", err)
	}
}

func TestSnapshotRotation(t *testing.T) {
	dir := t.TempDir()
	sn := testSchema()
	s := New("candidate", filepath.Join(dir, "a"), FormatXML, true, sn)
	s.Write(data.OpMerge, mod("v1"), "admin", nil)
	if err := s.Snapshot(dir, 3); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	s.Write(data.OpMerge, mod("v2"), "admin", nil)
	if err := s.Snapshot(dir, 3); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "0")); err != nil {
		t.Fatalf("expected index 0 snapshot, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "1")); err != nil {
		t.Fatalf("expected index 1 snapshot after rotation, got %v", err)
	}
}

// treeSnapshot flattens root into a comparable, order-preserving list
// of "name=body" pairs (depth-first) so cmp.Diff can assert whole-tree
// equality across a copy or a save/load round trip without tripping
// over data.Node's unexported schemaNode/children/parent fields.
func treeSnapshot(root *data.Node) []string {
	var out []string
	var walk func(n *data.Node)
	walk = func(n *data.Node) {
		out = append(out, n.Name+"="+n.Body)
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findLeaf(root *data.Node, path ...string) string {
	cur := root
	for _, p := range path {
		var next *data.Node
		for _, c := range cur.Children() {
			if c.Name == p {
				next = c
				break
			}
		}
		if next == nil {
			return ""
		}
		cur = next
	}
	return cur.Body
}
