// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package merge

import (
	"testing"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/schema"
)

// buildSchema assembles:
//
//	config
//	  x (container)
//	    y (list, keys a,b)
//	      a (leaf)
//	      b (leaf)
//	      v (leaf)
//	      w (leaf)
func buildSchema() *schema.Node {
	root := schema.NewNode(schema.Module, "config", "")
	x := schema.NewNode(schema.Container, "x", "")
	root.AddChild(x)
	y := schema.NewNode(schema.List, "y", "")
	y.SetKeys([]string{"a", "b"})
	x.AddChild(y)
	for _, leaf := range []string{"a", "b", "v", "w"} {
		y.AddChild(schema.NewNode(schema.Leaf, leaf, ""))
	}
	return root
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

func mustMerge(t *testing.T, base, mod *data.Node, sn *schema.Node, op data.Op) *data.Node {
	t.Helper()
	out, err := Merge(base, mod, sn, op, "admin", nil)
	if err != nil {
		t.Fatalf("Merge: unexpected error: %v", err)
	}
	return out
}

func findPath(root *data.Node, names ...string) *data.Node {
	cur := root
	for _, n := range names {
		found := false
		for _, c := range cur.Children() {
			if c.Name == n {
				cur = c
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	return cur
}

// E1: create/delete round-trip.
func TestCreateDeleteRoundTrip(t *testing.T) {
	sn := buildSchema()
	base := data.New("config")

	mod := container("config",
		container("x",
			container("y",
				leaf("a", "1"), leaf("b", "2"), leaf("v", "hello"))))

	base = mustMerge(t, base, mod, sn, data.OpCreate)

	v := findPath(base, "x", "y", "v")
	if v == nil || v.Body != "hello" {
		t.Fatalf("expected /x/y/v = hello, got %+v", v)
	}

	delMod := container("config",
		container("x",
			container("y", leaf("a", "1"), leaf("b", "2"))))
	delOp := data.OpDelete
	findPath(delMod, "x", "y").OpOverride = &delOp

	base = mustMerge(t, base, delMod, sn, data.OpMerge)
	if findPath(base, "x", "y") != nil {
		t.Fatalf("expected /x/y removed after delete")
	}

	// second delete of the same element is data-missing.
	delMod2 := container("config",
		container("x",
			container("y", leaf("a", "1"), leaf("b", "2"))))
	findPath(delMod2, "x", "y").OpOverride = &delOp
	_, err := Merge(base, delMod2, sn, data.OpMerge, "admin", nil)
	if err == nil {
		t.Fatalf("expected data-missing error on second delete")
	}
	if e, ok := err.(*mgmterror.Error); !ok || e.Kind != mgmterror.KindDataMissing {
		t.Fatalf("expected data-missing, got %v", err)
	}
}

// E2: merge vs replace.
func TestMergeVsReplace(t *testing.T) {
	sn := buildSchema()

	seed := func() *data.Node {
		base := data.New("config")
		mod := container("config",
			container("x",
				container("y", leaf("a", "1"), leaf("b", "2"), leaf("v", "old"))))
		return mustMerge(t, base, mod, sn, data.OpCreate)
	}

	// MERGE: both v=old and w=new survive.
	base := seed()
	mergeMod := container("config",
		container("x",
			container("y", leaf("a", "1"), leaf("b", "2"), leaf("w", "new"))))
	base = mustMerge(t, base, mergeMod, sn, data.OpMerge)

	if v := findPath(base, "x", "y", "v"); v == nil || v.Body != "old" {
		t.Fatalf("expected v=old preserved, got %+v", v)
	}
	if w := findPath(base, "x", "y", "w"); w == nil || w.Body != "new" {
		t.Fatalf("expected w=new, got %+v", w)
	}

	// REPLACE: only w=new remains.
	base2 := seed()
	replaceOp := data.OpReplace
	replaceMod := container("config",
		container("x",
			container("y", leaf("a", "1"), leaf("b", "2"), leaf("w", "new"))))
	findPath(replaceMod, "x", "y").OpOverride = &replaceOp

	base2 = mustMerge(t, base2, replaceMod, sn, data.OpMerge)
	if v := findPath(base2, "x", "y", "v"); v != nil {
		t.Fatalf("expected v removed by replace, got %+v", v)
	}
	if w := findPath(base2, "x", "y", "w"); w == nil || w.Body != "new" {
		t.Fatalf("expected w=new, got %+v", w)
	}
}

// E6: non-presence container pruning after a NONE edit followed by a
// delete of the only leaf it was scaffolding.
func TestNonePropagationAndEmptyPrune(t *testing.T) {
	root := schema.NewNode(schema.Module, "config", "")
	a := schema.NewNode(schema.Container, "a", "")
	root.AddChild(a)
	b := schema.NewNode(schema.Container, "b", "")
	a.AddChild(b)
	c := schema.NewNode(schema.Container, "c", "")
	b.AddChild(c)
	d := schema.NewNode(schema.Leaf, "d", "")
	c.AddChild(d)

	base := data.New("config")
	mod := container("config",
		container("a", container("b", container("c", leaf("d", "1")))))

	base = mustMerge(t, base, mod, root, data.OpNone)

	got := findPath(base, "a", "b", "c", "d")
	if got == nil || got.Body != "1" {
		t.Fatalf("expected /a/b/c/d = 1 to survive the NONE edit, got %+v", got)
	}

	delOp := data.OpDelete
	delMod := container("config",
		container("a", container("b", container("c", leaf("d", "")))))
	dNode := findPath(delMod, "a", "b", "c", "d")
	dNode.OpOverride = &delOp

	base = mustMerge(t, base, delMod, root, data.OpMerge)
	if findPath(base, "a") != nil {
		t.Fatalf("expected empty root after pruning non-presence containers, got /a present")
	}
}

// Invariant 1: every reachable non-presence container has at least
// one element child after a successful merge.
func TestInvariantNoEmptyNonPresenceContainers(t *testing.T) {
	sn := buildSchema()
	base := data.New("config")
	mod := container("config", container("x"))
	base = mustMerge(t, base, mod, sn, data.OpMerge)

	var bad *data.Node
	data.Apply(base, func(n *data.Node) bool {
		if n.Schema() != nil && n.Schema().Kind() == schema.Container &&
			!n.Schema().HasPresence() && n.NumChildren() == 0 {
			bad = n
		}
		return true
	})
	if bad != nil {
		t.Fatalf("found empty non-presence container %q", bad.Name)
	}
}

// Invariant 3: an untouched leaf's body is byte-identical after a
// merge that doesn't mention it.
func TestUntouchedLeafBodyUnchanged(t *testing.T) {
	sn := buildSchema()
	base := data.New("config")
	seedMod := container("config",
		container("x", container("y", leaf("a", "1"), leaf("b", "2"), leaf("v", "untouched"))))
	base = mustMerge(t, base, seedMod, sn, data.OpCreate)

	touch := container("config",
		container("x", container("y", leaf("a", "1"), leaf("b", "2"), leaf("w", "added"))))
	base = mustMerge(t, base, touch, sn, data.OpMerge)

	v := findPath(base, "x", "y", "v")
	if v == nil || v.Body != "untouched" {
		t.Fatalf("expected v untouched, got %+v", v)
	}
}

func TestCreateOnExistingIsDataExists(t *testing.T) {
	sn := buildSchema()
	base := data.New("config")
	mod := container("config",
		container("x", container("y", leaf("a", "1"), leaf("b", "2"))))
	base = mustMerge(t, base, mod, sn, data.OpCreate)

	_, err := Merge(base, mod, sn, data.OpCreate, "admin", nil)
	if err == nil {
		t.Fatalf("expected data-exists error")
	}
	if e, ok := err.(*mgmterror.Error); !ok || e.Kind != mgmterror.KindDataExists {
		t.Fatalf("expected data-exists, got %v", err)
	}
}

type denyAll struct{}

func (denyAll) BlanketPermit(string) bool           { return false }
func (denyAll) Check(string, []string, Action) bool { return false }

func TestAccessControlDenied(t *testing.T) {
	sn := buildSchema()
	base := data.New("config")
	mod := container("config",
		container("x", container("y", leaf("a", "1"), leaf("b", "2"))))

	before := base.CopySubtree()
	_, err := Merge(base, mod, sn, data.OpCreate, "guest", denyAll{})
	if err == nil {
		t.Fatalf("expected access-denied error")
	}
	if e, ok := err.(*mgmterror.Error); !ok || e.Kind != mgmterror.KindAccessDenied {
		t.Fatalf("expected access-denied, got %v", err)
	}
	if base.NumChildren() != before.NumChildren() {
		t.Fatalf("expected base left untouched on access-denied, got %d children", base.NumChildren())
	}
}
