// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package data is component B: the mutable XML-shaped configuration
// tree and its primitives (spec §3 "Data node (X)", §4.B).
//
// A Node's children are addressed by slice index, not by pointer
// cycles — the arena design note in spec §9 ("Parent back-pointers ...
// correct strategy is an arena of nodes addressed by index") is
// satisfied here by each Node owning its children outright (a plain
// tree, not a graph) and by schema bindings being a borrowed pointer
// into the read-only schema.Node tree, never the reverse.
package data

import (
	"sort"

	"github.com/opennetd/configd/internal/schema"
)

// Flag is the scratch bitset spec §3 calls out ("MARK, NONE, ...")
// used transiently during a merge; it is never observable once an
// operation returns to the caller.
type Flag uint8

const (
	FlagNone Flag = 1 << iota
	FlagMark
	FlagTentative // "NONE" operation: materialized only to address a descendant
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Op is a NETCONF edit-config operation, spec §4.D. It lives in this
// package rather than internal/merge because a modification tree
// carries it per-element as an `operation` attribute override — it is
// a property of the data, not just an argument to the merge call.
type Op int

const (
	OpMerge Op = iota
	OpReplace
	OpCreate
	OpDelete
	OpRemove
	OpNone
)

func (o Op) String() string {
	switch o {
	case OpMerge:
		return "merge"
	case OpReplace:
		return "replace"
	case OpCreate:
		return "create"
	case OpDelete:
		return "delete"
	case OpRemove:
		return "remove"
	case OpNone:
		return "none"
	}
	return "unknown"
}

// Node is one mutable data-tree element. Kind distinguishes element,
// attribute and body children, though in practice this engine only
// ever constructs element and body nodes (attributes — i.e. the
// `operation` override — are carried out-of-band on Node.OpOverride
// instead of as a generic attribute child, which keeps merge.go
// simpler).
type Node struct {
	Name      string
	Namespace string
	Body      string // leaf/leaf-list value; empty for containers
	Flags     Flag

	// OpOverride is non-nil when this element of a modification tree
	// carries an explicit `operation` attribute (spec §4.D), applying
	// to it and its descendants unless re-overridden. Meaningless on a
	// base (as opposed to modification) tree.
	OpOverride *Op

	schemaNode *schema.Node // weak; may be nil for unresolved nodes
	children   []*Node
	parent     *Node
}

// New creates a detached, unbound node — the "root" sentinel the
// teacher's data.New("root") / data.New("config") idiom uses.
func New(name string) *Node {
	return &Node{Name: name}
}

func (n *Node) Schema() *schema.Node   { return n.schemaNode }
func (n *Node) BindSchema(s *schema.Node) { n.schemaNode = s }
func (n *Node) Parent() *Node          { return n.parent }
func (n *Node) Children() []*Node      { return n.children }
func (n *Node) NumChildren() int       { return len(n.children) }

// NewChild creates and appends a schema-bound child, keeping sibling
// order (re-sort happens explicitly via SortChildren, not on every
// insert, so callers building many children in a loop pay the sort
// cost once).
func (n *Node) NewChild(name string, sn *schema.Node) *Node {
	c := &Node{Name: name, schemaNode: sn, parent: n}
	n.children = append(n.children, c)
	return c
}

// AddChild attaches an already-built subtree as a child of n.
func (n *Node) AddChild(c *Node) {
	c.parent = n
	n.children = append(n.children, c)
}

// CopySubtree deep-copies n (detached from any parent) — used by the
// merge engine's checkpoint-and-restore (DESIGN.md "partial-merge
// rollback") and by datastore.Copy.
func (n *Node) CopySubtree() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		Name:       n.Name,
		Namespace:  n.Namespace,
		Body:       n.Body,
		Flags:      n.Flags,
		OpOverride: n.OpOverride,
		schemaNode: n.schemaNode,
	}
	for _, c := range n.children {
		child := c.CopySubtree()
		child.parent = cp
		cp.children = append(cp.children, child)
	}
	return cp
}

// Restore replaces n's own body, flags and children with snapshot's,
// reparenting snapshot's children onto n. snapshot is expected to be a
// detached CopySubtree taken of n before some mutation began — the
// merge engine's checkpoint-and-restore (DESIGN.md "partial-merge
// rollback") uses this to undo a failed merge in one step.
func (n *Node) Restore(snapshot *Node) {
	n.Body = snapshot.Body
	n.Flags = snapshot.Flags
	for _, c := range snapshot.children {
		c.parent = n
	}
	n.children = snapshot.children
}

// PurgeSubtree detaches n from its parent and frees it; n itself (and
// everything under it) must not be used afterwards.
func PurgeSubtree(n *Node) {
	if n == nil || n.parent == nil {
		return
	}
	p := n.parent
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// FindBody returns the body string of the first child named name,
// plus whether it was found at all.
func (n *Node) FindBody(name string) (string, bool) {
	for _, c := range n.children {
		if c.Name == name {
			return c.Body, true
		}
	}
	return "", false
}

// SetBody sets n's own body value (n must be a leaf/leaf-list node).
func (n *Node) SetBody(v string) { n.Body = v }

// keyTuple returns the ordered key-leaf values of a list-entry node,
// used both for sorting and for match-by-keys comparison.
func keyTuple(n *Node) []string {
	sn := n.schemaNode
	if sn == nil {
		return nil
	}
	var keys []string
	// A list-entry node's schema is the list's schema (the entries
	// themselves don't get their own schema.Node — spec models list
	// keys as schema metadata on the List node).
	if sn.Kind() != schema.List {
		return nil
	}
	for _, k := range sn.KeyLeaves() {
		v, _ := n.FindBody(k)
		keys = append(keys, v)
	}
	return keys
}

func siblingOrder(sn *schema.Node) int {
	if sn == nil {
		return -1
	}
	p := sn.Parent()
	if p == nil {
		return -1
	}
	for i, c := range p.Children() {
		if c == sn {
			return i
		}
	}
	return -1
}

// SortChildren re-sorts n's children per spec §3's sibling-order
// invariant: schema-declared order first, then list-key tuple
// lexicographic order for entries that share a schema node (i.e.
// entries of the same list).
func (n *Node) SortChildren() {
	children := n.children
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		oa, ob := siblingOrder(a.schemaNode), siblingOrder(b.schemaNode)
		if oa != ob {
			return oa < ob
		}
		// Same schema position: either unrelated nodes with no schema
		// (stable, leave as-is) or entries of the same list — compare
		// key tuples, then body (leaf-list); otherwise keep input order.
		ka, kb := keyTuple(a), keyTuple(b)
		if ka != nil || kb != nil {
			return lessTuple(ka, kb)
		}
		if a.Body != b.Body {
			return a.Body < b.Body
		}
		return false
	})
	n.children = children
}

func lessTuple(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// MatchByKeys finds the child of parent whose identity matches
// candidate's: same name and, for a list entry, the same key-leaf
// tuple; for a leaf-list entry, the same body value. This is the
// correspondence primitive the merge engine's two-pass descent (§4.D
// step 2) is built on.
func MatchByKeys(parent, candidate *Node, sn *schema.Node) *Node {
	if parent == nil {
		return nil
	}
	if sn != nil && sn.Kind() == schema.LeafList {
		for _, c := range parent.children {
			if c.Name == candidate.Name && c.Body == candidate.Body {
				return c
			}
		}
		return nil
	}
	candKeys := keyTuple(candidate)
	for _, c := range parent.children {
		if c.Name != candidate.Name {
			continue
		}
		if sn != nil && sn.Kind() == schema.List {
			if equalTuple(keyTuple(c), candKeys) {
				return c
			}
			continue
		}
		return c
	}
	return nil
}

func equalTuple(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Visitor is called for each node Apply walks into; returning false
// stops the walk from descending into that node's children.
type Visitor func(n *Node) bool

// Apply performs a depth-first walk of root calling fn on every node,
// including root itself.
func Apply(root *Node, fn Visitor) {
	if root == nil {
		return
	}
	if !fn(root) {
		return
	}
	for _, c := range root.children {
		Apply(c, fn)
	}
}

// PruneFlagged detaches every childless container, list or unbound
// node under root whose Flags has flag set (flagged leaves, leaf-list
// entries and anyxml/anydata nodes are kept), and — if recursive — any
// now-empty non-presence container left behind by that removal. It walks bottom-up so a
// container only just emptied by this pass is itself considered.
func PruneFlagged(root *Node, flag Flag, recursive bool) {
	pruneFlaggedRec(root, flag, recursive)
}

func pruneFlaggedRec(n *Node, flag Flag, recursive bool) {
	// Walk a stable copy since we mutate n.children during the walk.
	children := append([]*Node(nil), n.children...)
	for _, c := range children {
		pruneFlaggedRec(c, flag, recursive)
	}
	if n.parent == nil {
		return // never prune the root itself
	}
	// Only scaffolding (container/list) nodes are ever removed by the
	// tentative flag: a leaf, leaf-list entry or anyxml/anydata node
	// created under a NONE edit carries real content (its body or
	// opaque subtree) and is kept even though it was materialized
	// tentatively — otherwise a bare NONE edit that sets a leaf deep in
	// a fresh path would purge the very value it just wrote (E6).
	if n.Flags.Has(flag) && len(n.children) == 0 && isScaffoldKind(n.schemaNode) {
		PurgeSubtree(n)
		return
	}
	if recursive && len(n.children) == 0 && n.schemaNode != nil &&
		n.schemaNode.Kind() == schema.Container && !n.schemaNode.HasPresence() {
		PurgeSubtree(n)
	}
}

func isScaffoldKind(sn *schema.Node) bool {
	if sn == nil {
		return true
	}
	switch sn.Kind() {
	case schema.Container, schema.List:
		return true
	}
	return false
}

// PruneEmptyContainers implements spec §4.D step 6: a bottom-up
// mark-and-sweep that removes every non-presence container left with
// no element children, independent of any flag. It is run once over
// the whole result tree after a merge completes.
func PruneEmptyContainers(root *Node) {
	children := append([]*Node(nil), root.children...)
	for _, c := range children {
		PruneEmptyContainers(c)
	}
	if root.parent == nil {
		return
	}
	if len(root.children) == 0 && root.schemaNode != nil &&
		root.schemaNode.Kind() == schema.Container && !root.schemaNode.HasPresence() {
		PurgeSubtree(root)
	}
}
