// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package schema is component A: the immutable YANG schema tree and
// its pure-function lookups (spec §3 "Schema node (Y)", §4.A).
//
// YANG parsing itself is out of scope (§1) — a Node tree here is
// assembled once at startup, either by LoadJSON (load.go) from a
// compiled-schema description or, in tests, by hand with NewNode and
// AddChild.
// Once built a *Node tree is never mutated; data nodes bind to it by
// reference (see internal/data) and must never retain that reference
// across a schema reload, which is a stop-the-world event.
package schema

import (
	"github.com/derekparker/trie"
)

// Kind is the YANG node class (spec §3).
type Kind int

const (
	Module Kind = iota
	Container
	List
	Leaf
	LeafList
	Anyxml
	Anydata
	Choice
	Case
)

func (k Kind) String() string {
	switch k {
	case Module:
		return "module"
	case Container:
		return "container"
	case List:
		return "list"
	case Leaf:
		return "leaf"
	case LeafList:
		return "leaf-list"
	case Anyxml:
		return "anyxml"
	case Anydata:
		return "anydata"
	case Choice:
		return "choice"
	case Case:
		return "case"
	}
	return "unknown"
}

// Type is the minimal type descriptor the engine needs for validation
// (§4.E): range/pattern conformance and leafref target resolution.
// Real YANG type richness (unions, bits, identityref catalogs, ...) is
// not this engine's concern (§1 treats YANG parsing as an external
// collaborator); Type is deliberately small.
type Type struct {
	Name       string // e.g. "string", "int32", "leafref", "empty"
	Pattern    string // regexp, if any
	RangeMin   *int64
	RangeMax   *int64
	LeafrefTo  string // absolute path, "/"-separated, if Name == "leafref"
	Enum       []string
}

func (t Type) IsEmpty() bool { return t.Name == "empty" }

// Node is one immutable schema tree node.
type Node struct {
	kind      Kind
	name      string
	namespace string
	keys      []string // ordered key-leaf names, List only
	presence  bool      // containers only
	mandatory bool      // leaves only
	typ       Type

	parent   *Node
	children []*Node
	lexicon  *trie.Trie // child-name prefix index, built lazily
}

// NewNode constructs a detached node; use AddChild to build the tree.
func NewNode(kind Kind, name, namespace string) *Node {
	return &Node{kind: kind, name: name, namespace: namespace}
}

func (n *Node) Kind() Kind          { return n.kind }
func (n *Node) Name() string        { return n.name }
func (n *Node) Namespace() string   { return n.namespace }
func (n *Node) Parent() *Node       { return n.parent }
func (n *Node) HasPresence() bool   { return n.presence }
func (n *Node) Mandatory() bool     { return n.mandatory }
func (n *Node) Type() Type          { return n.typ }
func (n *Node) Keys() []string      { return n.keys }
func (n *Node) Children() []*Node   { return n.children }

func (n *Node) SetPresence(p bool)      { n.presence = p }
func (n *Node) SetMandatory(m bool)     { n.mandatory = m }
func (n *Node) SetType(t Type)          { n.typ = t }
func (n *Node) SetKeys(keys []string)   { n.keys = keys }

// AddChild appends child to n's schema children, fixing up the parent
// pointer and invalidating the lazily-built lexicon.
func (n *Node) AddChild(child *Node) *Node {
	child.parent = n
	n.children = append(n.children, child)
	n.lexicon = nil
	return child
}

func (n *Node) buildLexicon() *trie.Trie {
	if n.lexicon != nil {
		return n.lexicon
	}
	t := trie.New()
	for _, c := range n.children {
		t.Add(c.name, c)
	}
	n.lexicon = t
	return n.lexicon
}

// FindChild is the O(fan-out) lookup spec §4.A names; it is backed by
// a per-node trie so repeated lookups (schema.Descendant walking a
// long path, or CompleteChildren prefix completion) are O(name length) instead
// of a linear scan of children.
func (n *Node) FindChild(name string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	t := n.buildLexicon()
	v, ok := t.Find(name)
	if !ok {
		return nil, false
	}
	return v.Meta().(*Node), true
}

// CompleteChildren returns the names of all children whose name has
// the given prefix, ordered as found — the schema-driven completion
// the teacher's GetHelp/session help tests exercise.
func (n *Node) CompleteChildren(prefix string) []string {
	if n == nil {
		return nil
	}
	t := n.buildLexicon()
	return t.PrefixSearch(prefix)
}

// IsKey reports whether leafName is one of the list's key leaves.
func (n *Node) IsKey(leafName string) bool {
	for _, k := range n.keys {
		if k == leafName {
			return true
		}
	}
	return false
}

// KeyLeaves returns the ordered key-leaf names of a list node.
func (n *Node) KeyLeaves() []string { return n.keys }

// ModuleOf walks up to the owning module node.
func (n *Node) ModuleOf() *Node {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.kind == Module {
			return cur
		}
	}
	return nil
}

// Descendant walks path from n, returning nil if any element is
// unknown. Used for both config-only and full (config+state) trees,
// selected by which root the caller hands in.
func Descendant(n *Node, path []string) *Node {
	cur := n
	for _, p := range path {
		if cur == nil {
			return nil
		}
		child, ok := cur.FindChild(p)
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// ResolveByQName finds the schema child matching an XML-ish
// (name, namespace) pair — the schema counterpart of an incoming data
// element that may or may not carry an explicit namespace.
func ResolveByQName(parent *Node, name, namespace string) (*Node, bool) {
	child, ok := FindDataChild(parent, name)
	if !ok {
		return nil, false
	}
	if namespace != "" && child.namespace != "" && child.namespace != namespace {
		return nil, false
	}
	return child, true
}

// FindDataChild resolves name among parent's config children, treating
// Choice and Case nodes as transparent: neither ever appears as an
// element on the wire, so a leaf nested three choices deep is looked
// up by its own name directly against parent.
func FindDataChild(parent *Node, name string) (*Node, bool) {
	if parent == nil {
		return nil, false
	}
	if c, ok := parent.FindChild(name); ok {
		if c.kind != Choice {
			return c, true
		}
		return findInChoice(c, name)
	}
	for _, c := range parent.children {
		if c.kind != Choice {
			continue
		}
		if n, ok := findInChoice(c, name); ok {
			return n, true
		}
	}
	return nil, false
}

func findInChoice(choice *Node, name string) (*Node, bool) {
	for _, cs := range choice.children {
		if n, ok := FindDataChild(cs, name); ok {
			return n, true
		}
	}
	return nil, false
}
