// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package schema

import (
	"encoding/json"
	"io"
)

// doc is the on-disk shape of a compiled schema tree. YANG parsing
// itself is out of scope (package doc); this is the generic
// compiled-schema loader the doc comment promises — whatever produced
// the schema (a YANG compiler, a hand-written fixture) emits this
// shape and LoadJSON turns it into a bound *Node tree.
type doc struct {
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Namespace string   `json:"namespace,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	Presence  bool     `json:"presence,omitempty"`
	Mandatory bool     `json:"mandatory,omitempty"`
	Type      *typeDoc `json:"type,omitempty"`
	Children  []doc    `json:"children,omitempty"`
}

type typeDoc struct {
	Name      string   `json:"name"`
	Pattern   string   `json:"pattern,omitempty"`
	RangeMin  *int64   `json:"rangeMin,omitempty"`
	RangeMax  *int64   `json:"rangeMax,omitempty"`
	LeafrefTo string   `json:"leafrefTo,omitempty"`
	Enum      []string `json:"enum,omitempty"`
}

var kindByName = map[string]Kind{
	"module":    Module,
	"container": Container,
	"list":      List,
	"leaf":      Leaf,
	"leaf-list": LeafList,
	"anyxml":    Anyxml,
	"anydata":   Anydata,
	"choice":    Choice,
	"case":      Case,
}

// LoadJSON reads a compiled schema tree (see doc) and builds it into
// an immutable *Node, ready to be shared by reference from every
// datastore and session the engine creates.
func LoadJSON(r io.Reader) (*Node, error) {
	var root doc
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, err
	}
	return buildNode(root), nil
}

func buildNode(d doc) *Node {
	kind, ok := kindByName[d.Kind]
	if !ok {
		kind = Container
	}
	n := NewNode(kind, d.Name, d.Namespace)
	n.SetPresence(d.Presence)
	n.SetMandatory(d.Mandatory)
	if len(d.Keys) > 0 {
		n.SetKeys(d.Keys)
	}
	if d.Type != nil {
		n.SetType(Type{
			Name:      d.Type.Name,
			Pattern:   d.Type.Pattern,
			RangeMin:  d.Type.RangeMin,
			RangeMax:  d.Type.RangeMax,
			LeafrefTo: d.Type.LeafrefTo,
			Enum:      d.Type.Enum,
		})
	}
	for _, c := range d.Children {
		n.AddChild(buildNode(c))
	}
	return n
}
