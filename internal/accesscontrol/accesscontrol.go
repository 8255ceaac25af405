// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package accesscontrol holds the minimal merge.AccessControl
// implementations cmd/confd wires in: Group for access-control-mode:
// internal and PathPrefix for access-control-mode: external (spec §6). Spec §1 places the actual access-control *policy*
// out of scope ("the engine only invokes it at well-defined gates");
// this package is that invocation point's simplest possible tenant,
// not a general authorization system.
package accesscontrol

import (
	"strings"

	"github.com/opennetd/configd/internal/merge"
)

// Group grants every principal in members a blanket permit and
// refuses everyone else any write, in the manner of a coarse
// "superuser group".
type Group struct {
	members map[string]bool
}

// NewGroup builds a Group policy from a list of principal names.
func NewGroup(members []string) *Group {
	g := &Group{members: make(map[string]bool, len(members))}
	for _, m := range members {
		g.members[m] = true
	}
	return g
}

func (g *Group) BlanketPermit(principal string) bool {
	return g.members[principal]
}

func (g *Group) Check(principal string, path []string, action merge.Action) bool {
	return g.members[principal]
}

// PathPrefix maps each principal to a list of allowed path prefixes
// and grants a write when the node's "/"-joined path starts with one
// of them; principals without an entry are refused. It never grants a
// blanket permit, so every mutating node is checked individually.
type PathPrefix struct {
	rules map[string][]string // principal -> allowed path prefixes
}

func NewPathPrefix(rules map[string][]string) *PathPrefix {
	return &PathPrefix{rules: rules}
}

func (p *PathPrefix) BlanketPermit(principal string) bool { return false }

func (p *PathPrefix) Check(principal string, path []string, action merge.Action) bool {
	prefixes, ok := p.rules[principal]
	if !ok {
		return false
	}
	joined := strings.Join(path, "/")
	for _, prefix := range prefixes {
		if strings.HasPrefix(joined, prefix) {
			return true
		}
	}
	return false
}
