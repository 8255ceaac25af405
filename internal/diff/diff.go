// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package diff computes the candidate−running difference the commit
// pipeline hands to extensions (spec §4.F phase 2): two sets of whole
// subtrees, {added, deleted}, plus a human-readable pretty-printed
// form that the server returns as the commit reply.
//
// Grounded on the teacher's diff.CreateChangedNSMap (session/
// commitmgr.go calls it to build the namespace-change map handed to
// ComponentSetRunningWithLog) — the namespace bookkeeping there is
// specific to the teacher's external component model, so this engine
// instead walks candidate and running in lockstep directly, using the
// same match-by-keys correspondence internal/merge is built on.
package diff

import (
	"github.com/kylelemons/godebug/pretty"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/pathutil"
	"github.com/opennetd/configd/internal/schema"
)

// Change is one added or deleted subtree, labeled with its path.
type Change struct {
	Path string
	Node *data.Node
}

// Result is the diff candidate−running.
type Result struct {
	Added   []Change
	Deleted []Change
}

// Compute walks candidate and running in lockstep under schemaRoot and
// returns the subtrees present in one but not the other. A leaf whose
// body differs between the two trees is reported as a deletion of the
// old value and an addition of the new one, so extensions that only
// care about "did this leaf change" can look at both sides of the
// diff for a matching path.
func Compute(candidate, running *data.Node, schemaRoot *schema.Node) *Result {
	r := &Result{}
	walk(candidate, running, schemaRoot, nil, r)
	return r
}

func walk(cand, run *data.Node, sn *schema.Node, path []string, r *Result) {
	candChildren := childrenOf(cand)
	runChildren := childrenOf(run)

	matched := make(map[*data.Node]bool)

	for _, cc := range candChildren {
		childSn := resolveChildSchema(sn, cc)
		var match *data.Node
		if run != nil {
			match = data.MatchByKeys(run, cc, childSn)
		}
		childPath := pathutil.CopyAppend(path, cc.Name)
		if match == nil {
			r.Added = append(r.Added, Change{Path: pathutil.Pathstr(childPath), Node: cc})
			continue
		}
		matched[match] = true
		if isLeafKind(childSn) {
			if cc.Body != match.Body {
				r.Deleted = append(r.Deleted, Change{Path: pathutil.Pathstr(childPath), Node: match})
				r.Added = append(r.Added, Change{Path: pathutil.Pathstr(childPath), Node: cc})
			}
			continue
		}
		walk(cc, match, childSn, childPath, r)
	}

	for _, rc := range runChildren {
		if matched[rc] {
			continue
		}
		childPath := pathutil.CopyAppend(path, rc.Name)
		r.Deleted = append(r.Deleted, Change{Path: pathutil.Pathstr(childPath), Node: rc})
	}
}

func childrenOf(n *data.Node) []*data.Node {
	if n == nil {
		return nil
	}
	return n.Children()
}

func resolveChildSchema(sn *schema.Node, child *data.Node) *schema.Node {
	if child.Schema() != nil {
		return child.Schema()
	}
	if sn == nil {
		return nil
	}
	found, _ := schema.ResolveByQName(sn, child.Name, child.Namespace)
	return found
}

func isLeafKind(sn *schema.Node) bool {
	return sn != nil && (sn.Kind() == schema.Leaf || sn.Kind() == schema.LeafList)
}

// Pretty renders the diff as a human-readable string (the body of the
// commit reply, server/dispatcher.go), using the same pretty-printer the rest of the retrieval
// pack reaches for in tests (kylelemons/godebug/pretty), rather than a
// hand-rolled diff formatter.
func (r *Result) Pretty() string {
	cfg := &pretty.Config{Compact: false}
	out := "added:\n" + cfg.Sprint(summarize(r.Added))
	out += "\ndeleted:\n" + cfg.Sprint(summarize(r.Deleted))
	return out
}

func summarize(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Node != nil && c.Node.Body != "" {
			out = append(out, c.Path+" = "+c.Node.Body)
		} else {
			out = append(out, c.Path)
		}
	}
	return out
}

// Empty reports whether the diff carries no changes at all.
func (r *Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Deleted) == 0
}
