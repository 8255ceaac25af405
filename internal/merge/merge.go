// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package merge is component D, "the hard part" (spec §4.D): applying
// a modification tree onto a base tree under NETCONF edit-config
// operation semantics.
//
// The teacher's own merge logic (github.com/danos/config/union,
// exercised from session/edit_config.go and session/load.go) works a
// single path at a time — one Set(path, value, op) call per leaf,
// flattened out of the incoming tree before ever touching union.Node.
// This engine instead merges whole subtrees against each other in one
// pass, since spec §4.D's contract is merge(base_root, mod_root,
// op_default, principal), not merge-one-leaf. The two-pass descent,
// the operation-enum naming (data.OpMerge/OpReplace/...) and the
// checkpoint/restore plumbing below still follow the teacher's idiom;
// only the shape of the walk is new.
package merge

import (
	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/pathutil"
	"github.com/opennetd/configd/internal/schema"
)

// Action is what the access-control gate is being asked to permit.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// AccessControl is the policy spec §4.D step 8 calls out. BlanketPermit
// is the pre-check that can skip every subsequent per-node Check call
// for a principal; Check is consulted before every creation, update or
// deletion that survives the pre-check.
type AccessControl interface {
	BlanketPermit(principal string) bool
	Check(principal string, path []string, action Action) bool
}

// context carries the state threaded through one Merge call: the
// principal and access-control policy (step 8), and whether the
// pre-check already granted a blanket permit.
type context struct {
	principal string
	ac        AccessControl
	blanket   bool
}

func (c *context) gate(action Action, path []string) error {
	if c.ac == nil || c.blanket {
		return nil
	}
	if !c.ac.Check(c.principal, path, action) {
		return mgmterror.NewAccessDeniedError(pathutil.Pathstr(path))
	}
	return nil
}

// Merge applies mod onto base under opDefault, per spec §4.D. base and
// mod both carry the literal root name "config" and are bound to
// schemaRoot, the schema node whose children are the top-level
// modules' containers. On success it returns base (mutated in place,
// pruned and sorted); on failure it returns the structured error and
// base is left exactly as it was before the call (checkpoint-and-
// restore, DESIGN.md "partial-merge rollback" — not required by spec
// but recommended there, and it is what makes session.edit's error
// path simple: a failed edit never needs to be partially unwound by
// the caller).
func Merge(base, mod *data.Node, schemaRoot *schema.Node, opDefault data.Op, principal string, ac AccessControl) (*data.Node, error) {
	ctx := &context{principal: principal, ac: ac}
	if ac != nil {
		// The empty principal is the daemon's own raised-privilege
		// identity (configd.Context.Principal) and is never gated.
		ctx.blanket = principal == "" || ac.BlanketPermit(principal)
	}

	snapshot := base.CopySubtree()
	if err := mergeRoot(base, mod, schemaRoot, opDefault, ctx); err != nil {
		base.Restore(snapshot)
		return nil, err
	}

	// Step 5: NONE propagation — purge any subtree that is tentative
	// and ended up with nothing real attached beneath it.
	data.PruneFlagged(base, data.FlagTentative, true)
	// Step 6: unconditional bottom-up sweep of empty non-presence
	// containers, independent of step 5's flag.
	data.PruneEmptyContainers(base)
	base.SortChildren()
	// The tentative flag is merge-local scratch; clear it on the way out.
	data.Apply(base, func(n *data.Node) bool {
		n.Flags &^= data.FlagTentative
		return true
	})
	return base, nil
}

// mergeRoot implements step 1, the top-level special cases, then
// falls through to the ordinary two-pass descent for config's direct
// children.
func mergeRoot(base, mod *data.Node, schemaRoot *schema.Node, op data.Op, ctx *context) error {
	if mod.NumChildren() == 0 {
		switch op {
		case data.OpDelete, data.OpRemove, data.OpReplace:
			for _, c := range append([]*data.Node(nil), base.Children()...) {
				if err := ctx.gate(ActionDelete, []string{c.Name}); err != nil {
					return err
				}
				data.PurgeSubtree(c)
			}
		}
		return nil
	}
	if op == data.OpReplace || op == data.OpDelete {
		for _, c := range append([]*data.Node(nil), base.Children()...) {
			if err := ctx.gate(ActionDelete, []string{c.Name}); err != nil {
				return err
			}
			data.PurgeSubtree(c)
		}
		op = data.OpMerge
	}
	return descendChildren(base, mod, schemaRoot, op, nil, ctx)
}

// descendChildren is step 2's two-pass correspondence, generalized to
// recurse for every non-leaf node, not just the root.
func descendChildren(base *data.Node, mod *data.Node, sn *schema.Node, op data.Op, path []string, ctx *context) error {
	for _, modChild := range mod.Children() {
		childSn, ok := schema.ResolveByQName(sn, modChild.Name, modChild.Namespace)
		if !ok {
			return mgmterror.NewUnknownElementError(modChild.Name)
		}
		modChild.BindSchema(childSn)

		effectiveOp := op
		if modChild.OpOverride != nil {
			effectiveOp = *modChild.OpOverride
		}
		childPath := pathutil.CopyAppend(path, modChild.Name)
		if err := mergeChild(base, modChild, childSn, effectiveOp, childPath, ctx); err != nil {
			return err
		}
	}
	base.SortChildren()
	return nil
}

// mergeChild dispatches a single (base, mod) pair by schema kind, per
// steps 3 and 4 for leaves/anyxml and the general container case
// otherwise.
func mergeChild(parent *data.Node, mod *data.Node, sn *schema.Node, op data.Op, path []string, ctx *context) error {
	base := data.MatchByKeys(parent, mod, sn)

	// Choice/case replacement: an existing element bound to a
	// different schema node than the one the modification resolves to
	// (a different case of the same choice) is purged outright.
	if base != nil && base.Schema() != sn {
		if err := ctx.gate(ActionDelete, path); err != nil {
			return err
		}
		data.PurgeSubtree(base)
		base = nil
	}

	switch sn.Kind() {
	case schema.Leaf, schema.LeafList:
		return mergeLeaf(parent, base, mod, sn, op, path, ctx)
	case schema.Anyxml, schema.Anydata:
		return mergeOpaque(parent, base, mod, sn, op, path, ctx)
	default:
		return mergeContainer(parent, base, mod, sn, op, path, ctx)
	}
}

func attachLeaf(parent, mod *data.Node, sn *schema.Node) *data.Node {
	c := parent.NewChild(mod.Name, sn)
	c.Namespace = mod.Namespace
	c.Body = mod.Body
	return c
}

// mergeLeaf is step 3: no descent, the body is the whole payload.
func mergeLeaf(parent, base, mod *data.Node, sn *schema.Node, op data.Op, path []string, ctx *context) error {
	switch op {
	case data.OpCreate:
		if base != nil {
			return mgmterror.NewDataExistsError(pathutil.Pathstr(path))
		}
		if err := ctx.gate(ActionCreate, path); err != nil {
			return err
		}
		attachLeaf(parent, mod, sn)

	case data.OpMerge, data.OpReplace:
		if base == nil {
			if err := ctx.gate(ActionCreate, path); err != nil {
				return err
			}
			attachLeaf(parent, mod, sn)
		} else if base.Body != mod.Body {
			if err := ctx.gate(ActionUpdate, path); err != nil {
				return err
			}
			base.SetBody(mod.Body)
		}
		// equal bodies: no-op, preserves flags (spec §4.D step 3).

	case data.OpDelete:
		if base == nil {
			return mgmterror.NewDataMissingError(pathutil.Pathstr(path))
		}
		if err := ctx.gate(ActionDelete, path); err != nil {
			return err
		}
		data.PurgeSubtree(base)

	case data.OpRemove:
		if base != nil {
			if err := ctx.gate(ActionDelete, path); err != nil {
				return err
			}
			data.PurgeSubtree(base)
		}

	case data.OpNone:
		if base == nil {
			if err := ctx.gate(ActionCreate, path); err != nil {
				return err
			}
			c := attachLeaf(parent, mod, sn)
			c.Flags |= data.FlagTentative
		}
		// present: leaves untouched, per the semantics table.
	}
	return nil
}

// mergeOpaque is step 4: anyxml/anydata is opaque, a whole-subtree
// overwrite rather than a recursive merge, and any operation attribute
// nested inside the payload is ignored.
func mergeOpaque(parent, base, mod *data.Node, sn *schema.Node, op data.Op, path []string, ctx *context) error {
	attach := func() {
		cp := mod.CopySubtree()
		cp.OpOverride = nil
		parent.AddChild(cp)
	}
	switch op {
	case data.OpCreate:
		if base != nil {
			return mgmterror.NewDataExistsError(pathutil.Pathstr(path))
		}
		if err := ctx.gate(ActionCreate, path); err != nil {
			return err
		}
		attach()

	case data.OpMerge, data.OpReplace:
		if base != nil {
			if err := ctx.gate(ActionUpdate, path); err != nil {
				return err
			}
			data.PurgeSubtree(base)
		} else if err := ctx.gate(ActionCreate, path); err != nil {
			return err
		}
		attach()

	case data.OpDelete:
		if base == nil {
			return mgmterror.NewDataMissingError(pathutil.Pathstr(path))
		}
		if err := ctx.gate(ActionDelete, path); err != nil {
			return err
		}
		data.PurgeSubtree(base)

	case data.OpRemove:
		if base != nil {
			if err := ctx.gate(ActionDelete, path); err != nil {
				return err
			}
			data.PurgeSubtree(base)
		}

	case data.OpNone:
		if base == nil {
			if err := ctx.gate(ActionCreate, path); err != nil {
				return err
			}
			attach()
			// the freshly attached copy is the last child appended.
			children := parent.Children()
			children[len(children)-1].Flags |= data.FlagTentative
		}
	}
	return nil
}

// mergeContainer is the general container/list-entry case: the node's
// own existence is resolved first, then its children descend per step
// 2, whatever op_default is now in effect for them.
func mergeContainer(parent, base, mod *data.Node, sn *schema.Node, op data.Op, path []string, ctx *context) error {
	switch op {
	case data.OpCreate:
		if base != nil {
			return mgmterror.NewDataExistsError(pathutil.Pathstr(path))
		}
		if err := ctx.gate(ActionCreate, path); err != nil {
			return err
		}
		base = attachContainer(parent, mod, sn)

	case data.OpMerge:
		if base == nil {
			if err := ctx.gate(ActionCreate, path); err != nil {
				return err
			}
			base = attachContainer(parent, mod, sn)
		}

	case data.OpReplace:
		if base != nil {
			if err := ctx.gate(ActionDelete, path); err != nil {
				return err
			}
			data.PurgeSubtree(base)
		}
		if err := ctx.gate(ActionCreate, path); err != nil {
			return err
		}
		base = attachContainer(parent, mod, sn)

	case data.OpDelete:
		if base == nil {
			return mgmterror.NewDataMissingError(pathutil.Pathstr(path))
		}
		if err := ctx.gate(ActionDelete, path); err != nil {
			return err
		}
		data.PurgeSubtree(base)
		return nil

	case data.OpRemove:
		if base != nil {
			if err := ctx.gate(ActionDelete, path); err != nil {
				return err
			}
			data.PurgeSubtree(base)
		}
		return nil

	case data.OpNone:
		if base == nil {
			if err := ctx.gate(ActionCreate, path); err != nil {
				return err
			}
			base = attachContainer(parent, mod, sn)
			base.Flags |= data.FlagTentative
		}
		// present: descend without creating.
	}

	return descendChildren(base, mod, sn, op, path, ctx)
}

func attachContainer(parent, mod *data.Node, sn *schema.Node) *data.Node {
	c := parent.NewChild(mod.Name, sn)
	c.Namespace = mod.Namespace
	return c
}
