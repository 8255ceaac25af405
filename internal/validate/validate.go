// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package validate is component E (spec §4.E): full-tree validation
// run after a successful merge into the candidate, before it may be
// committed.
//
// Grounded on the teacher's session_state.go validateFullTree, which
// hands the whole merged tree to schema.ValidateSchema in one call
// rather than validating incrementally as edits land — the same shape
// is kept here: Tree walks the whole candidate once and accumulates
// every failure rather than stopping at the first one, since spec
// §4.E says failures are reported (plural) over the merged tree.
package validate

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/pathutil"
	"github.com/opennetd/configd/internal/schema"
)

// Constraint is a when/must-style expression evaluated over the whole
// merged tree. The engine does not itself carry a YANG expression
// evaluator (§1 treats YANG parsing as an external collaborator); a
// deployment wires in whatever constraints its schema actually
// declares by registering one Constraint per expression.
type Constraint interface {
	// Check returns a non-nil error, with Path set, if the constraint
	// does not hold over root.
	Check(root *data.Node) *mgmterror.Error
}

// Tree validates root (bound to schemaRoot) in full: mandatory leaves,
// list key uniqueness, leafref target existence, type-range
// conformance, then every registered constraint. It never stops at the
// first failure — every check it can still perform after one failure
// still runs, so a single validate call surfaces everything wrong with
// the candidate at once.
func Tree(root *data.Node, schemaRoot *schema.Node, constraints []Constraint) mgmterror.List {
	var errs mgmterror.List
	walk(root, schemaRoot, nil, root, &errs)
	for _, c := range constraints {
		if err := c.Check(root); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func walk(n *data.Node, sn *schema.Node, path []string, root *data.Node, errs *mgmterror.List) {
	if sn == nil {
		return
	}

	if sn.Kind() == schema.Leaf || sn.Kind() == schema.LeafList {
		checkType(n, sn, path, root, errs)
	}

	checkMandatoryChildren(n, sn, path, errs)

	// List key uniqueness is a property of n's children, not of a
	// single entry, so it is checked once per distinct list schema
	// child here rather than when the walk descends into an entry.
	for _, childSn := range sn.Children() {
		if childSn.Kind() == schema.List {
			childPath := pathutil.CopyAppend(path, childSn.Name())
			checkKeyUniqueness(n, childSn, childPath, errs)
		}
	}

	for _, child := range n.Children() {
		childSn := child.Schema()
		if childSn == nil {
			continue
		}
		childPath := pathutil.CopyAppend(path, child.Name)
		walk(child, childSn, childPath, root, errs)
	}
}

// checkMandatoryChildren reports every schema-mandatory leaf under sn
// that has no corresponding data child of n.
func checkMandatoryChildren(n *data.Node, sn *schema.Node, path []string, errs *mgmterror.List) {
	for _, childSn := range sn.Children() {
		if childSn.Kind() != schema.Leaf || !childSn.Mandatory() {
			continue
		}
		if _, ok := n.FindBody(childSn.Name()); !ok {
			childPath := pathutil.CopyAppend(path, childSn.Name())
			e := mgmterror.NewDataMissingError(pathutil.Pathstr(childPath))
			e.Message = fmt.Sprintf("mandatory leaf %q is not set", childSn.Name())
			*errs = append(*errs, e)
		}
	}
}

// checkKeyUniqueness groups n's children that share the list's schema
// node and reports any duplicate key-leaf tuple.
func checkKeyUniqueness(n *data.Node, sn *schema.Node, path []string, errs *mgmterror.List) {
	seen := make(map[string]bool)
	for _, entry := range n.Children() {
		if entry.Schema() != sn {
			continue
		}
		var tuple string
		for _, k := range sn.KeyLeaves() {
			v, _ := entry.FindBody(k)
			tuple += "\x00" + v
		}
		if seen[tuple] {
			e := mgmterror.NewInvalidValueError(
				fmt.Sprintf("duplicate key for list %q", sn.Name()))
			e.Path = pathutil.Pathstr(path)
			*errs = append(*errs, e)
			continue
		}
		seen[tuple] = true
	}
}

// checkType validates a leaf/leaf-list body against its schema type:
// leafref target existence, numeric range, and pattern conformance.
func checkType(n *data.Node, sn *schema.Node, path []string, root *data.Node, errs *mgmterror.List) {
	typ := sn.Type()
	if typ.IsEmpty() || n.Body == "" {
		return
	}

	if typ.LeafrefTo != "" {
		target := schema.Descendant(sn.ModuleOf(), pathutil.Makepath(typ.LeafrefTo))
		if target == nil {
			e := mgmterror.NewInvalidValueError(
				fmt.Sprintf("leafref target %q does not exist in the schema", typ.LeafrefTo))
			e.Path = pathutil.Pathstr(path)
			*errs = append(*errs, e)
			return
		}
		if findByPath(root, pathutil.Makepath(typ.LeafrefTo), n.Body) == nil {
			e := mgmterror.NewInvalidValueError(
				fmt.Sprintf("leafref value %q has no corresponding %s", n.Body, typ.LeafrefTo))
			e.Path = pathutil.Pathstr(path)
			*errs = append(*errs, e)
		}
	}

	if typ.RangeMin != nil || typ.RangeMax != nil {
		v, err := strconv.ParseInt(n.Body, 10, 64)
		if err != nil {
			e := mgmterror.NewInvalidValueError(
				fmt.Sprintf("%q is not a valid %s", n.Body, typ.Name))
			e.Path = pathutil.Pathstr(path)
			*errs = append(*errs, e)
			return
		}
		if (typ.RangeMin != nil && v < *typ.RangeMin) ||
			(typ.RangeMax != nil && v > *typ.RangeMax) {
			e := mgmterror.NewInvalidValueError(
				fmt.Sprintf("%d is out of range for %s", v, sn.Name()))
			e.Path = pathutil.Pathstr(path)
			*errs = append(*errs, e)
		}
	}

	if typ.Pattern != "" {
		re, err := regexp.Compile(typ.Pattern)
		if err == nil && !re.MatchString(n.Body) {
			e := mgmterror.NewInvalidValueError(
				fmt.Sprintf("%q does not match pattern %q", n.Body, typ.Pattern))
			e.Path = pathutil.Pathstr(path)
			*errs = append(*errs, e)
		}
	}
}

// findByPath walks root down a leaf path (no key predicates — lists
// along a leafref target are resolved by plain name match only, a
// known simplification since this engine doesn't carry a path/XPath
// predicate parser) looking for a leaf whose body equals want.
func findByPath(root *data.Node, path []string, want string) *data.Node {
	if len(path) == 0 {
		if root.Body == want {
			return root
		}
		return nil
	}
	for _, c := range root.Children() {
		if c.Name != path[0] {
			continue
		}
		if found := findByPath(c, path[1:], want); found != nil {
			return found
		}
	}
	return nil
}
