// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package commit is component F (spec §4.F): the two-phase commit
// pipeline that replaces running with candidate under a transactional
// envelope extensions provide.
//
// Grounded on session/commitmgr.go's commit() ordering — validate,
// then extension hooks, then component apply, then write running,
// refresh the cache — generalized from the teacher's component-set/
// pre-hooks/post-hooks/exec.Output plumbing to the plain
// begin/apply/abort/complete ABI internal/ext exposes.
package commit

import (
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/diff"
	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/internal/validate"
)

// Pipeline is the commit machinery for one (candidate, running) pair.
type Pipeline struct {
	Candidate  *datastore.Store
	Running    *datastore.Store
	SchemaRoot *schema.Node
	Extensions *ext.Registry
	Validators []validate.Constraint
}

// Commit runs the full pipeline (spec §4.F phases 1-6) and, on
// success, returns the diff that was committed. On any failure the
// candidate is left exactly as it was (validation failures leave it
// mutated per spec §4.E, which the caller can undo with a copy of
// running back onto candidate; extension failures touch nothing since
// datastore.Copy only runs after every extension has succeeded).
func (p *Pipeline) Commit(principal string) (*diff.Result, error) {
	candRoot, err := p.Candidate.Root()
	if err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}

	// Phase 1: validate.
	if errs := validate.Tree(candRoot, p.SchemaRoot, p.Validators); errs.HasErrors() {
		return nil, errs
	}

	runRoot, err := p.Running.Root()
	if err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}

	// Phase 2: compute the diff.
	d := diff.Compute(candRoot, runRoot, p.SchemaRoot)

	// Phases 3-5: extension begin/apply, abort-in-reverse on failure.
	if p.Extensions != nil {
		if txnErr := p.Extensions.RunTransaction(d); txnErr != nil {
			return nil, txnErr
		}
	}

	// Phase 6: complete has already run inside RunTransaction; copy
	// candidate to running and refresh the cache.
	if err := datastore.Copy(p.Candidate, p.Running); err != nil {
		return nil, mgmterror.NewOperationFailedError(err.Error())
	}
	return d, nil
}

// Validate runs phase 1 alone (spec §4.G `validate`).
func (p *Pipeline) Validate() error {
	candRoot, err := p.Candidate.Root()
	if err != nil {
		return mgmterror.NewOperationFailedError(err.Error())
	}
	if errs := validate.Tree(candRoot, p.SchemaRoot, p.Validators); errs.HasErrors() {
		return errs
	}
	return nil
}
