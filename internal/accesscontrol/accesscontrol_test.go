// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package accesscontrol

import (
	"testing"

	"github.com/opennetd/configd/internal/merge"
)

func TestGroupBlanketPermit(t *testing.T) {
	g := NewGroup([]string{"admin", "oper"})
	if !g.BlanketPermit("admin") {
		t.Fatalf("expected admin to have a blanket permit")
	}
	if g.BlanketPermit("guest") {
		t.Fatalf("expected guest to be refused a blanket permit")
	}
}

func TestPathPrefixNeverBlanketPermits(t *testing.T) {
	p := NewPathPrefix(map[string][]string{"oper": {"interfaces"}})
	if p.BlanketPermit("oper") {
		t.Fatalf("PathPrefix must never grant a blanket permit")
	}
	if !p.Check("oper", []string{"interfaces", "eth0", "mtu"}, merge.ActionUpdate) {
		t.Fatalf("expected oper to be permitted under interfaces")
	}
	if p.Check("oper", []string{"system", "hostname"}, merge.ActionUpdate) {
		t.Fatalf("expected oper to be refused outside interfaces")
	}
	if p.Check("guest", []string{"interfaces"}, merge.ActionUpdate) {
		t.Fatalf("expected an unlisted principal to be refused")
	}
}
