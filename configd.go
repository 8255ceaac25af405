// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package configd is the engine's ambient process context: the
// per-client Context carried through every session operation, the
// daemon's own Config (paths, sockets, group names) and the syslog
// logger constructor every other package's Dlog/Elog/Wlog fields are
// built from.
package configd

import (
	"log"
	"log/syslog"
	"os"
	"path/filepath"

	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/merge"
)

// LockId identifies the holder of a datastore lock taken on a
// session's behalf rather than by an explicit client request.
type LockId int32

const (
	COMMIT LockId = -1
	SYSTEM LockId = -2
)

func (l LockId) String() string {
	switch l {
	case COMMIT:
		return "commit"
	case SYSTEM:
		return "system"
	}
	return "unknown"
}

// Context is the per-request ambient state every session operation
// carries: who is asking, what they're allowed to do, and where to
// log it.
type Context struct {
	Configd   bool
	Auth      merge.AccessControl
	Pid       int32
	Uid       uint32
	User      string
	UserHome  string
	Groups    []string
	Superuser bool
	Config    *Config
	Ext       *ext.Registry
	Dlog      *log.Logger
	Elog      *log.Logger
	Wlog      *log.Logger
	Noexec    bool
}

// RaisePrivileges should be used sparingly: it bypasses access control
// and secret redaction, but is occasionally necessary for system-
// initiated operations (commit's own internal re-merge, for example).
func (c *Context) RaisePrivileges() {
	c.Configd = true
}

func (c *Context) DropPrivileges() {
	c.Configd = false
}

// Principal is the identity merge.AccessControl gates are checked
// against: the configd-raised path is exempt, everyone else is their
// own username.
func (c *Context) Principal() string {
	if c.Configd {
		return ""
	}
	return c.User
}

// Config is the daemon's own startup layout: where its runtime files
// live and which groups get elevated treatment. Distinct from
// internal/config.Options, which holds the engine's named behavioral
// knobs (§6) rather than paths.
type Config struct {
	User         string
	Runfile      string
	Logfile      string
	Pidfile      string
	Yangdir      string
	Socket       string
	SecretsGroup string
	SuperGroup   string
	Capabilities string
}

// NewLogger is syslog.NewLogger with the base program name as the
// logging tag, so Dlog/Elog/Wlog entries are attributable without
// every caller repeating os.Args[0].
func NewLogger(p syslog.Priority, logFlag int) (*log.Logger, error) {
	tag := filepath.Base(os.Args[0])
	s, err := syslog.New(p, tag)
	if err != nil {
		return nil, err
	}
	return log.New(s, "", logFlag), nil
}

func InSecretsGroup(ctx *Context) bool {
	if ctx.Configd {
		return true
	}
	for _, g := range ctx.Groups {
		if g == ctx.Config.SecretsGroup {
			return true
		}
	}
	return false
}
