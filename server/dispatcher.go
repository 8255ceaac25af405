// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package server

import (
	"bytes"
	"time"

	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/wire"
	"github.com/opennetd/configd/rpc"
	"github.com/opennetd/configd/session"
)

// dispatcher decodes one frame body per spec §4.G's table and
// performs the call against the connection's session, turning its
// result into one of the three reserved reply kinds.
type dispatcher struct {
	conn *srvConn
	sess *session.Session
}

func dbFromByte(b byte) rpc.DB {
	switch rpc.DB(b) {
	case rpc.RUNNING:
		return rpc.RUNNING
	case rpc.CANDIDATE:
		return rpc.CANDIDATE
	case rpc.STARTUP:
		return rpc.STARTUP
	default:
		return rpc.AUTO
	}
}

func (d *dispatcher) dispatch(kind wire.Kind, body []byte) (wire.Kind, []byte) {
	switch kind {
	case wire.KindCommit:
		return d.doCommit()
	case wire.KindValidate:
		return d.doValidate()
	case wire.KindEdit:
		return d.doEdit(body)
	case wire.KindSave:
		return d.doSave(body)
	case wire.KindSnapshot:
		return d.doSnapshot(body)
	case wire.KindLoad:
		return d.doLoad(body)
	case wire.KindCopy:
		return d.doCopy(body)
	case wire.KindLock:
		return d.doLock(body)
	case wire.KindUnlock:
		return d.doUnlock(body)
	case wire.KindKill:
		return d.doKill(body)
	case wire.KindSubscribe:
		return d.doSubscribe(body)
	case wire.KindDebug:
		return d.doDebug(body)
	case wire.KindCall:
		return d.doCall(body)
	default:
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("unknown op_type"))
	}
}

func (d *dispatcher) doCommit() (wire.Kind, []byte) {
	diffResult, err := d.sess.Commit()
	if err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeReply([]byte(diffResult.Pretty()))
}

func (d *dispatcher) doValidate() (wire.Kind, []byte) {
	if err := d.sess.Validate(); err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doEdit(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	dbByte, err := r.ReadString()
	if err != nil || len(dbByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("edit: missing db"))
	}
	opStr, err := r.ReadString()
	if err != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("edit: missing op"))
	}
	treeBytes, err := r.ReadBlob()
	if err != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("edit: missing tree"))
	}
	op, ok := parseOp(opStr)
	if !ok {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("edit: unknown op " + opStr))
	}
	mod, derr := datastore.DecodeTreeXML(bytes.NewReader(treeBytes), d.conn.srv.schemaRoot)
	if derr != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("edit: " + derr.Error()))
	}
	if err := d.sess.Edit(dbFromByte(dbByte[0]), op, mod); err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeOK()
}

func parseOp(s string) (data.Op, bool) {
	switch s {
	case "merge":
		return data.OpMerge, true
	case "replace":
		return data.OpReplace, true
	case "create":
		return data.OpCreate, true
	case "delete":
		return data.OpDelete, true
	case "remove":
		return data.OpRemove, true
	}
	return 0, false
}

func (d *dispatcher) doSave(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	dbByte, err := r.ReadString()
	path, perr := r.ReadString()
	if err != nil || perr != nil || len(dbByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("save: malformed args"))
	}
	if err := d.sess.Save(dbFromByte(dbByte[0]), path); err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doSnapshot(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	dbByte, err := r.ReadString()
	dir, derr := r.ReadString()
	n, nerr := r.ReadUint16()
	if err != nil || derr != nil || nerr != nil || len(dbByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("snapshot: malformed args"))
	}
	if err := d.sess.Snapshot(dbFromByte(dbByte[0]), dir, int(n)); err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doLoad(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	dbByte, err := r.ReadString()
	path, perr := r.ReadString()
	replaceStr, rerr := r.ReadString()
	if err != nil || perr != nil || rerr != nil || len(dbByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("load: malformed args"))
	}
	if err := d.sess.Load(dbFromByte(dbByte[0]), path, replaceStr == "1"); err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doCopy(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	srcByte, err := r.ReadString()
	dstByte, derr := r.ReadString()
	if err != nil || derr != nil || len(srcByte) != 1 || len(dstByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("copy: malformed args"))
	}
	if err := d.sess.Copy(dbFromByte(srcByte[0]), dbFromByte(dstByte[0])); err != nil {
		return wire.EncodeErr(asMgmtError(err))
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doLock(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	dbByte, err := r.ReadString()
	if err != nil || len(dbByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("lock: malformed args"))
	}
	if merr := d.sess.Lock(dbFromByte(dbByte[0])); merr != nil {
		return wire.EncodeErr(merr)
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doUnlock(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	dbByte, err := r.ReadString()
	if err != nil || len(dbByte) != 1 {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("unlock: malformed args"))
	}
	d.sess.Unlock(dbFromByte(dbByte[0]))
	return wire.EncodeOK()
}

func (d *dispatcher) doKill(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	sid, err := r.ReadString()
	if err != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("kill: missing session id"))
	}
	if err := d.conn.srv.mgr.Kill(sid); err != nil {
		return wire.EncodeErr(mgmterror.NewOperationFailedError(err.Error()))
	}
	return wire.EncodeOK()
}

func (d *dispatcher) doSubscribe(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	stream, err := r.ReadString()
	filter, ferr := r.ReadString()
	startStr, serr := r.ReadString()
	stopStr, eerr := r.ReadString()
	if err != nil || ferr != nil || serr != nil || eerr != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("subscribe: malformed args"))
	}
	start := parseRFC3339(startStr)
	stop := parseRFC3339(stopStr)

	sub, suberr := d.sess.Subscribe(stream, filter, start, stop, func(env notify.Envelope) {
		w := wire.NewWriter()
		w.WriteBlob([]byte(env.XML()))
		d.conn.writeFrame(wire.KindReply, w.Bytes())
	})
	if suberr != nil {
		return wire.EncodeErr(asMgmtError(suberr))
	}
	w := wire.NewWriter()
	w.WriteString(sub.ID)
	return wire.KindReply, w.Bytes()
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d *dispatcher) doDebug(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	logName, err := r.ReadString()
	level, lerr := r.ReadString()
	if err != nil || lerr != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("debug: malformed args"))
	}
	status, derr := d.sess.SetDebug(logName, level)
	if derr != nil {
		return wire.EncodeErr(asMgmtError(derr))
	}
	w := wire.NewWriter()
	w.WriteString(status)
	return wire.KindReply, w.Bytes()
}

func (d *dispatcher) doCall(body []byte) (wire.Kind, []byte) {
	r := wire.NewReader(body)
	name, err := r.ReadString()
	if err != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("call: missing extension name"))
	}
	args, aerr := r.ReadBlob()
	if aerr != nil {
		return wire.EncodeErr(mgmterror.NewMalformedMessageError("call: missing args"))
	}
	out, merr := d.sess.Call(name, args)
	if merr != nil {
		return wire.EncodeErr(merr)
	}
	return wire.EncodeReply(out)
}

func asMgmtError(err error) *mgmterror.Error {
	if me, ok := err.(*mgmterror.Error); ok {
		return me
	}
	return mgmterror.NewOperationFailedError(err.Error())
}
