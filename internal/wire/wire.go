// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package wire is the session transport framing (spec §6 "Framed
// request"): a length-prefixed record carrying a 16-bit big-endian
// op_type and a kind-specific body (null-terminated strings, 32-bit
// length-prefixed blobs), plus the three reserved reply kinds OK,
// ERR(kind, suberrno, reason) and REPLY(bytes).
//
// The teacher's own session transport (server/conn.go) is JSON-RPC
// over net/rpc's reflect-based dispatch — convenient for a Unix
// socket CLI, but spec §6 calls for a binary framed protocol instead,
// so this package is authored directly from that contract. The
// net.Listener/per-connection-goroutine server shape that carries
// these frames (server/) is still the teacher's.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/opennetd/configd/internal/mgmterror"
)

// Kind is the 16-bit op_type selecting a request or reply kind.
type Kind uint16

const (
	KindCommit Kind = iota + 1
	KindValidate
	KindEdit
	KindSave
	KindSnapshot
	KindLoad
	KindCopy
	KindLock
	KindUnlock
	KindKill
	KindSubscribe
	KindDebug
	KindCall
)

// Reserved reply kinds.
const (
	KindOK Kind = 0xFF00 + iota
	KindErr
	KindReply
)

var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// MaxFrameSize bounds a single frame's body, guarding a malformed or
// hostile peer from forcing an unbounded allocation.
const MaxFrameSize = 64 << 20

// WriteFrame writes one length-prefixed record: a 32-bit big-endian
// total length (of everything that follows), the 16-bit op_type, then
// body verbatim.
func WriteFrame(w io.Writer, kind Kind, body []byte) error {
	total := uint32(2 + len(body))
	header := make([]byte, 6)
	binary.BigEndian.PutUint32(header[0:4], total)
	binary.BigEndian.PutUint16(header[4:6], uint16(kind))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) (Kind, []byte, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return 0, nil, err
	}
	total := binary.BigEndian.Uint32(lenbuf[:])
	if total < 2 {
		return 0, nil, mgmterror.NewMalformedMessageError("frame shorter than op_type")
	}
	if total > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}
	rest := make([]byte, total)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, nil, err
	}
	kind := Kind(binary.BigEndian.Uint16(rest[0:2]))
	return kind, rest[2:], nil
}

// Writer builds a frame body out of the null-terminated strings and
// length-prefixed blobs spec §6 describes.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) WriteString(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

func (w *Writer) WriteBlob(data []byte) {
	var lenbuf [4]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(data)))
	w.buf.Write(lenbuf[:])
	w.buf.Write(data)
}

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Reader reads a frame body back out in the same shape Writer wrote
// it in.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader { return &Reader{data: data} }

func (r *Reader) ReadString() (string, error) {
	idx := bytes.IndexByte(r.data[r.pos:], 0)
	if idx < 0 {
		return "", mgmterror.NewMalformedMessageError("unterminated string in frame body")
	}
	s := string(r.data[r.pos : r.pos+idx])
	r.pos += idx + 1
	return s, nil
}

func (r *Reader) ReadBlob() ([]byte, error) {
	if len(r.data)-r.pos < 4 {
		return nil, mgmterror.NewMalformedMessageError("truncated blob length in frame body")
	}
	n := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	if uint32(len(r.data)-r.pos) < n {
		return nil, mgmterror.NewMalformedMessageError("truncated blob in frame body")
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if len(r.data)-r.pos < 2 {
		return 0, mgmterror.NewMalformedMessageError("truncated uint16 in frame body")
	}
	v := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *Reader) Remaining() []byte { return r.data[r.pos:] }

// EncodeOK, EncodeErr and EncodeReply build the three reserved reply
// frames' bodies.
func EncodeOK() (Kind, []byte) { return KindOK, nil }

func EncodeErr(e *mgmterror.Error) (Kind, []byte) {
	w := NewWriter()
	w.WriteString(string(e.Kind))
	w.WriteUint16(uint16(e.Severity))
	w.WriteString(e.Message)
	return KindErr, w.Bytes()
}

func EncodeReply(payload []byte) (Kind, []byte) {
	w := NewWriter()
	w.WriteBlob(payload)
	return KindReply, w.Bytes()
}

// DecodeErr is the receiving side of EncodeErr.
func DecodeErr(body []byte) (*mgmterror.Error, error) {
	r := NewReader(body)
	kind, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	sev, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	msg, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return &mgmterror.Error{
		Kind:     mgmterror.Kind(kind),
		Severity: mgmterror.Severity(sev),
		Message:  msg,
	}, nil
}

// DecodeReply is the receiving side of EncodeReply.
func DecodeReply(body []byte) ([]byte, error) {
	r := NewReader(body)
	return r.ReadBlob()
}
