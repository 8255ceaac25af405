// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package wire

import (
	"bytes"
	"testing"

	"github.com/opennetd/configd/internal/mgmterror"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := NewWriter()
	w.WriteString("candidate")
	w.WriteBlob([]byte("<config/>"))
	if err := WriteFrame(&buf, KindEdit, w.Bytes()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	kind, body, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindEdit {
		t.Fatalf("expected KindEdit, got %v", kind)
	}

	r := NewReader(body)
	db, err := r.ReadString()
	if err != nil || db != "candidate" {
		t.Fatalf("expected db=candidate, got %q err=%v", db, err)
	}
	blob, err := r.ReadBlob()
	if err != nil || string(blob) != "<config/>" {
		t.Fatalf("expected blob=<config/>, got %q err=%v", blob, err)
	}
}

func TestErrReplyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	orig := mgmterror.NewDataMissingError("/x/y")
	kind, body := EncodeErr(orig)
	if err := WriteFrame(&buf, kind, body); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	gotKind, gotBody, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if gotKind != KindErr {
		t.Fatalf("expected KindErr, got %v", gotKind)
	}
	decoded, err := DecodeErr(gotBody)
	if err != nil {
		t.Fatalf("DecodeErr: %v", err)
	}
	if decoded.Kind != mgmterror.KindDataMissing || decoded.Message != orig.Message {
		t.Fatalf("expected round-tripped data-missing error, got %+v", decoded)
	}
}

func TestTruncatedFrameIsMalformed(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 1}) // claims 1 byte of op_type+body, but op_type alone is 2
	if _, _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected an error for a frame shorter than op_type")
	}
}
