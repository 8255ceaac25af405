// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package mgmterror is the engine's structured error channel: every
// call path that can fail across a component boundary returns one of
// these instead of a bare error, carrying kind, severity, path and
// reason text. The §6 ERR record carries kind, severity and reason
// text (not path); a CLI can render all of it.
package mgmterror

import (
	"bytes"
	"fmt"
)

// Kind is the wire-visible error kind from spec §7.
type Kind string

const (
	KindMalformed             Kind = "malformed"
	KindUnknownElement        Kind = "unknown-element"
	KindUnknownNamespace      Kind = "unknown-namespace"
	KindDataExists            Kind = "data-exists"
	KindDataMissing           Kind = "data-missing"
	KindAccessDenied          Kind = "access-denied"
	KindInUse                 Kind = "in-use"
	KindOperationNotSupported Kind = "operation-not-supported"
	KindOperationFailed       Kind = "operation-failed"
	KindInvalidValue          Kind = "invalid-value"
	KindInternal              Kind = "internal"
)

// Severity mirrors NETCONF's error-severity, kept mainly so validation
// warnings and hard failures share one type.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Error is the engine-wide structured error. The merge, validate and
// commit paths fail with *Error (or a List of them); lower-level
// helpers such as datastore file I/O, schema loading and the notify
// engine return plain errors, which callers wrap where needed.
type Error struct {
	Kind     Kind
	Severity Severity
	Path     string
	Message  string
	Info     map[string]string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
}

func new(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func NewUnknownElementError(name string) *Error {
	return new(KindUnknownElement, fmt.Sprintf("%q is not valid", name))
}

func NewUnknownNamespaceError(name, ns string) *Error {
	return new(KindUnknownNamespace,
		fmt.Sprintf("%q: unexpected namespace %q", name, ns))
}

func NewDataExistsError(path string) *Error {
	e := new(KindDataExists, "data already exists")
	e.Path = path
	return e
}

func NewDataMissingError(path string) *Error {
	e := new(KindDataMissing, "data does not exist")
	e.Path = path
	return e
}

func NewAccessDeniedError(path string) *Error {
	e := new(KindAccessDenied, "access denied")
	e.Path = path
	return e
}

func NewInUseError(holder string) *Error {
	return new(KindInUse, "resource is locked by session "+holder)
}

func NewOperationNotSupportedError(op string) *Error {
	return new(KindOperationNotSupported, "operation not supported: "+op)
}

func NewOperationFailedError(reason string) *Error {
	return new(KindOperationFailed, reason)
}

func NewInvalidValueError(reason string) *Error {
	return new(KindInvalidValue, reason)
}

func NewMalformedMessageError(reason string) *Error {
	return new(KindMalformed, reason)
}

func NewInternalError(reason string) *Error {
	return new(KindInternal, reason)
}

// List is an ordered collection of *Error, used where validation or a
// continue-on-error edit can surface more than one failure at once.
type List []*Error

func (l List) Error() string {
	var b bytes.Buffer
	for _, e := range l {
		b.WriteString(e.Error())
		b.WriteByte('\n')
	}
	return b.String()
}

func (l List) HasErrors() bool {
	for _, e := range l {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// AsList normalizes a plain error into a List, so callers that
// accumulate failures (validation, continue-on-error edits) can always
// append to the same type regardless of where the error originated.
func AsList(err error) List {
	if err == nil {
		return nil
	}
	if l, ok := err.(List); ok {
		return l
	}
	if e, ok := err.(*Error); ok {
		return List{e}
	}
	return List{NewOperationFailedError(err.Error())}
}
