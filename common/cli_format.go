// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// This file formats the engine's internal/mgmterror errors into the
// multi-line shape a CLI front-end prints. Many tests rely on the
// exact content of these messages, so change them at your peril.
//
// Changes to the number of newlines should be fine, but adding /
// removing specific '<foo> failed' strings is highly likely to break
// things downstream. Path format is "slashed" throughout; don't
// switch to spaced without checking every caller.
package common

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/opennetd/configd/internal/mgmterror"
	"github.com/opennetd/configd/internal/pathutil"
)

const (
	configPath        = "Configuration path: "
	isntValid         = " is not valid"
	setFailed         = "Set failed"
	validationFailed  = "Value validation failed"
	warningsGenerated = "Warnings were generated when applying " +
		"the configuration:"
)

// errpath pretty-prints a path for the CLI: the last element goes
// inside [].
func errpath(slashPath string) string {
	path := pathutil.Makepath(slashPath)
	if len(path) == 0 {
		return "[]"
	}
	if len(path) == 1 {
		return fmt.Sprintf("%v", path)
	}
	head, tail := path[:len(path)-1], path[len(path)-1]
	return fmt.Sprintf("%s [%s]", strings.Join(head, " "), tail)
}

// FormatConfigPathError pretty-prints a single mgmterror.Error for the
// CLI (edit / validate path).
func FormatConfigPathError(err error) error {
	if err == nil {
		return nil
	}
	var b bytes.Buffer
	if me, ok := err.(*mgmterror.Error); ok {
		b.WriteString(configPath)
		b.WriteString(me.Message)
	} else {
		b.WriteString(configPath)
		b.WriteString(err.Error())
	}
	return fmt.Errorf(b.String())
}

// FormatRpcPathError pretty-prints an extension RPC error for the CLI.
func FormatRpcPathError(err error) error {
	if err == nil {
		return nil
	}
	var b bytes.Buffer
	if me, ok := err.(*mgmterror.Error); ok {
		switch me.Kind {
		case mgmterror.KindUnknownElement:
			b.WriteString(me.Message)
		default:
			if me.Path != "" {
				b.WriteString(errpath(me.Path))
				b.WriteString(isntValid)
				b.WriteString("\n\n")
			}
			b.WriteString(me.Message)
		}
	} else {
		b.WriteString(err.Error())
	}
	return fmt.Errorf(b.String())
}

// FormatCommitOrValErrors pretty-prints commit / validation errors:
// path, message, path again (CLI convention), repeated per error.
func FormatCommitOrValErrors(errs mgmterror.List) string {
	var b bytes.Buffer
	for i, me := range errs {
		pathStr := strings.Join(pathutil.Makepath(me.Path), " ")
		b.WriteString("[")
		b.WriteString(pathStr)
		b.WriteString("]\n\n")
		b.WriteString(me.Message)
		b.WriteString("\n\n[[")
		b.WriteString(pathStr)
		b.WriteString("]] failed.")
		if i != len(errs)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func FormatWarnings(warns mgmterror.List) error {
	if len(warns) == 0 {
		return nil
	}
	var b bytes.Buffer
	b.WriteString(warningsGenerated)
	b.WriteString("\n\n")
	for _, warn := range warns {
		b.WriteString(formatSetWarningMultiline(warn, withPathPrefix, noSetFailed))
		b.WriteString("\n\n")
	}
	return fmt.Errorf(b.String())
}

const (
	withPathPrefix = true
	noPathPrefix   = false
	withSetFailed  = true
	noSetFailed    = false
)

// FormatConfigPathErrorMultiline pretty-prints a single set/delete
// error in the multi-line "Set failed" shape.
func FormatConfigPathErrorMultiline(err error) error {
	me, ok := err.(*mgmterror.Error)
	if !ok {
		return fmt.Errorf(configPath + err.Error())
	}
	return fmt.Errorf(formatSetWarningMultiline(me, noPathPrefix, withSetFailed))
}

func formatSetWarningMultiline(me *mgmterror.Error, printPathPrefix, printSetFailed bool) string {
	var b bytes.Buffer

	if me.Kind == mgmterror.KindUnknownElement {
		if printPathPrefix {
			b.WriteString("[")
			b.WriteString(errpath(me.Path))
			b.WriteString("]: ")
		}
		b.WriteString(configPath)
		b.WriteString(me.Message)
		return b.String()
	}

	if printPathPrefix {
		pathStr := strings.Join(pathutil.Makepath(me.Path), " ")
		b.WriteString("[")
		b.WriteString(pathStr)
		b.WriteString("]: ")
	}

	b.WriteString(configPath)
	b.WriteString(errpath(me.Path))
	b.WriteString(isntValid)

	switch me.Kind {
	case mgmterror.KindDataExists, mgmterror.KindDataMissing:
		b.WriteString("\n\n")
		b.WriteString(me.Message)
	case mgmterror.KindInvalidValue:
		b.WriteString("\n\n")
		b.WriteString(me.Message)
		b.WriteString("\n")
		b.WriteString(validationFailed)
		if printSetFailed {
			b.WriteString("\n\n")
			b.WriteString(setFailed)
		}
	default:
		b.WriteString("\n\n")
		b.WriteString(me.Message)
		if printSetFailed {
			b.WriteString("\n\n")
			b.WriteString(setFailed)
		}
	}

	return b.String()
}
