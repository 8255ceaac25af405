// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only
package common

import (
	"fmt"
	"strings"
)

type LogLevel int

const (
	// The `debug` RPC can set three levels: None, Error (Elog) and
	// Debug (Dlog).
	//
	// Order runs least verbose (none) to most verbose (debug) so
	// LoggingIsEnabledAtLevel can check what's enabled by a plain
	// numeric comparison.
	LevelNone LogLevel = iota
	LevelError
	LevelDebug
	LevelLast // keep at end, for sizing slices
)

func MapLevelNameToLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "error":
		return LevelError, nil
	case "none":
		return LevelNone, nil
	}
	return LevelNone, fmt.Errorf(
		"LogLevel '%s' not recognised. Use <none|error|debug>.", level)
}

func MapLogLevelToName(level LogLevel) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelError:
		return "error"
	case LevelNone:
		return "none"
	default:
		return "none"
	}
}

// LogType names the parts of the engine the `debug` RPC can raise
// independently: the commit pipeline (internal/commit) and the
// notification engine (internal/notify).
type LogType int

const (
	// Any changes need to be reflected in cfgDebugSettings.
	TypeNone LogType = iota
	TypeCommit
	TypeNotify
	TypeLast // keep at end, for sizing slices
)

var cfgDebugSettings = []LogLevel{
	LevelNone,  // TypeNone
	LevelError, // TypeCommit
	LevelNone,  // TypeNotify
}

func MapLogNameToType(name string) (LogType, error) {
	switch strings.ToLower(name) {
	case "commit":
		return TypeCommit, nil
	case "notify":
		return TypeNotify, nil
	}
	return TypeNone, fmt.Errorf(
		"LogType '%s' not recognised. Use <commit|notify>.", name)
}

func MapLogTypeToName(logType LogType) string {
	switch logType {
	case TypeCommit:
		return "commit"
	case TypeNotify:
		return "notify"
	default:
		return "none"
	}
}

func LoggingIsEnabledAtLevel(level LogLevel, logType LogType) bool {
	if logType >= TypeLast || level >= LevelLast {
		return false
	}
	return cfgDebugSettings[logType] >= level
}

func CurrentLogStatus() string {
	var retStr = "\nCurrent Debug Status:\n\n"
	for logType, level := range cfgDebugSettings {
		if LogType(logType) == TypeNone {
			continue
		}
		retStr += fmt.Sprintf("%-8s\t%s\n",
			MapLogTypeToName(LogType(logType)),
			MapLogLevelToName(level))
	}
	retStr += "\nValid levels: none, error, debug\n"

	return retStr
}

// SetConfigDebug is the `debug` RPC's handler (session/session_internal.go's
// setConfigDebug): it sets logType's level and always returns the full
// status block, even on error, so a caller never has to issue a second
// round trip just to see what's valid.
func SetConfigDebug(logName, level string) (string, error) {
	if logName == "" && level == "" {
		return CurrentLogStatus(), nil
	}

	logType, typeErr := MapLogNameToType(logName)
	if typeErr != nil {
		return CurrentLogStatus(),
			fmt.Errorf("%s\n%s", typeErr, CurrentLogStatus())
	}
	logLevel, levelErr := MapLevelNameToLevel(level)
	if levelErr != nil {
		return CurrentLogStatus(),
			fmt.Errorf("%s\n%s", levelErr, CurrentLogStatus())
	}

	cfgDebugSettings[logType] = logLevel
	return CurrentLogStatus(), nil
}
