// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// Package config is the ambient configuration layer (spec §6
// "Configuration options"): an ini file read with go-ini/ini, layered
// under CONFD_-prefixed environment overrides read through
// spf13/viper, as cmd/confd does.
//
// configd.Config (configd.go) is the teacher's own flat struct of
// startup paths (Runfile, Logfile, Socket, ...); Options here is its
// sibling for the engine-specific knobs spec §6 names, kept as a
// separate type so the ambient daemon paths and the domain options
// don't get tangled into one struct that means two different things.
package config

import (
	"fmt"
	"strings"

	"github.com/go-ini/ini"
	"github.com/spf13/viper"
)

// AccessControlMode selects the access-control policy a Store's merge
// calls are gated by.
type AccessControlMode string

const (
	AccessControlNone     AccessControlMode = "none"
	AccessControlInternal AccessControlMode = "internal"
	AccessControlExternal AccessControlMode = "external"
)

// Options is every startup option spec §6 recognizes.
type Options struct {
	CacheDatastores        bool
	DatastoreFormat        string // "xml" or "json"
	PrettyPrint            bool
	ArchiveDir             string
	AccessControlMode      AccessControlMode
	StreamURLPrefix        string
	StreamRetentionSeconds int
	PublishEnabled         bool
}

// Defaults returns the engine's built-in defaults, applied before any
// file, flag or environment override is read.
func Defaults() Options {
	return Options{
		CacheDatastores:        true,
		DatastoreFormat:        "xml",
		PrettyPrint:            false,
		ArchiveDir:             "/var/lib/confd/archive",
		AccessControlMode:      AccessControlNone,
		StreamURLPrefix:        "",
		StreamRetentionSeconds: 3600,
		PublishEnabled:         false,
	}
}

// LoadFile reads path (an ini file, teacher-style: the actual daemon
// config in _examples/danos-configd ships as ini-formatted too) and
// overlays it onto a copy of opts.
func LoadFile(path string, opts Options) (Options, error) {
	f, err := ini.Load(path)
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	sec := f.Section("")

	if k := sec.Key("cache-datastores"); k.String() != "" {
		opts.CacheDatastores, _ = k.Bool()
	}
	if k := sec.Key("datastore-format"); k.String() != "" {
		opts.DatastoreFormat = k.String()
	}
	if k := sec.Key("pretty-print"); k.String() != "" {
		opts.PrettyPrint, _ = k.Bool()
	}
	if k := sec.Key("archive-dir"); k.String() != "" {
		opts.ArchiveDir = k.String()
	}
	if k := sec.Key("access-control-mode"); k.String() != "" {
		opts.AccessControlMode = AccessControlMode(k.String())
	}
	if k := sec.Key("stream-url-prefix"); k.String() != "" {
		opts.StreamURLPrefix = k.String()
	}
	if k := sec.Key("stream-retention-seconds"); k.String() != "" {
		opts.StreamRetentionSeconds, _ = k.Int()
	}
	if k := sec.Key("publish-enabled"); k.String() != "" {
		opts.PublishEnabled, _ = k.Bool()
	}
	return opts, nil
}

// BindViper registers every option as a viper key with its default,
// so CONFD_-prefixed environment variables transparently override it.
// No command-line flags are bound to these keys.
func BindViper(v *viper.Viper, defaults Options) {
	v.SetDefault("cache-datastores", defaults.CacheDatastores)
	v.SetDefault("datastore-format", defaults.DatastoreFormat)
	v.SetDefault("pretty-print", defaults.PrettyPrint)
	v.SetDefault("archive-dir", defaults.ArchiveDir)
	v.SetDefault("access-control-mode", string(defaults.AccessControlMode))
	v.SetDefault("stream-url-prefix", defaults.StreamURLPrefix)
	v.SetDefault("stream-retention-seconds", defaults.StreamRetentionSeconds)
	v.SetDefault("publish-enabled", defaults.PublishEnabled)

	v.SetEnvPrefix("CONFD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// FromViper reads back the layered option set: the defaults passed to
// BindViper (built-ins overlaid by the file) < environment.
func FromViper(v *viper.Viper) Options {
	return Options{
		CacheDatastores:        v.GetBool("cache-datastores"),
		DatastoreFormat:        v.GetString("datastore-format"),
		PrettyPrint:            v.GetBool("pretty-print"),
		ArchiveDir:             v.GetString("archive-dir"),
		AccessControlMode:      AccessControlMode(v.GetString("access-control-mode")),
		StreamURLPrefix:        v.GetString("stream-url-prefix"),
		StreamRetentionSeconds: v.GetInt("stream-retention-seconds"),
		PublishEnabled:         v.GetBool("publish-enabled"),
	}
}
