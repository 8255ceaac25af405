// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "confd.conf")
	body := "datastore-format = json\n" +
		"pretty-print = true\n" +
		"access-control-mode = external\n" +
		"stream-retention-seconds = 120\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	opts, err := LoadFile(path, Defaults())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if opts.DatastoreFormat != "json" {
		t.Fatalf("expected datastore-format json, got %q", opts.DatastoreFormat)
	}
	if !opts.PrettyPrint {
		t.Fatalf("expected pretty-print true")
	}
	if opts.AccessControlMode != AccessControlExternal {
		t.Fatalf("expected access-control-mode external, got %q", opts.AccessControlMode)
	}
	if opts.StreamRetentionSeconds != 120 {
		t.Fatalf("expected stream-retention-seconds 120, got %d", opts.StreamRetentionSeconds)
	}
	// Options the file doesn't mention keep their default.
	if opts.ArchiveDir != Defaults().ArchiveDir {
		t.Fatalf("expected archive-dir left at default, got %q", opts.ArchiveDir)
	}
}

func TestLoadFileMissingIsError(t *testing.T) {
	if _, err := LoadFile("/nonexistent/confd.conf", Defaults()); err == nil {
		t.Fatalf("expected an error loading a nonexistent file")
	}
}

func TestBindViperDefaultsAndEnvOverride(t *testing.T) {
	v := viper.New()
	BindViper(v, Defaults())

	opts := FromViper(v)
	if opts.DatastoreFormat != "xml" || opts.StreamRetentionSeconds != 3600 {
		t.Fatalf("expected built-in defaults, got %+v", opts)
	}

	t.Setenv("CONFD_PUBLISH_ENABLED", "true")
	opts = FromViper(v)
	if !opts.PublishEnabled {
		t.Fatalf("expected CONFD_PUBLISH_ENABLED=true to override publish-enabled")
	}
}
