// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package common

// Well-known extension capability names. internal/ext.Extension has no
// capability field, and nothing in this module reads these constants.
const (
	DatastoreCacheFeature  = "datastore-cache"
	ModuleStateFeature     = "module-state"
	StreamPublishFeature   = "stream-publish"
	AccessControlFeature   = "access-control"
)
