// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

package session

import "github.com/opennetd/configd/internal/mgmterror"

func nilSessionMgrError() error {
	return mgmterror.NewOperationFailedError("cannot get a session on a nil manager")
}

func unknownSessionError(sid string) error {
	return mgmterror.NewOperationFailedError("session " + sid + " does not exist")
}
