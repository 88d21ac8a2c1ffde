// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build !linux

package dispatcher

import (
	"errors"
	"net"
)

// peerCredentials has no portable implementation outside Linux's
// SO_PEERCRED; every connection is treated as a protocol error rather
// than silently trusting or rejecting on authorization grounds
// (spec §9).
func peerCredentials(conn *net.UnixConn) (uid, gid uint32, err error) {
	return 0, 0, errors.New("dispatcher: peer credentials unavailable on this platform")
}
