// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build linux

package dispatcher

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials reads the connecting process's uid/gid off the
// kernel via SO_PEERCRED (spec §4.6/§9: "use the primitive appropriate
// to its runtime"). Absence of peer credentials is a protocol error,
// not an authorization failure, so the caller treats any error here
// as grounds for InvalidRequest.
func peerCredentials(conn *net.UnixConn) (uid, gid uint32, err error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, 0, err
	}
	var ucred *unix.Ucred
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		ucred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return 0, 0, err
	}
	if sockErr != nil {
		return 0, 0, fmt.Errorf("dispatcher: SO_PEERCRED: %w", sockErr)
	}
	return ucred.Uid, ucred.Gid, nil
}
