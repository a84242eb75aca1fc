// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package thread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// SetName names the calling OS thread
func SetName(name string) error {
	buf, err := unix.BytePtrFromString(truncate(name))
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(buf)), 0, 0, 0)
}

// Name returns the name of the calling OS thread
func Name() (string, error) {
	var buf [maxNameLen + 1]byte
	if err := unix.Prctl(unix.PR_GET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(buf[:]), nil
}

// ID returns the kernel id of the calling OS thread
func ID() int {
	return unix.Gettid()
}
