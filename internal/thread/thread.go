// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package thread deals with the OS threads behind goroutines.
// Callers must have called runtime.LockOSThread first, otherwise the name
// ends up on whatever thread the goroutine happened to run on
package thread

// The kernel truncates thread names to 15 bytes plus terminator
const maxNameLen = 15

func truncate(name string) string {
	if len(name) > maxNameLen {
		return name[:maxNameLen]
	}
	return name
}
