// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package thread

import "errors"

var errUnsupported = errors.New("thread names are not supported on this platform")

func SetName(name string) error {
	return errUnsupported
}

func Name() (string, error) {
	return "", errUnsupported
}

// ID always returns 0 outside of linux
func ID() int {
	return 0
}
