// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package shm

import (
	"os"
)

// Create falls back to a temporary file that is unlinked right away
func Create(name string) (*os.File, error) {
	file, err := os.CreateTemp("", name+"-*")
	if err != nil {
		return nil, err
	}
	return file, os.Remove(file.Name())
}

// Mmap is plain heap memory here, nothing else sees it
type Mmap []byte

func Map(file *os.File, size int) (Mmap, error) {
	return make(Mmap, size), nil
}

func (mmap Mmap) Unmap() error {
	return nil
}
