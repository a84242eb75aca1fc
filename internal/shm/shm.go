// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package shm provides helpers for dealing with shared memory.
package shm

import (
	"fmt"
	"os"
)

// A Segment is a file backed piece of memory, mapped read/write
type Segment struct {
	file *os.File
	mmap Mmap
}

// NewSegment creates and maps an anonymous file of size bytes
func NewSegment(name string, size int) (seg *Segment, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid segment size %d", size)
	}
	file, err := Create(name)
	if err != nil {
		return nil, fmt.Errorf("create SHM file: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	if err = file.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate SHM file: %w", err)
	}
	mmap, err := Map(file, size)
	if err != nil {
		return nil, fmt.Errorf("mmap SHM file: %w", err)
	}
	return &Segment{file: file, mmap: mmap}, nil
}

func (s *Segment) Bytes() []byte {
	return s.mmap
}

// File is what would get handed to a client wanting to share the memory
func (s *Segment) File() *os.File {
	return s.file
}

func (s *Segment) Close() error {
	if s.mmap == nil {
		return nil
	}
	err := s.mmap.Unmap()
	s.mmap = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
