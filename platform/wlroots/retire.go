// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wlroots

import (
	"sync"

	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
)

// retirement holds buffers of destroyed outputs. A compositor thread may
// still be drawing into them until it got joined
type retirement struct {
	lock    sync.Mutex
	buffers []graphics.Releaser
}

func (r *retirement) retire(buffer graphics.Releaser) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.buffers = append(r.buffers, buffer)
}

// releaseAll must only be called while no compositor thread runs.
// It returns how many buffers got released
func (r *retirement) releaseAll() int {
	r.lock.Lock()
	buffers := r.buffers
	r.buffers = nil
	r.lock.Unlock()

	for _, b := range buffers {
		if err := b.Release(); err != nil {
			logrus.WithError(err).Warnln("Failed to release retired buffer")
		}
	}
	return len(buffers)
}
