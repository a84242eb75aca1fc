// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package headless

import (
	"errors"
	"runtime"
	"sync"

	"github.com/mstarongithub/mirgo/internal/thread"
)

var (
	ErrContextCurrent   = errors.New("context is current on another thread")
	ErrContextDestroyed = errors.New("context is destroyed")
)

// Context stands in for a GL context. Like one it can only be current
// on a single thread, and it pins the calling goroutine to its thread
// while current
type Context struct {
	lock      sync.Mutex
	current   bool
	owner     int
	depth     int
	destroyed bool
}

func (c *Context) MakeCurrent() error {
	runtime.LockOSThread()

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.destroyed {
		runtime.UnlockOSThread()
		return ErrContextDestroyed
	}
	tid := thread.ID()
	if c.current && c.owner != tid {
		runtime.UnlockOSThread()
		return ErrContextCurrent
	}
	c.current = true
	c.owner = tid
	c.depth++
	return nil
}

func (c *Context) ReleaseCurrent() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.current || c.owner != thread.ID() {
		return
	}
	c.depth--
	if c.depth == 0 {
		c.current = false
		c.owner = 0
	}
	runtime.UnlockOSThread()
}

// Current reports whether the context is current on the calling thread
func (c *Context) Current() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.current && c.owner == thread.ID()
}

// Destroy makes any later MakeCurrent fail
func (c *Context) Destroy() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.destroyed = true
}
