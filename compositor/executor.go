// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"runtime"
	"sync"
)

// Executor runs long lived tasks, one per display sync group
type Executor interface {
	Spawn(task func())
}

// ThreadExecutor runs every task on its own locked OS thread.
// The thread is thrown away once the task returns
type ThreadExecutor struct {
	running sync.WaitGroup
}

func NewThreadExecutor() *ThreadExecutor {
	return &ThreadExecutor{}
}

func (e *ThreadExecutor) Spawn(task func()) {
	e.running.Add(1)
	go func() {
		defer e.running.Done()
		// Never unlocked, so the named thread dies with the task
		runtime.LockOSThread()
		task()
	}()
}

// Wait blocks until every spawned task returned
func (e *ThreadExecutor) Wait() {
	e.running.Wait()
}
