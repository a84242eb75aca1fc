// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"slices"
	"sync"

	"github.com/mstarongithub/mirgo/graphics"
)

// A Schedule hands buffers from a producer thread to a consumer thread
type Schedule interface {
	Schedule(buffer graphics.Buffer)
	AnythingScheduled() bool
	// NextBuffer never blocks. It fails with ErrNoBufferScheduled if the schedule is empty
	NextBuffer() (graphics.Buffer, error)
}

// QueueingSchedule is a FIFO of buffers where each buffer is queued at most once.
// Scheduling an already queued buffer moves it to the back
type QueueingSchedule struct {
	lock  sync.Mutex
	queue []graphics.Buffer
}

func NewQueueingSchedule() *QueueingSchedule {
	return &QueueingSchedule{}
}

func (s *QueueingSchedule) Schedule(buffer graphics.Buffer) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if i := slices.Index(s.queue, buffer); i >= 0 {
		s.queue = slices.Delete(s.queue, i, i+1)
	}
	s.queue = append(s.queue, buffer)
}

func (s *QueueingSchedule) AnythingScheduled() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.queue) != 0
}

func (s *QueueingSchedule) NextBuffer() (graphics.Buffer, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.queue) == 0 {
		return nil, ErrNoBufferScheduled
	}
	buffer := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return buffer, nil
}

// Len returns the number of queued buffers
func (s *QueueingSchedule) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.queue)
}

// Drain empties the schedule, returning what was queued front to back
func (s *QueueingSchedule) Drain() []graphics.Buffer {
	s.lock.Lock()
	defer s.lock.Unlock()
	queue := s.queue
	s.queue = nil
	return queue
}
