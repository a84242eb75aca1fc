// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"fmt"
	"image/draw"
	"sync"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
)

// screencastDisplayBuffer is the off-screen sink of a session.
// It shows region, scaled into whatever buffer is bound
type screencastDisplayBuffer struct {
	region geometry.Rectangle
	mirror graphics.MirrorMode
	free   Schedule
	ready  Schedule

	// Only touched with the session lock held
	current graphics.Buffer
}

func (b *screencastDisplayBuffer) ViewArea() geometry.Rectangle {
	return b.region
}

func (b *screencastDisplayBuffer) MirrorMode() graphics.MirrorMode {
	return b.mirror
}

func (b *screencastDisplayBuffer) Target() draw.Image {
	if img, ok := b.current.(graphics.ImageBuffer); ok {
		return img.Image()
	}
	return nil
}

// bind takes the oldest free buffer as the render target
func (b *screencastDisplayBuffer) bind() error {
	if b.current != nil {
		return nil
	}
	buffer, err := b.free.NextBuffer()
	if err != nil {
		return fmt.Errorf("no free screencast buffer: %w", err)
	}
	b.current = buffer
	return nil
}

// unbind gives the bound buffer back to the free schedule unrendered
func (b *screencastDisplayBuffer) unbind() {
	if b.current == nil {
		return
	}
	b.free.Schedule(b.current)
	b.current = nil
}

// swapBuffers hands the rendered buffer over to the ready schedule
func (b *screencastDisplayBuffer) swapBuffers() {
	if b.current == nil {
		return
	}
	b.ready.Schedule(b.current)
	b.current = nil
}

type screencastSession struct {
	lock sync.Mutex

	id            ID
	scene         Scene
	glContext     graphics.GLContext
	virtualOutput graphics.VirtualOutput
	displayBuffer *screencastDisplayBuffer
	compositor    DisplayBufferCompositor
	free          *QueueingSchedule
	ready         *QueueingSchedule
	lastCaptured  graphics.Buffer
}

func (s *screencastSession) capture() (graphics.Buffer, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.glContext.MakeCurrent(); err != nil {
		return nil, fmt.Errorf("failed to make screencast context current: %w", err)
	}
	defer s.glContext.ReleaseCurrent()

	if s.lastCaptured != nil {
		s.free.Schedule(s.lastCaptured)
		s.lastCaptured = nil
	}

	if err := s.displayBuffer.bind(); err != nil {
		return nil, err
	}
	if !s.compositor.Composite(s.scene.SceneElementsFor(s.id)) {
		s.displayBuffer.unbind()
		return nil, ErrNothingRendered
	}
	s.displayBuffer.swapBuffers()

	buffer, err := s.ready.NextBuffer()
	if err != nil {
		return nil, err
	}
	s.lastCaptured = buffer
	return buffer, nil
}

// captureTo renders into buffer, leaving the session's own buffers alone
func (s *screencastSession) captureTo(buffer graphics.Buffer) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.glContext.MakeCurrent(); err != nil {
		return fmt.Errorf("failed to make screencast context current: %w", err)
	}
	defer s.glContext.ReleaseCurrent()

	s.displayBuffer.current = buffer
	defer func() { s.displayBuffer.current = nil }()
	if !s.compositor.Composite(s.scene.SceneElementsFor(s.id)) {
		return ErrNothingRendered
	}
	return nil
}

// destroy frees everything the session owns. Buffers handed out by
// capture are released too
func (s *screencastSession) destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()

	// Whatever the context failed at, the scene and the output still need cleaning
	current := s.glContext.MakeCurrent() == nil
	s.scene.UnregisterCompositor(s.id)

	buffers := append(s.free.Drain(), s.ready.Drain()...)
	if s.lastCaptured != nil {
		buffers = append(buffers, s.lastCaptured)
		s.lastCaptured = nil
	}
	releaseBuffers(buffers)

	if current {
		s.glContext.ReleaseCurrent()
	}
	s.glContext.Destroy()
	if s.virtualOutput != nil {
		s.virtualOutput.Disable()
	}
}

func releaseBuffers(buffers []graphics.Buffer) {
	for _, buffer := range buffers {
		r, ok := buffer.(graphics.Releaser)
		if !ok {
			continue
		}
		if err := r.Release(); err != nil {
			logrus.WithError(err).WithField("buffer", buffer.ID()).Warnln("Failed to release screencast buffer")
		}
	}
}
