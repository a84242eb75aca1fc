// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"fmt"
	"slices"
	"sync"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
	"golang.org/x/exp/maps"
)

// ScreencastSessionID of 0 is never handed out
type ScreencastSessionID uint32

const MaxScreencastSessions = 100

// CompositingScreencast captures regions of the scene on demand,
// independent of what the outputs are doing
type CompositingScreencast struct {
	scene     Scene
	display   graphics.Display
	allocator graphics.GraphicBufferAllocator
	factory   DisplayBufferCompositorFactory

	lock     sync.Mutex
	sessions map[ScreencastSessionID]*screencastSession
}

func NewCompositingScreencast(
	scene Scene,
	display graphics.Display,
	allocator graphics.GraphicBufferAllocator,
	factory DisplayBufferCompositorFactory,
) *CompositingScreencast {
	return &CompositingScreencast{
		scene:     scene,
		display:   display,
		allocator: allocator,
		factory:   factory,
		sessions:  map[ScreencastSessionID]*screencastSession{},
	}
}

func (c *CompositingScreencast) CreateSession(
	region geometry.Rectangle,
	size geometry.Size,
	format graphics.PixelFormat,
	nbuffers int,
	mirror graphics.MirrorMode,
) (ScreencastSessionID, error) {
	if region.Size.Width <= 0 || region.Size.Height <= 0 ||
		size.Width <= 0 || size.Height <= 0 ||
		!format.Valid() || nbuffers < 1 {
		return 0, fmt.Errorf(
			"%w: region %v, size %v, format %v, %d buffers",
			ErrInvalidParameters, region, size, format, nbuffers,
		)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	id, err := c.nextAvailableID()
	if err != nil {
		return 0, err
	}
	session, err := c.createSession(region, size, format, nbuffers, mirror)
	if err != nil {
		return 0, err
	}
	c.sessions[id] = session

	logrus.WithFields(logrus.Fields{
		"session": id,
		"region":  region,
		"size":    size,
		"buffers": nbuffers,
	}).Infoln("Created screencast session")
	return id, nil
}

// Capture composites the session's region into its next free buffer.
// The buffer stays valid until the next capture of the same session
func (c *CompositingScreencast) Capture(id ScreencastSessionID) (graphics.Buffer, error) {
	session, err := c.session(id)
	if err != nil {
		return nil, err
	}
	return session.capture()
}

// CaptureTo composites the session's region into buffer
func (c *CompositingScreencast) CaptureTo(id ScreencastSessionID, buffer graphics.Buffer) error {
	if buffer == nil {
		return fmt.Errorf("%w: no buffer to capture into", ErrInvalidParameters)
	}
	session, err := c.session(id)
	if err != nil {
		return err
	}
	return session.captureTo(buffer)
}

func (c *CompositingScreencast) DestroySession(id ScreencastSessionID) error {
	c.lock.Lock()
	session, ok := c.sessions[id]
	delete(c.sessions, id)
	c.lock.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	session.destroy()
	logrus.WithField("session", id).Infoln("Destroyed screencast session")
	return nil
}

// Sessions returns the ids of all live sessions in ascending order
func (c *CompositingScreencast) Sessions() []ScreencastSessionID {
	c.lock.Lock()
	ids := maps.Keys(c.sessions)
	c.lock.Unlock()

	slices.Sort(ids)
	return ids
}

func (c *CompositingScreencast) session(id ScreencastSessionID) (*screencastSession, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	session, ok := c.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return session, nil
}

func (c *CompositingScreencast) nextAvailableID() (ScreencastSessionID, error) {
	for id := ScreencastSessionID(1); id <= MaxScreencastSessions; id++ {
		if _, taken := c.sessions[id]; !taken {
			return id, nil
		}
	}
	return 0, ErrTooManySessions
}

// createSession needs c.lock held. On error nothing it created survives
func (c *CompositingScreencast) createSession(
	region geometry.Rectangle,
	size geometry.Size,
	format graphics.PixelFormat,
	nbuffers int,
	mirror graphics.MirrorMode,
) (_ *screencastSession, err error) {
	glContext, err := c.display.CreateGLContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create screencast context: %w", err)
	}
	free := NewQueueingSchedule()
	var virtualOutput graphics.VirtualOutput
	defer func() {
		if err == nil {
			return
		}
		releaseBuffers(free.Drain())
		if virtualOutput != nil {
			virtualOutput.Disable()
		}
		glContext.Destroy()
	}()

	if err = glContext.MakeCurrent(); err != nil {
		return nil, fmt.Errorf("failed to make screencast context current: %w", err)
	}
	defer glContext.ReleaseCurrent()

	if !c.regionCoveredByOutput(region) {
		virtualOutput, err = c.display.CreateVirtualOutput(region.Size.Width, region.Size.Height)
		if err != nil {
			return nil, fmt.Errorf("failed to create virtual output: %w", err)
		}
		virtualOutput.Enable()
	}

	for i := 0; i < nbuffers; i++ {
		var buffer graphics.Buffer
		buffer, err = c.allocator.AllocBuffer(graphics.BufferProperties{
			Size:   size,
			Format: format,
			Usage:  graphics.BufferUsageHardware,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to allocate screencast buffer: %w", err)
		}
		free.Schedule(buffer)
	}
	ready := NewQueueingSchedule()

	displayBuffer := &screencastDisplayBuffer{
		region: region,
		mirror: mirror,
		free:   free,
		ready:  ready,
	}
	compositor, err := c.factory.CreateCompositorFor(displayBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create screencast compositor: %w", err)
	}

	session := &screencastSession{
		id:            NewID(),
		scene:         c.scene,
		glContext:     glContext,
		virtualOutput: virtualOutput,
		displayBuffer: displayBuffer,
		compositor:    compositor,
		free:          free,
		ready:         ready,
	}
	c.scene.RegisterCompositor(session.id)
	return session, nil
}

func (c *CompositingScreencast) regionCoveredByOutput(region geometry.Rectangle) bool {
	active := sliceutils.Filter(c.display.Configuration().Outputs, func(out graphics.DisplayConfigurationOutput) bool {
		return out.Connected && out.Used
	})
	for _, out := range active {
		if out.Extents.Contains(region) {
			return true
		}
	}
	return false
}
