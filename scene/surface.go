// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package scene

import (
	"sync/atomic"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
)

// How many submitted frames a surface keeps around for slow compositors
const maxQueuedFrames = 3

// surface is only ever touched with the stack lock held,
// apart from the counters
type surface struct {
	name     string
	position geometry.Rectangle
	alpha    float32

	// frames[i] has sequence number base+i
	frames []graphics.Buffer
	base   int
	// Last frame sequence every compositor has seen
	cursors map[compositor.ID]int

	rendered atomic.Int64
	occluded atomic.Int64
}

func newSurface(name string, position geometry.Rectangle) *surface {
	return &surface{
		name:     name,
		position: position,
		alpha:    1,
		cursors:  map[compositor.ID]int{},
	}
}

func (s *surface) latest() int {
	return s.base + len(s.frames) - 1
}

func (s *surface) cursor(id compositor.ID) int {
	if c, ok := s.cursors[id]; ok && c >= s.base-1 {
		return c
	}
	return s.base - 1
}

func (s *surface) pending(id compositor.ID) int {
	return s.latest() - s.cursor(id)
}

// advance moves the compositor one frame ahead and returns what it should show
func (s *surface) advance(id compositor.ID) graphics.Buffer {
	c := s.cursor(id)
	if c < s.latest() {
		c++
	}
	s.cursors[id] = c
	if c < s.base {
		return nil
	}
	return s.frames[c-s.base]
}

func (s *surface) submit(buffer graphics.Buffer) {
	s.frames = append(s.frames, buffer)
	if drop := len(s.frames) - maxQueuedFrames; drop > 0 {
		clear(s.frames[:drop])
		s.frames = s.frames[drop:]
		s.base += drop
	}
}

type renderable struct {
	buffer   graphics.Buffer
	position geometry.Rectangle
	alpha    float32
}

func (r renderable) Buffer() graphics.Buffer            { return r.buffer }
func (r renderable) ScreenPosition() geometry.Rectangle { return r.position }
func (r renderable) Alpha() float32                     { return r.alpha }

type element struct {
	renderable renderable
	surface    *surface
}

func (e *element) Renderable() compositor.Renderable { return e.renderable }
func (e *element) Rendered()                         { e.surface.rendered.Add(1) }
func (e *element) Occluded()                         { e.surface.occluded.Add(1) }

// SurfaceInfo is a snapshot of a surface
type SurfaceInfo struct {
	Name     string
	Position geometry.Rectangle
	Alpha    float32
	// Frames still queued
	Frames   int
	Rendered int64
	Occluded int64
}
