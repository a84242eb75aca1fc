// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package graphics declares the platform side the compositor talks to.
// Platforms (headless, wlroots) implement these, the compositor consumes them.
package graphics

import (
	"image/draw"
	"time"

	"github.com/mstarongithub/mirgo/geometry"
)

type (
	// A Buffer is a single frame's worth of pixel storage.
	// Buffers are compared by identity, so implementations must be pointer types
	Buffer interface {
		ID() BufferID
		Size() geometry.Size
		PixelFormat() PixelFormat
	}

	// Releaser is implemented by buffers holding on to more than garbage
	// collected memory. A released buffer must not be used again
	Releaser interface {
		Release() error
	}

	// ImageBuffer is implemented by buffers whose pixels are CPU addressable
	ImageBuffer interface {
		Buffer
		Image() draw.Image
	}

	BufferID uint64

	BufferUsage int

	BufferProperties struct {
		Size   geometry.Size
		Format PixelFormat
		Usage  BufferUsage
	}

	GraphicBufferAllocator interface {
		AllocBuffer(props BufferProperties) (Buffer, error)
	}

	// A DisplayBuffer is one sink of a sync group, usually one physical output
	DisplayBuffer interface {
		ViewArea() geometry.Rectangle
	}

	// RenderTarget is implemented by display buffers that need binding
	// before and presenting after rendering into them
	RenderTarget interface {
		Bind() error
		SwapBuffers() error
	}

	// ImageTarget is implemented by display buffers a software renderer can draw into.
	// Target returns nil if there currently is nothing to draw into
	ImageTarget interface {
		Target() draw.Image
	}

	// Mirrored is implemented by display buffers that want their content flipped
	Mirrored interface {
		MirrorMode() MirrorMode
	}

	// A DisplaySyncGroup is a set of display buffers that get posted together
	DisplaySyncGroup interface {
		ForEachDisplayBuffer(f func(DisplayBuffer))
		// Post presents all members atomically
		Post()
		// RecommendedSleep is how long the compositor may wait after posting
		// before checking for the next frame
		RecommendedSleep() time.Duration
	}

	DisplayConfigurationOutput struct {
		ID        int
		Name      string
		Connected bool
		Used      bool
		Extents   geometry.Rectangle
	}

	DisplayConfiguration struct {
		Outputs []DisplayConfigurationOutput
	}

	// A VirtualOutput is an output without physical monitor
	VirtualOutput interface {
		Enable()
		Disable()
	}

	// GLContext must only ever be current on one thread at a time
	GLContext interface {
		MakeCurrent() error
		ReleaseCurrent()
		// Destroy frees the context. It must not be current anywhere
		Destroy()
	}

	Display interface {
		ForEachDisplaySyncGroup(f func(DisplaySyncGroup))
		Configuration() DisplayConfiguration
		CreateVirtualOutput(width, height int) (VirtualOutput, error)
		CreateGLContext() (GLContext, error)
	}
)

const (
	BufferUsageHardware = BufferUsage(iota)
	BufferUsageSoftware
)

// Extents returns the extents of all connected and used outputs
func (c DisplayConfiguration) Extents() geometry.Rectangles {
	var rects geometry.Rectangles
	for _, out := range c.Outputs {
		if out.Connected && out.Used {
			rects.Add(out.Extents)
		}
	}
	return rects
}
