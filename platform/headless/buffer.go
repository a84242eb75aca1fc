// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package headless

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/internal/shm"
)

var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// Buffer is a software buffer living in shared memory
type Buffer struct {
	id     graphics.BufferID
	size   geometry.Size
	format graphics.PixelFormat
	seg    *shm.Segment
	img    *shm.ARGB8888

	allocator *Allocator
	released  atomic.Bool
}

func (b *Buffer) ID() graphics.BufferID             { return b.id }
func (b *Buffer) Size() geometry.Size               { return b.size }
func (b *Buffer) PixelFormat() graphics.PixelFormat { return b.format }
func (b *Buffer) Image() draw.Image                 { return b.img }

// Release unmaps the buffer. It must not be used afterwards
func (b *Buffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	b.allocator.live.Add(-1)
	return b.seg.Close()
}

// Allocator hands out shared memory buffers in 32 bit RGB formats
type Allocator struct {
	lastID atomic.Uint64
	live   atomic.Int64
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

func (a *Allocator) AllocBuffer(props graphics.BufferProperties) (graphics.Buffer, error) {
	return a.Alloc(props)
}

// Alloc is AllocBuffer without hiding the concrete type
func (a *Allocator) Alloc(props graphics.BufferProperties) (*Buffer, error) {
	if props.Format != graphics.PixelFormatARGB8888 && props.Format != graphics.PixelFormatXRGB8888 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, props.Format)
	}
	if props.Size.Empty() {
		return nil, fmt.Errorf("invalid buffer size %v", props.Size)
	}

	id := graphics.BufferID(a.lastID.Add(1))
	stride := props.Size.Width * props.Format.BytesPerPixel()
	seg, err := shm.NewSegment(fmt.Sprintf("mirgo-buffer-%d", id), stride*props.Size.Height)
	if err != nil {
		return nil, err
	}
	a.live.Add(1)
	return &Buffer{
		allocator: a,
		id:        id,
		size:      props.Size,
		format:    props.Format,
		seg:       seg,
		img: &shm.ARGB8888{
			Pix:    seg.Bytes(),
			Stride: stride,
			Rect:   image.Rect(0, 0, props.Size.Width, props.Size.Height),
			Opaque: props.Format == graphics.PixelFormatXRGB8888,
		},
	}, nil
}

// Live counts the buffers handed out and not released yet
func (a *Allocator) Live() int {
	return int(a.live.Load())
}
