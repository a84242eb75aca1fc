// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package shm

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
)

// ARGB8888 is an in-memory image whose At method returns ARGB8888Color values.
// Pixels are stored as little endian 32 bit words, the layout of
// DRM_FORMAT_ARGB8888
type ARGB8888 struct {
	// The pixel at (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*4].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	Rect   image.Rectangle
	// Opaque makes every pixel fully opaque, for XRGB8888
	Opaque bool
}

func NewARGB8888(r image.Rectangle) *ARGB8888 {
	return &ARGB8888{
		Pix:    make([]uint8, r.Dx()*r.Dy()*4),
		Stride: 4 * r.Dx(),
		Rect:   r,
	}
}

func (p *ARGB8888) Bounds() image.Rectangle { return p.Rect }

func (p *ARGB8888) ColorModel() color.Model { return ARGB8888Model }

func (p *ARGB8888) At(x, y int) color.Color {
	return p.ARGB8888At(x, y)
}

func (p *ARGB8888) ARGB8888At(x, y int) ARGB8888Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return ARGB8888Color(0)
	}
	i := p.PixOffset(x, y)
	c := ARGB8888Color(binary.LittleEndian.Uint32(p.Pix[i : i+4 : i+4]))
	if p.Opaque {
		c |= 0xFF000000
	}
	return c
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *ARGB8888) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*4
}

func (p *ARGB8888) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	c1 := ARGB8888Model.Convert(c).(ARGB8888Color)
	binary.LittleEndian.PutUint32(p.Pix[i:i+4:i+4], uint32(c1))
}

// SubImage returns an image representing the portion of the image p visible
// through r. The returned value shares pixels with the original image.
func (p *ARGB8888) SubImage(r image.Rectangle) draw.Image {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &ARGB8888{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &ARGB8888{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
		Opaque: p.Opaque,
	}
}

// Fill sets every pixel to c
func (p *ARGB8888) Fill(c color.Color) {
	c1 := uint32(ARGB8888Model.Convert(c).(ARGB8888Color))
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		for x := p.Rect.Min.X; x < p.Rect.Max.X; x++ {
			i := p.PixOffset(x, y)
			binary.LittleEndian.PutUint32(p.Pix[i:i+4:i+4], c1)
		}
	}
}
