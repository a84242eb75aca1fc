// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package software composites on the CPU, into display buffers that
// expose an image to draw into
package software

import (
	"errors"
	"image"
	"image/color"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

var ErrNoImageTarget = errors.New("display buffer has no image to draw into")

type Factory struct {
	scaler     draw.Scaler
	background color.Color
}

type FactoryOption func(*Factory)

// WithScaler picks how surfaces get scaled, draw.NearestNeighbor by default
func WithScaler(scaler draw.Scaler) FactoryOption {
	return func(f *Factory) {
		f.scaler = scaler
	}
}

func WithBackground(c color.Color) FactoryOption {
	return func(f *Factory) {
		f.background = c
	}
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		scaler:     draw.NearestNeighbor,
		background: color.Black,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) CreateCompositorFor(buffer graphics.DisplayBuffer) (compositor.DisplayBufferCompositor, error) {
	target, ok := buffer.(graphics.ImageTarget)
	if !ok {
		return nil, ErrNoImageTarget
	}
	c := &Compositor{
		buffer:     buffer,
		target:     target,
		scaler:     f.scaler,
		background: image.NewUniform(f.background),
	}
	c.renderTarget, _ = buffer.(graphics.RenderTarget)
	if m, ok := buffer.(graphics.Mirrored); ok {
		c.mirror = m.MirrorMode()
	}
	return c, nil
}

// Compositor draws scene elements bottom to top, scaling the buffer's
// view area onto its image
type Compositor struct {
	buffer       graphics.DisplayBuffer
	target       graphics.ImageTarget
	renderTarget graphics.RenderTarget
	mirror       graphics.MirrorMode
	scaler       draw.Scaler
	background   image.Image
}

func (c *Compositor) Composite(elements compositor.SceneElementSequence) bool {
	if c.renderTarget != nil {
		if err := c.renderTarget.Bind(); err != nil {
			logrus.WithError(err).Errorln("Failed to bind render target")
			return false
		}
	}
	dst := c.target.Target()
	if dst == nil {
		return false
	}

	bounds := dst.Bounds()
	area := c.buffer.ViewArea()
	draw.Draw(dst, bounds, c.background, image.Point{}, draw.Src)

	for _, e := range elements {
		r := e.Renderable()
		pos := r.ScreenPosition()
		src, ok := r.Buffer().(graphics.ImageBuffer)
		if !ok || !pos.Overlaps(area) || r.Alpha() <= 0 {
			e.Occluded()
			continue
		}

		img := src.Image()
		dr := project(pos, area, bounds)
		var opts *draw.Options
		if r.Alpha() < 1 {
			opts = &draw.Options{
				SrcMask: image.NewUniform(color.Alpha{A: uint8(r.Alpha() * 0xFF)}),
			}
		}
		c.scaler.Scale(dst, dr, img, img.Bounds(), draw.Over, opts)
		e.Rendered()
	}

	flip(dst, c.mirror)

	if c.renderTarget != nil {
		if err := c.renderTarget.SwapBuffers(); err != nil {
			logrus.WithError(err).Errorln("Failed to swap buffers")
			return false
		}
	}
	return true
}

// project maps pos from screen space into bounds, which shows area
func project(pos, area geometry.Rectangle, bounds image.Rectangle) image.Rectangle {
	sx := func(x int) int {
		return bounds.Min.X + (x-area.Left())*bounds.Dx()/area.Size.Width
	}
	sy := func(y int) int {
		return bounds.Min.Y + (y-area.Top())*bounds.Dy()/area.Size.Height
	}
	return image.Rect(sx(pos.Left()), sy(pos.Top()), sx(pos.Right()), sy(pos.Bottom()))
}

func flip(img draw.Image, mode graphics.MirrorMode) {
	b := img.Bounds()
	switch mode {
	case graphics.MirrorModeVertical:
		for y0, y1 := b.Min.Y, b.Max.Y-1; y0 < y1; y0, y1 = y0+1, y1-1 {
			for x := b.Min.X; x < b.Max.X; x++ {
				swap(img, x, y0, x, y1)
			}
		}
	case graphics.MirrorModeHorizontal:
		for x0, x1 := b.Min.X, b.Max.X-1; x0 < x1; x0, x1 = x0+1, x1-1 {
			for y := b.Min.Y; y < b.Max.Y; y++ {
				swap(img, x0, y, x1, y)
			}
		}
	}
}

func swap(img draw.Image, x0, y0, x1, y1 int) {
	a, b := img.At(x0, y0), img.At(x1, y1)
	img.Set(x0, y0, b)
	img.Set(x1, y1, a)
}
