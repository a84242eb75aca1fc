// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package geometry contains the integer screen-space types shared by the
// compositor, the platforms and the scene.
package geometry

import "fmt"

type (
	Point struct {
		X int
		Y int
	}

	Size struct {
		Width  int
		Height int
	}

	// A Rectangle is anchored at its top left corner.
	// The right and bottom edges are exclusive
	Rectangle struct {
		TopLeft Point
		Size    Size
	}
)

func NewRectangle(x, y, width, height int) Rectangle {
	return Rectangle{
		TopLeft: Point{X: x, Y: y},
		Size:    Size{Width: width, Height: height},
	}
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Empty reports whether the size covers no pixels
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

func (r Rectangle) Left() int   { return r.TopLeft.X }
func (r Rectangle) Top() int    { return r.TopLeft.Y }
func (r Rectangle) Right() int  { return r.TopLeft.X + r.Size.Width }
func (r Rectangle) Bottom() int { return r.TopLeft.Y + r.Size.Height }

func (r Rectangle) Empty() bool {
	return r.Size.Empty()
}

// BottomRight returns the first point outside of the rectangle on both axes
func (r Rectangle) BottomRight() Point {
	return Point{X: r.Right(), Y: r.Bottom()}
}

// Overlaps reports whether both rectangles share at least one pixel.
// Empty rectangles never overlap anything
func (r Rectangle) Overlaps(o Rectangle) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Left() < o.Right() && o.Left() < r.Right() &&
		r.Top() < o.Bottom() && o.Top() < r.Bottom()
}

// ContainsPoint reports whether p lies inside r
func (r Rectangle) ContainsPoint(p Point) bool {
	return p.X >= r.Left() && p.X < r.Right() &&
		p.Y >= r.Top() && p.Y < r.Bottom()
}

// Contains reports whether every pixel of o lies inside r
func (r Rectangle) Contains(o Rectangle) bool {
	if o.Empty() {
		return r.ContainsPoint(o.TopLeft)
	}
	return o.Left() >= r.Left() && o.Right() <= r.Right() &&
		o.Top() >= r.Top() && o.Bottom() <= r.Bottom()
}

// Intersection returns the shared area of both rectangles.
// If they don't overlap, the zero rectangle is returned
func (r Rectangle) Intersection(o Rectangle) Rectangle {
	if !r.Overlaps(o) {
		return Rectangle{}
	}
	left := max(r.Left(), o.Left())
	top := max(r.Top(), o.Top())
	right := min(r.Right(), o.Right())
	bottom := min(r.Bottom(), o.Bottom())
	return NewRectangle(left, top, right-left, bottom-top)
}

// Translate moves the rectangle by the given offset
func (r Rectangle) Translate(by Point) Rectangle {
	return Rectangle{TopLeft: r.TopLeft.Add(by), Size: r.Size}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("%v+%v", r.Size, r.TopLeft)
}

// Rectangles is an unordered collection of areas, typically output extents
type Rectangles []Rectangle

// Add appends r to the collection
func (rs *Rectangles) Add(r Rectangle) {
	*rs = append(*rs, r)
}

// BoundingRectangle returns the smallest rectangle containing every non-empty member
func (rs Rectangles) BoundingRectangle() Rectangle {
	var bound Rectangle
	first := true
	for _, r := range rs {
		if r.Empty() {
			continue
		}
		if first {
			bound = r
			first = false
			continue
		}
		left := min(bound.Left(), r.Left())
		top := min(bound.Top(), r.Top())
		right := max(bound.Right(), r.Right())
		bottom := max(bound.Bottom(), r.Bottom())
		bound = NewRectangle(left, top, right-left, bottom-top)
	}
	return bound
}

// AnyContains reports whether a single member fully contains o
func (rs Rectangles) AnyContains(o Rectangle) bool {
	for _, r := range rs {
		if r.Contains(o) {
			return true
		}
	}
	return false
}
