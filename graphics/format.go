// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package graphics

import (
	"fmt"
	"strings"
)

type PixelFormat int

const (
	PixelFormatInvalid = PixelFormat(iota)
	PixelFormatABGR8888
	PixelFormatXBGR8888
	PixelFormatARGB8888
	PixelFormatXRGB8888
	PixelFormatBGR888
	PixelFormatRGB888
	PixelFormatRGB565
	PixelFormatRGBA5551
	PixelFormatRGBA4444
	pixelFormatCount
)

var pixelFormatNames = [...]string{
	PixelFormatInvalid:  "invalid",
	PixelFormatABGR8888: "abgr8888",
	PixelFormatXBGR8888: "xbgr8888",
	PixelFormatARGB8888: "argb8888",
	PixelFormatXRGB8888: "xrgb8888",
	PixelFormatBGR888:   "bgr888",
	PixelFormatRGB888:   "rgb888",
	PixelFormatRGB565:   "rgb565",
	PixelFormatRGBA5551: "rgba5551",
	PixelFormatRGBA4444: "rgba4444",
}

func (f PixelFormat) Valid() bool {
	return f > PixelFormatInvalid && f < pixelFormatCount
}

// BytesPerPixel returns 0 for invalid formats
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatABGR8888, PixelFormatXBGR8888, PixelFormatARGB8888, PixelFormatXRGB8888:
		return 4
	case PixelFormatBGR888, PixelFormatRGB888:
		return 3
	case PixelFormatRGB565, PixelFormatRGBA5551, PixelFormatRGBA4444:
		return 2
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	if f < 0 || f >= pixelFormatCount {
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
	return pixelFormatNames[f]
}

// ParsePixelFormat is the inverse of PixelFormat.String
func ParsePixelFormat(s string) (PixelFormat, error) {
	s = strings.ToLower(s)
	for i, name := range pixelFormatNames {
		if name == s && PixelFormat(i).Valid() {
			return PixelFormat(i), nil
		}
	}
	return PixelFormatInvalid, fmt.Errorf("unknown pixel format %q", s)
}

type MirrorMode int

const (
	MirrorModeNone = MirrorMode(iota)
	MirrorModeVertical
	MirrorModeHorizontal
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorModeNone:
		return "none"
	case MirrorModeVertical:
		return "vertical"
	case MirrorModeHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("MirrorMode(%d)", int(m))
	}
}
