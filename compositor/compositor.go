// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package compositor renders the scene onto every output of a display.
//
// Each display sync group gets its own OS thread which sleeps until the
// scene tells it something changed. Screencast sessions pull frames of
// the same scene on demand, on the thread of the caller.
package compositor

import (
	"github.com/google/uuid"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
)

type (
	// ID identifies one compositor to the scene.
	// Every display buffer compositor and every screencast session has its own
	ID uuid.UUID

	// A Renderable is what a surface looks like right now
	Renderable interface {
		Buffer() graphics.Buffer
		ScreenPosition() geometry.Rectangle
		Alpha() float32
	}

	SceneElement interface {
		Renderable() Renderable
		// Rendered is called once the element made it onto the screen
		Rendered()
		// Occluded is called if the element was skipped as not visible
		Occluded()
	}

	// SceneElementSequence is ordered bottom to top
	SceneElementSequence []SceneElement

	// SceneObserver gets told about changes that need a recomposite
	SceneObserver interface {
		SurfacesChanged()
		// RegionChanged is a change limited to damage, needing frames composites
		RegionChanged(frames int, damage geometry.Rectangle)
	}

	Scene interface {
		RegisterCompositor(id ID)
		UnregisterCompositor(id ID)
		// SceneElementsFor returns what the compositor with the given ID should draw.
		// Already filtered for damage and occlusion
		SceneElementsFor(id ID) SceneElementSequence
		// FramesPending returns how many frames are queued up for this compositor
		FramesPending(id ID) int
		AddObserver(observer SceneObserver) error
		RemoveObserver(observer SceneObserver) error
	}

	DisplayBufferCompositor interface {
		// Composite renders elements and reports whether anything was produced
		// that needs posting
		Composite(elements SceneElementSequence) bool
	}

	DisplayBufferCompositorFactory interface {
		CreateCompositorFor(buffer graphics.DisplayBuffer) (DisplayBufferCompositor, error)
	}

	// DisplayListener is told when outputs come under or leave compositor management.
	// Implementations may schedule compositing from within the callbacks
	DisplayListener interface {
		AddDisplay(area geometry.Rectangle)
		RemoveDisplay(area geometry.Rectangle)
	}

	NullDisplayListener struct{}
)

func NewID() ID {
	return ID(uuid.New())
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

func (NullDisplayListener) AddDisplay(geometry.Rectangle)    {}
func (NullDisplayListener) RemoveDisplay(geometry.Rectangle) {}

// SceneChangeNotification forwards scene changes to plain callbacks
type SceneChangeNotification struct {
	onChange       func()
	onRegionChange func(frames int, damage geometry.Rectangle)
}

func NewSceneChangeNotification(
	onChange func(),
	onRegionChange func(frames int, damage geometry.Rectangle),
) *SceneChangeNotification {
	return &SceneChangeNotification{
		onChange:       onChange,
		onRegionChange: onRegionChange,
	}
}

func (n *SceneChangeNotification) SurfacesChanged() {
	if n.onChange != nil {
		n.onChange()
	}
}

func (n *SceneChangeNotification) RegionChanged(frames int, damage geometry.Rectangle) {
	if n.onRegionChange != nil {
		n.onRegionChange(frames, damage)
	}
}
