// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package scene keeps the surfaces the compositor draws.
// Surfaces are placed by whoever adds them, there is no window management
package scene

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
)

var (
	ErrSurfaceExists   = errors.New("surface already exists")
	ErrUnknownSurface  = errors.New("unknown surface")
	ErrNilObserver     = errors.New("observer is nil")
	ErrObserverExists  = errors.New("observer already added")
	ErrUnknownObserver = errors.New("unknown observer")
)

// Stack is a bottom to top list of surfaces.
// Observers are called synchronously and without the stack locked,
// so they may call back into the stack
type Stack struct {
	lock        sync.Mutex
	surfaces    []*surface
	compositors map[compositor.ID]struct{}
	observers   []compositor.SceneObserver
}

func NewStack() *Stack {
	return &Stack{
		compositors: map[compositor.ID]struct{}{},
	}
}

func (s *Stack) RegisterCompositor(id compositor.ID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.compositors[id] = struct{}{}
	// The frame currently shown is new to this compositor
	for _, surf := range s.surfaces {
		surf.cursors[id] = max(surf.latest()-1, surf.base-1)
	}
	logrus.WithField("compositor", id).Debugln("Compositor registered with scene")
}

func (s *Stack) UnregisterCompositor(id compositor.ID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.compositors, id)
	for _, surf := range s.surfaces {
		delete(surf.cursors, id)
	}
	logrus.WithField("compositor", id).Debugln("Compositor unregistered from scene")
}

// SceneElementsFor advances every surface by one frame for the compositor id.
// Surfaces without a frame, fully transparent ones and ones hidden below an
// opaque surface are left out
func (s *Stack) SceneElementsFor(id compositor.ID) compositor.SceneElementSequence {
	s.lock.Lock()
	defer s.lock.Unlock()

	var visible []*element
	for _, surf := range s.surfaces {
		buffer := surf.advance(id)
		if buffer == nil || surf.alpha <= 0 || surf.position.Empty() {
			continue
		}
		visible = append(visible, &element{
			renderable: renderable{buffer: buffer, position: surf.position, alpha: surf.alpha},
			surface:    surf,
		})
	}

	elements := make(compositor.SceneElementSequence, 0, len(visible))
	for i, e := range visible {
		if occludedBy(e, visible[i+1:]) {
			e.Occluded()
			continue
		}
		elements = append(elements, e)
	}
	return elements
}

func occludedBy(e *element, above []*element) bool {
	for _, o := range above {
		if o.renderable.alpha >= 1 && o.renderable.position.Contains(e.renderable.position) {
			return true
		}
	}
	return false
}

func (s *Stack) FramesPending(id compositor.ID) int {
	s.lock.Lock()
	defer s.lock.Unlock()

	pending := 0
	for _, surf := range s.surfaces {
		pending = max(pending, surf.pending(id))
	}
	return pending
}

func (s *Stack) AddObserver(observer compositor.SceneObserver) error {
	if observer == nil {
		return ErrNilObserver
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	if slices.Contains(s.observers, observer) {
		return ErrObserverExists
	}
	s.observers = append(s.observers, observer)
	return nil
}

func (s *Stack) RemoveObserver(observer compositor.SceneObserver) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	i := slices.Index(s.observers, observer)
	if i < 0 {
		return ErrUnknownObserver
	}
	s.observers = slices.Delete(s.observers, i, i+1)
	return nil
}

// AddSurface puts a new surface on top of the stack
func (s *Stack) AddSurface(name string, position geometry.Rectangle) error {
	s.lock.Lock()
	if s.find(name) >= 0 {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrSurfaceExists, name)
	}
	s.surfaces = append(s.surfaces, newSurface(name, position))
	observers := s.snapshotObservers()
	s.lock.Unlock()

	for _, o := range observers {
		o.SurfacesChanged()
	}
	return nil
}

func (s *Stack) RemoveSurface(name string) error {
	s.lock.Lock()
	i := s.find(name)
	if i < 0 {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSurface, name)
	}
	damage := s.surfaces[i].position
	s.surfaces = slices.Delete(s.surfaces, i, i+1)
	observers := s.snapshotObservers()
	s.lock.Unlock()

	notifyRegion(observers, 1, damage)
	return nil
}

// MoveSurface places the surface's top left corner at to
func (s *Stack) MoveSurface(name string, to geometry.Point) error {
	s.lock.Lock()
	i := s.find(name)
	if i < 0 {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSurface, name)
	}
	surf := s.surfaces[i]
	old := surf.position
	surf.position.TopLeft = to
	damage := geometry.Rectangles{old, surf.position}.BoundingRectangle()
	observers := s.snapshotObservers()
	s.lock.Unlock()

	notifyRegion(observers, 1, damage)
	return nil
}

func (s *Stack) SetAlpha(name string, alpha float32) error {
	s.lock.Lock()
	i := s.find(name)
	if i < 0 {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSurface, name)
	}
	surf := s.surfaces[i]
	surf.alpha = min(max(alpha, 0), 1)
	damage := surf.position
	observers := s.snapshotObservers()
	s.lock.Unlock()

	notifyRegion(observers, 1, damage)
	return nil
}

// RaiseSurface moves the surface to the top of the stack
func (s *Stack) RaiseSurface(name string) error {
	s.lock.Lock()
	i := s.find(name)
	if i < 0 {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSurface, name)
	}
	surf := s.surfaces[i]
	s.surfaces = append(slices.Delete(s.surfaces, i, i+1), surf)
	damage := surf.position
	observers := s.snapshotObservers()
	s.lock.Unlock()

	notifyRegion(observers, 1, damage)
	return nil
}

// Submit queues buffer as the surface's newest frame
func (s *Stack) Submit(name string, buffer graphics.Buffer) error {
	s.lock.Lock()
	i := s.find(name)
	if i < 0 {
		s.lock.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSurface, name)
	}
	surf := s.surfaces[i]
	surf.submit(buffer)
	damage := surf.position
	frames := 1
	for id := range s.compositors {
		frames = max(frames, surf.pending(id))
	}
	observers := s.snapshotObservers()
	s.lock.Unlock()

	notifyRegion(observers, frames, damage)
	return nil
}

// Surfaces returns a snapshot of all surfaces, bottom to top
func (s *Stack) Surfaces() []SurfaceInfo {
	s.lock.Lock()
	defer s.lock.Unlock()

	infos := make([]SurfaceInfo, 0, len(s.surfaces))
	for _, surf := range s.surfaces {
		infos = append(infos, SurfaceInfo{
			Name:     surf.name,
			Position: surf.position,
			Alpha:    surf.alpha,
			Frames:   len(surf.frames),
			Rendered: surf.rendered.Load(),
			Occluded: surf.occluded.Load(),
		})
	}
	return infos
}

func (s *Stack) find(name string) int {
	return slices.IndexFunc(s.surfaces, func(surf *surface) bool {
		return surf.name == name
	})
}

func (s *Stack) snapshotObservers() []compositor.SceneObserver {
	return slices.Clone(s.observers)
}

func notifyRegion(observers []compositor.SceneObserver, frames int, damage geometry.Rectangle) {
	for _, o := range observers {
		o.RegionChanged(frames, damage)
	}
}
