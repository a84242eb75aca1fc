// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

// CompositorReport receives lifecycle and per frame events.
// It must never call back into the compositor
type CompositorReport interface {
	Started()
	Stopped()
	Scheduled()
	AddedDisplay(width, height, x, y int, id ID)
	BeganFrame(id ID)
	RenderedFrame(id ID)
	FinishedFrame(id ID)
}

type NullCompositorReport struct{}

func (NullCompositorReport) Started()                          {}
func (NullCompositorReport) Stopped()                          {}
func (NullCompositorReport) Scheduled()                        {}
func (NullCompositorReport) AddedDisplay(_, _, _, _ int, _ ID) {}
func (NullCompositorReport) BeganFrame(ID)                     {}
func (NullCompositorReport) RenderedFrame(ID)                  {}
func (NullCompositorReport) FinishedFrame(ID)                  {}
