// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build wlroots

package wlroots

import (
	"fmt"
	"image/draw"
	"slices"
	"sync"
	"time"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/platform/headless"
	"github.com/sirupsen/logrus"
	"github.com/swaywm/go-wlroots/wlroots"
)

// Used when the backend offers no modes
var fallbackSize = geometry.Size{Width: 1280, Height: 720}

// Posting gives up after this, so a stalled backend can't hang a compositor thread
const postTimeout = time.Second

// output is both the display buffer and the sync group of one wlroots output.
// Compositing goes into a shadow image, posting waits for the output's
// next commit
type output struct {
	server *Server
	id     int
	name   string
	area   geometry.Rectangle
	shadow *headless.Buffer

	lock      sync.Mutex
	pending   bool
	committed chan struct{}
	destroyed chan struct{}
}

func (o *output) ViewArea() geometry.Rectangle {
	return o.area
}

func (o *output) Target() draw.Image {
	return o.shadow.Image()
}

func (o *output) ForEachDisplayBuffer(f func(graphics.DisplayBuffer)) {
	f(o)
}

// Post blocks until the event loop committed the output
func (o *output) Post() {
	o.lock.Lock()
	o.pending = true
	committed := o.committed
	o.lock.Unlock()

	select {
	case <-committed:
	case <-o.destroyed:
	case <-o.server.closed:
	case <-time.After(postTimeout):
		logrus.WithField("output", o.name).Warnln("Output did not commit in time")
	}
}

// RecommendedSleep is zero as Post already waits for the frame
func (o *output) RecommendedSleep() time.Duration {
	return 0
}

// markCommitted runs on the event loop thread
func (o *output) markCommitted() {
	o.lock.Lock()
	defer o.lock.Unlock()
	if !o.pending {
		return
	}
	o.pending = false
	close(o.committed)
	o.committed = make(chan struct{})
}

func (server *Server) handleNewFrame(wlrOutput wlroots.Output) {
	/* This function is called every time an wlrOutput is ready to display a frame,
	 * generally at the wlrOutput's refresh rate (e.g. 60Hz). */
	logrus.WithField("name", wlrOutput.Name()).Debugln("Output ready for frame")

	sOut, err := server.scene.SceneOutput(wlrOutput)
	if err != nil {
		return
	}

	/* Render the scene if needed and commit the output */
	sOut.Commit()
	sOut.SendFrameDone(time.Now())

	if o := server.find(wlrOutput.Name()); o != nil {
		o.markCommitted()
	}
}

func (server *Server) handleOutputRequestState(wlrOutput wlroots.Output, state wlroots.OutputState) {
	/* The Wayland and X11 backends ask for a new mode when their window
	 * gets resized */
	logrus.WithFields(logrus.Fields{
		"output": wlrOutput.Name(),
		"state":  state,
	}).Debugln("New state request for output")
	wlrOutput.CommitState(state)
}

func (server *Server) handleOutputDestroy(wlrOutput wlroots.Output) {
	logrus.WithField("name", wlrOutput.Name()).Debugln("Output getting destroyed")

	server.lock.Lock()
	i := slices.IndexFunc(server.outputs, func(o *output) bool { return o.name == wlrOutput.Name() })
	if i < 0 {
		server.lock.Unlock()
		return
	}
	o := server.outputs[i]
	server.outputs = slices.Delete(server.outputs, i, i+1)
	server.lock.Unlock()

	close(o.destroyed)
	// The output's compositor thread may still be drawing into the shadow
	server.retired.retire(o.shadow)
	server.outputsChanged()
}

func (server *Server) handleNewOutput(wlrOutput wlroots.Output) {
	logrus.WithField("name", wlrOutput.Name()).Debugln("New output added")

	/* Configures the output created by the backend to use our allocator
	 * and our renderer. Must be done once, before commiting the output */
	wlrOutput.InitRender(server.allocator, server.renderer)

	oState := wlroots.NewOutputState()
	oState.StateInit()
	oState.StateSetEnabled(true)

	size := fallbackSize
	if mode, err := wlrOutput.PrefferedMode(); err == nil {
		oState.SetMode(mode)
		size = geometry.Size{Width: int(mode.Width()), Height: int(mode.Height())}
	}

	wlrOutput.CommitState(oState)
	oState.Finish()

	shadow, err := server.shadows.Alloc(graphics.BufferProperties{
		Size:   size,
		Format: graphics.PixelFormatXRGB8888,
		Usage:  graphics.BufferUsageSoftware,
	})
	if err != nil {
		logrus.WithError(err).WithField("name", wlrOutput.Name()).Errorln("Failed to allocate shadow buffer, ignoring output")
		return
	}

	wlrOutput.OnFrame(server.handleNewFrame)
	wlrOutput.OnRequestState(server.handleOutputRequestState)
	wlrOutput.OnDestroy(server.handleOutputDestroy)

	/* add_auto arranges outputs from left to right in the order they appear,
	 * which is what the extents below assume */
	lOutput := server.outputLayout.AddOutputAuto(wlrOutput)
	sceneOutput := server.scene.NewOutput(wlrOutput)
	server.sceneLayout.AddOutput(lOutput, sceneOutput)

	server.lock.Lock()
	o := &output{
		server:    server,
		id:        server.nextID,
		name:      wlrOutput.Name(),
		area:      geometry.Rectangle{TopLeft: geometry.Point{X: server.nextX}, Size: size},
		shadow:    shadow,
		committed: make(chan struct{}),
		destroyed: make(chan struct{}),
	}
	server.nextID++
	server.nextX += size.Width
	server.outputs = append(server.outputs, o)
	server.lock.Unlock()

	if err = wlrOutput.SetTitle(fmt.Sprintf("mirgo - %s", wlrOutput.Name())); err != nil {
		logrus.WithError(err).Debugln("Output has no title to set")
	}
	server.outputsChanged()
}

// virtualOutput shows up in the configuration while enabled
type virtualOutput struct {
	server  *Server
	id      int
	size    geometry.Size
	enabled bool
}

func (v *virtualOutput) Enable() {
	v.server.lock.Lock()
	defer v.server.lock.Unlock()
	v.enabled = true
}

func (v *virtualOutput) Disable() {
	v.server.lock.Lock()
	defer v.server.lock.Unlock()
	v.enabled = false
	if i := slices.Index(v.server.virtuals, v); i >= 0 {
		v.server.virtuals = slices.Delete(v.server.virtuals, i, i+1)
	}
}

// configuration needs the server lock held
func (v *virtualOutput) configuration() graphics.DisplayConfigurationOutput {
	return graphics.DisplayConfigurationOutput{
		ID:        v.id,
		Name:      fmt.Sprintf("VIRTUAL-%d", v.id),
		Connected: true,
		Used:      v.enabled,
		Extents:   geometry.Rectangle{Size: v.size},
	}
}
