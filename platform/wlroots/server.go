// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build wlroots

// Package wlroots drives real outputs through a wlroots backend.
// Every wlroots output is its own sync group
package wlroots

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/platform/headless"
	"github.com/sirupsen/logrus"
	"github.com/swaywm/go-wlroots/wlroots"
)

type Server struct {
	display     wlroots.Display
	backend     wlroots.Backend
	renderer    wlroots.Renderer
	allocator   wlroots.Allocator
	scene       wlroots.Scene
	sceneLayout wlroots.SceneOutputLayout

	outputLayout wlroots.OutputLayout

	// Shadow images for the outputs
	shadows *headless.Allocator
	// Shadows of destroyed outputs
	retired retirement
	// Called on its own goroutine whenever an output comes or goes
	onOutputsChanged func()
	closed           chan struct{}

	lock     sync.Mutex
	outputs  []*output
	virtuals []*virtualOutput
	nextX    int
	nextID   int
}

func NewServer(shadows *headless.Allocator, onOutputsChanged func()) (server *Server, err error) {
	server = &Server{
		shadows:          shadows,
		onOutputsChanged: onOutputsChanged,
		nextID:           1,
		closed:           make(chan struct{}),
	}

	/* The Wayland display is managed by libwayland. It handles accepting
	 * clients from the Unix socket, manging Wayland globals, and so on. */
	server.display = wlroots.NewDisplay()

	/* The backend picks whatever fits the environment best, such as an X11
	 * window if an X11 server is running. */
	server.backend, err = server.display.BackendAutocreate()
	if err != nil {
		return nil, err
	}

	server.renderer, err = server.backend.RendererAutoCreate()
	if err != nil {
		return nil, err
	}
	server.renderer.InitDisplay(server.display)

	server.allocator, err = server.backend.AllocatorAutocreate(server.renderer)
	if err != nil {
		return nil, err
	}

	/* Clients need these to allocate surfaces and share the clipboard */
	server.display.CompositorCreate(5, server.renderer)
	server.display.SubCompositorCreate()
	server.display.DataDeviceManagerCreate()

	server.outputLayout = wlroots.NewOutputLayout()
	server.backend.OnNewOutput(server.handleNewOutput)

	server.scene = wlroots.NewScene()
	server.sceneLayout = server.scene.AttachOutputLayout(server.outputLayout)
	return server, nil
}

func (server *Server) Start() error {
	/* Add a Unix socket to the Wayland display. */
	socket, err := server.display.AddSocketAuto()
	if err != nil {
		server.backend.Destroy()
		return err
	}
	logrus.WithField("socket", socket).Debugln("got wl socket")
	/* Start the backend. This will enumerate outputs and inputs, become the DRM
	 * master, etc */
	if err = server.backend.Start(); err != nil {
		server.backend.Destroy()
		server.display.Destroy()
		return err
	}

	if res := os.Getenv("WAYLAND_DISPLAY"); res != "" {
		logrus.WithField("WAYLAND_DISPLAY", res).Debugln("Wayland display already set, overwriting")
	}
	if err = os.Setenv("WAYLAND_DISPLAY", socket); err != nil {
		return err
	}

	logrus.WithField("WAYLAND_DISPLAY", socket).Infoln("Running Wayland compositor")
	return nil
}

// Run blocks on the Wayland event loop until Stop
func (server *Server) Run() error {
	server.display.Run()

	close(server.closed)
	server.display.DestroyClients()
	server.scene.Tree().Node().Destroy()
	server.outputLayout.Destroy()
	server.display.Destroy()

	server.lock.Lock()
	defer server.lock.Unlock()
	for _, o := range server.outputs {
		if err := o.shadow.Release(); err != nil {
			logrus.WithError(err).WithField("output", o.name).Warnln("Failed to release shadow buffer")
		}
	}
	server.retired.releaseAll()
	return nil
}

// ReleaseRetired frees the shadows of destroyed outputs.
// No compositor thread may be running
func (server *Server) ReleaseRetired() {
	if n := server.retired.releaseAll(); n > 0 {
		logrus.WithField("buffers", n).Debugln("Released shadows of destroyed outputs")
	}
}

func (server *Server) Stop() {
	server.display.Terminate()
}

func (server *Server) ForEachDisplaySyncGroup(f func(graphics.DisplaySyncGroup)) {
	server.lock.Lock()
	outputs := slices.Clone(server.outputs)
	server.lock.Unlock()
	for _, o := range outputs {
		f(o)
	}
}

func (server *Server) Configuration() graphics.DisplayConfiguration {
	server.lock.Lock()
	defer server.lock.Unlock()

	var conf graphics.DisplayConfiguration
	for _, o := range server.outputs {
		conf.Outputs = append(conf.Outputs, graphics.DisplayConfigurationOutput{
			ID:        o.id,
			Name:      o.name,
			Connected: true,
			Used:      true,
			Extents:   o.area,
		})
	}
	for _, v := range server.virtuals {
		conf.Outputs = append(conf.Outputs, v.configuration())
	}
	return conf
}

func (server *Server) CreateVirtualOutput(width, height int) (graphics.VirtualOutput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid virtual output size %dx%d", width, height)
	}
	server.lock.Lock()
	defer server.lock.Unlock()
	v := &virtualOutput{server: server, id: server.nextID, size: geometry.Size{Width: width, Height: height}}
	server.nextID++
	server.virtuals = append(server.virtuals, v)
	return v, nil
}

// CreateGLContext hands out software contexts, rendering into the shadow
// images doesn't need more
func (server *Server) CreateGLContext() (graphics.GLContext, error) {
	return &headless.Context{}, nil
}

func (server *Server) find(name string) *output {
	server.lock.Lock()
	defer server.lock.Unlock()
	i := slices.IndexFunc(server.outputs, func(o *output) bool { return o.name == name })
	if i < 0 {
		return nil
	}
	return server.outputs[i]
}

func (server *Server) outputsChanged() {
	if server.onOutputsChanged != nil {
		go server.onOutputsChanged()
	}
}
