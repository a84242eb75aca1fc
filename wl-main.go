// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build wlroots

package main

import (
	"context"
	"sync/atomic"

	"github.com/mstarongithub/mirgo/config"
	"github.com/mstarongithub/mirgo/platform/headless"
	wlplatform "github.com/mstarongithub/mirgo/platform/wlroots"
	"github.com/sirupsen/logrus"
	"github.com/swaywm/go-wlroots/wlroots"
)

func wlMain(ctx context.Context, conf *config.Config) {
	wlroots.OnLog(wlroots.LogImportanceError, func(importance wlroots.LogImportance, msg string) {
		switch importance {
		case wlroots.LogImportanceDebug:
			logrus.Debugln(msg)
		case wlroots.LogImportanceInfo:
			logrus.Infoln(msg)
		case wlroots.LogImportanceError:
			logrus.Errorln(msg)
		case wlroots.LogImportanceSilent:
			return
		}
	})

	// Outputs that come and go need fresh compositing threads
	var current atomic.Pointer[runtime]
	var server *wlplatform.Server
	restart := func() {
		rt := current.Load()
		if rt == nil || !rt.compositor.Running() {
			return
		}
		if err := rt.compositor.Stop(); err != nil {
			logrus.WithError(err).Errorln("Failed to stop compositor for new outputs")
			return
		}
		// Joined, nothing draws into destroyed outputs anymore
		server.ReleaseRetired()
		if err := rt.compositor.Start(); err != nil {
			logrus.WithError(err).Errorln("Failed to restart compositor for new outputs")
		}
	}

	allocator := headless.NewAllocator()
	server, err := wlplatform.NewServer(allocator, restart)
	if err != nil {
		logrus.WithError(err).Fatalln("initializing server")
	}
	if err = server.Start(); err != nil {
		logrus.WithError(err).Fatalln("starting server")
	}

	rt := newRuntime(conf, server, allocator)
	defer rt.Close()
	if err = rt.compositor.Start(); err != nil {
		logrus.WithError(err).Fatalln("starting compositor")
	}
	current.Store(rt)

	go func() {
		serve(ctx, rt)
		// Compositor threads draw into buffers the server frees on exit
		current.Store(nil)
		if err := rt.compositor.Stop(); err != nil {
			logrus.WithError(err).Errorln("Failed to stop compositor")
		}
		server.Stop()
	}()

	// start the wayland event loop
	if err = server.Run(); err != nil {
		logrus.WithError(err).Errorln("running server")
	}
}
