// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/mstarongithub/mirgo/compositor/report"
	"github.com/mstarongithub/mirgo/config"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/platform/headless"
	"github.com/mstarongithub/mirgo/renderer/software"
	"github.com/mstarongithub/mirgo/repl"
	"github.com/mstarongithub/mirgo/scene"
	"github.com/mstarongithub/mirgo/util/wrappers"
	"github.com/sirupsen/logrus"
)

// runtime is everything a running compositor is made of
type runtime struct {
	cfg        *config.Config
	display    graphics.Display
	allocator  graphics.GraphicBufferAllocator
	scene      *scene.Stack
	report     compositor.CompositorReport
	compositor *compositor.MultiThreadedCompositor
	screencast *compositor.CompositingScreencast

	// Undoes everything the constructor set up, in reverse
	closers []func()
}

func newRuntime(cfg *config.Config, display graphics.Display, allocator graphics.GraphicBufferAllocator) *runtime {
	rt := &runtime{
		cfg:       cfg,
		display:   display,
		allocator: allocator,
		scene:     scene.NewStack(),
		report:    report.Null{},
	}
	if interval := cfg.Compositor.ReportInterval(); interval > 0 {
		logging := report.NewLogging(logrus.StandardLogger(), interval)
		rt.report = logging
		rt.closers = append(rt.closers, logging.Close)
	}

	factory := software.NewFactory()
	opts := []compositor.Option{
		compositor.WithFixedCompositeDelay(cfg.Compositor.FixedCompositeDelay()),
		compositor.WithComposeOnStart(cfg.Compositor.ComposeOnStart),
	}
	rt.compositor = compositor.NewMultiThreadedCompositor(display, rt.scene, factory, nil, rt.report, opts...)
	rt.screencast = compositor.NewCompositingScreencast(rt.scene, display, allocator, factory)
	return rt
}

// newHeadlessRuntime builds a runtime on simulated outputs
func newHeadlessRuntime(cfg *config.Config) (*runtime, error) {
	specs := make([]headless.OutputSpec, 0, len(cfg.Headless.Outputs))
	for _, out := range cfg.Headless.Outputs {
		specs = append(specs, headless.OutputSpec{
			Name:  out.Name,
			Area:  out.Area(),
			Group: out.Group,
		})
	}
	allocator := headless.NewAllocator()
	display, err := headless.New(specs, cfg.Headless.RecommendedSleep(), allocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create headless display: %w", err)
	}
	rt := newRuntime(cfg, display, allocator)
	rt.closers = append([]func(){display.Close}, rt.closers...)
	return rt, nil
}

// Close stops compositing and ends all screencast sessions
func (rt *runtime) Close() {
	if err := rt.compositor.Stop(); err != nil {
		logrus.WithError(err).Errorln("Failed to stop compositor")
	}
	for _, id := range rt.screencast.Sessions() {
		if err := rt.screencast.DestroySession(id); err != nil {
			logrus.WithError(err).WithField("session", id).Warnln("Failed to destroy screencast session")
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func headlessMain(ctx context.Context, cfg *config.Config) {
	rt, err := newHeadlessRuntime(cfg)
	if err != nil {
		logrus.WithError(err).Fatalln("Failed to set up headless runtime")
	}
	defer rt.Close()

	if err = rt.compositor.Start(); err != nil {
		logrus.WithError(err).Fatalln("Failed to start compositor")
	}
	serve(ctx, rt)
}

// serve blocks until the runtime is told to quit, either through the repl
// or a signal
func serve(ctx context.Context, rt *runtime) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	commands := newCommands(rt, cancel)

	switch rt.cfg.StartType {
	case config.START_REPL:
		// Give repl some wrappers around stdin and stdout so that it closes those instead of stdin & stdout themselves
		commandRepl := repl.NewRepl(wrappers.NewReaderWrapper(os.Stdin), wrappers.NewWriterWrapper(os.Stdout))
		logrus.Debugln("Starting repl")
		go func() {
			defer cancel()
			if err := commandRepl.Run(commands.Handle); err != nil {
				logrus.WithError(err).Errorln("Repl stopped")
			}
		}()
		<-ctx.Done()
		commandRepl.Close()
	case config.START_SINGLE_COMMAND:
		res, err := commands.Handle(*rt.cfg.StartCommand, nil)
		if err != nil {
			logrus.WithError(err).Errorln("Start command failed")
		}
		logrus.WithField("command", *rt.cfg.StartCommand).Infoln(res)
		<-ctx.Done()
	case config.START_NONE:
		<-ctx.Done()
	}
	logrus.Infoln("Shutting down")
}
