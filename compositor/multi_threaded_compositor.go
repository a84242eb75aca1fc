// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type compositorState int32

const (
	stateStopped compositorState = iota
	stateStarting
	stateStarted
	stateStopping
)

// MultiThreadedCompositor runs one compositing thread per display sync group
type MultiThreadedCompositor struct {
	display  graphics.Display
	scene    Scene
	factory  DisplayBufferCompositorFactory
	listener DisplayListener
	report   CompositorReport
	executor Executor

	fixedCompositeDelay time.Duration
	composeOnStart      atomic.Bool
	terminate           func(error)

	state    atomic.Int32
	observer *SceneChangeNotification

	// Never held while waiting for a thread, functors call back into us
	functorsMu sync.RWMutex
	functors   []*compositingFunctor
}

type Option func(*MultiThreadedCompositor)

// WithFixedCompositeDelay replaces the sync groups' recommended sleep with delay.
// A negative delay restores the recommendation
func WithFixedCompositeDelay(delay time.Duration) Option {
	return func(c *MultiThreadedCompositor) {
		c.fixedCompositeDelay = delay
	}
}

// WithComposeOnStart composites every output once right after starting,
// no matter whether the scene changed
func WithComposeOnStart(compose bool) Option {
	return func(c *MultiThreadedCompositor) {
		c.composeOnStart.Store(compose)
	}
}

func WithExecutor(executor Executor) Option {
	return func(c *MultiThreadedCompositor) {
		c.executor = executor
	}
}

// WithTerminateFunc sets what happens when a compositor thread dies.
// The default logs the error and exits the process
func WithTerminateFunc(terminate func(error)) Option {
	return func(c *MultiThreadedCompositor) {
		c.terminate = terminate
	}
}

func NewMultiThreadedCompositor(
	display graphics.Display,
	scene Scene,
	factory DisplayBufferCompositorFactory,
	listener DisplayListener,
	report CompositorReport,
	opts ...Option,
) *MultiThreadedCompositor {
	if report == nil {
		report = NullCompositorReport{}
	}
	if listener == nil {
		listener = NullDisplayListener{}
	}
	c := &MultiThreadedCompositor{
		display:             display,
		scene:               scene,
		factory:             factory,
		listener:            listener,
		report:              report,
		executor:            NewThreadExecutor(),
		fixedCompositeDelay: -1,
		terminate: func(err error) {
			logrus.WithError(err).Fatalln("Compositor thread died")
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.observer = NewSceneChangeNotification(c.ScheduleCompositing, c.scheduleCompositingRegion)
	return c
}

// Start spawns the compositing threads. Starting an already running
// compositor does nothing. On error or panic nothing is left running
func (c *MultiThreadedCompositor) Start() (err error) {
	if !c.state.CompareAndSwap(int32(stateStopped), int32(stateStarting)) {
		return nil
	}
	c.report.Started()

	observing := false
	defer func() {
		r := recover()
		if err == nil && r == nil {
			return
		}
		if observing {
			if rerr := c.scene.RemoveObserver(c.observer); rerr != nil {
				logrus.WithError(rerr).Warnln("Failed to stop observing scene after failed start")
			}
		}
		c.destroyCompositingThreads()
		c.state.Store(int32(stateStopped))
		if r != nil {
			panic(r)
		}
	}()

	if err = c.createCompositingThreads(); err != nil {
		return err
	}
	if err = c.scene.AddObserver(c.observer); err != nil {
		return fmt.Errorf("failed to observe scene: %w", err)
	}
	observing = true

	if c.composeOnStart.Load() {
		c.ScheduleCompositing()
	}

	c.state.Store(int32(stateStarted))
	logrus.Infoln("Compositor started")
	return nil
}

// Stop joins all compositing threads. Stopping a compositor that is not
// running does nothing. If Stop fails before the threads are joined, the
// compositor keeps running
func (c *MultiThreadedCompositor) Stop() (err error) {
	if !c.state.CompareAndSwap(int32(stateStarted), int32(stateStopping)) {
		return nil
	}
	joining := false
	defer func() {
		r := recover()
		if err == nil && r == nil {
			return
		}
		if joining {
			c.state.Store(int32(stateStopped))
		} else {
			c.state.Store(int32(stateStarted))
		}
		if r != nil {
			panic(r)
		}
	}()

	// No scene callback may reach a functor that is gone
	if err = c.scene.RemoveObserver(c.observer); err != nil {
		return fmt.Errorf("failed to stop observing scene: %w", err)
	}
	joining = true
	c.destroyCompositingThreads()

	// Whatever was blocked while stopped needs a fresh frame on restart
	c.composeOnStart.Store(true)

	c.report.Stopped()
	c.state.Store(int32(stateStopped))
	logrus.Infoln("Compositor stopped")
	return nil
}

// Running reports whether Start succeeded and no Stop followed yet
func (c *MultiThreadedCompositor) Running() bool {
	return c.state.Load() == int32(stateStarted)
}

// ScheduleCompositing wakes every output for one frame
func (c *MultiThreadedCompositor) ScheduleCompositing() {
	c.report.Scheduled()

	c.functorsMu.RLock()
	defer c.functorsMu.RUnlock()
	for _, f := range c.functors {
		f.scheduleCompositing(1)
	}
}

// ScheduleCompositingRegion only wakes outputs overlapping damage
func (c *MultiThreadedCompositor) ScheduleCompositingRegion(damage geometry.Rectangle) {
	c.scheduleCompositingRegion(1, damage)
}

func (c *MultiThreadedCompositor) scheduleCompositingRegion(frames int, damage geometry.Rectangle) {
	c.report.Scheduled()

	c.functorsMu.RLock()
	defer c.functorsMu.RUnlock()
	for _, f := range c.functors {
		f.scheduleCompositingRegion(frames, damage)
	}
}

func (c *MultiThreadedCompositor) createCompositingThreads() error {
	var functors []*compositingFunctor
	c.display.ForEachDisplaySyncGroup(func(group graphics.DisplaySyncGroup) {
		f := newCompositingFunctor(
			c.factory,
			group,
			c.scene,
			c.listener,
			c.report,
			c.fixedCompositeDelay,
			c.terminate,
		)
		c.executor.Spawn(f.run)
		functors = append(functors, f)

		// Published right away so a failed start can find every thread.
		// The display listener may also schedule while the threads set up
		c.functorsMu.Lock()
		c.functors = append(c.functors, f)
		c.functorsMu.Unlock()
	})

	var started errgroup.Group
	for _, f := range functors {
		started.Go(f.waitUntilStarted)
	}
	return started.Wait()
}

func (c *MultiThreadedCompositor) destroyCompositingThreads() {
	c.functorsMu.Lock()
	functors := c.functors
	c.functors = nil
	c.functorsMu.Unlock()

	for _, f := range functors {
		f.stop()
	}
	for _, f := range functors {
		if err := f.waitUntilStopped(); err != nil {
			c.terminate(err)
		}
	}
}
