// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"fmt"
	"sync"
	"time"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/internal/thread"
	"github.com/sirupsen/logrus"
)

const (
	threadName   = "Mir/Comp"
	startTimeout = 10 * time.Second
	stopTimeout  = 10 * time.Hour
)

type displayBufferCompositor struct {
	id         ID
	buffer     graphics.DisplayBuffer
	compositor DisplayBufferCompositor
}

// compositingFunctor drives the render loop of one display sync group.
// run must be executed on exactly one thread
type compositingFunctor struct {
	factory   DisplayBufferCompositorFactory
	group     graphics.DisplaySyncGroup
	scene     Scene
	listener  DisplayListener
	report    CompositorReport
	terminate func(error)
	// Negative means follow the group's recommendation
	forceSleep time.Duration

	lock            sync.Mutex
	wake            *sync.Cond
	running         bool
	framesScheduled int
	notPostedYet    bool

	started chan error
	stopped chan struct{}
}

func newCompositingFunctor(
	factory DisplayBufferCompositorFactory,
	group graphics.DisplaySyncGroup,
	scene Scene,
	listener DisplayListener,
	report CompositorReport,
	forceSleep time.Duration,
	terminate func(error),
) *compositingFunctor {
	f := &compositingFunctor{
		factory:      factory,
		group:        group,
		scene:        scene,
		listener:     listener,
		report:       report,
		terminate:    terminate,
		forceSleep:   forceSleep,
		running:      true,
		notPostedYet: true,
		started:      make(chan error, 1),
		stopped:      make(chan struct{}),
	}
	f.wake = sync.NewCond(&f.lock)
	return f
}

func (f *compositingFunctor) run() {
	defer close(f.stopped)

	if err := thread.SetName(threadName); err != nil {
		logrus.WithError(err).Debugln("Failed to name compositor thread")
	}

	compositors, teardown, err := f.setUp()
	if err != nil {
		f.started <- err
		return
	}
	defer teardown()
	f.started <- nil

	defer func() {
		if r := recover(); r != nil {
			f.terminate(panicError(r))
		}
	}()

	// Prime every surface's notion of its current frame, so the first real
	// composite doesn't pick up an already consumed one
	for _, c := range compositors {
		f.scene.SceneElementsFor(c.id)
	}

	f.loop(compositors)
}

// setUp creates the compositors for every display buffer of the group and
// registers them. Panics are turned into errors, as nobody would wait for
// the thread otherwise
func (f *compositingFunctor) setUp() (compositors []displayBufferCompositor, teardown func(), err error) {
	var cleanups []func()
	teardown = func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
		if err != nil {
			teardown()
		}
	}()

	f.group.ForEachDisplayBuffer(func(buffer graphics.DisplayBuffer) {
		if err != nil {
			return
		}
		var compositor DisplayBufferCompositor
		compositor, err = f.factory.CreateCompositorFor(buffer)
		if err != nil {
			err = fmt.Errorf("failed to create compositor for display buffer: %w", err)
			return
		}
		c := displayBufferCompositor{id: NewID(), buffer: buffer, compositor: compositor}
		compositors = append(compositors, c)

		area := buffer.ViewArea()
		f.report.AddedDisplay(area.Size.Width, area.Size.Height, area.TopLeft.X, area.TopLeft.Y, c.id)
	})
	if err != nil {
		return nil, teardown, err
	}

	areas := make([]geometry.Rectangle, 0, len(compositors))
	for _, c := range compositors {
		areas = append(areas, c.buffer.ViewArea())
	}
	cleanups = append(cleanups, func() {
		for _, area := range areas {
			f.listener.RemoveDisplay(area)
		}
	})
	for _, area := range areas {
		f.listener.AddDisplay(area)
	}

	cleanups = append(cleanups, func() {
		for _, c := range compositors {
			f.scene.UnregisterCompositor(c.id)
		}
	})
	for _, c := range compositors {
		f.scene.RegisterCompositor(c.id)
	}

	return compositors, teardown, nil
}

func (f *compositingFunctor) loop(compositors []displayBufferCompositor) {
	for f.waitForWork() {
		f.compositeOnce(compositors)

		// Compositors may have skipped renderables that still have frames
		// queued up, so look again instead of trusting the last schedule
		pending := 0
		for _, c := range compositors {
			pending = max(pending, f.scene.FramesPending(c.id))
		}
		f.scheduleCompositing(pending)
	}
}

// waitForWork blocks until a frame is scheduled and claims it.
// It returns false once the functor got stopped
func (f *compositingFunctor) waitForWork() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	for f.framesScheduled == 0 && f.running {
		f.wake.Wait()
	}
	// Stopped while waiting
	if !f.running {
		return false
	}
	f.framesScheduled--
	f.notPostedYet = false
	return true
}

func (f *compositingFunctor) compositeOnce(compositors []displayBufferCompositor) {
	needsPost := false
	for _, c := range compositors {
		f.report.BeganFrame(c.id)
		if c.compositor.Composite(f.scene.SceneElementsFor(c.id)) {
			needsPost = true
			f.report.RenderedFrame(c.id)
		}
	}
	if needsPost {
		f.group.Post()
	}
	for _, c := range compositors {
		f.report.FinishedFrame(c.id)
	}

	// Sleeping here delays the next scene snapshot towards the vsync
	delay := f.forceSleep
	if delay < 0 {
		delay = f.group.RecommendedSleep()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
}

// scheduleCompositing never blocks on the render loop,
// so it is safe to call from display listener and composite callbacks
func (f *compositingFunctor) scheduleCompositing(frames int) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if frames > f.framesScheduled {
		f.framesScheduled = frames
		f.wake.Signal()
	}
}

func (f *compositingFunctor) scheduleCompositingRegion(frames int, damage geometry.Rectangle) {
	// The group's buffers are fixed for its lifetime, no need for the lock here
	tookDamage := false
	f.group.ForEachDisplayBuffer(func(buffer graphics.DisplayBuffer) {
		if damage.Overlaps(buffer.ViewArea()) {
			tookDamage = true
		}
	})

	f.lock.Lock()
	defer f.lock.Unlock()

	if (tookDamage || f.notPostedYet) && frames > f.framesScheduled {
		f.framesScheduled = frames
		f.wake.Signal()
	}
}

func (f *compositingFunctor) stop() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.running = false
	f.wake.Signal()
}

func (f *compositingFunctor) waitUntilStarted() error {
	timer := time.NewTimer(startTimeout)
	defer timer.Stop()

	select {
	case err := <-f.started:
		return err
	case <-timer.C:
		return ErrStartTimeout
	}
}

func (f *compositingFunctor) waitUntilStopped() error {
	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-f.stopped:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}
