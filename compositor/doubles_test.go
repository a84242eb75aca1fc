// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/internal/thread"
)

type stubBuffer struct {
	id       graphics.BufferID
	size     geometry.Size
	released atomic.Bool
}

func (b *stubBuffer) ID() graphics.BufferID             { return b.id }
func (b *stubBuffer) Size() geometry.Size               { return b.size }
func (b *stubBuffer) PixelFormat() graphics.PixelFormat { return graphics.PixelFormatARGB8888 }

var errDoubleRelease = errors.New("buffer released twice")

func (b *stubBuffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return errDoubleRelease
	}
	return nil
}

type stubAllocator struct {
	lock      sync.Mutex
	allocated []*stubBuffer
	err       error
	// When positive, allocations fail with err once that many succeeded
	failAfter int
}

func (a *stubAllocator) AllocBuffer(props graphics.BufferProperties) (graphics.Buffer, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.err != nil && (a.failAfter <= 0 || len(a.allocated) >= a.failAfter) {
		return nil, a.err
	}
	b := &stubBuffer{id: graphics.BufferID(len(a.allocated) + 1), size: props.Size}
	a.allocated = append(a.allocated, b)
	return b, nil
}

func (a *stubAllocator) count() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.allocated)
}

// live counts the allocated buffers nobody released yet
func (a *stubAllocator) live() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	live := 0
	for _, b := range a.allocated {
		if !b.released.Load() {
			live++
		}
	}
	return live
}

type stubDisplayBuffer struct {
	area geometry.Rectangle
}

func (b *stubDisplayBuffer) ViewArea() geometry.Rectangle { return b.area }

type stubSyncGroup struct {
	buffers []*stubDisplayBuffer
	sleep   time.Duration
	posts   atomic.Int32
}

func (g *stubSyncGroup) ForEachDisplayBuffer(f func(graphics.DisplayBuffer)) {
	for _, b := range g.buffers {
		f(b)
	}
}

func (g *stubSyncGroup) Post()                           { g.posts.Add(1) }
func (g *stubSyncGroup) RecommendedSleep() time.Duration { return g.sleep }

type stubVirtualOutput struct {
	size    geometry.Size
	enabled atomic.Bool
}

func (o *stubVirtualOutput) Enable()  { o.enabled.Store(true) }
func (o *stubVirtualOutput) Disable() { o.enabled.Store(false) }

type stubGLContext struct {
	current   atomic.Bool
	destroyed atomic.Bool
	makes     atomic.Int32
	releases  atomic.Int32
}

func (c *stubGLContext) MakeCurrent() error {
	c.makes.Add(1)
	c.current.Store(true)
	return nil
}

func (c *stubGLContext) ReleaseCurrent() {
	c.releases.Add(1)
	c.current.Store(false)
}

func (c *stubGLContext) Destroy() { c.destroyed.Store(true) }

type stubDisplay struct {
	groups  []*stubSyncGroup
	outputs []graphics.DisplayConfigurationOutput
	// When positive, ForEachDisplaySyncGroup panics after visiting that many groups
	panicAfterGroups int

	lock           sync.Mutex
	virtualOutputs []*stubVirtualOutput
	contexts       []*stubGLContext
}

// newStubDisplay creates a display with one sync group per rectangle,
// each holding a single display buffer and a connected output
func newStubDisplay(areas ...geometry.Rectangle) *stubDisplay {
	d := &stubDisplay{}
	for i, area := range areas {
		d.groups = append(d.groups, &stubSyncGroup{
			buffers: []*stubDisplayBuffer{{area: area}},
		})
		d.outputs = append(d.outputs, graphics.DisplayConfigurationOutput{
			ID:        i,
			Connected: true,
			Used:      true,
			Extents:   area,
		})
	}
	return d
}

func threeOutputs() *stubDisplay {
	return newStubDisplay(
		geometry.NewRectangle(0, 0, 1920, 1080),
		geometry.NewRectangle(1920, 0, 1920, 1080),
		geometry.NewRectangle(3840, 0, 1280, 1024),
	)
}

func (d *stubDisplay) ForEachDisplaySyncGroup(f func(graphics.DisplaySyncGroup)) {
	for i, g := range d.groups {
		if d.panicAfterGroups > 0 && i == d.panicAfterGroups {
			panic("display lost its sync groups")
		}
		f(g)
	}
}

func (d *stubDisplay) Configuration() graphics.DisplayConfiguration {
	return graphics.DisplayConfiguration{Outputs: d.outputs}
}

func (d *stubDisplay) CreateVirtualOutput(width, height int) (graphics.VirtualOutput, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	o := &stubVirtualOutput{size: geometry.Size{Width: width, Height: height}}
	d.virtualOutputs = append(d.virtualOutputs, o)
	return o, nil
}

func (d *stubDisplay) CreateGLContext() (graphics.GLContext, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	c := &stubGLContext{}
	d.contexts = append(d.contexts, c)
	return c, nil
}

func (d *stubDisplay) buffers() []*stubDisplayBuffer {
	var all []*stubDisplayBuffer
	for _, g := range d.groups {
		all = append(all, g.buffers...)
	}
	return all
}

// recordingFactory creates compositors that remember what happened to them
type recordingFactory struct {
	err error
	// Called from within Composite, on the compositor thread
	onComposite func(buffer graphics.DisplayBuffer)
	result      bool

	lock       sync.Mutex
	composites map[graphics.DisplayBuffer]int
	threads    map[graphics.DisplayBuffer]map[int]struct{}
	names      map[graphics.DisplayBuffer]string
	elements   map[graphics.DisplayBuffer]SceneElementSequence
}

func newRecordingFactory() *recordingFactory {
	return &recordingFactory{
		result:     true,
		composites: map[graphics.DisplayBuffer]int{},
		threads:    map[graphics.DisplayBuffer]map[int]struct{}{},
		names:      map[graphics.DisplayBuffer]string{},
		elements:   map[graphics.DisplayBuffer]SceneElementSequence{},
	}
}

func (f *recordingFactory) CreateCompositorFor(buffer graphics.DisplayBuffer) (DisplayBufferCompositor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &recordingCompositor{factory: f, buffer: buffer}, nil
}

func (f *recordingFactory) compositeCount(buffer graphics.DisplayBuffer) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.composites[buffer]
}

// eachCompositedAtLeast reports whether every buffer got composited n times or more
func (f *recordingFactory) eachCompositedAtLeast(buffers []*stubDisplayBuffer, n int) bool {
	for _, b := range buffers {
		if f.compositeCount(b) < n {
			return false
		}
	}
	return true
}

func (f *recordingFactory) threadsOf(buffer graphics.DisplayBuffer) map[int]struct{} {
	f.lock.Lock()
	defer f.lock.Unlock()
	threads := map[int]struct{}{}
	for tid := range f.threads[buffer] {
		threads[tid] = struct{}{}
	}
	return threads
}

type recordingCompositor struct {
	factory *recordingFactory
	buffer  graphics.DisplayBuffer
}

func (c *recordingCompositor) Composite(elements SceneElementSequence) bool {
	name, _ := thread.Name()

	f := c.factory
	f.lock.Lock()
	f.composites[c.buffer]++
	if f.threads[c.buffer] == nil {
		f.threads[c.buffer] = map[int]struct{}{}
	}
	f.threads[c.buffer][thread.ID()] = struct{}{}
	f.names[c.buffer] = name
	f.elements[c.buffer] = elements
	f.lock.Unlock()

	if f.onComposite != nil {
		f.onComposite(c.buffer)
	}
	return f.result
}

type stubScene struct {
	// Number of AddObserver calls that fail before one succeeds
	failAddObserver int
	// Observer calls panic while set
	panicAddObserver    atomic.Bool
	panicRemoveObserver atomic.Bool

	lock          sync.Mutex
	observer      SceneObserver
	registered    map[ID]struct{}
	elementCalls  int
	framesPending int
	elements      SceneElementSequence
}

func newStubScene() *stubScene {
	return &stubScene{registered: map[ID]struct{}{}}
}

var errObserverRejected = errors.New("observer rejected")

func (s *stubScene) RegisterCompositor(id ID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.registered[id] = struct{}{}
}

func (s *stubScene) UnregisterCompositor(id ID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.registered, id)
}

// SceneElementsFor consumes one pending frame
func (s *stubScene) SceneElementsFor(ID) SceneElementSequence {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.elementCalls++
	if s.framesPending > 0 {
		s.framesPending--
	}
	return s.elements
}

func (s *stubScene) FramesPending(ID) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.framesPending
}

func (s *stubScene) AddObserver(observer SceneObserver) error {
	if s.panicAddObserver.Load() {
		panic("scene exploded adding an observer")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.failAddObserver > 0 {
		s.failAddObserver--
		return errObserverRejected
	}
	s.observer = observer
	return nil
}

func (s *stubScene) RemoveObserver(observer SceneObserver) error {
	if s.panicRemoveObserver.Load() {
		panic("scene exploded removing an observer")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.observer == observer {
		s.observer = nil
	}
	return nil
}

func (s *stubScene) currentObserver() SceneObserver {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.observer
}

func (s *stubScene) emitChange() {
	if o := s.currentObserver(); o != nil {
		o.SurfacesChanged()
	}
}

func (s *stubScene) emitRegionChange(frames int, damage geometry.Rectangle) {
	if o := s.currentObserver(); o != nil {
		o.RegionChanged(frames, damage)
	}
}

func (s *stubScene) registeredCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.registered)
}

func (s *stubScene) elementCallCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.elementCalls
}

func (s *stubScene) setFramesPending(frames int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.framesPending = frames
}

type recordingReport struct {
	NullCompositorReport
	started   atomic.Int32
	stopped   atomic.Int32
	scheduled atomic.Int32
	displays  atomic.Int32
}

func (r *recordingReport) Started()                          { r.started.Add(1) }
func (r *recordingReport) Stopped()                          { r.stopped.Add(1) }
func (r *recordingReport) Scheduled()                        { r.scheduled.Add(1) }
func (r *recordingReport) AddedDisplay(_, _, _, _ int, _ ID) { r.displays.Add(1) }

type recordingListener struct {
	onAdd func(area geometry.Rectangle)

	lock    sync.Mutex
	added   []geometry.Rectangle
	removed []geometry.Rectangle
}

func (l *recordingListener) AddDisplay(area geometry.Rectangle) {
	l.lock.Lock()
	l.added = append(l.added, area)
	l.lock.Unlock()
	if l.onAdd != nil {
		l.onAdd(area)
	}
}

func (l *recordingListener) RemoveDisplay(area geometry.Rectangle) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.removed = append(l.removed, area)
}

func (l *recordingListener) snapshot() (added, removed []geometry.Rectangle) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]geometry.Rectangle(nil), l.added...), append([]geometry.Rectangle(nil), l.removed...)
}
