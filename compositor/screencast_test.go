// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"errors"
	"testing"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type screencastFixture struct {
	display    *stubDisplay
	scene      *stubScene
	allocator  *stubAllocator
	factory    *screencastFactory
	screencast *CompositingScreencast
}

// screencastFactory records what the session compositors got to see
type screencastFactory struct {
	err error
	// Composite reports nothing rendered while set
	renderNothing bool

	areas    []geometry.Rectangle
	targets  []graphics.Buffer
	contexts []bool
	display  *stubDisplay
}

func (f *screencastFactory) CreateCompositorFor(buffer graphics.DisplayBuffer) (DisplayBufferCompositor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &screencastCompositor{factory: f, buffer: buffer.(*screencastDisplayBuffer)}, nil
}

type screencastCompositor struct {
	factory *screencastFactory
	buffer  *screencastDisplayBuffer
}

func (c *screencastCompositor) Composite(SceneElementSequence) bool {
	f := c.factory
	f.areas = append(f.areas, c.buffer.ViewArea())
	f.targets = append(f.targets, c.buffer.current)

	f.display.lock.Lock()
	current := false
	for _, ctx := range f.display.contexts {
		current = current || ctx.current.Load()
	}
	f.display.lock.Unlock()
	f.contexts = append(f.contexts, current)
	return !f.renderNothing
}

func newScreencastFixture() *screencastFixture {
	display := newStubDisplay(geometry.NewRectangle(0, 0, 1920, 1080))
	fx := &screencastFixture{
		display:   display,
		scene:     newStubScene(),
		allocator: &stubAllocator{},
		factory:   &screencastFactory{display: display},
	}
	fx.screencast = NewCompositingScreencast(fx.scene, fx.display, fx.allocator, fx.factory)
	return fx
}

var (
	defaultRegion = geometry.NewRectangle(100, 100, 800, 600)
	defaultSize   = geometry.Size{Width: 400, Height: 300}
)

func (fx *screencastFixture) createSession(t *testing.T, nbuffers int) ScreencastSessionID {
	t.Helper()
	id, err := fx.screencast.CreateSession(defaultRegion, defaultSize, graphics.PixelFormatARGB8888, nbuffers, graphics.MirrorModeNone)
	require.NoError(t, err)
	return id
}

func TestCreatesSessionsWithDistinctIDs(t *testing.T) {
	fx := newScreencastFixture()
	first := fx.createSession(t, 1)
	second := fx.createSession(t, 1)

	assert.NotZero(t, first)
	assert.NotEqual(t, first, second)
	assert.Equal(t, []ScreencastSessionID{first, second}, fx.screencast.Sessions())
}

func TestCreateSessionRejectsInvalidParameters(t *testing.T) {
	tests := map[string]struct {
		region   geometry.Rectangle
		size     geometry.Size
		format   graphics.PixelFormat
		nbuffers int
	}{
		"zero width region":  {geometry.NewRectangle(0, 0, 0, 600), defaultSize, graphics.PixelFormatARGB8888, 1},
		"zero height region": {geometry.NewRectangle(0, 0, 800, 0), defaultSize, graphics.PixelFormatARGB8888, 1},
		"zero width size":    {defaultRegion, geometry.Size{Width: 0, Height: 300}, graphics.PixelFormatARGB8888, 1},
		"zero height size":   {defaultRegion, geometry.Size{Width: 400, Height: 0}, graphics.PixelFormatARGB8888, 1},
		"invalid format":     {defaultRegion, defaultSize, graphics.PixelFormatInvalid, 1},
		"no buffers":         {defaultRegion, defaultSize, graphics.PixelFormatARGB8888, 0},
		"negative buffers":   {defaultRegion, defaultSize, graphics.PixelFormatARGB8888, -2},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			fx := newScreencastFixture()
			_, err := fx.screencast.CreateSession(test.region, test.size, test.format, test.nbuffers, graphics.MirrorModeNone)
			require.ErrorIs(t, err, ErrInvalidParameters)
			assert.Empty(t, fx.screencast.Sessions())
			assert.Zero(t, fx.allocator.count())
			assert.Zero(t, fx.scene.registeredCount())
		})
	}
}

func TestCaptureOfUnknownSessionFails(t *testing.T) {
	fx := newScreencastFixture()
	_, err := fx.screencast.Capture(42)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, fx.screencast.DestroySession(42), ErrUnknownSession)
}

func TestCaptureOfDestroyedSessionFails(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)
	require.NoError(t, fx.screencast.DestroySession(id))

	_, err := fx.screencast.Capture(id)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, fx.screencast.DestroySession(id), ErrUnknownSession)
	assert.Empty(t, fx.screencast.Sessions())
}

func TestCaptureCompositesSessionRegion(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)

	buffer, err := fx.screencast.Capture(id)
	require.NoError(t, err)
	assert.Equal(t, defaultSize, buffer.Size())
	require.Len(t, fx.factory.areas, 1)
	assert.Equal(t, defaultRegion, fx.factory.areas[0])
}

func TestCaptureRunsWithContextCurrent(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 2)

	for i := 0; i < 3; i++ {
		_, err := fx.screencast.Capture(id)
		require.NoError(t, err)
	}
	for _, current := range fx.factory.contexts {
		assert.True(t, current)
	}
	require.Len(t, fx.display.contexts, 1)
	ctx := fx.display.contexts[0]
	assert.False(t, ctx.current.Load())
	assert.Equal(t, ctx.makes.Load(), ctx.releases.Load())
}

func TestCaptureCyclesThroughRequestedBuffers(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 3)
	require.Equal(t, 3, fx.allocator.count())

	var captured []graphics.Buffer
	for i := 0; i < 6; i++ {
		buffer, err := fx.screencast.Capture(id)
		require.NoError(t, err)
		captured = append(captured, buffer)
	}

	seen := map[graphics.Buffer]struct{}{}
	for _, b := range captured {
		seen[b] = struct{}{}
	}
	assert.Len(t, seen, 3)
	for i := 0; i < 3; i++ {
		assert.Same(t, captured[i], captured[i+3])
	}
}

func TestSingleBufferSessionReusesItsBuffer(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)

	first, err := fx.screencast.Capture(id)
	require.NoError(t, err)
	second, err := fx.screencast.Capture(id)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSessionsUseDifferentBuffers(t *testing.T) {
	fx := newScreencastFixture()
	first := fx.createSession(t, 1)
	second := fx.createSession(t, 1)

	a, err := fx.screencast.Capture(first)
	require.NoError(t, err)
	b, err := fx.screencast.Capture(second)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestSessionRegistersWithScene(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)
	assert.Equal(t, 1, fx.scene.registeredCount())

	require.NoError(t, fx.screencast.DestroySession(id))
	assert.Zero(t, fx.scene.registeredCount())
}

func TestNoVirtualOutputForCoveredRegion(t *testing.T) {
	fx := newScreencastFixture()
	fx.createSession(t, 1)
	assert.Empty(t, fx.display.virtualOutputs)
}

func TestVirtualOutputForUncoveredRegion(t *testing.T) {
	fx := newScreencastFixture()
	region := geometry.NewRectangle(1800, 0, 640, 480)
	id, err := fx.screencast.CreateSession(region, defaultSize, graphics.PixelFormatARGB8888, 1, graphics.MirrorModeNone)
	require.NoError(t, err)

	require.Len(t, fx.display.virtualOutputs, 1)
	output := fx.display.virtualOutputs[0]
	assert.Equal(t, region.Size, output.size)
	assert.True(t, output.enabled.Load())

	require.NoError(t, fx.screencast.DestroySession(id))
	assert.False(t, output.enabled.Load())
}

func TestUnusedOutputDoesNotCoverRegion(t *testing.T) {
	fx := newScreencastFixture()
	fx.display.outputs[0].Used = false
	fx.createSession(t, 1)
	assert.Len(t, fx.display.virtualOutputs, 1)
}

func TestTooManySessions(t *testing.T) {
	fx := newScreencastFixture()
	for i := 0; i < MaxScreencastSessions; i++ {
		fx.createSession(t, 1)
	}
	_, err := fx.screencast.CreateSession(defaultRegion, defaultSize, graphics.PixelFormatARGB8888, 1, graphics.MirrorModeNone)
	require.ErrorIs(t, err, ErrTooManySessions)

	// Freed ids get handed out again
	require.NoError(t, fx.screencast.DestroySession(42))
	assert.Equal(t, ScreencastSessionID(42), fx.createSession(t, 1))
}

func TestFailedAllocationCreatesNoSession(t *testing.T) {
	errNoMemory := errors.New("out of memory")
	fx := newScreencastFixture()
	fx.allocator.err = errNoMemory

	region := geometry.NewRectangle(5000, 0, 100, 100)
	_, err := fx.screencast.CreateSession(region, defaultSize, graphics.PixelFormatARGB8888, 2, graphics.MirrorModeNone)
	require.ErrorIs(t, err, errNoMemory)
	assert.Empty(t, fx.screencast.Sessions())
	require.Len(t, fx.display.virtualOutputs, 1)
	assert.False(t, fx.display.virtualOutputs[0].enabled.Load())
}

func TestCaptureToUsesGivenBuffer(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 2)
	target := &stubBuffer{id: 99, size: defaultSize}

	require.NoError(t, fx.screencast.CaptureTo(id, target))
	require.Len(t, fx.factory.targets, 1)
	assert.Same(t, target, fx.factory.targets[0])

	// The session's own rotation is untouched
	buffer, err := fx.screencast.Capture(id)
	require.NoError(t, err)
	assert.Same(t, fx.allocator.allocated[0], buffer)
}

func TestCaptureToRejectsMissingBuffer(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)
	assert.ErrorIs(t, fx.screencast.CaptureTo(id, nil), ErrInvalidParameters)
	assert.ErrorIs(t, fx.screencast.CaptureTo(id+1, &stubBuffer{}), ErrUnknownSession)
}

func TestSessionReportsMirrorMode(t *testing.T) {
	fx := newScreencastFixture()
	_, err := fx.screencast.CreateSession(defaultRegion, defaultSize, graphics.PixelFormatARGB8888, 1, graphics.MirrorModeVertical)
	require.NoError(t, err)

	_, err = fx.screencast.Capture(1)
	require.NoError(t, err)
	session, err := fx.screencast.session(1)
	require.NoError(t, err)
	assert.Equal(t, graphics.MirrorModeVertical, session.displayBuffer.MirrorMode())
}

func TestDestroyReleasesAllSessionBuffers(t *testing.T) {
	fx := newScreencastFixture()
	for i := 0; i < 50; i++ {
		id := fx.createSession(t, 3)
		_, err := fx.screencast.Capture(id)
		require.NoError(t, err)
		_, err = fx.screencast.Capture(id)
		require.NoError(t, err)
		require.NoError(t, fx.screencast.CaptureTo(id, &stubBuffer{id: 99, size: defaultSize}))
		require.Equal(t, 3, fx.allocator.live())

		require.NoError(t, fx.screencast.DestroySession(id))
		require.Zero(t, fx.allocator.live())
	}
	assert.Equal(t, 150, fx.allocator.count())
}

func TestDestroyReleasesUncapturedSession(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 4)
	require.NoError(t, fx.screencast.DestroySession(id))
	assert.Zero(t, fx.allocator.live())
}

func TestDestroyFreesContext(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)
	require.Len(t, fx.display.contexts, 1)
	ctx := fx.display.contexts[0]
	assert.False(t, ctx.destroyed.Load())

	require.NoError(t, fx.screencast.DestroySession(id))
	assert.True(t, ctx.destroyed.Load())
	assert.False(t, ctx.current.Load())
}

func TestPartialAllocationIsReleased(t *testing.T) {
	errNoMemory := errors.New("out of memory")
	fx := newScreencastFixture()
	fx.allocator.err = errNoMemory
	fx.allocator.failAfter = 2

	region := geometry.NewRectangle(5000, 0, 100, 100)
	_, err := fx.screencast.CreateSession(region, defaultSize, graphics.PixelFormatARGB8888, 3, graphics.MirrorModeNone)
	require.ErrorIs(t, err, errNoMemory)

	assert.Equal(t, 2, fx.allocator.count())
	assert.Zero(t, fx.allocator.live())
	require.Len(t, fx.display.contexts, 1)
	assert.True(t, fx.display.contexts[0].destroyed.Load())
	assert.False(t, fx.display.contexts[0].current.Load())
	require.Len(t, fx.display.virtualOutputs, 1)
	assert.False(t, fx.display.virtualOutputs[0].enabled.Load())
	assert.Zero(t, fx.scene.registeredCount())
}

func TestFailedCompositorCreationReleasesBuffers(t *testing.T) {
	errNoCompositor := errors.New("no compositor")
	fx := newScreencastFixture()
	fx.factory.err = errNoCompositor

	_, err := fx.screencast.CreateSession(defaultRegion, defaultSize, graphics.PixelFormatARGB8888, 3, graphics.MirrorModeNone)
	require.ErrorIs(t, err, errNoCompositor)
	assert.Empty(t, fx.screencast.Sessions())
	assert.Equal(t, 3, fx.allocator.count())
	assert.Zero(t, fx.allocator.live())
	require.Len(t, fx.display.contexts, 1)
	assert.True(t, fx.display.contexts[0].destroyed.Load())
}

func TestCaptureFailsWhenNothingRendered(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)
	fx.factory.renderNothing = true

	_, err := fx.screencast.Capture(id)
	require.ErrorIs(t, err, ErrNothingRendered)
	// The buffer went back to the free schedule, so the next capture has one
	_, err = fx.screencast.Capture(id)
	require.ErrorIs(t, err, ErrNothingRendered)

	fx.factory.renderNothing = false
	buffer, err := fx.screencast.Capture(id)
	require.NoError(t, err)
	assert.Same(t, fx.allocator.allocated[0], buffer)
}

func TestCaptureToFailsWhenNothingRendered(t *testing.T) {
	fx := newScreencastFixture()
	id := fx.createSession(t, 1)
	fx.factory.renderNothing = true

	err := fx.screencast.CaptureTo(id, &stubBuffer{id: 99, size: defaultSize})
	assert.ErrorIs(t, err, ErrNothingRendered)
}
