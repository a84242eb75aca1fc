// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package headless is a display without any monitors attached.
// Outputs render into shared memory, which makes it useful for testing
// and for capturing.
package headless

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"slices"
	"sync"
	"time"

	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
)

var ErrUnknownOutput = errors.New("unknown output")

// OutputSpec describes one output to simulate.
// Outputs sharing a Group are posted together, like mirrored monitors
type OutputSpec struct {
	Name  string
	Area  geometry.Rectangle
	Group int
}

// output is one simulated monitor.
// Rendering goes into back, posting flips it to front
type output struct {
	id   int
	name string
	area geometry.Rectangle

	lock     sync.Mutex
	back     *Buffer
	front    *Buffer
	swapped  bool
	posts    int
	lastPost time.Time
}

func (o *output) ViewArea() geometry.Rectangle {
	return o.area
}

func (o *output) Target() draw.Image {
	return o.back.Image()
}

func (o *output) Bind() error {
	return nil
}

func (o *output) SwapBuffers() error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.swapped = true
	return nil
}

func (o *output) flip(at time.Time) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if !o.swapped {
		return
	}
	o.back, o.front = o.front, o.back
	o.swapped = false
	o.posts++
	o.lastPost = at
}

type syncGroup struct {
	outputs []*output
	sleep   time.Duration
}

func (g *syncGroup) ForEachDisplayBuffer(f func(graphics.DisplayBuffer)) {
	for _, o := range g.outputs {
		f(o)
	}
}

func (g *syncGroup) Post() {
	now := time.Now()
	for _, o := range g.outputs {
		o.flip(now)
	}
}

func (g *syncGroup) RecommendedSleep() time.Duration {
	return g.sleep
}

// Display is a set of simulated outputs
type Display struct {
	groups  []*syncGroup
	outputs []*output

	lock     sync.Mutex
	virtuals []*VirtualOutput
	nextID   int
}

// New creates the outputs and their buffers.
// sleep is what every sync group recommends to sleep after posting
func New(specs []OutputSpec, sleep time.Duration, allocator *Allocator) (d *Display, err error) {
	if len(specs) == 0 {
		return nil, errors.New("headless display needs at least one output")
	}
	d = &Display{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	groups := map[int]*syncGroup{}
	var order []int
	for i, spec := range specs {
		if spec.Area.Empty() {
			return nil, fmt.Errorf("output %q has an empty area", spec.Name)
		}
		o := &output{id: i + 1, name: spec.Name, area: spec.Area}
		if o.name == "" {
			o.name = fmt.Sprintf("HEADLESS-%d", o.id)
		}
		props := graphics.BufferProperties{
			Size:   spec.Area.Size,
			Format: graphics.PixelFormatXRGB8888,
			Usage:  graphics.BufferUsageSoftware,
		}
		if o.back, err = allocator.Alloc(props); err != nil {
			return nil, fmt.Errorf("failed to allocate buffer for output %s: %w", o.name, err)
		}
		if o.front, err = allocator.Alloc(props); err != nil {
			return nil, fmt.Errorf("failed to allocate buffer for output %s: %w", o.name, err)
		}
		d.outputs = append(d.outputs, o)

		g, ok := groups[spec.Group]
		if !ok {
			g = &syncGroup{sleep: sleep}
			groups[spec.Group] = g
			order = append(order, spec.Group)
		}
		g.outputs = append(g.outputs, o)
	}
	for _, group := range order {
		d.groups = append(d.groups, groups[group])
	}
	d.nextID = len(specs) + 1

	logrus.WithFields(logrus.Fields{
		"outputs":     len(d.outputs),
		"sync_groups": len(d.groups),
	}).Infoln("Headless display ready")
	return d, nil
}

func (d *Display) ForEachDisplaySyncGroup(f func(graphics.DisplaySyncGroup)) {
	for _, g := range d.groups {
		f(g)
	}
}

func (d *Display) Configuration() graphics.DisplayConfiguration {
	var conf graphics.DisplayConfiguration
	for _, o := range d.outputs {
		conf.Outputs = append(conf.Outputs, graphics.DisplayConfigurationOutput{
			ID:        o.id,
			Name:      o.name,
			Connected: true,
			Used:      true,
			Extents:   o.area,
		})
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	for _, v := range d.virtuals {
		conf.Outputs = append(conf.Outputs, v.configuration())
	}
	return conf
}

func (d *Display) CreateVirtualOutput(width, height int) (graphics.VirtualOutput, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid virtual output size %dx%d", width, height)
	}
	d.lock.Lock()
	defer d.lock.Unlock()

	v := &VirtualOutput{
		display: d,
		id:      d.nextID,
		size:    geometry.Size{Width: width, Height: height},
	}
	d.nextID++
	d.virtuals = append(d.virtuals, v)
	return v, nil
}

func (d *Display) CreateGLContext() (graphics.GLContext, error) {
	return &Context{}, nil
}

// Snapshot copies the last posted frame of the output named name
func (d *Display) Snapshot(name string) (image.Image, error) {
	i := slices.IndexFunc(d.outputs, func(o *output) bool { return o.name == name })
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
	}
	o := d.outputs[i]

	o.lock.Lock()
	defer o.lock.Unlock()
	src := o.front.Image()
	dst := image.NewNRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}

// Posts returns how many frames the output named name has shown
func (d *Display) Posts(name string) (int, error) {
	i := slices.IndexFunc(d.outputs, func(o *output) bool { return o.name == name })
	if i < 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOutput, name)
	}
	o := d.outputs[i]
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.posts, nil
}

// Close releases all output buffers
func (d *Display) Close() {
	for _, o := range d.outputs {
		for _, b := range []*Buffer{o.back, o.front} {
			if b == nil {
				continue
			}
			if err := b.Release(); err != nil {
				logrus.WithError(err).WithField("output", o.name).Warnln("Failed to release output buffer")
			}
		}
	}
}

func (d *Display) removeVirtual(v *VirtualOutput) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if i := slices.Index(d.virtuals, v); i >= 0 {
		d.virtuals = slices.Delete(d.virtuals, i, i+1)
	}
}

// VirtualOutput shows up in the configuration while enabled
type VirtualOutput struct {
	display *Display
	id      int
	size    geometry.Size
	enabled bool
}

func (v *VirtualOutput) Enable() {
	v.display.lock.Lock()
	defer v.display.lock.Unlock()
	v.enabled = true
	logrus.WithFields(logrus.Fields{"id": v.id, "size": v.size}).Debugln("Virtual output enabled")
}

// Disable also removes the output from the display for good
func (v *VirtualOutput) Disable() {
	v.display.lock.Lock()
	v.enabled = false
	v.display.lock.Unlock()

	v.display.removeVirtual(v)
	logrus.WithField("id", v.id).Debugln("Virtual output disabled")
}

// configuration needs the display lock held
func (v *VirtualOutput) configuration() graphics.DisplayConfigurationOutput {
	return graphics.DisplayConfigurationOutput{
		ID:        v.id,
		Name:      fmt.Sprintf("VIRTUAL-%d", v.id),
		Connected: true,
		Used:      v.enabled,
		Extents:   geometry.Rectangle{Size: v.size},
	}
}
