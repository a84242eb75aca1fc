// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package report has the CompositorReport implementations
package report

import (
	"time"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/mstarongithub/mirgo/util/multiplexer"
	"github.com/sirupsen/logrus"
)

// Null drops every event
type Null = compositor.NullCompositorReport

const eventBacklog = 1024

type eventKind int

const (
	eventBegan eventKind = iota
	eventRendered
	eventFinished
)

type frameEvent struct {
	kind eventKind
	id   compositor.ID
	at   time.Time
}

type frameStats struct {
	began    time.Time
	frames   int
	rendered int
	busy     time.Duration
}

// Logging writes lifecycle events to a logrus logger and summarises
// frame events per compositor every interval.
// Frame events come from the compositor threads and are handed over to
// a single collecting goroutine, so reporting never blocks a frame
type Logging struct {
	log      *logrus.Entry
	interval time.Duration
	events   *multiplexer.ManyToOne[frameEvent]
	done     chan struct{}
}

// NewLogging starts the collector. Call Close once the compositor is gone
func NewLogging(logger *logrus.Logger, interval time.Duration) *Logging {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	received := make(chan frameEvent, eventBacklog)
	l := &Logging{
		log:      logger.WithField("component", "compositor"),
		interval: interval,
		events:   multiplexer.NewManyToOne(received),
		done:     make(chan struct{}),
	}
	go l.collect(received)
	return l
}

func (l *Logging) Started() {
	l.log.Infoln("Compositor starting")
}

func (l *Logging) Stopped() {
	l.log.Infoln("Compositor stopped")
}

func (l *Logging) Scheduled() {
	l.log.Traceln("Compositing scheduled")
}

func (l *Logging) AddedDisplay(width, height, x, y int, id compositor.ID) {
	l.log.WithFields(logrus.Fields{
		"id":     id,
		"width":  width,
		"height": height,
		"x":      x,
		"y":      y,
	}).Infoln("Added display")
}

func (l *Logging) BeganFrame(id compositor.ID)    { l.send(eventBegan, id) }
func (l *Logging) RenderedFrame(id compositor.ID) { l.send(eventRendered, id) }
func (l *Logging) FinishedFrame(id compositor.ID) { l.send(eventFinished, id) }

// Close stops the collector after it logged what it has left
func (l *Logging) Close() {
	l.events.Close()
	<-l.done
}

func (l *Logging) send(kind eventKind, id compositor.ID) {
	// Dropping statistics beats stalling a compositor thread
	_, _ = l.events.TrySend(frameEvent{kind: kind, id: id, at: time.Now()})
}

func (l *Logging) collect(received <-chan frameEvent) {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	stats := map[compositor.ID]*frameStats{}
	since := time.Now()
	for {
		select {
		case ev, ok := <-received:
			if !ok {
				l.summarise(stats, time.Since(since))
				return
			}
			record(stats, ev)
		case now := <-ticker.C:
			l.summarise(stats, now.Sub(since))
			stats = map[compositor.ID]*frameStats{}
			since = now
		}
	}
}

func record(stats map[compositor.ID]*frameStats, ev frameEvent) {
	s, ok := stats[ev.id]
	if !ok {
		s = &frameStats{}
		stats[ev.id] = s
	}
	switch ev.kind {
	case eventBegan:
		s.began = ev.at
	case eventRendered:
		s.rendered++
	case eventFinished:
		s.frames++
		if !s.began.IsZero() {
			s.busy += ev.at.Sub(s.began)
			s.began = time.Time{}
		}
	}
}

func (l *Logging) summarise(stats map[compositor.ID]*frameStats, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	for id, s := range stats {
		if s.frames == 0 {
			continue
		}
		l.log.WithFields(logrus.Fields{
			"id":       id,
			"fps":      float64(s.frames) / elapsed.Seconds(),
			"rendered": s.rendered,
			"avg_time": s.busy / time.Duration(s.frames),
		}).Debugln("Frame statistics")
	}
}
