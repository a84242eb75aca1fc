// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package report

import (
	"testing"
	"time"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingSummarisesFrames(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	report := NewLogging(logger, time.Hour)

	id := compositor.NewID()
	for i := 0; i < 10; i++ {
		report.BeganFrame(id)
		report.RenderedFrame(id)
		report.FinishedFrame(id)
	}
	// Closing flushes whatever was collected so far
	report.Close()

	var stats *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Frame statistics" {
			stats = entry
		}
	}
	require.NotNil(t, stats)
	assert.Equal(t, id, stats.Data["id"])
	assert.Equal(t, 10, stats.Data["rendered"])
	assert.Greater(t, stats.Data["fps"].(float64), 0.0)
}

func TestLoggingReportsAddedDisplays(t *testing.T) {
	logger, hook := test.NewNullLogger()
	report := NewLogging(logger, time.Hour)
	defer report.Close()

	id := compositor.NewID()
	report.AddedDisplay(1920, 1080, 0, 0, id)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, 1920, entry.Data["width"])
	assert.Equal(t, id, entry.Data["id"])
}

func TestFramesAfterCloseAreDropped(t *testing.T) {
	logger, _ := test.NewNullLogger()
	report := NewLogging(logger, time.Hour)
	report.Close()

	assert.NotPanics(t, func() {
		report.BeganFrame(compositor.NewID())
	})
}

func TestNullIsACompositorReport(t *testing.T) {
	var _ compositor.CompositorReport = Null{}
	var _ compositor.CompositorReport = (*Logging)(nil)
}
