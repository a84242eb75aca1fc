// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositorThreadsAreNamed(t *testing.T) {
	fx := newFixture(threeOutputs())
	c := fx.compositor(t, WithComposeOnStart(true))
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool {
		return fx.factory.eachCompositedAtLeast(fx.display.buffers(), 1)
	}, waitFor, tick)

	fx.factory.lock.Lock()
	defer fx.factory.lock.Unlock()
	for _, b := range fx.display.buffers() {
		assert.Equal(t, threadName, fx.factory.names[b])
	}
}
