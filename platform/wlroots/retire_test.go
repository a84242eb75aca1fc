// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wlroots

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingReleaser struct {
	releases int
	err      error
}

func (r *countingReleaser) Release() error {
	r.releases++
	return r.err
}

func TestRetiredBuffersWaitForReleaseAll(t *testing.T) {
	var r retirement
	first, second := &countingReleaser{}, &countingReleaser{}
	r.retire(first)
	r.retire(second)
	assert.Zero(t, first.releases)
	assert.Zero(t, second.releases)

	assert.Equal(t, 2, r.releaseAll())
	assert.Equal(t, 1, first.releases)
	assert.Equal(t, 1, second.releases)

	// Each buffer is released only once
	assert.Zero(t, r.releaseAll())
	assert.Equal(t, 1, first.releases)
}

func TestFailedReleaseDoesNotStopTheRest(t *testing.T) {
	var r retirement
	failing := &countingReleaser{err: errors.New("munmap failed")}
	fine := &countingReleaser{}
	r.retire(failing)
	r.retire(fine)

	assert.Equal(t, 2, r.releaseAll())
	assert.Equal(t, 1, fine.releases)
}
