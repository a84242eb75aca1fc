// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wrappers

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderStopsAfterClose(t *testing.T) {
	r := NewReaderWrapper(strings.NewReader("hello"))
	buf := make([]byte, 2)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "he", string(buf[:n]))

	require.NoError(t, r.Close())
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriterStopsAfterClose(t *testing.T) {
	var out bytes.Buffer
	w := NewWriterWrapper(&out)
	_, err := w.Write([]byte("a"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	_, err = w.Write([]byte("b"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, "a", out.String())
}
