// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package multiplexer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManyToOneCollectsFromAllSenders(t *testing.T) {
	receiver := make(chan int)
	plexer := NewManyToOne(receiver)

	var senders sync.WaitGroup
	for i := 0; i < 4; i++ {
		senders.Add(1)
		go func(i int) {
			defer senders.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, plexer.Send(i*100+j))
			}
		}(i)
	}
	go func() {
		senders.Wait()
		plexer.Close()
	}()

	got := 0
	for range receiver {
		got++
	}
	assert.Equal(t, 100, got)
}

func TestSendAfterCloseFails(t *testing.T) {
	plexer := NewManyToOne(make(chan string, 1))
	plexer.Close()
	plexer.Close()

	assert.ErrorIs(t, plexer.Send("late"), ErrClosed)
	sent, err := plexer.TrySend("late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, sent)
}

func TestTrySendDropsWhenFull(t *testing.T) {
	receiver := make(chan int, 1)
	plexer := NewManyToOne(receiver)

	sent, err := plexer.TrySend(1)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = plexer.TrySend(2)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, <-receiver)
}
