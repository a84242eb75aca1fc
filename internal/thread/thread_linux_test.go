// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package thread

import (
	"runtime"
	"testing"
)

func TestSetNameTruncates(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Thread gets discarded on exit since it's never unlocked
		runtime.LockOSThread()

		if err := SetName("a-rather-long-thread-name"); err != nil {
			t.Errorf("Setting the thread name failed: %v", err)
			return
		}
		name, err := Name()
		if err != nil {
			t.Errorf("Reading the thread name failed: %v", err)
			return
		}
		if name != "a-rather-long-t" {
			t.Errorf("Unexpected thread name %q", name)
		}
	}()
	<-done
}
