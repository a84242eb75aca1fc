// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package compositor

import (
	"errors"
	"fmt"
)

var (
	ErrNoBufferScheduled = errors.New("no buffer scheduled")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrTooManySessions   = errors.New("too many screencast sessions")
	ErrUnknownSession    = errors.New("unknown screencast session")
	ErrStartTimeout      = errors.New("compositor thread failed to start")
	ErrStopTimeout       = errors.New("compositor thread failed to stop")
	ErrNothingRendered   = errors.New("compositor rendered nothing")
)

// panicError turns a recovered value into an error, keeping wrapped errors intact
func panicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("compositor thread panicked: %w", err)
	}
	return fmt.Errorf("compositor thread panicked: %v", recovered)
}
