// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !wlroots

package main

import (
	"context"

	"github.com/mstarongithub/mirgo/config"
	"github.com/sirupsen/logrus"
)

func wlMain(context.Context, *config.Config) {
	logrus.Fatalln("mirgo was built without wlroots support, rebuild with -tags wlroots")
}
