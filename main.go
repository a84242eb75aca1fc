// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mstarongithub/mirgo/config"
	"github.com/sirupsen/logrus"
)

var (
	runMode *string = flag.String(
		"mode",
		"headless",
		"How to run. Can be one of:"+
			"\n\t- headless: Composite into simulated outputs"+
			"\n\t- wl: Drive a wlroots backend (needs the wlroots build tag)"+
			"\n\t- tool: Run a single tool action, see -action",
	)
	configPath *string = flag.String("config", "", "Path to the config file. Searched for in the xdg config dirs if empty")
	help       *bool   = flag.Bool("help", false, "Show the help message for the selected mode")
)

func main() {
	flag.Parse()

	cfg, path, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).WithField("path", path).Fatalln("Failed to load config")
	}
	if err = cfg.ConfigureLogging(logrus.StandardLogger()); err != nil {
		logrus.WithError(err).Fatalln("Failed to configure logging")
	}
	logrus.WithFields(logrus.Fields{
		"mode":   *runMode,
		"config": path,
	}).Debugln("Config loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if path != "" {
		go watchConfig(ctx, path)
	}

	switch *runMode {
	case "headless":
		if *help {
			helpMessage()
			return
		}
		headlessMain(ctx, &cfg)
	case "wl":
		if *help {
			helpMessage()
			return
		}
		wlMain(ctx, &cfg)
	case "tool":
		utilMain(ctx, &cfg)
	default:
		logrus.WithField("mode", *runMode).Fatalln("Unknown mode")
	}
}

// watchConfig only reapplies logging, everything else needs a restart
func watchConfig(ctx context.Context, path string) {
	err := config.Watch(ctx, path, func(cfg config.Config, err error) {
		if err != nil {
			logrus.WithError(err).Warnln("Ignoring broken config change")
			return
		}
		if err = cfg.ConfigureLogging(logrus.StandardLogger()); err != nil {
			logrus.WithError(err).Warnln("Failed to reapply logging config")
			return
		}
		logrus.WithField("level", cfg.LogLevel).Infoln("Logging config reloaded")
	})
	if err != nil {
		logrus.WithError(err).Warnln("Config watcher stopped")
	}
}

func helpMessage() {
	fmt.Println("---- Help message for mirgo ----")
	fmt.Println("\nmirgo runs a multi threaded compositor, one thread per group of outputs")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is mirgo/config.toml in the xdg config dirs")
	fmt.Println("\t-mode: headless (default), wl or tool")
	fmt.Println("\t-help: Show this help message (or the one for tool mode if -mode tool is set)")
	fmt.Println("\nIf the repl is enabled, type help for a list of commands")
}
