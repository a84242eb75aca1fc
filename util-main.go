// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mstarongithub/mirgo/common/ipc"
	"github.com/mstarongithub/mirgo/config"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

var (
	utilAction *string = flag.String(
		"action",
		"outputs",
		"The action to perform in tool mode. Can be one of:"+
			"\n\t- none: Do nothing"+
			"\n\t- outputs: List available outputs"+
			"\n\t- capture: Capture one frame of an output, or of all of them",
	)
	outputSelection *string = flag.String(
		"output",
		"",
		"Output to perform the action on. All outputs if empty",
	)
	captureFile *string = flag.String("file", "capture.png", "Where -action capture writes its png to")
	jsonOutput  *bool   = flag.Bool("json", false, "Print results as json")
)

func utilMain(_ context.Context, conf *config.Config) {
	if *help {
		utilHelpMessage()
		return
	}

	// Init a runtime, used for stuff like getting displays
	rt, err := newHeadlessRuntime(conf)
	if err != nil {
		logrus.WithError(err).Fatal("initializing runtime")
	}
	defer rt.Close()

	switch *utilAction {
	case "none":
	case "outputs":
		err = utilListOutputs(rt)
	case "capture":
		err = utilCapture(rt)
	default:
		err = fmt.Errorf("unknown action %q", *utilAction)
	}
	if err != nil {
		logrus.WithError(err).WithField("action", *utilAction).Errorln("Tool action failed")
	}
}

func utilHelpMessage() {
	fmt.Println("---- Help message for mirgo in tool mode ----")
	fmt.Println("\nIn tool mode, mirgo will offer various tools for figuring out configurations and similar")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is mirgo/config.toml in the xdg config dirs")
	fmt.Println("\t-mode tool: Start as a tool instead of a compositor")
	fmt.Println("\t-help: Show this help message (or the one for compositor mode if -mode tool is not set)")
	fmt.Println("\nTool flags:")
	fmt.Println("\t-action: The action to perform. Can be one of:")
	fmt.Println("\t\t- (default) outputs: List available outputs")
	fmt.Println("\t\t- capture: Capture a frame into -file. Use with -output to pick one output")
	fmt.Println("\t-output: Output to perform the action on")
	fmt.Println("\t-file: Png file to capture into. Default is capture.png")
	fmt.Println("\t-json: Print results as json")
}

// selectedOutputs applies -output
func selectedOutputs(rt *runtime) ([]graphics.DisplayConfigurationOutput, error) {
	outputs := rt.display.Configuration().Outputs
	if *outputSelection == "" {
		return outputs, nil
	}
	filtered := sliceutils.Filter(outputs, func(output graphics.DisplayConfigurationOutput) bool {
		return output.Name == *outputSelection
	})
	if len(filtered) == 0 {
		return nil, fmt.Errorf("output %s not found", *outputSelection)
	}
	return filtered, nil
}

func utilListOutputs(rt *runtime) error {
	outputs, err := selectedOutputs(rt)
	if err != nil {
		return err
	}
	if *jsonOutput {
		res := ipc.OutputResponse{OutputsFound: len(outputs)}
		for _, output := range outputs {
			res.Outputs = append(res.Outputs, ipc.OutputInfo{
				Name:      output.Name,
				X:         output.Extents.Left(),
				Y:         output.Extents.Top(),
				Width:     output.Extents.Size.Width,
				Height:    output.Extents.Size.Height,
				Connected: output.Connected,
				Used:      output.Used,
			})
		}
		return printJSON(res)
	}
	for i, output := range outputs {
		fmt.Printf("Output %v: %s %v\n", i, output.Name, output.Extents)
	}
	return nil
}

// utilCapture records the selected outputs' area through a screencast session
func utilCapture(rt *runtime) error {
	outputs, err := selectedOutputs(rt)
	if err != nil {
		return err
	}
	var extents geometry.Rectangles
	for _, output := range outputs {
		extents.Add(output.Extents)
	}
	region := extents.BoundingRectangle()

	id, err := rt.screencast.CreateSession(region, region.Size, rt.cfg.ScreencastFormat(), 1, graphics.MirrorModeNone)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.screencast.DestroySession(id); err != nil {
			logrus.WithError(err).Warnln("Failed to destroy capture session")
		}
	}()
	buffer, err := rt.screencast.Capture(id)
	if err != nil {
		return err
	}
	if err = writePNG(*captureFile, buffer); err != nil {
		return err
	}

	if *jsonOutput {
		return printJSON(ipc.ScreencastResponse{
			Session: int(id),
			Width:   buffer.Size().Width,
			Height:  buffer.Size().Height,
			Format:  buffer.PixelFormat().String(),
			File:    *captureFile,
		})
	}
	fmt.Printf("Captured %v of %v into %s\n", buffer.Size(), region, *captureFile)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
