// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mstarongithub/mirgo/compositor"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/mstarongithub/mirgo/repl"
	"github.com/mstarongithub/mirgo/util"
	"github.com/sirupsen/logrus"
)

var defaultSurfaceColor = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

func newCommands(rt *runtime, quit func()) *repl.Commands {
	c := repl.NewCommands()
	c.Register("start", "start: start compositing", func([]string, *repl.Repl) (string, error) {
		if err := rt.compositor.Start(); err != nil {
			return "", err
		}
		return "Started", nil
	})
	c.Register("stop", "stop: stop compositing", func([]string, *repl.Repl) (string, error) {
		if err := rt.compositor.Stop(); err != nil {
			return "", err
		}
		return "Stopped", nil
	})
	c.Register("schedule", "schedule: composite every output once", func([]string, *repl.Repl) (string, error) {
		rt.compositor.ScheduleCompositing()
		return "Scheduled", nil
	})
	c.Register("damage", "damage x y w h: composite the outputs showing an area", func(args []string, _ *repl.Repl) (string, error) {
		area, err := parseRectangle(args)
		if err != nil {
			return "", err
		}
		rt.compositor.ScheduleCompositingRegion(area)
		return "Scheduled " + area.String(), nil
	})
	c.Register(
		"surface",
		"surface add <name> x y w h [rrggbbaa] | move <name> x y | remove <name> | alpha <name> a | raise <name> | list",
		func(args []string, _ *repl.Repl) (string, error) {
			return surfaceCommand(rt, args)
		},
	)
	c.Register(
		"screencast",
		"screencast create x y w h [nbuffers] | capture <id> [file.png] | destroy <id> | list",
		func(args []string, _ *repl.Repl) (string, error) {
			return screencastCommand(rt, args)
		},
	)
	c.Register("outputs", "outputs: list all outputs", func([]string, *repl.Repl) (string, error) {
		var lines []string
		for _, out := range rt.display.Configuration().Outputs {
			lines = append(lines, fmt.Sprintf(
				"Output %d: %s %v connected=%t used=%t",
				out.ID, out.Name, out.Extents, out.Connected, out.Used,
			))
		}
		return strings.Join(lines, "\n"), nil
	})
	c.Register("run", "run <cmd> [args...]: run a command in the background", func(args []string, r *repl.Repl) (string, error) {
		if len(args) == 0 {
			return "", repl.ErrBadArguments
		}
		var out io.Writer = os.Stdout
		if r != nil {
			out = r.Output
		}
		runCommand(args, out)
		return "Running " + args[0], nil
	})
	c.Register("quit", "quit: stop mirgo", func([]string, *repl.Repl) (string, error) {
		quit()
		return "Quitting", repl.ErrQuit
	})
	return c
}

func surfaceCommand(rt *runtime, args []string) (string, error) {
	var sub, name string
	util.Unpack(args, &sub, &name)
	if name == "" && sub != "list" {
		return "", fmt.Errorf("%w: surface %s needs a name", repl.ErrBadArguments, sub)
	}
	rest := args[min(len(args), 2):]

	switch sub {
	case "add":
		if len(rest) != 4 && len(rest) != 5 {
			return "", fmt.Errorf("%w: surface add takes x y w h and maybe a colour", repl.ErrBadArguments)
		}
		area, err := parseRectangle(rest[:4])
		if err != nil {
			return "", err
		}
		fill := color.Color(defaultSurfaceColor)
		if len(rest) == 5 {
			if fill, err = parseColor(rest[4]); err != nil {
				return "", err
			}
		}
		buffer, err := filledBuffer(rt.allocator, area.Size, fill)
		if err != nil {
			return "", err
		}
		if err = rt.scene.AddSurface(name, area); err != nil {
			return "", err
		}
		if err = rt.scene.Submit(name, buffer); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added %s at %v", name, area), nil
	case "move":
		coords, err := parseInts(rest, 2)
		if err != nil {
			return "", err
		}
		to := geometry.Point{X: coords[0], Y: coords[1]}
		if err = rt.scene.MoveSurface(name, to); err != nil {
			return "", err
		}
		return fmt.Sprintf("Moved %s to %v", name, to), nil
	case "remove":
		if err := rt.scene.RemoveSurface(name); err != nil {
			return "", err
		}
		return "Removed " + name, nil
	case "alpha":
		if len(rest) != 1 {
			return "", fmt.Errorf("%w: surface alpha takes one value", repl.ErrBadArguments)
		}
		alpha, err := strconv.ParseFloat(rest[0], 32)
		if err != nil {
			return "", fmt.Errorf("%w: %w", repl.ErrBadArguments, err)
		}
		if err = rt.scene.SetAlpha(name, float32(alpha)); err != nil {
			return "", err
		}
		return fmt.Sprintf("Set alpha of %s to %.2f", name, alpha), nil
	case "raise":
		if err := rt.scene.RaiseSurface(name); err != nil {
			return "", err
		}
		return "Raised " + name, nil
	case "list":
		var lines []string
		for _, info := range rt.scene.Surfaces() {
			lines = append(lines, fmt.Sprintf(
				"%s %v alpha=%.2f queued=%d rendered=%d occluded=%d",
				info.Name, info.Position, info.Alpha, info.Frames, info.Rendered, info.Occluded,
			))
		}
		if len(lines) == 0 {
			return "No surfaces", nil
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("%w: unknown surface command %q", repl.ErrBadArguments, sub)
	}
}

func screencastCommand(rt *runtime, args []string) (string, error) {
	var sub string
	util.Unpack(args, &sub)
	rest := args[min(len(args), 1):]

	switch sub {
	case "create":
		if len(rest) != 4 && len(rest) != 5 {
			return "", fmt.Errorf("%w: screencast create takes x y w h and maybe a buffer count", repl.ErrBadArguments)
		}
		region, err := parseRectangle(rest[:4])
		if err != nil {
			return "", err
		}
		nbuffers := rt.cfg.Screencast.Buffers
		if len(rest) == 5 {
			if nbuffers, err = strconv.Atoi(rest[4]); err != nil {
				return "", fmt.Errorf("%w: %w", repl.ErrBadArguments, err)
			}
		}
		id, err := rt.screencast.CreateSession(region, region.Size, rt.cfg.ScreencastFormat(), nbuffers, graphics.MirrorModeNone)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Session %d", id), nil
	case "capture":
		if len(rest) != 1 && len(rest) != 2 {
			return "", fmt.Errorf("%w: screencast capture takes an id and maybe a file", repl.ErrBadArguments)
		}
		id, err := parseSessionID(rest[0])
		if err != nil {
			return "", err
		}
		buffer, err := rt.screencast.Capture(id)
		if err != nil {
			return "", err
		}
		if len(rest) == 1 {
			return fmt.Sprintf("Captured %v %v", buffer.Size(), buffer.PixelFormat()), nil
		}
		if err = writePNG(rest[1], buffer); err != nil {
			return "", err
		}
		return fmt.Sprintf("Captured %v into %s", buffer.Size(), rest[1]), nil
	case "destroy":
		if len(rest) != 1 {
			return "", fmt.Errorf("%w: screencast destroy takes an id", repl.ErrBadArguments)
		}
		id, err := parseSessionID(rest[0])
		if err != nil {
			return "", err
		}
		if err = rt.screencast.DestroySession(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Destroyed session %d", id), nil
	case "list":
		ids := rt.screencast.Sessions()
		if len(ids) == 0 {
			return "No sessions", nil
		}
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, strconv.Itoa(int(id)))
		}
		return "Sessions: " + strings.Join(names, " "), nil
	default:
		return "", fmt.Errorf("%w: unknown screencast command %q", repl.ErrBadArguments, sub)
	}
}

func runCommand(args []string, out io.Writer) {
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmdString := strings.Join(args, " ")
	go func() {
		err := cmd.Start()
		if err != nil {
			logrus.WithError(err).WithField("command", cmdString).Errorln("Command failed to start")
			return
		}
		err = cmd.Wait()
		var exiterr *exec.ExitError
		if errors.As(err, &exiterr) {
			logrus.WithError(err).WithFields(logrus.Fields{
				"exit-code": exiterr.ExitCode(),
				"command":   cmdString,
			}).Warningln("Bad command completion")
		}
	}()
}

func parseInts(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: want %d numbers, got %d", repl.ErrBadArguments, n, len(args))
	}
	ints := make([]int, n)
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", repl.ErrBadArguments, err)
		}
		ints[i] = v
	}
	return ints, nil
}

func parseRectangle(args []string) (geometry.Rectangle, error) {
	v, err := parseInts(args, 4)
	if err != nil {
		return geometry.Rectangle{}, err
	}
	return geometry.NewRectangle(v[0], v[1], v[2], v[3]), nil
}

func parseSessionID(arg string) (compositor.ScreencastSessionID, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", repl.ErrBadArguments, err)
	}
	return compositor.ScreencastSessionID(id), nil
}

// parseColor reads rrggbbaa, or rrggbb for opaque colours
func parseColor(arg string) (color.Color, error) {
	arg = strings.TrimPrefix(arg, "#")
	if len(arg) == 6 {
		arg += "ff"
	}
	if len(arg) != 8 {
		return nil, fmt.Errorf("%w: colour %q is not rrggbbaa", repl.ErrBadArguments, arg)
	}
	v, err := strconv.ParseUint(arg, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repl.ErrBadArguments, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func filledBuffer(allocator graphics.GraphicBufferAllocator, size geometry.Size, fill color.Color) (graphics.Buffer, error) {
	buffer, err := allocator.AllocBuffer(graphics.BufferProperties{
		Size:   size,
		Format: graphics.PixelFormatARGB8888,
		Usage:  graphics.BufferUsageSoftware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate surface buffer: %w", err)
	}
	if img, ok := buffer.(graphics.ImageBuffer); ok {
		dst := img.Image()
		draw.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	}
	return buffer, nil
}

func writePNG(path string, buffer graphics.Buffer) (err error) {
	img, ok := buffer.(graphics.ImageBuffer)
	if !ok {
		return fmt.Errorf("buffer %d has no pixels to write", buffer.ID())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img.Image())
}
