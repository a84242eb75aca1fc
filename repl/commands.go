// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package repl

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

var ErrBadArguments = errors.New("bad arguments")

// Handler gets the words following the command name
type Handler func(args []string, r *Repl) (string, error)

type command struct {
	usage   string
	handler Handler
}

// Commands dispatches repl input by its first word
type Commands struct {
	commands map[string]command
}

func NewCommands() *Commands {
	c := &Commands{commands: map[string]command{}}
	c.Register("help", "help: list all commands", func([]string, *Repl) (string, error) {
		return c.Help(), nil
	})
	return c
}

// Register adds a command, replacing any earlier one with the same name
func (c *Commands) Register(name, usage string, handler Handler) {
	c.commands[name] = command{usage: usage, handler: handler}
}

// Handle is a MessageHandler.
// Handler errors other than ErrQuit are turned into answers so that one bad
// command doesn't end the repl
func (c *Commands) Handle(input string, r *Repl) (string, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, ok := c.commands[fields[0]]
	if !ok {
		return fmt.Sprintf("Unknown command %q, try help", fields[0]), nil
	}
	res, err := cmd.handler(fields[1:], r)
	switch {
	case errors.Is(err, ErrQuit):
		return res, err
	case errors.Is(err, ErrBadArguments):
		return fmt.Sprintf("%s\nusage: %s", err, cmd.usage), nil
	case err != nil:
		return "Error: " + err.Error(), nil
	}
	return res, nil
}

func (c *Commands) Help() string {
	names := maps.Keys(c.commands)
	slices.Sort(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "  "+c.commands[name].usage)
	}
	return "Commands:\n" + strings.Join(lines, "\n")
}
