// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"github.com/mstarongithub/mirgo/geometry"
	"github.com/mstarongithub/mirgo/graphics"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Prefix of all environment overrides
const EnvPrefix = "MIRGO"

var ErrInvalidConfig = errors.New("invalid config")

// Looked up in the xdg config dirs if no path is given
var searchPaths = []string{"mirgo/config.toml", "mirgo/config.yaml", "mirgo/config.yml"}

type StartType int

const (
	// Tells mirgo to start a repl in parallel for interacting with it
	START_REPL = StartType(iota)
	// Tells mirgo to execute a specific command on startup
	START_SINGLE_COMMAND
	// Tells mirgo to start without any specific targets
	// Note: Good luck interacting with it :3
	START_NONE
)

type Config struct {
	StartType StartType `envconfig:"START_TYPE" toml:"start_type,omitempty" yaml:"start_type,omitempty"`
	// What command to execute on start. Only matters if StartType is set to START_SINGLE_COMMAND
	StartCommand *string `envconfig:"START_COMMAND" toml:"start_command,omitempty" yaml:"start_command,omitempty"`
	// One of logrus' level names
	LogLevel string `envconfig:"LOG_LEVEL" toml:"log_level" yaml:"log_level"`
	// text or json
	LogFormat string `envconfig:"LOG_FORMAT" toml:"log_format" yaml:"log_format"`

	Compositor Compositor `envconfig:"COMPOSITOR" toml:"compositor" yaml:"compositor"`
	Headless   Headless   `envconfig:"HEADLESS" toml:"headless" yaml:"headless"`
	Screencast Screencast `envconfig:"SCREENCAST" toml:"screencast" yaml:"screencast"`
}

type Compositor struct {
	// Sleep after every frame. Negative means ask the platform
	FixedCompositeDelayMs int  `envconfig:"FIXED_COMPOSITE_DELAY_MS" toml:"fixed_composite_delay_ms" yaml:"fixed_composite_delay_ms"`
	ComposeOnStart        bool `envconfig:"COMPOSE_ON_START" toml:"compose_on_start" yaml:"compose_on_start"`
	// How often frame statistics get logged. 0 turns them off
	ReportIntervalMs int `envconfig:"REPORT_INTERVAL_MS" toml:"report_interval_ms" yaml:"report_interval_ms"`
}

type Headless struct {
	RecommendedSleepMs int      `envconfig:"RECOMMENDED_SLEEP_MS" toml:"recommended_sleep_ms" yaml:"recommended_sleep_ms"`
	Outputs            []Output `ignored:"true" toml:"outputs" yaml:"outputs"`
}

type Output struct {
	Name   string `toml:"name" yaml:"name"`
	X      int    `toml:"x" yaml:"x"`
	Y      int    `toml:"y" yaml:"y"`
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	// Outputs in the same group are posted together
	Group int `toml:"group" yaml:"group"`
}

type Screencast struct {
	// Pixel format name, as in ARGB8888
	Format  string `envconfig:"FORMAT" toml:"format" yaml:"format"`
	Buffers int    `envconfig:"BUFFERS" toml:"buffers" yaml:"buffers"`
}

// Default is what mirgo runs with when nothing is configured
func Default() Config {
	return Config{
		StartType: START_REPL,
		LogLevel:  "info",
		LogFormat: "text",
		Compositor: Compositor{
			FixedCompositeDelayMs: -1,
			ComposeOnStart:        true,
			ReportIntervalMs:      10000,
		},
		Headless: Headless{
			RecommendedSleepMs: 0,
			Outputs: []Output{
				{Name: "HEADLESS-1", Width: 1280, Height: 720},
			},
		},
		Screencast: Screencast{
			Format:  "ARGB8888",
			Buffers: 2,
		},
	}
}

// Load reads the config at path on top of the defaults, then applies
// environment overrides. An empty path searches the xdg config dirs and
// falls back to the defaults if there is nothing. The returned path is
// the file actually read, if any
func Load(path string) (Config, string, error) {
	cfg := Default()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return cfg, path, err
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, path, fmt.Errorf("failed to apply environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, path, err
	}
	return cfg, path, nil
}

func findConfigFile() string {
	for _, rel := range searchPaths {
		if path, err := xdg.SearchConfigFile(rel); err == nil {
			return path
		}
	}
	return ""
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: unknown config file type %q", ErrInvalidConfig, ext)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.StartType < START_REPL || c.StartType > START_NONE {
		return fmt.Errorf("%w: unknown start type %d", ErrInvalidConfig, c.StartType)
	}
	if c.StartType == START_SINGLE_COMMAND && (c.StartCommand == nil || *c.StartCommand == "") {
		return fmt.Errorf("%w: start type single command needs a start command", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log format must be text or json, not %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.Compositor.ReportIntervalMs < 0 {
		return fmt.Errorf("%w: negative report interval", ErrInvalidConfig)
	}
	if c.Headless.RecommendedSleepMs < 0 {
		return fmt.Errorf("%w: negative recommended sleep", ErrInvalidConfig)
	}
	if len(c.Headless.Outputs) == 0 {
		return fmt.Errorf("%w: no headless outputs", ErrInvalidConfig)
	}
	for i, out := range c.Headless.Outputs {
		if out.Width <= 0 || out.Height <= 0 {
			return fmt.Errorf("%w: output %d (%s) has size %dx%d", ErrInvalidConfig, i, out.Name, out.Width, out.Height)
		}
	}
	if format, err := graphics.ParsePixelFormat(c.Screencast.Format); err != nil || !format.Valid() {
		return fmt.Errorf("%w: screencast format %q", ErrInvalidConfig, c.Screencast.Format)
	}
	if c.Screencast.Buffers < 1 {
		return fmt.Errorf("%w: screencast needs at least one buffer", ErrInvalidConfig)
	}
	return nil
}

// FixedCompositeDelay is negative if the platform should decide
func (c *Compositor) FixedCompositeDelay() time.Duration {
	if c.FixedCompositeDelayMs < 0 {
		return -1
	}
	return time.Duration(c.FixedCompositeDelayMs) * time.Millisecond
}

func (c *Compositor) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalMs) * time.Millisecond
}

func (h *Headless) RecommendedSleep() time.Duration {
	return time.Duration(h.RecommendedSleepMs) * time.Millisecond
}

func (o Output) Area() geometry.Rectangle {
	return geometry.NewRectangle(o.X, o.Y, o.Width, o.Height)
}

// ScreencastFormat only fails on configs that didn't pass Validate
func (c *Config) ScreencastFormat() graphics.PixelFormat {
	format, err := graphics.ParsePixelFormat(c.Screencast.Format)
	if err != nil {
		return graphics.PixelFormatInvalid
	}
	return format
}

// ConfigureLogging applies level and format to logger
func (c *Config) ConfigureLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
