// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
)

type StartType int

const (
	// Tells wayshell to start a repl in parallel for interacting with it
	START_REPL = StartType(iota)
	// Tells wayshell to execute a specific command on startup
	START_SINGLE_COMMAND
	// Tells wayshell to start without any specific targets
	// Note: Good luck interacting with it :3
	START_NONE
)

// DrmDeviceNone disables DRM and runs with a headless output
const DrmDeviceNone = "none"

type Config struct {
	StartType StartType `toml:"start_type,omitempty"`
	// What command to execute on start. Only matters if StartType is set to START_SINGLE_COMMAND
	StartCommand *string `toml:"start_command,omitempty"`
	// Name of the wayland socket. Empty picks the first free wayland-N
	SocketName string `toml:"socket_name,omitempty"`
	// Either "opengl" or "qpainter"
	Compositing string `toml:"compositing,omitempty"`
	// Path of the DRM card to use. Empty uses every card, "none" runs headless
	DrmDevice      string `toml:"drm_device,omitempty"`
	PingIntervalMs int    `toml:"ping_interval_ms,omitempty"`
	KillTimeoutMs  int    `toml:"kill_timeout_ms,omitempty"`
	LogLevel       string `toml:"log_level,omitempty"`
	// Size of the fake output used when no connector is online
	HeadlessWidth  int `toml:"headless_width,omitempty"`
	HeadlessHeight int `toml:"headless_height,omitempty"`
	// Also announce the unstable zxdg_shell_v6 global
	XdgShellV6 bool `toml:"xdg_shell_v6,omitempty"`
}

func Default() Config {
	return Config{
		StartType:      START_REPL,
		Compositing:    "opengl",
		PingIntervalMs: 1000,
		KillTimeoutMs:  5000,
		LogLevel:       "info",
		HeadlessWidth:  1920,
		HeadlessHeight: 1080,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/wayshell/config.toml
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "wayshell", "config.toml")
}

// Load reads the config at path on top of the defaults.
// An empty path means DefaultPath, which is allowed to not exist.
func Load(path string) (*Config, error) {
	conf := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			logrus.WithField("path", path).Debugln("No config file, using defaults")
			return &conf, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err = toml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	conf.fillDefaults()
	if err = conf.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &conf, nil
}

// Zero values mean "not set" since every field is omitempty
func (c *Config) fillDefaults() {
	def := Default()
	if c.Compositing == "" {
		c.Compositing = def.Compositing
	}
	if c.PingIntervalMs == 0 {
		c.PingIntervalMs = def.PingIntervalMs
	}
	if c.KillTimeoutMs == 0 {
		c.KillTimeoutMs = def.KillTimeoutMs
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.HeadlessWidth == 0 {
		c.HeadlessWidth = def.HeadlessWidth
	}
	if c.HeadlessHeight == 0 {
		c.HeadlessHeight = def.HeadlessHeight
	}
}

func (c *Config) Validate() error {
	if c.StartType < START_REPL || c.StartType > START_NONE {
		return fmt.Errorf("unknown start_type %d", c.StartType)
	}
	if c.StartType == START_SINGLE_COMMAND && (c.StartCommand == nil || *c.StartCommand == "") {
		return errors.New("start_type single command needs start_command")
	}
	if c.PingIntervalMs < 0 || c.KillTimeoutMs < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.HeadlessWidth < 0 || c.HeadlessHeight < 0 {
		return errors.New("headless size must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

func (c *Config) KillTimeout() time.Duration {
	return time.Duration(c.KillTimeoutMs) * time.Millisecond
}

// Level is the parsed LogLevel, info if it does not parse
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func (c *Config) Headless() bool {
	return c.DrmDevice == DrmDeviceNone
}

// Marshal renders the config as TOML, for example to seed a config file
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
