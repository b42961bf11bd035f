// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for chatd.
//
// Values resolve in order of precedence: CLI flags, then
// ~/.chatd/config.toml, then built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	// Port is the SSH listen port.
	Port int `toml:"port"`

	// Identity is the host private key file. Empty means an ephemeral
	// key is generated on start.
	Identity string `toml:"identity"`

	// Oplist is the operators key file.
	Oplist string `toml:"oplist"`

	// Whitelist is the trusted-keys file; setting it enables whitelist
	// mode.
	Whitelist string `toml:"whitelist"`

	// Motd is the message-of-the-day file, sent verbatim to joiners.
	Motd string `toml:"motd"`

	// Log is the append-only chat log file.
	Log string `toml:"log"`

	// Debug raises operational log verbosity (0..2).
	Debug int `toml:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Port: 2222}
}

// Path returns the config file location, ~/.chatd/config.toml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".chatd", "config.toml"), nil
}

// Load reads the default config file. A missing file is not an error;
// defaults apply.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a specific config file over the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Debug < 0 {
		return fmt.Errorf("debug level %d out of range", c.Debug)
	}
	return nil
}
