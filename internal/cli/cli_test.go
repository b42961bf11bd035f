// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unrenamed/chatd/internal/config"
)

func parse(t *testing.T, args ...string) *config.Config {
	t.Helper()
	opts, err := Parse(args)
	require.NoError(t, err)
	cfg := config.Default()
	require.NoError(t, opts.Apply(cfg))
	return cfg
}

func TestParseDefaults(t *testing.T) {
	cfg := parse(t)
	assert.Equal(t, 2222, cfg.Port)
	assert.Zero(t, cfg.Debug)
}

func TestParseAllFlags(t *testing.T) {
	cfg := parse(t,
		"--port", "2022",
		"-i", "/keys/host",
		"--oplist", "/keys/ops",
		"--whitelist=/keys/trusted",
		"--motd", "/etc/motd",
		"--log", "/var/log/chat.log",
		"-d", "-d",
	)

	assert.Equal(t, 2022, cfg.Port)
	assert.Equal(t, "/keys/host", cfg.Identity)
	assert.Equal(t, "/keys/ops", cfg.Oplist)
	assert.Equal(t, "/keys/trusted", cfg.Whitelist)
	assert.Equal(t, "/etc/motd", cfg.Motd)
	assert.Equal(t, "/var/log/chat.log", cfg.Log)
	assert.Equal(t, 2, cfg.Debug)
}

func TestParseHelpAndVersion(t *testing.T) {
	opts, err := Parse([]string{"-h"})
	require.NoError(t, err)
	assert.True(t, opts.ShowHelp)

	opts, err = Parse([]string{"-V"})
	require.NoError(t, err)
	assert.True(t, opts.ShowVersion)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]string{"--port"})
	assert.ErrorContains(t, err, "requires a value")

	_, err = Parse([]string{"--port", "lots"})
	assert.ErrorContains(t, err, "invalid port")

	_, err = Parse([]string{"--serve-coffee"})
	assert.ErrorContains(t, err, "unknown flag")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	opts, err := Parse([]string{"--port", "9022"})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Port = 2022 // pretend the config file set this
	cfg.Motd = "/etc/motd"
	require.NoError(t, opts.Apply(cfg))

	assert.Equal(t, 9022, cfg.Port, "flag wins over file")
	assert.Equal(t, "/etc/motd", cfg.Motd, "unflagged values keep file settings")
}

func TestApplyValidates(t *testing.T) {
	opts, err := Parse([]string{"--port", "123456"})
	require.NoError(t, err)
	assert.Error(t, opts.Apply(config.Default()))
}
