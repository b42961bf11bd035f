// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses chatd's command line. Flags override values from
// the config file; only flags the user actually passed are applied.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/unrenamed/chatd/internal/config"
)

// Options is the parsed command line.
type Options struct {
	ShowHelp    bool
	ShowVersion bool

	port      *int
	identity  *string
	oplist    *string
	whitelist *string
	motd      *string
	log       *string
	debug     int
}

// Usage is the -h text.
const Usage = `Usage: chatd [options]

An SSH server whose shell is a chat room.

Options:
      --port <PORT>       Port to listen on (default 2222)
  -i, --identity <KEY>    Host private key; defaults to an ephemeral ed25519 key
      --oplist <FILE>     Public keys of operators
      --whitelist <FILE>  Public keys allowed to connect (enables whitelist mode)
      --motd <FILE>       Message of the day shown to joining users
      --log <FILE>        Append chat events to this file
  -d, --debug             Increase log verbosity (repeatable)
  -h, --help              Print help
  -V, --version           Print version`

// Parse reads the raw arguments (without the program name).
func Parse(args []string) (*Options, error) {
	opts := &Options{}

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("flag %s requires a value", flag)
		}
		return args[i], nil
	}

	for ; i < len(args); i++ {
		arg := args[i]
		name, inline, hasInline := strings.Cut(arg, "=")

		value := func() (string, error) {
			if hasInline {
				return inline, nil
			}
			return next(name)
		}

		switch name {
		case "-h", "--help":
			opts.ShowHelp = true
		case "-V", "--version":
			opts.ShowVersion = true
		case "-d", "--debug":
			opts.debug++
		case "--port":
			v, err := value()
			if err != nil {
				return nil, err
			}
			port, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q", v)
			}
			opts.port = &port
		case "-i", "--identity":
			v, err := value()
			if err != nil {
				return nil, err
			}
			opts.identity = &v
		case "--oplist":
			v, err := value()
			if err != nil {
				return nil, err
			}
			opts.oplist = &v
		case "--whitelist":
			v, err := value()
			if err != nil {
				return nil, err
			}
			opts.whitelist = &v
		case "--motd":
			v, err := value()
			if err != nil {
				return nil, err
			}
			opts.motd = &v
		case "--log":
			v, err := value()
			if err != nil {
				return nil, err
			}
			opts.log = &v
		default:
			return nil, fmt.Errorf("unknown flag %q", arg)
		}
	}
	return opts, nil
}

// Apply overlays the parsed flags onto cfg and validates the result.
func (o *Options) Apply(cfg *config.Config) error {
	if o.port != nil {
		cfg.Port = *o.port
	}
	if o.identity != nil {
		cfg.Identity = *o.identity
	}
	if o.oplist != nil {
		cfg.Oplist = *o.oplist
	}
	if o.whitelist != nil {
		cfg.Whitelist = *o.whitelist
	}
	if o.motd != nil {
		cfg.Motd = *o.motd
	}
	if o.log != nil {
		cfg.Log = *o.log
	}
	cfg.Debug += o.debug
	return cfg.Validate()
}
