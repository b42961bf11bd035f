// chatd - an SSH server whose shell is a multi-user chat room.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unrenamed/chatd/internal/cli"
	"github.com/unrenamed/chatd/internal/command"
	"github.com/unrenamed/chatd/internal/config"
	"github.com/unrenamed/chatd/internal/server"
)

// Version information (set at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, cli.Usage)
		return 1
	}
	if opts.ShowHelp {
		fmt.Println(cli.Usage)
		return 0
	}
	if opts.ShowVersion {
		fmt.Printf("chatd %s (%s)\n", Version, GitCommit)
		return 0
	}
	command.Version = Version

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := opts.Apply(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log.SetFlags(log.LstdFlags | log.LUTC)
	if cfg.Debug > 0 {
		log.SetFlags(log.LstdFlags | log.LUTC | log.Lshortfile)
	}

	srv, err := server.New(server.Config{
		Port:          cfg.Port,
		IdentityPath:  cfg.Identity,
		OplistPath:    cfg.Oplist,
		WhitelistPath: cfg.Whitelist,
		MotdPath:      cfg.Motd,
		LogPath:       cfg.Log,
		Debug:         cfg.Debug,
	})
	if err != nil {
		log.Printf("STARTUP_ERROR | error=%v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Printf("SERVER_ERROR | error=%v", err)
		return 1
	}
	return 0
}
